package store

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

type fakeExec struct {
	applied []int
	scripts []string
}

func (f *fakeExec) ExecSQL(_ context.Context, query string, args ...any) error {
	if strings.HasPrefix(strings.TrimSpace(query), "INSERT INTO _migrations") {
		f.applied = append(f.applied, args[0].(int))
		return nil
	}
	f.scripts = append(f.scripts, query)
	return nil
}

func (f *fakeExec) QueryInts(context.Context, string) ([]int, error) {
	return append([]int(nil), f.applied...), nil
}

func TestMigrator_RunAppliesPendingInOrder(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_logs.sql":  {Data: []byte("CREATE TABLE b (x INT);")},
		"0001_init.sql":  {Data: []byte("CREATE TABLE a (x INT);")},
		"README.md":      {Data: []byte("ignored")},
		"notes_init.sql": {Data: []byte("ignored too")},
	}
	exec := &fakeExec{}
	m := NewMigrator(fsys, ".", DialectSQLite)

	res, err := m.Run(context.Background(), exec)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, res.Applied)
	require.Contains(t, exec.scripts[1], "CREATE TABLE a")
	require.Contains(t, exec.scripts[2], "CREATE TABLE b")

	// segunda corrida: todo skip
	res, err = m.Run(context.Background(), exec)
	require.NoError(t, err)
	require.Empty(t, res.Applied)
	require.Equal(t, []int{1, 2}, res.Skipped)
}

func TestMigrator_DuplicatedVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"0001_a.sql": {Data: []byte("SELECT 1;")},
		"0001_b.sql": {Data: []byte("SELECT 1;")},
	}
	_, err := NewMigrator(fsys, ".", DialectPostgres).ParseMigrations()
	require.Error(t, err)
}
