package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/consentd/internal/domain/repository"
	"github.com/dropDatabas3/consentd/internal/store/adapters/memory"
)

func TestFinish_CapsHistory(t *testing.T) {
	ctx := context.Background()
	repo := memory.New().ConsentLogs()
	l := New(repo, 5)

	for i := 0; i < 12; i++ {
		ac := l.Open("acc", "cl", KindConsent)
		ac.Record("entry %d", i)
		require.NoError(t, ac.Finish(ctx))

		n, err := repo.CountByPair(ctx, "acc", "cl")
		require.NoError(t, err)
		require.LessOrEqual(t, n, 5)
	}

	entries, err := l.List(ctx, "acc", "cl")
	require.NoError(t, err)
	require.Len(t, entries, 5)
	require.Equal(t, []string{"entry 11"}, entries[0].Messages)
	require.Equal(t, []string{"entry 7"}, entries[4].Messages)
}

func TestFinish_DefaultCap(t *testing.T) {
	ctx := context.Background()
	repo := memory.New().ConsentLogs()
	l := New(repo, 0)
	require.Equal(t, DefaultMaxEntries, l.MaxEntries())

	for i := 0; i < DefaultMaxEntries+10; i++ {
		require.NoError(t, l.Open("acc", "cl", KindAuthorization).Finish(ctx))
	}
	n, err := repo.CountByPair(ctx, "acc", "cl")
	require.NoError(t, err)
	require.Equal(t, DefaultMaxEntries, n)
}

func TestFinish_OnlyOnce(t *testing.T) {
	ctx := context.Background()
	repo := memory.New().ConsentLogs()
	l := New(repo, 10)

	ac := l.Open("acc", "cl", KindConsent)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ac.Finish(ctx)
		}()
	}
	wg.Wait()

	n, err := repo.CountByPair(ctx, "acc", "cl")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestRecord_IgnoredAfterFinish(t *testing.T) {
	ctx := context.Background()
	repo := memory.New().ConsentLogs()
	l := New(repo, 10)

	ac := l.Open("acc", "cl", KindConsent)
	ac.Record("before")
	require.NoError(t, ac.Finish(ctx))
	ac.Record("late")

	require.Equal(t, []string{"before"}, ac.Messages())
	entries, err := l.List(ctx, "acc", "cl")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, []string{"before"}, entries[0].Messages)
}

func TestFinish_ConcurrentPairsStayCapped(t *testing.T) {
	ctx := context.Background()
	repo := memory.New().ConsentLogs()
	l := New(repo, 3)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ac := l.Open("acc", "cl", KindConsent)
			ac.Record("n=%d", i)
			_ = ac.Finish(ctx)
		}(i)
	}
	wg.Wait()

	n, err := repo.CountByPair(ctx, "acc", "cl")
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

// trimFailingRepo envuelve un repo real y hace fallar el recorte.
type trimFailingRepo struct {
	repository.ConsentLogRepository
	insertErr error
}

type trimFailingWriter struct {
	repository.ConsentLogWriter
	insertErr error
}

func (w trimFailingWriter) DeleteAllExceptLatest(context.Context, int) (int64, error) {
	return 0, errors.New("trim exploded")
}

func (w trimFailingWriter) Insert(ctx context.Context, e repository.ConsentLog) error {
	if w.insertErr != nil {
		return w.insertErr
	}
	return w.ConsentLogWriter.Insert(ctx, e)
}

func (r trimFailingRepo) Atomic(ctx context.Context, a, c string, fn func(repository.ConsentLogWriter) error) error {
	return r.ConsentLogRepository.Atomic(ctx, a, c, func(w repository.ConsentLogWriter) error {
		return fn(trimFailingWriter{ConsentLogWriter: w, insertErr: r.insertErr})
	})
}

func TestFinish_TrimFailureIsTolerated(t *testing.T) {
	ctx := context.Background()
	base := memory.New().ConsentLogs()
	l := New(trimFailingRepo{ConsentLogRepository: base}, 2)

	ac := l.Open("acc", "cl", KindConsent)
	ac.Record("kept despite trim failure")
	require.NoError(t, ac.Finish(ctx))

	entries, err := l.List(ctx, "acc", "cl")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, []string{"kept despite trim failure"}, entries[0].Messages)
}

func TestFinish_InsertFailurePropagates(t *testing.T) {
	ctx := context.Background()
	base := memory.New().ConsentLogs()
	insertErr := errors.New("disk full")
	l := New(trimFailingRepo{ConsentLogRepository: base, insertErr: insertErr}, 2)

	err := l.Open("acc", "cl", KindConsent).Finish(ctx)
	require.ErrorIs(t, err, insertErr)

	entries, err := l.List(ctx, "acc", "cl")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestDo_FinishesOnErrorAndPanic(t *testing.T) {
	ctx := context.Background()
	repo := memory.New().ConsentLogs()
	l := New(repo, 10)

	fnErr := errors.New("step failed")
	err := l.Do(ctx, "acc", "cl", KindConsent, func(ac *Context) error {
		ac.Record("before failure")
		return fnErr
	})
	require.ErrorIs(t, err, fnErr)

	require.PanicsWithValue(t, "kaboom", func() {
		_ = l.Do(ctx, "acc", "cl", KindRevocation, func(ac *Context) error {
			ac.Record("before panic")
			panic("kaboom")
		})
	})

	entries, err := l.List(ctx, "acc", "cl")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, KindRevocation, entries[0].Kind)
	require.Equal(t, []string{"before panic"}, entries[0].Messages)
	require.Equal(t, []string{"before failure"}, entries[1].Messages)
}

func TestDo_RecordsMessagesInOrder(t *testing.T) {
	ctx := context.Background()
	l := New(memory.New().ConsentLogs(), 10)

	require.NoError(t, l.Do(ctx, "acc", "cl", KindAuthorization, func(ac *Context) error {
		for i := 0; i < 3; i++ {
			ac.Record("step %s", fmt.Sprint(i))
		}
		return nil
	}))

	entries, err := l.List(ctx, "acc", "cl")
	require.NoError(t, err)
	require.Equal(t, []string{"step 0", "step 1", "step 2"}, entries[0].Messages)
}
