package adapters_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/consentd/internal/audit"
	"github.com/dropDatabas3/consentd/internal/consent"
	"github.com/dropDatabas3/consentd/internal/domain/repository"
	"github.com/dropDatabas3/consentd/internal/store"
	_ "github.com/dropDatabas3/consentd/internal/store/adapters/dal"
)

// openAll abre cada adapter embebido (sin servidor externo).
func openAll(t *testing.T) map[string]store.AdapterConnection {
	t.Helper()
	ctx := context.Background()
	out := map[string]store.AdapterConnection{}

	mem, err := store.OpenAdapter(ctx, store.AdapterConfig{Name: "memory"})
	require.NoError(t, err)
	out["memory"] = mem

	lite, err := store.OpenAdapter(ctx, store.AdapterConfig{
		Name:        "sqlite",
		DSN:         filepath.Join(t.TempDir(), "consentd.db"),
		AutoMigrate: true,
	})
	require.NoError(t, err)
	out["sqlite"] = lite

	t.Cleanup(func() {
		for _, c := range out {
			_ = c.Close()
		}
	})
	return out
}

func TestRegistry_ListsAdapters(t *testing.T) {
	require.Equal(t, []string{"memory", "postgres", "sqlite"}, store.ListAdapters())

	_, err := store.OpenAdapter(context.Background(), store.AdapterConfig{Name: "oracle"})
	require.Error(t, err)
}

func TestAccounts_ResolveOrCreateAndLink(t *testing.T) {
	ctx := context.Background()
	for name, conn := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			repo := conn.Accounts()
			id := uuid.NewString()

			acc, created, err := repo.ResolveOrCreate(ctx, id, "github", "42")
			require.NoError(t, err)
			require.True(t, created)
			require.Equal(t, id, acc.ID)
			require.Len(t, acc.Identities, 1)

			again, created, err := repo.ResolveOrCreate(ctx, uuid.NewString(), "github", "42")
			require.NoError(t, err)
			require.False(t, created)
			require.Equal(t, id, again.ID)

			owner, err := repo.Link(ctx, id, "google", "g-1")
			require.NoError(t, err)
			require.Equal(t, id, owner)

			acc, err = repo.GetByIdentity(ctx, "google", "g-1")
			require.NoError(t, err)
			require.Equal(t, id, acc.ID)
			require.True(t, acc.HasIdentity("github", "42"))
			require.True(t, acc.HasIdentity("google", "g-1"))

			// par ya reclamado por otra cuenta: no se mueve
			other := uuid.NewString()
			_, _, err = repo.ResolveOrCreate(ctx, other, "gitlab", "7")
			require.NoError(t, err)
			owner, err = repo.Link(ctx, other, "github", "42")
			require.NoError(t, err)
			require.Equal(t, id, owner)

			_, err = repo.Link(ctx, uuid.NewString(), "x", "y")
			require.True(t, repository.IsNotFound(err))

			_, err = repo.GetByIdentity(ctx, "github", "nope")
			require.True(t, repository.IsNotFound(err))
		})
	}
}

func TestAccounts_ConcurrentResolveYieldsOneAccount(t *testing.T) {
	ctx := context.Background()
	for name, conn := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			repo := conn.Accounts()
			const n = 8
			ids := make([]string, n)
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					acc, _, err := repo.ResolveOrCreate(ctx, uuid.NewString(), "github", "race")
					if err == nil {
						ids[i] = acc.ID
					}
				}(i)
			}
			wg.Wait()
			for _, id := range ids {
				require.Equal(t, ids[0], id)
			}
		})
	}
}

func TestConsents_MergeRevokeKeepsPseudonym(t *testing.T) {
	ctx := context.Background()
	for name, conn := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			accountID := uuid.NewString()
			_, _, err := conn.Accounts().ResolveOrCreate(ctx, accountID, "github", "p-"+name)
			require.NoError(t, err)
			repo := conn.Consents()
			sub := uuid.NewString()

			created, err := repo.EnsureExists(ctx, accountID, "client-a", sub)
			require.NoError(t, err)
			require.True(t, created)
			created, err = repo.EnsureExists(ctx, accountID, "client-a", uuid.NewString())
			require.NoError(t, err)
			require.False(t, created)

			c, err := repo.Get(ctx, accountID, "client-a")
			require.NoError(t, err)
			require.False(t, c.Visible())
			require.Equal(t, sub, c.Pseudonym)

			c, err = repo.MergeScopes(ctx, accountID, "client-a", []string{"b", "a"}, uuid.NewString())
			require.NoError(t, err)
			require.Equal(t, []string{"a", "b"}, c.Scopes)
			c, err = repo.MergeScopes(ctx, accountID, "client-a", []string{"c", "a"}, uuid.NewString())
			require.NoError(t, err)
			require.Equal(t, []string{"a", "b", "c"}, c.Scopes)
			require.Equal(t, sub, c.Pseudonym)
			require.True(t, c.Visible())

			ok, err := repo.Revoke(ctx, accountID, "client-a")
			require.NoError(t, err)
			require.True(t, ok)
			c, err = repo.Get(ctx, accountID, "client-a")
			require.NoError(t, err)
			require.Equal(t, repository.ConsentRevoked, c.Status)
			require.Empty(t, c.Scopes)
			require.Equal(t, sub, c.Pseudonym)

			c, err = repo.MergeScopes(ctx, accountID, "client-a", []string{"z"}, uuid.NewString())
			require.NoError(t, err)
			require.Equal(t, []string{"z"}, c.Scopes)
			require.Equal(t, repository.ConsentActive, c.Status)
			require.Equal(t, sub, c.Pseudonym)

			ok, err = repo.Revoke(ctx, accountID, "client-missing")
			require.NoError(t, err)
			require.False(t, ok)

			list, err := repo.ListByAccount(ctx, accountID)
			require.NoError(t, err)
			require.Len(t, list, 1)
		})
	}
}

func TestConsentLogs_TrimAndOrder(t *testing.T) {
	ctx := context.Background()
	for name, conn := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			repo := conn.ConsentLogs()
			base := time.Now().UTC().Truncate(time.Millisecond)
			for i := 0; i < 5; i++ {
				err := repo.Atomic(ctx, "acc", "cl", func(w repository.ConsentLogWriter) error {
					if _, err := w.DeleteAllExceptLatest(ctx, 2); err != nil {
						return err
					}
					return w.Insert(ctx, repository.ConsentLog{
						ID:        uuid.NewString(),
						Timestamp: base.Add(time.Duration(i) * time.Second),
						Kind:      "CONSENT",
						Messages:  []string{fmt.Sprintf("entry %d", i)},
					})
				})
				require.NoError(t, err)
			}

			n, err := repo.CountByPair(ctx, "acc", "cl")
			require.NoError(t, err)
			require.Equal(t, 3, n)

			logs, err := repo.ListByPair(ctx, "acc", "cl", 0)
			require.NoError(t, err)
			require.Len(t, logs, 3)
			require.Equal(t, []string{"entry 4"}, logs[0].Messages)
			require.Equal(t, []string{"entry 2"}, logs[2].Messages)

			logs, err = repo.ListByPair(ctx, "acc", "cl", 1)
			require.NoError(t, err)
			require.Len(t, logs, 1)
		})
	}
}

func TestConsentLogs_FailedUnitIsDiscarded(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	for name, conn := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			repo := conn.ConsentLogs()
			err := repo.Atomic(ctx, "acc", "cl", func(w repository.ConsentLogWriter) error {
				require.NoError(t, w.Insert(ctx, repository.ConsentLog{ID: uuid.NewString(), Timestamp: time.Now(), Kind: "CONSENT"}))
				return boom
			})
			require.ErrorIs(t, err, boom)

			n, err := repo.CountByPair(ctx, "acc", "cl")
			require.NoError(t, err)
			require.Zero(t, n)
		})
	}
}

func TestAuthorizations_FindLatestCovering(t *testing.T) {
	ctx := context.Background()
	for name, conn := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			repo := conn.Authorizations()
			t0 := time.Now().UTC().Truncate(time.Millisecond)
			require.NoError(t, repo.Save(ctx, repository.Authorization{ID: "old", AccountID: "acc", ClientID: "cl", Scopes: []string{"a", "b"}, CreatedAt: t0}))
			require.NoError(t, repo.Save(ctx, repository.Authorization{ID: "new", AccountID: "acc", ClientID: "cl", Scopes: []string{"a", "b", "c"}, CreatedAt: t0.Add(time.Minute)}))
			require.NoError(t, repo.Save(ctx, repository.Authorization{ID: "narrow", AccountID: "acc", ClientID: "cl", Scopes: []string{"a"}, CreatedAt: t0.Add(2 * time.Minute)}))

			a, err := repo.FindLatestCovering(ctx, "acc", "cl", []string{"a", "b"})
			require.NoError(t, err)
			require.Equal(t, "new", a.ID)

			a, err = repo.FindLatestCovering(ctx, "acc", "cl", []string{"a"})
			require.NoError(t, err)
			require.Equal(t, "narrow", a.ID)

			_, err = repo.FindLatestCovering(ctx, "acc", "cl", []string{"d"})
			require.True(t, repository.IsNotFound(err))

			require.ErrorIs(t, repo.Save(ctx, repository.Authorization{ClientID: "cl"}), repository.ErrInvalidInput)
		})
	}
}

func TestConsents_ConcurrentGrantsKeepEveryScope(t *testing.T) {
	ctx := context.Background()
	for name, conn := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			accountID := uuid.NewString()
			_, _, err := conn.Accounts().ResolveOrCreate(ctx, accountID, "github", "grants-"+name)
			require.NoError(t, err)

			const (
				n          = 40
				maxEntries = 5
			)
			svc := consent.NewService(consent.Deps{
				Accounts: conn.Accounts(),
				Consents: conn.Consents(),
				Audit:    audit.New(conn.ConsentLogs(), maxEntries),
			})

			errs := make([]error, n)
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = svc.Grant(ctx, accountID, "client-c", []string{fmt.Sprintf("s%d", i)}, nil)
				}(i)
			}
			wg.Wait()
			for _, err := range errs {
				require.NoError(t, err)
			}

			c, err := conn.Consents().Get(ctx, accountID, "client-c")
			require.NoError(t, err)
			require.Len(t, c.Scopes, n)
			for i := 0; i < n; i++ {
				require.Contains(t, c.Scopes, fmt.Sprintf("s%d", i))
			}

			count, err := conn.ConsentLogs().CountByPair(ctx, accountID, "client-c")
			require.NoError(t, err)
			require.LessOrEqual(t, count, maxEntries)
			require.Positive(t, count)
		})
	}
}
