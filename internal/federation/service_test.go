package federation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/consentd/internal/cache"
	"github.com/dropDatabas3/consentd/internal/config"
	"github.com/dropDatabas3/consentd/internal/domain/repository"
	"github.com/dropDatabas3/consentd/internal/store/adapters/memory"
)

func newTestService(t *testing.T, policy string) (Service, repository.AccountRepository, *cache.MemoryClient) {
	t.Helper()
	conn := memory.New()
	c := cache.NewMemory("test", time.Minute)
	svc := NewService(Deps{
		Accounts:     conn.Accounts(),
		Cache:        c,
		CacheTTL:     time.Minute,
		LinkConflict: policy,
	})
	return svc, conn.Accounts(), c
}

func TestResolveOrCreate_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, "")

	a1, err := svc.ResolveOrCreate(ctx, "github", "42")
	require.NoError(t, err)
	a2, err := svc.ResolveOrCreate(ctx, "github", "42")
	require.NoError(t, err)
	require.Equal(t, a1.ID, a2.ID)

	other, err := svc.ResolveOrCreate(ctx, "google", "42")
	require.NoError(t, err)
	require.NotEqual(t, a1.ID, other.ID)
}

func TestResolveOrCreate_CacheHitSurvivesStorageLookup(t *testing.T) {
	ctx := context.Background()
	svc, _, c := newTestService(t, "")

	acc, err := svc.ResolveOrCreate(ctx, "github", "42")
	require.NoError(t, err)

	cached, err := c.Get(ctx, identityCacheKey("github", "42"))
	require.NoError(t, err)
	require.Equal(t, acc.ID, cached)

	_, err = svc.ResolveOrCreate(ctx, "github", "42")
	require.NoError(t, err)
	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, stats.Hits, int64(1))
}

func TestResolveOrCreate_StaleCacheEntryIsIgnored(t *testing.T) {
	ctx := context.Background()
	svc, _, c := newTestService(t, "")

	require.NoError(t, c.Set(ctx, identityCacheKey("github", "7"), "ghost-account", 0))
	acc, err := svc.ResolveOrCreate(ctx, "github", "7")
	require.NoError(t, err)
	require.NotEqual(t, "ghost-account", acc.ID)
}

func TestResolveOrCreate_Concurrent(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, "")

	const n = 16
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acc, err := svc.ResolveOrCreate(ctx, "github", "burst")
			if err == nil {
				ids[i] = acc.ID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		require.NotEmpty(t, id)
		require.Equal(t, ids[0], id)
	}
}

func TestResolveOrCreate_RequiresPair(t *testing.T) {
	svc, _, _ := newTestService(t, "")
	_, err := svc.ResolveOrCreate(context.Background(), "", "42")
	require.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestLinkIdentity_ThenResolveReturnsLinkingAccount(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, "")

	acc, err := svc.ResolveOrCreate(ctx, "github", "42")
	require.NoError(t, err)

	linked, err := svc.LinkIdentity(ctx, acc.ID, "google", "g-99")
	require.NoError(t, err)
	require.Equal(t, acc.ID, linked.ID)
	require.Len(t, linked.Identities, 2)

	resolved, err := svc.ResolveOrCreate(ctx, "google", "g-99")
	require.NoError(t, err)
	require.Equal(t, acc.ID, resolved.ID)

	// vincular de nuevo es no-op
	again, err := svc.LinkIdentity(ctx, acc.ID, "google", "g-99")
	require.NoError(t, err)
	require.Len(t, again.Identities, 2)
}

func TestLinkIdentity_KeepOwnerReturnsExistingOwner(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, config.LinkConflictKeepOwner)

	owner, err := svc.ResolveOrCreate(ctx, "github", "42")
	require.NoError(t, err)
	other, err := svc.ResolveOrCreate(ctx, "gitlab", "1")
	require.NoError(t, err)

	got, err := svc.LinkIdentity(ctx, other.ID, "github", "42")
	require.NoError(t, err)
	require.Equal(t, owner.ID, got.ID)
	require.Len(t, got.Identities, 1)

	// la otra cuenta no cambió
	unchanged, err := svc.GetAccount(ctx, other.ID)
	require.NoError(t, err)
	require.False(t, unchanged.HasIdentity("github", "42"))
}

func TestLinkIdentity_RejectPolicy(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, config.LinkConflictReject)

	_, err := svc.ResolveOrCreate(ctx, "github", "42")
	require.NoError(t, err)
	other, err := svc.ResolveOrCreate(ctx, "gitlab", "1")
	require.NoError(t, err)

	_, err = svc.LinkIdentity(ctx, other.ID, "github", "42")
	require.True(t, repository.IsIdentityConflict(err))
}

func TestLinkIdentity_UnknownAccount(t *testing.T) {
	svc, _, _ := newTestService(t, "")
	_, err := svc.LinkIdentity(context.Background(), "missing", "github", "42")
	require.True(t, repository.IsNotFound(err))
}

// gatedAccounts bloquea ResolveOrCreate hasta que se cierre release.
type gatedAccounts struct {
	repository.AccountRepository
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	ctxErr  error
}

func (g *gatedAccounts) ResolveOrCreate(ctx context.Context, accountID, issuer, externalSubject string) (*repository.Account, bool, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	g.ctxErr = ctx.Err()
	return g.AccountRepository.ResolveOrCreate(ctx, accountID, issuer, externalSubject)
}

func TestResolveOrCreate_CancelledCallerDoesNotAbortSharedLookup(t *testing.T) {
	repo := &gatedAccounts{
		AccountRepository: memory.New().Accounts(),
		entered:           make(chan struct{}),
		release:           make(chan struct{}),
	}
	svc := NewService(Deps{Accounts: repo, Cache: cache.NewMemory("test", time.Minute), CacheTTL: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.ResolveOrCreate(ctx, "github", "42")
		done <- err
	}()

	<-repo.entered
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	close(repo.release)
	require.Eventually(t, func() bool {
		_, err := repo.AccountRepository.GetByIdentity(context.Background(), "github", "42")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, repo.ctxErr)

	acc, err := svc.ResolveOrCreate(context.Background(), "github", "42")
	require.NoError(t, err)
	owner, err := repo.AccountRepository.GetByIdentity(context.Background(), "github", "42")
	require.NoError(t, err)
	require.Equal(t, owner.ID, acc.ID)
}
