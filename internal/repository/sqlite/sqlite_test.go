package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identigraph/internal/domain"
	"identigraph/internal/repository"
)

// ============================================================================
// Test Helpers
// ============================================================================

// newTestRepo creates an in-memory SQLite repository for testing
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(":memory:")
	require.NoError(t, err, "failed to create test repository")

	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

// frozenClock pins the repository clock so monotonic bumps are observable
func frozenClock(repo *Repository, at time.Time) {
	repo.now = func() time.Time { return at }
}

func mustIdentity(t *testing.T, repo *Repository, platform domain.Platform, ident string) *domain.Identity {
	t.Helper()
	id, err := repo.CreateOrUpdateIdentity(context.Background(), domain.NewIdentity(platform, ident))
	require.NoError(t, err)
	return id
}

// ============================================================================
// Identity Tests
// ============================================================================

func TestCreateOrUpdateIdentity(t *testing.T) {
	ctx := context.Background()

	t.Run("insert assigns uuid and timestamps", func(t *testing.T) {
		repo := newTestRepo(t)

		id, err := repo.CreateOrUpdateIdentity(ctx, domain.NewIdentity(domain.PlatformTwitter, "Alice"))
		require.NoError(t, err)

		assert.NotEmpty(t, id.UUID)
		assert.Equal(t, "alice", id.Identity)
		assert.False(t, id.AddedAt.IsZero())
		assert.Equal(t, id.AddedAt, id.UpdatedAt)
	})

	t.Run("repeated upsert keeps one row and uuid", func(t *testing.T) {
		repo := newTestRepo(t)

		first := mustIdentity(t, repo, domain.PlatformEthereum, "0xABC")
		second := mustIdentity(t, repo, domain.PlatformEthereum, "0xabc")

		assert.Equal(t, first.UUID, second.UUID)
		stats, err := repo.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Identities)
	})

	t.Run("updated_at is strictly monotonic under a frozen clock", func(t *testing.T) {
		repo := newTestRepo(t)
		frozenClock(repo, time.Unix(1700000000, 0))

		first := mustIdentity(t, repo, domain.PlatformGithub, "bob")
		second := mustIdentity(t, repo, domain.PlatformGithub, "bob")
		third := mustIdentity(t, repo, domain.PlatformGithub, "bob")

		assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
		assert.True(t, third.UpdatedAt.After(second.UpdatedAt))
		assert.Equal(t, first.AddedAt, third.AddedAt)
	})

	t.Run("nil fields keep stored values", func(t *testing.T) {
		repo := newTestRepo(t)

		_, err := repo.CreateOrUpdateIdentity(ctx, domain.NewIdentity(domain.PlatformEthereum, "0xabc").
			WithDisplayName("alice.eth").
			WithAvatarURL("https://example.com/a.png"))
		require.NoError(t, err)

		got, err := repo.CreateOrUpdateIdentity(ctx, domain.NewIdentity(domain.PlatformEthereum, "0xabc"))
		require.NoError(t, err)

		assert.Equal(t, "alice.eth", got.GetDisplayName())
		require.NotNil(t, got.AvatarURL)
		assert.Equal(t, "https://example.com/a.png", *got.AvatarURL)
	})

	t.Run("empty display name is stored as a retraction", func(t *testing.T) {
		repo := newTestRepo(t)

		_, err := repo.CreateOrUpdateIdentity(ctx, domain.NewIdentity(domain.PlatformEthereum, "0xabc").WithDisplayName("alice.eth"))
		require.NoError(t, err)

		got, err := repo.CreateOrUpdateIdentity(ctx, domain.NewIdentity(domain.PlatformEthereum, "0xabc").WithDisplayName(""))
		require.NoError(t, err)

		require.NotNil(t, got.DisplayName)
		assert.Equal(t, "", *got.DisplayName)
	})

	t.Run("rejects empty identity", func(t *testing.T) {
		repo := newTestRepo(t)

		_, err := repo.CreateOrUpdateIdentity(ctx, domain.NewIdentity(domain.PlatformTwitter, "  "))
		assert.Error(t, err)
	})

	t.Run("created_at round trips", func(t *testing.T) {
		repo := newTestRepo(t)
		ts := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)

		_, err := repo.CreateOrUpdateIdentity(ctx, domain.NewIdentity(domain.PlatformTwitter, "carol").WithCreatedAt(ts))
		require.NoError(t, err)

		got, err := repo.FindIdentity(ctx, domain.PlatformTwitter, "CAROL")
		require.NoError(t, err)
		require.NotNil(t, got.CreatedAt)
		assert.True(t, got.CreatedAt.Equal(ts))
	})
}

func TestFindIdentityNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.FindIdentity(context.Background(), domain.PlatformTwitter, "nobody")
	assert.ErrorIs(t, err, repository.ErrVertexNotFound)
}

// ============================================================================
// Contract Tests
// ============================================================================

func TestCreateOrUpdateContract(t *testing.T) {
	ctx := context.Background()

	t.Run("upsert by chain and address", func(t *testing.T) {
		repo := newTestRepo(t)

		first, err := repo.CreateOrUpdateContract(ctx, domain.NewENSContract())
		require.NoError(t, err)
		second, err := repo.CreateOrUpdateContract(ctx, domain.NewContract(domain.ContractCategoryUnknown, domain.ChainEthereum, "0x57F1887A8BF19B14FC0DF6FD9B2ACC9AF147EA85"))
		require.NoError(t, err)

		assert.Equal(t, first.UUID, second.UUID)
		assert.Equal(t, domain.ContractCategoryENS, second.Category, "unknown category must not overwrite")
		require.NotNil(t, second.Symbol)
		assert.Equal(t, "ENS", *second.Symbol)
	})

	t.Run("same address on another chain is a different contract", func(t *testing.T) {
		repo := newTestRepo(t)

		a, err := repo.CreateOrUpdateContract(ctx, domain.NewContract(domain.ContractCategoryERC721, domain.ChainEthereum, "0xdef"))
		require.NoError(t, err)
		b, err := repo.CreateOrUpdateContract(ctx, domain.NewContract(domain.ContractCategoryERC721, domain.ChainPolygon, "0xdef"))
		require.NoError(t, err)

		assert.NotEqual(t, a.UUID, b.UUID)
	})

	t.Run("find missing contract", func(t *testing.T) {
		repo := newTestRepo(t)

		_, err := repo.FindContract(ctx, domain.ChainEthereum, "0x1")
		assert.ErrorIs(t, err, repository.ErrVertexNotFound)
	})
}

// ============================================================================
// Edge Tests
// ============================================================================

func TestConnectProof(t *testing.T) {
	ctx := context.Background()

	t.Run("requires materialized endpoints", func(t *testing.T) {
		repo := newTestRepo(t)
		eth := mustIdentity(t, repo, domain.PlatformEthereum, "0xabc")

		_, err := repo.ConnectProof(ctx, eth, domain.NewIdentity(domain.PlatformTwitter, "alice"), domain.NewProof(domain.DataSourceSybilList))
		assert.ErrorIs(t, err, repository.ErrVertexNotFound)

		ghost := &domain.Identity{UUID: "does-not-exist", Platform: domain.PlatformTwitter, Identity: "ghost"}
		_, err = repo.ConnectProof(ctx, eth, ghost, domain.NewProof(domain.DataSourceSybilList))
		assert.ErrorIs(t, err, repository.ErrVertexNotFound)
	})

	t.Run("connecting twice keeps one edge", func(t *testing.T) {
		repo := newTestRepo(t)
		eth := mustIdentity(t, repo, domain.PlatformEthereum, "0xabc")
		tw := mustIdentity(t, repo, domain.PlatformTwitter, "alice")

		first, err := repo.ConnectProof(ctx, eth, tw, domain.NewProof(domain.DataSourceSybilList).WithRecordID("1"))
		require.NoError(t, err)
		second, err := repo.ConnectProof(ctx, eth, tw, domain.NewProof(domain.DataSourceSybilList))
		require.NoError(t, err)

		assert.Equal(t, first.UUID, second.UUID)
		require.NotNil(t, second.RecordID)
		assert.Equal(t, "1", *second.RecordID)
		assert.False(t, second.LastFetchedAt.Before(first.LastFetchedAt))

		proofs, err := repo.FindProofs(ctx, repository.EdgeFilter{From: eth.UUID})
		require.NoError(t, err)
		assert.Len(t, proofs, 1)
	})

	t.Run("different sources are different edges", func(t *testing.T) {
		repo := newTestRepo(t)
		eth := mustIdentity(t, repo, domain.PlatformEthereum, "0xabc")
		tw := mustIdentity(t, repo, domain.PlatformTwitter, "alice")

		_, err := repo.ConnectProof(ctx, eth, tw, domain.NewProof(domain.DataSourceSybilList))
		require.NoError(t, err)
		_, err = repo.ConnectProof(ctx, eth, tw, domain.NewProof(domain.DataSourceNextID))
		require.NoError(t, err)

		all, err := repo.FindProofs(ctx, repository.EdgeFilter{From: eth.UUID, To: tw.UUID})
		require.NoError(t, err)
		assert.Len(t, all, 2)

		nextid, err := repo.FindProofs(ctx, repository.EdgeFilter{Source: domain.DataSourceNextID})
		require.NoError(t, err)
		assert.Len(t, nextid, 1)
	})
}

func TestConnectHold(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	owner := mustIdentity(t, repo, domain.PlatformEthereum, "0xabc")
	ens, err := repo.CreateOrUpdateContract(ctx, domain.NewENSContract())
	require.NoError(t, err)

	a, err := repo.ConnectHold(ctx, owner, ens, domain.NewHold(domain.DataSourceTheGraph, "alice.eth").WithTransaction("0x1"))
	require.NoError(t, err)
	b, err := repo.ConnectHold(ctx, owner, ens, domain.NewHold(domain.DataSourceTheGraph, "bob.eth"))
	require.NoError(t, err)
	again, err := repo.ConnectHold(ctx, owner, ens, domain.NewHold(domain.DataSourceTheGraph, "alice.eth"))
	require.NoError(t, err)

	assert.NotEqual(t, a.UUID, b.UUID, "token id is part of the key")
	assert.Equal(t, a.UUID, again.UUID)
	require.NotNil(t, again.Transaction)
	assert.Equal(t, "0x1", *again.Transaction)
	assert.Equal(t, domain.VertexKindContract, again.ToKind)

	holds, err := repo.FindHolds(ctx, repository.EdgeFilter{From: owner.UUID})
	require.NoError(t, err)
	assert.Len(t, holds, 2)
}

func TestConnectHoldIdentityTarget(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	owner := mustIdentity(t, repo, domain.PlatformEthereum, "0xabc")
	name := mustIdentity(t, repo, domain.PlatformSpaceID, "alice.bnb")

	h, err := repo.ConnectHold(ctx, owner, name, domain.NewHold(domain.DataSourceSpaceID, ""))
	require.NoError(t, err)
	assert.Equal(t, domain.VertexKindIdentity, h.ToKind)
	assert.Equal(t, "", h.ID)
}

func TestConnectResolveDirectionality(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	addr := mustIdentity(t, repo, domain.PlatformEthereum, "0xabc")
	name := mustIdentity(t, repo, domain.PlatformSpaceID, "alice.bnb")

	forward, err := repo.ConnectResolve(ctx, name, addr, domain.NewResolve(domain.DataSourceSpaceID, domain.DomainNameSystemSpaceID, "alice.bnb"))
	require.NoError(t, err)
	reverse, err := repo.ConnectResolve(ctx, addr, name, domain.NewResolve(domain.DataSourceSpaceID, domain.DomainNameSystemSpaceID, "alice.bnb"))
	require.NoError(t, err)

	assert.NotEqual(t, forward.UUID, reverse.UUID)

	fromName, err := repo.FindResolves(ctx, repository.EdgeFilter{From: name.UUID})
	require.NoError(t, err)
	require.Len(t, fromName, 1)
	assert.Equal(t, addr.UUID, fromName[0].ToUUID)

	fromAddr, err := repo.FindResolves(ctx, repository.EdgeFilter{From: addr.UUID})
	require.NoError(t, err)
	require.Len(t, fromAddr, 1)
	assert.Equal(t, name.UUID, fromAddr[0].ToUUID)

	// Idempotent on the full natural key
	_, err = repo.ConnectResolve(ctx, name, addr, domain.NewResolve(domain.DataSourceSpaceID, domain.DomainNameSystemSpaceID, "alice.bnb"))
	require.NoError(t, err)
	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Resolves)
}

// ============================================================================
// Transaction Tests
// ============================================================================

func TestAtomic(t *testing.T) {
	ctx := context.Background()

	t.Run("rolls back on error", func(t *testing.T) {
		repo := newTestRepo(t)

		err := repo.Atomic(ctx, func(s repository.Store) error {
			if _, err := s.CreateOrUpdateIdentity(ctx, domain.NewIdentity(domain.PlatformTwitter, "alice")); err != nil {
				return err
			}
			_, err := s.ConnectProof(ctx, &domain.Identity{}, &domain.Identity{}, domain.NewProof(domain.DataSourceNextID))
			return err
		})
		require.ErrorIs(t, err, repository.ErrVertexNotFound)

		_, err = repo.FindIdentity(ctx, domain.PlatformTwitter, "alice")
		assert.ErrorIs(t, err, repository.ErrVertexNotFound)
	})

	t.Run("commits on success", func(t *testing.T) {
		repo := newTestRepo(t)

		err := repository.SaveProof(ctx, repo,
			domain.NewIdentity(domain.PlatformEthereum, "0xabc"),
			domain.NewIdentity(domain.PlatformTwitter, "alice"),
			domain.NewProof(domain.DataSourceSybilList))
		require.NoError(t, err)

		stats, err := repo.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, repository.Stats{Identities: 2, Proofs: 1}, stats)
	})
}

func TestConcurrentUpsertsConverge(t *testing.T) {
	ctx := context.Background()
	repo, err := New(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repository.SaveProof(ctx, repo,
				domain.NewIdentity(domain.PlatformEthereum, "0xABC"),
				domain.NewIdentity(domain.PlatformTwitter, "Alice"),
				domain.NewProof(domain.DataSourceSybilList))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Identities)
	assert.Equal(t, 1, stats.Proofs)
}
