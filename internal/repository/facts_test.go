package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identigraph/internal/domain"
	"identigraph/internal/repository"
	"identigraph/internal/repository/sqlite"
)

func newRepo(t *testing.T) repository.Repository {
	t.Helper()
	repo, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSaveHold(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	err := repository.SaveHold(ctx, repo,
		domain.NewIdentity(domain.PlatformEthereum, "0xabc"),
		domain.NewENSContract(),
		domain.NewHold(domain.DataSourceTheGraph, "alice.eth"))
	require.NoError(t, err)

	owner, err := repo.FindIdentity(ctx, domain.PlatformEthereum, "0xabc")
	require.NoError(t, err)
	holds, err := repo.FindHolds(ctx, repository.EdgeFilter{From: owner.UUID})
	require.NoError(t, err)
	require.Len(t, holds, 1)
	assert.Equal(t, "alice.eth", holds[0].ID)
}

func TestSaveResolve(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	err := repository.SaveResolve(ctx, repo,
		domain.NewIdentity(domain.PlatformEthereum, "0xabc"),
		domain.NewIdentity(domain.PlatformSpaceID, "alice.bnb"),
		domain.NewResolve(domain.DataSourceSpaceID, domain.DomainNameSystemSpaceID, "alice.bnb"))
	require.NoError(t, err)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, repository.Stats{Identities: 2, Resolves: 1}, stats)
}

func TestSaveHoldAndResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("writes hold and both resolve directions", func(t *testing.T) {
		repo := newRepo(t)

		err := repository.SaveHoldAndResolve(ctx, repo,
			domain.NewIdentity(domain.PlatformEthereum, "0xowner"),
			domain.NewENSContract(),
			domain.NewHold(domain.DataSourceTheGraph, "alice.eth"),
			domain.NewIdentity(domain.PlatformEthereum, "0xresolved"),
			domain.NewResolve(domain.DataSourceTheGraph, domain.DomainNameSystemENS, "alice.eth"))
		require.NoError(t, err)

		contract, err := repo.FindContract(ctx, domain.ChainEthereum, domain.ENSRegistryAddress)
		require.NoError(t, err)
		resolves, err := repo.FindResolves(ctx, repository.EdgeFilter{From: contract.UUID})
		require.NoError(t, err)
		require.Len(t, resolves, 1)
		assert.Equal(t, domain.VertexKindContract, resolves[0].FromKind)
		assert.Equal(t, domain.VertexKindIdentity, resolves[0].ToKind)

		resolved, err := repo.FindIdentity(ctx, domain.PlatformEthereum, "0xresolved")
		require.NoError(t, err)
		reverse, err := repo.FindResolves(ctx, repository.EdgeFilter{From: resolved.UUID, To: contract.UUID})
		require.NoError(t, err)
		require.Len(t, reverse, 1)
		assert.Equal(t, "alice.eth", reverse[0].Name)
		assert.NotEqual(t, resolves[0].UUID, reverse[0].UUID)
	})

	t.Run("nil resolve writes only the hold", func(t *testing.T) {
		repo := newRepo(t)

		err := repository.SaveHoldAndResolve(ctx, repo,
			domain.NewIdentity(domain.PlatformEthereum, "0xowner"),
			domain.NewENSContract(),
			domain.NewHold(domain.DataSourceTheGraph, "alice.eth"),
			nil, nil)
		require.NoError(t, err)

		stats, err := repo.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, repository.Stats{Identities: 1, Contracts: 1, Holds: 1}, stats)
	})
}

func TestSaveProofRejectsEmptyIdentity(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	err := repository.SaveProof(ctx, repo,
		domain.NewIdentity(domain.PlatformEthereum, "0xabc"),
		domain.NewIdentity(domain.PlatformTwitter, ""),
		domain.NewProof(domain.DataSourceSybilList))
	require.Error(t, err)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Identities, "partial fact must not be kept")
}
