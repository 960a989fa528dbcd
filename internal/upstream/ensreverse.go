package upstream

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"identigraph/internal/domain"
	"identigraph/internal/repository"
)

// DefaultENSReverseURL is prefixed to the lower-cased wallet address
const DefaultENSReverseURL = "https://api.ensideas.com/ens/reverse/"

type ensReverseResponse struct {
	ReverseRecord *string  `json:"reverseRecord"`
	Domains       []string `json:"domains"`
}

// ENSReverse looks up the reverse ENS record of a wallet and stores it as
// the wallet's display name. A cleared record overwrites the stored name
// with an empty string.
type ENSReverse struct {
	repo    repository.Repository
	baseURL string
	req     *requester
	logger  *zap.Logger
}

// NewENSReverse creates a reverse ENS fetcher
func NewENSReverse(repo repository.Repository, opts Options) *ENSReverse {
	base := opts.BaseURL
	if base == "" {
		base = DefaultENSReverseURL
	}
	req := newRequester(domain.DataSourceENSReverse, opts)
	return &ENSReverse{
		repo:    repo,
		baseURL: base,
		req:     req,
		logger:  req.logger,
	}
}

func (e *ENSReverse) Source() domain.DataSource { return domain.DataSourceENSReverse }

func (e *ENSReverse) CanFetch(target domain.Target) bool {
	return target.InPlatformSupported(domain.PlatformEthereum)
}

func (e *ENSReverse) Ability() []Ability {
	return []Ability{{Input: domain.PlatformEthereum, Output: []domain.Platform{domain.PlatformEthereum}}}
}

func (e *ENSReverse) Fetch(ctx context.Context, target domain.Target) ([]domain.Target, error) {
	if !e.CanFetch(target) {
		return nil, nil
	}
	wallet := strings.ToLower(target.Identity)

	var resp ensReverseResponse
	if err := e.req.getJSON(ctx, e.baseURL+wallet, &resp); err != nil {
		return nil, wrapf(err, "ens reverse %s", wallet)
	}

	name := ""
	if resp.ReverseRecord != nil {
		name = strings.TrimSpace(*resp.ReverseRecord)
	}
	e.logger.Info("ens reverse record", zap.String("wallet", wallet), zap.String("name", name))

	identity := domain.NewIdentity(domain.PlatformEthereum, wallet).WithDisplayName(name)
	if _, err := e.repo.CreateOrUpdateIdentity(ctx, identity); err != nil {
		return nil, storageError(e.Source(), err)
	}

	if name == "" {
		return nil, nil
	}
	return []domain.Target{domain.NewENSTarget(name)}, nil
}
