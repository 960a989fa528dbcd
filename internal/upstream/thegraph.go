package upstream

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"identigraph/internal/domain"
	"identigraph/internal/repository"
)

// DefaultTheGraphURL is the hosted ENS subgraph
const DefaultTheGraphURL = "https://api.thegraph.com/subgraphs/name/ensdomains/ens"

const ensDomainFields = `
		name
		createdAt
		events(first: 1) {
			transactionID
		}
		resolvedAddress {
			id
		}
		owner {
			id
		}`

const queryENSByOwner = `
query ENSByOwnerAddress($target: String!) {
	domains(where: { owner: $target }) {` + ensDomainFields + `
	}
	wrappedDomains(where: { owner: $target }) {
		name
		domain {` + ensDomainFields + `
		}
		owner {
			id
		}
	}
}`

const queryOwnerByENS = `
query OwnerAddressByENS($target: String!) {
	domains(where: { name: $target }) {` + ensDomainFields + `
	}
	wrappedDomains(where: { name: $target }) {
		name
		domain {` + ensDomainFields + `
		}
		owner {
			id
		}
	}
}`

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type ensAccount struct {
	ID string `json:"id"`
}

type ensDomain struct {
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
	Events    []struct {
		TransactionID string `json:"transactionID"`
	} `json:"events"`
	ResolvedAddress *ensAccount `json:"resolvedAddress"`
	Owner           ensAccount  `json:"owner"`
}

type ensQueryResponse struct {
	Data *struct {
		Domains        []ensDomain `json:"domains"`
		WrappedDomains []struct {
			Name   string     `json:"name"`
			Owner  ensAccount `json:"owner"`
			Domain ensDomain  `json:"domain"`
		} `json:"wrappedDomains"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// TheGraph queries the ENS subgraph for names owned by a wallet, or for the
// owner and resolved address of a name.
type TheGraph struct {
	repo     repository.Repository
	endpoint string
	req      *requester
	logger   *zap.Logger
}

// NewTheGraph creates an ENS subgraph fetcher
func NewTheGraph(repo repository.Repository, opts Options) *TheGraph {
	endpoint := opts.BaseURL
	if endpoint == "" {
		endpoint = DefaultTheGraphURL
	}
	req := newRequester(domain.DataSourceTheGraph, opts)
	return &TheGraph{
		repo:     repo,
		endpoint: endpoint,
		req:      req,
		logger:   req.logger,
	}
}

func (g *TheGraph) Source() domain.DataSource { return domain.DataSourceTheGraph }

func (g *TheGraph) CanFetch(target domain.Target) bool {
	return target.InPlatformSupported(domain.PlatformEthereum) ||
		target.InNFTSupported(domain.ChainEthereum, domain.ContractCategoryENS)
}

func (g *TheGraph) Ability() []Ability {
	return []Ability{{Input: domain.PlatformEthereum, Output: []domain.Platform{domain.PlatformEthereum}}}
}

func (g *TheGraph) Fetch(ctx context.Context, target domain.Target) ([]domain.Target, error) {
	if !g.CanFetch(target) {
		return nil, nil
	}

	query, variable := queryENSByOwner, strings.ToLower(target.Identity)
	if target.IsNFT() {
		query, variable = queryOwnerByENS, target.NFTID
	}

	domains, err := g.query(ctx, query, variable)
	if err != nil {
		return nil, err
	}
	if len(domains) == 0 {
		return nil, noResult(g.Source(), "no ENS records for %s", target)
	}
	g.logger.Debug("ens records found", zap.String("target", target.String()), zap.Int("domains", len(domains)))

	var next []domain.Target
	for _, d := range domains {
		resolved := ""
		if d.ResolvedAddress != nil {
			resolved = strings.ToLower(d.ResolvedAddress.ID)
		}
		if err := g.save(ctx, d, resolved); err != nil {
			return next, err
		}

		if target.IsIdentity() {
			next = append(next, domain.NewENSTarget(d.Name))
			continue
		}
		owner := strings.ToLower(d.Owner.ID)
		next = append(next, domain.NewIdentityTarget(domain.PlatformEthereum, owner))
		if resolved != "" && resolved != domain.ZeroAddress && resolved != owner {
			next = append(next, domain.NewIdentityTarget(domain.PlatformEthereum, resolved))
		}
	}
	return next, nil
}

// save writes Hold owner->ENS contract and, when set, the forward Resolve
// from the name to its resolved address
func (g *TheGraph) save(ctx context.Context, d ensDomain, resolved string) error {
	owner := domain.NewIdentity(domain.PlatformEthereum, d.Owner.ID)
	hold := domain.NewHold(g.Source(), strings.ToLower(d.Name))
	if len(d.Events) > 0 {
		hold.WithTransaction(d.Events[0].TransactionID)
	}
	if created, ok := parseUnixSeconds(d.CreatedAt); ok {
		hold.WithCreatedAt(created)
	}

	var (
		resolvedTo *domain.Identity
		resolve    *domain.Resolve
	)
	if resolved != "" && resolved != domain.ZeroAddress {
		resolvedTo = domain.NewIdentity(domain.PlatformEthereum, resolved)
		resolve = domain.NewResolve(g.Source(), domain.DomainNameSystemENS, strings.ToLower(d.Name))
	}

	if err := repository.SaveHoldAndResolve(ctx, g.repo, owner, domain.NewENSContract(), hold, resolvedTo, resolve); err != nil {
		return storageError(g.Source(), err)
	}
	recordFact(g.Source(), domain.EdgeTypeHold)
	if resolve != nil {
		// forward and reverse
		recordFact(g.Source(), domain.EdgeTypeResolve)
		recordFact(g.Source(), domain.EdgeTypeResolve)
	}
	return nil
}

// query runs one GraphQL request and merges wrapped domains, whose owner
// overrides the underlying registrar owner
func (g *TheGraph) query(ctx context.Context, query, target string) ([]ensDomain, error) {
	var resp ensQueryResponse
	body := graphQLRequest{Query: query, Variables: map[string]any{"target": target}}
	if err := g.req.postJSON(ctx, g.endpoint, body, &resp); err != nil {
		return nil, wrapf(err, "ens subgraph %s", target)
	}
	if len(resp.Errors) > 0 {
		return nil, &Error{Kind: KindUpstreamHTTP, Source: g.Source(), Message: resp.Errors[0].Message}
	}
	if resp.Data == nil {
		return nil, malformed(g.Source(), "response has no data")
	}

	seen := make(map[string]bool)
	var merged []ensDomain
	for _, wd := range resp.Data.WrappedDomains {
		d := wd.Domain
		d.Owner = wd.Owner
		if d.Name == "" {
			d.Name = wd.Name
		}
		seen[d.Name] = true
		merged = append(merged, d)
	}
	for _, d := range resp.Data.Domains {
		if seen[d.Name] || d.Name == "" {
			continue
		}
		seen[d.Name] = true
		merged = append(merged, d)
	}
	return merged, nil
}
