package upstream

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"identigraph/internal/domain"
	"identigraph/internal/repository"
)

// DefaultProofServiceURL is the public proof service endpoint
const DefaultProofServiceURL = "https://proof-service.next.id"

// maxProofPages bounds pagination for a single identity
const maxProofPages = 10

type proofQueryResponse struct {
	Pagination struct {
		Total   int `json:"total"`
		Per     int `json:"per"`
		Current int `json:"current"`
		Next    int `json:"next"`
	} `json:"pagination"`
	IDs []proofPersona `json:"ids"`
}

type proofPersona struct {
	Persona string        `json:"persona"`
	Proofs  []proofRecord `json:"proofs"`
}

type proofRecord struct {
	Platform      string `json:"platform"`
	Identity      string `json:"identity"`
	CreatedAt     string `json:"created_at"`
	LastCheckedAt string `json:"last_checked_at"`
	IsValid       bool   `json:"is_valid"`
	InvalidReason string `json:"invalid_reason"`
}

// ProofClient queries the proof-of-ownership service. Every persona that
// owns the queried identity is linked by a Proof edge to each of its valid
// proofs.
type ProofClient struct {
	repo    repository.Repository
	baseURL string
	req     *requester
	logger  *zap.Logger
}

// NewProofClient creates a proof service fetcher
func NewProofClient(repo repository.Repository, opts Options) *ProofClient {
	base := opts.BaseURL
	if base == "" {
		base = DefaultProofServiceURL
	}
	req := newRequester(domain.DataSourceNextID, opts)
	return &ProofClient{
		repo:    repo,
		baseURL: base,
		req:     req,
		logger:  req.logger,
	}
}

func (p *ProofClient) Source() domain.DataSource { return domain.DataSourceNextID }

func (p *ProofClient) CanFetch(target domain.Target) bool {
	return target.InPlatformSupported(
		domain.PlatformNextID,
		domain.PlatformEthereum,
		domain.PlatformTwitter,
		domain.PlatformGithub,
		domain.PlatformKeybase,
	)
}

func (p *ProofClient) Ability() []Ability {
	out := []domain.Platform{domain.PlatformNextID, domain.PlatformTwitter, domain.PlatformEthereum, domain.PlatformGithub, domain.PlatformKeybase}
	return []Ability{
		{Input: domain.PlatformNextID, Output: out},
		{Input: domain.PlatformEthereum, Output: out},
		{Input: domain.PlatformTwitter, Output: out},
		{Input: domain.PlatformGithub, Output: out},
		{Input: domain.PlatformKeybase, Output: out},
	}
}

func (p *ProofClient) Fetch(ctx context.Context, target domain.Target) ([]domain.Target, error) {
	if !p.CanFetch(target) {
		return nil, nil
	}

	personas, err := p.query(ctx, target)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{target.Key(): true}
	var next []domain.Target
	enqueue := func(t domain.Target) {
		if !seen[t.Key()] {
			seen[t.Key()] = true
			next = append(next, t)
		}
	}

	for _, persona := range personas {
		personaIdentity := domain.NewIdentity(domain.PlatformNextID, persona.Persona)
		if personaIdentity.Identity == "" {
			continue
		}
		enqueue(personaIdentity.Target())

		for _, record := range persona.Proofs {
			if !record.IsValid {
				p.logger.Debug("skipping invalid proof",
					zap.String("platform", record.Platform),
					zap.String("identity", record.Identity),
					zap.String("reason", record.InvalidReason))
				continue
			}
			platform := domain.ParsePlatform(record.Platform)
			if platform == domain.PlatformUnknown || record.Identity == "" {
				continue
			}

			proofIdentity := domain.NewIdentity(platform, record.Identity)
			created, hasCreated := parseUnixSeconds(record.CreatedAt)

			if err := repository.SaveProof(ctx, p.repo, personaIdentity, proofIdentity, p.newProof(created, hasCreated)); err != nil {
				return next, storageError(p.Source(), err)
			}
			recordFact(p.Source(), domain.EdgeTypeProof)

			// Link the seed directly to its siblings under the same persona.
			// The pair is stored in key order so crawling from either side
			// writes the same edge.
			if target.Platform != domain.PlatformNextID && proofIdentity.Target().Key() != target.Key() {
				from, to := siblingPair(domain.NewIdentity(target.Platform, target.Identity), proofIdentity)
				if err := repository.SaveProof(ctx, p.repo, from, to, p.newProof(created, hasCreated)); err != nil {
					return next, storageError(p.Source(), err)
				}
				recordFact(p.Source(), domain.EdgeTypeProof)
			}

			enqueue(proofIdentity.Target())
		}
	}

	return next, nil
}

// siblingPair orders two identities by target key
func siblingPair(a, b *domain.Identity) (*domain.Identity, *domain.Identity) {
	if b.Target().Key() < a.Target().Key() {
		return b, a
	}
	return a, b
}

func (p *ProofClient) newProof(created time.Time, hasCreated bool) *domain.Proof {
	proof := domain.NewProof(p.Source())
	if hasCreated {
		proof.WithCreatedAt(created)
	}
	return proof
}

// query walks all pages of the proof service response
func (p *ProofClient) query(ctx context.Context, target domain.Target) ([]proofPersona, error) {
	var personas []proofPersona
	page := 1
	for i := 0; i < maxProofPages; i++ {
		q := url.Values{}
		q.Set("platform", string(target.Platform))
		q.Set("identity", target.Identity)
		if page > 1 {
			q.Set("page", strconv.Itoa(page))
		}
		endpoint := fmt.Sprintf("%s?%s", joinURL(p.baseURL, "/v1/proof"), q.Encode())

		var resp proofQueryResponse
		if err := p.req.getJSON(ctx, endpoint, &resp); err != nil {
			return nil, wrapf(err, "proof query %s", target)
		}
		if resp.Pagination.Total == 0 && page == 1 {
			return nil, noResult(p.Source(), "no persona owns %s", target)
		}
		personas = append(personas, resp.IDs...)

		if resp.Pagination.Next == 0 || resp.Pagination.Next <= page {
			break
		}
		page = resp.Pagination.Next
	}

	if len(personas) == 0 {
		return nil, noResult(p.Source(), "no persona owns %s", target)
	}
	return personas, nil
}

// parseUnixSeconds parses a second-based timestamp carried as a string
func parseUnixSeconds(s string) (time.Time, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return time.Time{}, false
	}
	return time.Unix(n, 0).UTC(), true
}
