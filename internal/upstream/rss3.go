package upstream

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"identigraph/internal/domain"
	"identigraph/internal/repository"
)

// DefaultRSS3URL is the RSS3 notes API
const DefaultRSS3URL = "https://pregod.rss3.dev/v1"

type rss3NotesResponse struct {
	Total  int        `json:"total"`
	Result []rss3Note `json:"result"`
}

type rss3Note struct {
	Timestamp string       `json:"timestamp"`
	Hash      string       `json:"hash"`
	Owner     string       `json:"owner"`
	Network   string       `json:"network"`
	Tag       string       `json:"tag"`
	Actions   []rss3Action `json:"actions"`
}

type rss3Action struct {
	Tag         string `json:"tag"`
	Type        string `json:"type"`
	AddressFrom string `json:"address_from"`
	AddressTo   string `json:"address_to"`
	Metadata    struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		Symbol          string `json:"symbol"`
		Standard        string `json:"standard"`
		ContractAddress string `json:"contract_address"`
	} `json:"metadata"`
}

// RSS3 indexes NFT activity of a wallet and records the collectibles it
// acquired as Hold edges
type RSS3 struct {
	repo    repository.Repository
	baseURL string
	req     *requester
	logger  *zap.Logger
}

// NewRSS3 creates an RSS3 fetcher
func NewRSS3(repo repository.Repository, opts Options) *RSS3 {
	base := opts.BaseURL
	if base == "" {
		base = DefaultRSS3URL
	}
	req := newRequester(domain.DataSourceRSS3, opts)
	return &RSS3{
		repo:    repo,
		baseURL: base,
		req:     req,
		logger:  req.logger,
	}
}

func (r *RSS3) Source() domain.DataSource { return domain.DataSourceRSS3 }

func (r *RSS3) CanFetch(target domain.Target) bool {
	return target.InPlatformSupported(domain.PlatformEthereum)
}

func (r *RSS3) Ability() []Ability {
	return []Ability{{Input: domain.PlatformEthereum, Output: []domain.Platform{domain.PlatformEthereum}}}
}

func (r *RSS3) Fetch(ctx context.Context, target domain.Target) ([]domain.Target, error) {
	if !r.CanFetch(target) {
		return nil, nil
	}
	wallet := strings.ToLower(target.Identity)

	q := url.Values{}
	q.Set("tag", "collectible")
	endpoint := fmt.Sprintf("%s?%s", joinURL(r.baseURL, "/notes/"+wallet), q.Encode())

	var resp rss3NotesResponse
	if err := r.req.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, wrapf(err, "rss3 notes %s", wallet)
	}
	if len(resp.Result) == 0 {
		return nil, noResult(r.Source(), "no collectibles for %s", wallet)
	}

	owner := domain.NewIdentity(domain.PlatformEthereum, wallet)
	seen := make(map[string]bool)
	var next []domain.Target

	for _, note := range resp.Result {
		chain := domain.ParseChain(note.Network)
		for _, action := range note.Actions {
			if action.Tag != "collectible" || !strings.EqualFold(action.AddressTo, wallet) {
				continue
			}
			meta := action.Metadata
			if meta.ContractAddress == "" || meta.ID == "" {
				continue
			}

			contract := domain.NewContract(domain.ParseContractCategory(meta.Standard), chain, meta.ContractAddress)
			if contract.Address == domain.ENSRegistryAddress && chain == domain.ChainEthereum {
				contract.Category = domain.ContractCategoryENS
			}
			if meta.Symbol != "" {
				symbol := meta.Symbol
				contract.Symbol = &symbol
			}

			holdID := meta.ID
			if contract.Category == domain.ContractCategoryENS && meta.Name != "" {
				holdID = strings.ToLower(meta.Name)
			}
			hold := domain.NewHold(r.Source(), holdID).WithTransaction(note.Hash)
			if ts, err := time.Parse(time.RFC3339, note.Timestamp); err == nil {
				hold.WithCreatedAt(ts)
			}

			if err := repository.SaveHold(ctx, r.repo, owner, contract, hold); err != nil {
				return next, storageError(r.Source(), err)
			}
			recordFact(r.Source(), domain.EdgeTypeHold)

			if contract.Category == domain.ContractCategoryENS && meta.Name != "" {
				t := domain.NewENSTarget(meta.Name)
				if !seen[t.Key()] {
					seen[t.Key()] = true
					next = append(next, t)
				}
			}
		}
	}

	r.logger.Debug("rss3 collectibles processed", zap.String("wallet", wallet), zap.Int("notes", len(resp.Result)))
	return next, nil
}
