package upstream

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"identigraph/internal/domain"
	"identigraph/internal/repository"
)

// DefaultSybilListURL is the curated wallet to Twitter allow-list
const DefaultSybilListURL = "https://raw.githubusercontent.com/Uniswap/sybil-list/master/verified.json"

// DefaultSybilListTTL is how long a downloaded list is reused
const DefaultSybilListTTL = 30 * time.Minute

type sybilEntry struct {
	Twitter struct {
		Timestamp int64  `json:"timestamp"`
		TweetID   string `json:"tweetID"`
		Handle    string `json:"handle"`
	} `json:"twitter"`
}

// SybilList links wallets to Twitter handles using a curated allow-list.
// The list is downloaded whole and cached for TTL.
type SybilList struct {
	repo    repository.Repository
	baseURL string
	ttl     time.Duration
	req     *requester
	logger  *zap.Logger

	mu        sync.Mutex
	byWallet  map[string]sybilEntry
	byHandle  map[string]string
	fetchedAt time.Time
	now       func() time.Time
}

// NewSybilList creates an allow-list fetcher. ttl <= 0 uses DefaultSybilListTTL.
func NewSybilList(repo repository.Repository, opts Options, ttl time.Duration) *SybilList {
	base := opts.BaseURL
	if base == "" {
		base = DefaultSybilListURL
	}
	if ttl <= 0 {
		ttl = DefaultSybilListTTL
	}
	req := newRequester(domain.DataSourceSybilList, opts)
	return &SybilList{
		repo:    repo,
		baseURL: base,
		ttl:     ttl,
		req:     req,
		logger:  req.logger,
		now:     time.Now,
	}
}

func (s *SybilList) Source() domain.DataSource { return domain.DataSourceSybilList }

func (s *SybilList) CanFetch(target domain.Target) bool {
	return target.InPlatformSupported(domain.PlatformEthereum, domain.PlatformTwitter)
}

func (s *SybilList) Ability() []Ability {
	return []Ability{
		{Input: domain.PlatformEthereum, Output: []domain.Platform{domain.PlatformTwitter}},
		{Input: domain.PlatformTwitter, Output: []domain.Platform{domain.PlatformEthereum}},
	}
}

func (s *SybilList) Fetch(ctx context.Context, target domain.Target) ([]domain.Target, error) {
	if !s.CanFetch(target) {
		return nil, nil
	}

	wallet, entry, ok, err := s.lookup(ctx, target)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, noResult(s.Source(), "%s not in allow-list", target)
	}

	eth := domain.NewIdentity(domain.PlatformEthereum, wallet)
	twitter := domain.NewIdentity(domain.PlatformTwitter, entry.Twitter.Handle)
	proof := domain.NewProof(s.Source()).WithRecordID(entry.Twitter.TweetID)
	if entry.Twitter.Timestamp > 0 {
		proof.WithCreatedAt(sybilTimestamp(entry.Twitter.Timestamp))
	}

	if err := repository.SaveProof(ctx, s.repo, eth, twitter, proof); err != nil {
		return nil, storageError(s.Source(), err)
	}
	recordFact(s.Source(), domain.EdgeTypeProof)

	if target.Platform == domain.PlatformEthereum {
		return []domain.Target{twitter.Target()}, nil
	}
	return []domain.Target{eth.Target()}, nil
}

func (s *SybilList) lookup(ctx context.Context, target domain.Target) (string, sybilEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.byWallet == nil || s.now().Sub(s.fetchedAt) > s.ttl {
		if err := s.refresh(ctx); err != nil {
			return "", sybilEntry{}, false, err
		}
	}

	wallet := target.Identity
	if target.Platform == domain.PlatformTwitter {
		w, ok := s.byHandle[target.Identity]
		if !ok {
			return "", sybilEntry{}, false, nil
		}
		wallet = w
	}
	entry, ok := s.byWallet[wallet]
	return wallet, entry, ok, nil
}

// refresh downloads the whole list; callers hold s.mu
func (s *SybilList) refresh(ctx context.Context) error {
	var raw map[string]json.RawMessage
	if err := s.req.getJSON(ctx, s.baseURL, &raw); err != nil {
		return wrapf(err, "sybil list download")
	}

	byWallet := make(map[string]sybilEntry, len(raw))
	byHandle := make(map[string]string, len(raw))
	for addr, value := range raw {
		var entry sybilEntry
		if err := json.Unmarshal(value, &entry); err != nil || entry.Twitter.Handle == "" {
			s.logger.Debug("skipping malformed allow-list entry", zap.String("wallet", addr))
			continue
		}
		wallet := strings.ToLower(addr)
		byWallet[wallet] = entry
		byHandle[strings.ToLower(entry.Twitter.Handle)] = wallet
	}

	s.byWallet = byWallet
	s.byHandle = byHandle
	s.fetchedAt = s.now()
	s.logger.Info("sybil list refreshed", zap.Int("entries", len(byWallet)))
	return nil
}

// sybilTimestamp accepts both second and millisecond epoch values
func sybilTimestamp(ts int64) time.Time {
	if ts > 1e12 {
		return time.UnixMilli(ts).UTC()
	}
	return time.Unix(ts, 0).UTC()
}
