package upstream

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"identigraph/internal/domain"
	"identigraph/internal/repository"
)

// DefaultDotbitURL is the .bit indexer API
const DefaultDotbitURL = "https://indexer-v1.did.id"

// dotbitErrAccountNotExist is returned for unregistered accounts
const dotbitErrAccountNotExist = 20007

type dotbitEnvelope[T any] struct {
	ErrNo  int    `json:"err_no"`
	ErrMsg string `json:"err_msg"`
	Data   *T     `json:"data"`
}

type dotbitAccountInfo struct {
	AccountInfo struct {
		Account          string `json:"account"`
		OwnerKey         string `json:"owner_key"`
		OwnerAlgorithmID int    `json:"owner_algorithm_id"`
		CreateAtUnix     int64  `json:"create_at_unix"`
	} `json:"account_info"`
}

type dotbitReverseRecord struct {
	Account string `json:"account"`
}

type dotbitKeyInfo struct {
	CoinType string `json:"coin_type"`
	ChainID  string `json:"chain_id"`
	Key      string `json:"key"`
}

// DotBit resolves .bit accounts to their Ethereum owner and wallets to their
// reverse .bit record
type DotBit struct {
	repo    repository.Repository
	baseURL string
	req     *requester
	logger  *zap.Logger
}

// NewDotBit creates a .bit fetcher
func NewDotBit(repo repository.Repository, opts Options) *DotBit {
	base := opts.BaseURL
	if base == "" {
		base = DefaultDotbitURL
	}
	req := newRequester(domain.DataSourceDotbit, opts)
	return &DotBit{
		repo:    repo,
		baseURL: base,
		req:     req,
		logger:  req.logger,
	}
}

func (d *DotBit) Source() domain.DataSource { return domain.DataSourceDotbit }

func (d *DotBit) CanFetch(target domain.Target) bool {
	return target.InPlatformSupported(domain.PlatformDotbit, domain.PlatformEthereum)
}

func (d *DotBit) Ability() []Ability {
	return []Ability{
		{Input: domain.PlatformDotbit, Output: []domain.Platform{domain.PlatformEthereum}},
		{Input: domain.PlatformEthereum, Output: []domain.Platform{domain.PlatformDotbit}},
	}
}

func (d *DotBit) Fetch(ctx context.Context, target domain.Target) ([]domain.Target, error) {
	if !d.CanFetch(target) {
		return nil, nil
	}
	if target.Platform == domain.PlatformDotbit {
		return d.fetchAccount(ctx, target.Identity)
	}
	return d.fetchReverse(ctx, target.Identity)
}

func (d *DotBit) fetchAccount(ctx context.Context, account string) ([]domain.Target, error) {
	var resp dotbitEnvelope[dotbitAccountInfo]
	body := map[string]string{"account": account}
	if err := d.req.postJSON(ctx, joinURL(d.baseURL, "/v1/account/info"), body, &resp); err != nil {
		return nil, wrapf(err, "dotbit account %s", account)
	}
	if err := d.check(resp.ErrNo, resp.ErrMsg, account); err != nil {
		return nil, err
	}
	if resp.Data == nil || resp.Data.AccountInfo.Account == "" {
		return nil, noResult(d.Source(), "account %s not found", account)
	}

	info := resp.Data.AccountInfo
	owner := strings.ToLower(info.OwnerKey)
	if !isEthAddress(owner) {
		d.logger.Debug("owner is not an ethereum key",
			zap.String("account", account),
			zap.Int("algorithm", info.OwnerAlgorithmID))
		return nil, noResult(d.Source(), "account %s has no ethereum owner", account)
	}

	eth := domain.NewIdentity(domain.PlatformEthereum, owner)
	bit := domain.NewIdentity(domain.PlatformDotbit, info.Account)
	hold := domain.NewHold(d.Source(), "")
	if info.CreateAtUnix > 0 {
		hold.WithCreatedAt(dotbitTime(info.CreateAtUnix))
	}
	forward := domain.NewResolve(d.Source(), domain.DomainNameSystemDotbit, bit.Identity)

	err := d.repo.Atomic(ctx, func(s repository.Store) error {
		e, err := s.CreateOrUpdateIdentity(ctx, eth)
		if err != nil {
			return err
		}
		b, err := s.CreateOrUpdateIdentity(ctx, bit)
		if err != nil {
			return err
		}
		if _, err := s.ConnectHold(ctx, e, b, hold); err != nil {
			return err
		}
		_, err = s.ConnectResolve(ctx, b, e, forward)
		return err
	})
	if err != nil {
		return nil, storageError(d.Source(), err)
	}
	recordFact(d.Source(), domain.EdgeTypeHold)
	recordFact(d.Source(), domain.EdgeTypeResolve)

	return []domain.Target{eth.Target()}, nil
}

func (d *DotBit) fetchReverse(ctx context.Context, address string) ([]domain.Target, error) {
	var resp dotbitEnvelope[dotbitReverseRecord]
	body := map[string]any{
		"type":     "blockchain",
		"key_info": dotbitKeyInfo{CoinType: "60", ChainID: "1", Key: address},
	}
	if err := d.req.postJSON(ctx, joinURL(d.baseURL, "/v1/reverse/record"), body, &resp); err != nil {
		return nil, wrapf(err, "dotbit reverse %s", address)
	}
	if err := d.check(resp.ErrNo, resp.ErrMsg, address); err != nil {
		return nil, err
	}
	if resp.Data == nil || resp.Data.Account == "" {
		return nil, noResult(d.Source(), "%s has no reverse record", address)
	}

	eth := domain.NewIdentity(domain.PlatformEthereum, address)
	bit := domain.NewIdentity(domain.PlatformDotbit, resp.Data.Account)
	reverse := domain.NewResolve(d.Source(), domain.DomainNameSystemDotbit, bit.Identity)
	if err := repository.SaveResolve(ctx, d.repo, eth, bit, reverse); err != nil {
		return nil, storageError(d.Source(), err)
	}
	recordFact(d.Source(), domain.EdgeTypeResolve)

	return []domain.Target{bit.Target()}, nil
}

func (d *DotBit) check(errNo int, errMsg, subject string) error {
	switch errNo {
	case 0:
		return nil
	case dotbitErrAccountNotExist:
		return noResult(d.Source(), "%s: %s", subject, errMsg)
	default:
		return &Error{Kind: KindUpstreamHTTP, Source: d.Source(), Message: fmt.Sprintf("err_no %d: %s", errNo, errMsg)}
	}
}

// dotbitTime accepts both second and millisecond epoch values
func dotbitTime(ts int64) time.Time {
	if ts > 1e12 {
		return time.UnixMilli(ts).UTC()
	}
	return time.Unix(ts, 0).UTC()
}

func isEthAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, c := range s[2:] {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return false
		}
	}
	return true
}
