package upstream

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"identigraph/internal/domain"
	"identigraph/internal/repository"
)

// DefaultSpaceIDURL is the SpaceID resolver API
const DefaultSpaceIDURL = "https://api.prd.space.id"

type spaceIDAddressResponse struct {
	Code    int    `json:"code"`
	Address string `json:"address"`
	Msg     string `json:"msg"`
}

type spaceIDNameResponse struct {
	Code int     `json:"code"`
	Name *string `json:"name"`
	Msg  string  `json:"msg"`
}

// SpaceID resolves .bnb names to addresses and back. Forward and reverse
// resolution are written as separate Resolve edges.
type SpaceID struct {
	repo    repository.Repository
	baseURL string
	req     *requester
	logger  *zap.Logger
}

// NewSpaceID creates a SpaceID fetcher
func NewSpaceID(repo repository.Repository, opts Options) *SpaceID {
	base := opts.BaseURL
	if base == "" {
		base = DefaultSpaceIDURL
	}
	req := newRequester(domain.DataSourceSpaceID, opts)
	return &SpaceID{
		repo:    repo,
		baseURL: base,
		req:     req,
		logger:  req.logger,
	}
}

func (s *SpaceID) Source() domain.DataSource { return domain.DataSourceSpaceID }

func (s *SpaceID) CanFetch(target domain.Target) bool {
	return target.InPlatformSupported(domain.PlatformSpaceID, domain.PlatformEthereum)
}

func (s *SpaceID) Ability() []Ability {
	return []Ability{
		{Input: domain.PlatformEthereum, Output: []domain.Platform{domain.PlatformSpaceID}},
		{Input: domain.PlatformSpaceID, Output: []domain.Platform{domain.PlatformEthereum}},
	}
}

func (s *SpaceID) Fetch(ctx context.Context, target domain.Target) ([]domain.Target, error) {
	if !s.CanFetch(target) {
		return nil, nil
	}
	switch target.Platform {
	case domain.PlatformEthereum:
		return s.fetchByAddress(ctx, target.Identity)
	case domain.PlatformSpaceID:
		return s.fetchByName(ctx, target.Identity)
	}
	return nil, nil
}

// fetchByAddress looks up the primary name of an address
func (s *SpaceID) fetchByAddress(ctx context.Context, address string) ([]domain.Target, error) {
	name, err := s.getName(ctx, address)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, noResult(s.Source(), "%s has no primary name", address)
	}

	eth := domain.NewIdentity(domain.PlatformEthereum, address)
	sid := domain.NewIdentity(domain.PlatformSpaceID, name)

	if err := s.saveOwnership(ctx, eth, sid); err != nil {
		return nil, err
	}
	if err := s.saveReverse(ctx, eth, sid); err != nil {
		return nil, err
	}

	return []domain.Target{sid.Target()}, nil
}

// fetchByName resolves a name and then the primary name of its address,
// which may differ from the queried name
func (s *SpaceID) fetchByName(ctx context.Context, name string) ([]domain.Target, error) {
	address, err := s.getAddress(ctx, name)
	if err != nil {
		return nil, err
	}

	eth := domain.NewIdentity(domain.PlatformEthereum, address)
	sid := domain.NewIdentity(domain.PlatformSpaceID, name)

	if err := s.saveOwnership(ctx, eth, sid); err != nil {
		return nil, err
	}
	next := []domain.Target{eth.Target()}

	primary, err := s.getName(ctx, address)
	if err != nil {
		s.logger.Warn("reverse lookup failed", zap.String("address", eth.Identity), zap.Error(err))
		return next, nil
	}
	if primary == "" {
		return next, nil
	}

	primaryIdentity := domain.NewIdentity(domain.PlatformSpaceID, primary)
	if err := s.saveReverse(ctx, eth, primaryIdentity); err != nil {
		return next, err
	}
	if primaryIdentity.Identity != sid.Identity {
		next = append(next, primaryIdentity.Target())
	}
	return next, nil
}

// saveOwnership writes Hold address->name and forward Resolve name->address
func (s *SpaceID) saveOwnership(ctx context.Context, eth, sid *domain.Identity) error {
	hold := domain.NewHold(s.Source(), "")
	forward := domain.NewResolve(s.Source(), domain.DomainNameSystemSpaceID, sid.Identity)
	err := s.repo.Atomic(ctx, func(st repository.Store) error {
		e, err := st.CreateOrUpdateIdentity(ctx, eth)
		if err != nil {
			return err
		}
		n, err := st.CreateOrUpdateIdentity(ctx, sid)
		if err != nil {
			return err
		}
		if _, err := st.ConnectHold(ctx, e, n, hold); err != nil {
			return err
		}
		_, err = st.ConnectResolve(ctx, n, e, forward)
		return err
	})
	if err != nil {
		return storageError(s.Source(), err)
	}
	recordFact(s.Source(), domain.EdgeTypeHold)
	recordFact(s.Source(), domain.EdgeTypeResolve)
	return nil
}

// saveReverse writes reverse Resolve address->name
func (s *SpaceID) saveReverse(ctx context.Context, eth, sid *domain.Identity) error {
	reverse := domain.NewResolve(s.Source(), domain.DomainNameSystemSpaceID, sid.Identity)
	if err := repository.SaveResolve(ctx, s.repo, eth, sid, reverse); err != nil {
		return storageError(s.Source(), err)
	}
	recordFact(s.Source(), domain.EdgeTypeResolve)
	return nil
}

func (s *SpaceID) getAddress(ctx context.Context, name string) (string, error) {
	q := url.Values{}
	q.Set("tld", "bnb")
	q.Set("domain", name)
	endpoint := fmt.Sprintf("%s?%s", joinURL(s.baseURL, "/v1/getAddress"), q.Encode())

	var resp spaceIDAddressResponse
	if err := s.req.getJSON(ctx, endpoint, &resp); err != nil {
		return "", wrapf(err, "space id resolve %s", name)
	}
	if resp.Code != 0 {
		return "", &Error{Kind: KindUpstreamHTTP, Source: s.Source(), Message: fmt.Sprintf("code %d: %s", resp.Code, resp.Msg)}
	}
	address := strings.ToLower(resp.Address)
	if address == "" {
		return "", malformed(s.Source(), "empty address for %s", name)
	}
	if address == domain.ZeroAddress {
		// valid but unregistered
		return "", noResult(s.Source(), "%s is not registered", name)
	}
	return address, nil
}

// getName returns "" when the address has no primary name
func (s *SpaceID) getName(ctx context.Context, address string) (string, error) {
	q := url.Values{}
	q.Set("tld", "bnb")
	q.Set("address", address)
	endpoint := fmt.Sprintf("%s?%s", joinURL(s.baseURL, "/v1/getName"), q.Encode())

	var resp spaceIDNameResponse
	if err := s.req.getJSON(ctx, endpoint, &resp); err != nil {
		return "", wrapf(err, "space id reverse %s", address)
	}
	if resp.Code != 0 {
		return "", &Error{Kind: KindUpstreamHTTP, Source: s.Source(), Message: fmt.Sprintf("code %d: %s", resp.Code, resp.Msg)}
	}
	if resp.Name == nil {
		return "", nil
	}
	return strings.TrimSpace(*resp.Name), nil
}
