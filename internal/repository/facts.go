package repository

import (
	"context"
	"fmt"

	"identigraph/internal/domain"
)

// SaveProof upserts both identities and connects them with proof in one transaction
func SaveProof(ctx context.Context, repo Repository, from, to *domain.Identity, proof *domain.Proof) error {
	return repo.Atomic(ctx, func(s Store) error {
		f, err := s.CreateOrUpdateIdentity(ctx, from)
		if err != nil {
			return err
		}
		t, err := s.CreateOrUpdateIdentity(ctx, to)
		if err != nil {
			return err
		}
		_, err = s.ConnectProof(ctx, f, t, proof)
		return err
	})
}

// SaveHold upserts the owner and the held vertex and connects them with hold
func SaveHold(ctx context.Context, repo Repository, owner *domain.Identity, held domain.Vertex, hold *domain.Hold) error {
	return repo.Atomic(ctx, func(s Store) error {
		o, err := s.CreateOrUpdateIdentity(ctx, owner)
		if err != nil {
			return err
		}
		h, err := upsertVertex(ctx, s, held)
		if err != nil {
			return err
		}
		_, err = s.ConnectHold(ctx, o, h, hold)
		return err
	})
}

// SaveResolve upserts both endpoints and connects them with resolve
func SaveResolve(ctx context.Context, repo Repository, from, to domain.Vertex, resolve *domain.Resolve) error {
	return repo.Atomic(ctx, func(s Store) error {
		f, err := upsertVertex(ctx, s, from)
		if err != nil {
			return err
		}
		t, err := upsertVertex(ctx, s, to)
		if err != nil {
			return err
		}
		_, err = s.ConnectResolve(ctx, f, t, resolve)
		return err
	})
}

// SaveHoldAndResolve records that owner holds held and that held resolves to
// resolvedTo. The reverse direction, resolvedTo back to held, is stored as a
// second edge with the same name. resolvedTo may be nil when the name does
// not resolve.
func SaveHoldAndResolve(ctx context.Context, repo Repository, owner *domain.Identity, held domain.Vertex, hold *domain.Hold, resolvedTo *domain.Identity, resolve *domain.Resolve) error {
	return repo.Atomic(ctx, func(s Store) error {
		o, err := s.CreateOrUpdateIdentity(ctx, owner)
		if err != nil {
			return err
		}
		h, err := upsertVertex(ctx, s, held)
		if err != nil {
			return err
		}
		if _, err := s.ConnectHold(ctx, o, h, hold); err != nil {
			return err
		}
		if resolvedTo == nil || resolve == nil {
			return nil
		}
		r, err := s.CreateOrUpdateIdentity(ctx, resolvedTo)
		if err != nil {
			return err
		}
		if _, err := s.ConnectResolve(ctx, h, r, resolve); err != nil {
			return err
		}
		reverse := *resolve
		_, err = s.ConnectResolve(ctx, r, h, &reverse)
		return err
	})
}

func upsertVertex(ctx context.Context, s Store, v domain.Vertex) (domain.Vertex, error) {
	switch x := v.(type) {
	case *domain.Identity:
		return s.CreateOrUpdateIdentity(ctx, x)
	case *domain.Contract:
		return s.CreateOrUpdateContract(ctx, x)
	default:
		return nil, fmt.Errorf("unsupported vertex type %T", v)
	}
}
