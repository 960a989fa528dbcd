package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"identigraph/internal/domain"
	"identigraph/internal/repository"
)

// Repository implements repository.Repository using SQLite
type Repository struct {
	store
	db *sql.DB
}

var _ repository.Repository = (*Repository)(nil)

// store implements repository.Store on top of either the database or a
// transaction
type store struct {
	q   querier
	now func() time.Time
}

// New creates a new SQLite repository. dbPath may be ":memory:".
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection serializes writers and keeps ":memory:" a single database
	db.SetMaxOpenConns(1)

	repo := &Repository{
		store: store{q: db, now: time.Now},
		db:    db,
	}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := r.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	_, err := r.db.Exec(schema)
	return err
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// Atomic runs fn inside a transaction
func (r *Repository) Atomic(ctx context.Context, fn func(repository.Store) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&store{q: tx, now: r.now}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Stats returns vertex and edge counts
func (r *Repository) Stats(ctx context.Context) (repository.Stats, error) {
	var (
		s   repository.Stats
		err error
	)
	counts := []struct {
		table string
		dst   *int
	}{
		{"identities", &s.Identities},
		{"contracts", &s.Contracts},
		{"proofs", &s.Proofs},
		{"holds", &s.Holds},
		{"resolves", &s.Resolves},
	}
	for _, c := range counts {
		if *c.dst, err = countRows(ctx, r.db, c.table); err != nil {
			return repository.Stats{}, err
		}
	}
	return s, nil
}

// ============================================================================
// Vertices
// ============================================================================

// CreateOrUpdateIdentity upserts an identity by (platform, identity)
func (s *store) CreateOrUpdateIdentity(ctx context.Context, identity *domain.Identity) (*domain.Identity, error) {
	platform := identity.Platform
	ident := platform.NormalizeIdentity(identity.Identity)
	if ident == "" {
		return nil, fmt.Errorf("identity on %s: empty identity", platform)
	}
	now := s.now().UnixNano()

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO identities (uuid, platform, identity, display_name, avatar_url, profile_url, created_at, added_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(platform, identity) DO UPDATE SET
			display_name = COALESCE(excluded.display_name, identities.display_name),
			avatar_url = COALESCE(excluded.avatar_url, identities.avatar_url),
			profile_url = COALESCE(excluded.profile_url, identities.profile_url),
			created_at = COALESCE(excluded.created_at, identities.created_at),
			updated_at = MAX(identities.updated_at + 1, excluded.updated_at)
	`,
		uuid.NewString(), string(platform), ident,
		stringPtrToNull(identity.DisplayName),
		stringPtrToNull(identity.AvatarURL),
		stringPtrToNull(identity.ProfileURL),
		timePtrToNull(identity.CreatedAt),
		now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert identity %s:%s: %w", platform, ident, err)
	}

	return s.FindIdentity(ctx, platform, ident)
}

// FindIdentity looks up an identity by natural key
func (s *store) FindIdentity(ctx context.Context, platform domain.Platform, identity string) (*domain.Identity, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT uuid, platform, identity, display_name, avatar_url, profile_url, created_at, added_at, updated_at
		FROM identities WHERE platform = ? AND identity = ?
	`, string(platform), platform.NormalizeIdentity(identity))

	var r identityRow
	err := row.Scan(&r.uuid, &r.platform, &r.identity, &r.displayName, &r.avatarURL, &r.profileURL, &r.createdAt, &r.addedAt, &r.updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrVertexNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query identity: %w", err)
	}
	return r.toDomain(), nil
}

type identityRow struct {
	uuid, platform, identity           string
	displayName, avatarURL, profileURL sql.NullString
	createdAt                          sql.NullInt64
	addedAt, updatedAt                 int64
}

func (r identityRow) toDomain() *domain.Identity {
	return &domain.Identity{
		UUID:        r.uuid,
		Platform:    domain.Platform(r.platform),
		Identity:    r.identity,
		DisplayName: nullToStringPtr(r.displayName),
		AvatarURL:   nullToStringPtr(r.avatarURL),
		ProfileURL:  nullToStringPtr(r.profileURL),
		CreatedAt:   nullToTimePtr(r.createdAt),
		AddedAt:     nanosToTime(r.addedAt),
		UpdatedAt:   nanosToTime(r.updatedAt),
	}
}

// CreateOrUpdateContract upserts a contract by (chain, address)
func (s *store) CreateOrUpdateContract(ctx context.Context, contract *domain.Contract) (*domain.Contract, error) {
	c := *contract
	c.Normalize()
	if c.Address == "" {
		return nil, fmt.Errorf("contract on %s: empty address", c.Chain)
	}
	category := c.Category
	if category == "" {
		category = domain.ContractCategoryUnknown
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO contracts (uuid, category, chain, address, symbol, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chain, address) DO UPDATE SET
			category = CASE WHEN excluded.category = 'unknown' THEN contracts.category ELSE excluded.category END,
			symbol = COALESCE(excluded.symbol, contracts.symbol),
			updated_at = MAX(contracts.updated_at + 1, excluded.updated_at)
	`,
		uuid.NewString(), string(category), string(c.Chain), c.Address,
		stringPtrToNull(c.Symbol), s.now().UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert contract %s:%s: %w", c.Chain, c.Address, err)
	}

	return s.FindContract(ctx, c.Chain, c.Address)
}

// FindContract looks up a contract by natural key
func (s *store) FindContract(ctx context.Context, chain domain.Chain, address string) (*domain.Contract, error) {
	probe := domain.NewContract("", chain, address)

	var (
		c                  domain.Contract
		category, chainStr string
		symbol             sql.NullString
		updatedAt          int64
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT uuid, category, chain, address, symbol, updated_at
		FROM contracts WHERE chain = ? AND address = ?
	`, string(chain), probe.Address).Scan(&c.UUID, &category, &chainStr, &c.Address, &symbol, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrVertexNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query contract: %w", err)
	}

	c.Category = domain.ContractCategory(category)
	c.Chain = domain.Chain(chainStr)
	c.Symbol = nullToStringPtr(symbol)
	c.UpdatedAt = nanosToTime(updatedAt)
	return &c, nil
}

// vertexExists checks that v was materialized by a prior upsert
func (s *store) vertexExists(ctx context.Context, v domain.Vertex) error {
	if v == nil || v.VertexID() == "" {
		return repository.ErrVertexNotFound
	}

	table := "identities"
	if v.VertexKind() == domain.VertexKindContract {
		table = "contracts"
	}

	var one int
	err := s.q.QueryRowContext(ctx, fmt.Sprintf("SELECT 1 FROM %s WHERE uuid = ?", table), v.VertexID()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", v.VertexKind(), v.VertexID(), repository.ErrVertexNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", v.VertexKind(), err)
	}
	return nil
}

// ============================================================================
// Edges
// ============================================================================

// ConnectProof upserts a proof edge by (from, to, source)
func (s *store) ConnectProof(ctx context.Context, from, to *domain.Identity, proof *domain.Proof) (*domain.Proof, error) {
	if err := s.vertexExists(ctx, from); err != nil {
		return nil, err
	}
	if err := s.vertexExists(ctx, to); err != nil {
		return nil, err
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO proofs (uuid, from_uuid, to_uuid, source, record_id, created_at, last_fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(from_uuid, to_uuid, source) DO UPDATE SET
			record_id = COALESCE(excluded.record_id, proofs.record_id),
			created_at = COALESCE(excluded.created_at, proofs.created_at),
			last_fetched_at = MAX(proofs.last_fetched_at + 1, excluded.last_fetched_at)
	`,
		uuid.NewString(), from.UUID, to.UUID, string(proof.Source),
		stringPtrToNull(proof.RecordID), timePtrToNull(proof.CreatedAt),
		s.now().UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert proof: %w", err)
	}

	proofs, err := s.FindProofs(ctx, repository.EdgeFilter{From: from.UUID, To: to.UUID, Source: proof.Source})
	if err != nil {
		return nil, err
	}
	if len(proofs) != 1 {
		return nil, fmt.Errorf("proof %s->%s: expected 1 row, found %d", from.UUID, to.UUID, len(proofs))
	}
	return proofs[0], nil
}

// FindProofs returns proofs matching filter
func (s *store) FindProofs(ctx context.Context, filter repository.EdgeFilter) ([]*domain.Proof, error) {
	where, args := edgeWhere(filter)
	rows, err := s.q.QueryContext(ctx, `
		SELECT uuid, from_uuid, to_uuid, source, record_id, created_at, last_fetched_at
		FROM proofs`+where+` ORDER BY last_fetched_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query proofs: %w", err)
	}
	defer rows.Close()

	var proofs []*domain.Proof
	for rows.Next() {
		var (
			p           domain.Proof
			source      string
			recordID    sql.NullString
			createdAt   sql.NullInt64
			lastFetched int64
		)
		if err := rows.Scan(&p.UUID, &p.FromUUID, &p.ToUUID, &source, &recordID, &createdAt, &lastFetched); err != nil {
			return nil, fmt.Errorf("failed to scan proof: %w", err)
		}
		p.Source = domain.DataSource(source)
		p.RecordID = nullToStringPtr(recordID)
		p.CreatedAt = nullToTimePtr(createdAt)
		p.LastFetchedAt = nanosToTime(lastFetched)
		proofs = append(proofs, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating proofs: %w", err)
	}
	return proofs, nil
}

// ConnectHold upserts a hold edge by (from, to, source, id)
func (s *store) ConnectHold(ctx context.Context, from *domain.Identity, to domain.Vertex, hold *domain.Hold) (*domain.Hold, error) {
	if err := s.vertexExists(ctx, from); err != nil {
		return nil, err
	}
	if err := s.vertexExists(ctx, to); err != nil {
		return nil, err
	}
	fetcher := hold.Fetcher
	if fetcher == "" {
		fetcher = domain.DataFetcherRelationService
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO holds (uuid, from_uuid, to_uuid, to_kind, source, fetcher, tx, hold_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(from_uuid, to_uuid, source, hold_id) DO UPDATE SET
			fetcher = excluded.fetcher,
			tx = COALESCE(excluded.tx, holds.tx),
			created_at = COALESCE(excluded.created_at, holds.created_at),
			updated_at = MAX(holds.updated_at + 1, excluded.updated_at)
	`,
		uuid.NewString(), from.UUID, to.VertexID(), string(to.VertexKind()),
		string(hold.Source), string(fetcher), stringPtrToNull(hold.Transaction),
		hold.ID, timePtrToNull(hold.CreatedAt), s.now().UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert hold: %w", err)
	}

	where, args := edgeWhere(repository.EdgeFilter{From: from.UUID, To: to.VertexID(), Source: hold.Source})
	where, args = andWhere(where, args, "hold_id = ?", hold.ID)
	holds, err := s.findHolds(ctx, where, args)
	if err != nil {
		return nil, err
	}
	if len(holds) != 1 {
		return nil, fmt.Errorf("hold %s->%s: expected 1 row, found %d", from.UUID, to.VertexID(), len(holds))
	}
	return holds[0], nil
}

// FindHolds returns holds matching filter
func (s *store) FindHolds(ctx context.Context, filter repository.EdgeFilter) ([]*domain.Hold, error) {
	where, args := edgeWhere(filter)
	return s.findHolds(ctx, where, args)
}

func (s *store) findHolds(ctx context.Context, where string, args []any) ([]*domain.Hold, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT uuid, from_uuid, to_uuid, to_kind, source, fetcher, tx, hold_id, created_at, updated_at
		FROM holds`+where+` ORDER BY updated_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query holds: %w", err)
	}
	defer rows.Close()

	var holds []*domain.Hold
	for rows.Next() {
		var (
			h                       domain.Hold
			toKind, source, fetcher string
			tx                      sql.NullString
			createdAt               sql.NullInt64
			updatedAt               int64
		)
		if err := rows.Scan(&h.UUID, &h.FromUUID, &h.ToUUID, &toKind, &source, &fetcher, &tx, &h.ID, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan hold: %w", err)
		}
		h.ToKind = domain.VertexKind(toKind)
		h.Source = domain.DataSource(source)
		h.Fetcher = domain.DataFetcher(fetcher)
		h.Transaction = nullToStringPtr(tx)
		h.CreatedAt = nullToTimePtr(createdAt)
		h.UpdatedAt = nanosToTime(updatedAt)
		holds = append(holds, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holds: %w", err)
	}
	return holds, nil
}

// ConnectResolve upserts a directed resolve edge by (from, to, source, system, name)
func (s *store) ConnectResolve(ctx context.Context, from, to domain.Vertex, resolve *domain.Resolve) (*domain.Resolve, error) {
	if err := s.vertexExists(ctx, from); err != nil {
		return nil, err
	}
	if err := s.vertexExists(ctx, to); err != nil {
		return nil, err
	}
	fetcher := resolve.Fetcher
	if fetcher == "" {
		fetcher = domain.DataFetcherRelationService
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO resolves (uuid, from_uuid, from_kind, to_uuid, to_kind, source, system, name, fetcher, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(from_uuid, to_uuid, source, system, name) DO UPDATE SET
			fetcher = excluded.fetcher,
			updated_at = MAX(resolves.updated_at + 1, excluded.updated_at)
	`,
		uuid.NewString(), from.VertexID(), string(from.VertexKind()),
		to.VertexID(), string(to.VertexKind()),
		string(resolve.Source), string(resolve.System), resolve.Name,
		string(fetcher), s.now().UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert resolve: %w", err)
	}

	where, args := edgeWhere(repository.EdgeFilter{From: from.VertexID(), To: to.VertexID(), Source: resolve.Source})
	where, args = andWhere(where, args, "system = ?", string(resolve.System))
	where, args = andWhere(where, args, "name = ?", resolve.Name)
	resolves, err := s.findResolves(ctx, where, args)
	if err != nil {
		return nil, err
	}
	if len(resolves) != 1 {
		return nil, fmt.Errorf("resolve %s->%s: expected 1 row, found %d", from.VertexID(), to.VertexID(), len(resolves))
	}
	return resolves[0], nil
}

// FindResolves returns resolves matching filter
func (s *store) FindResolves(ctx context.Context, filter repository.EdgeFilter) ([]*domain.Resolve, error) {
	where, args := edgeWhere(filter)
	return s.findResolves(ctx, where, args)
}

func (s *store) findResolves(ctx context.Context, where string, args []any) ([]*domain.Resolve, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT uuid, from_uuid, from_kind, to_uuid, to_kind, source, system, name, fetcher, updated_at
		FROM resolves`+where+` ORDER BY updated_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolves: %w", err)
	}
	defer rows.Close()

	var resolves []*domain.Resolve
	for rows.Next() {
		var (
			r                                         domain.Resolve
			fromKind, toKind, source, system, fetcher string
			updatedAt                                 int64
		)
		if err := rows.Scan(&r.UUID, &r.FromUUID, &fromKind, &r.ToUUID, &toKind, &source, &system, &r.Name, &fetcher, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan resolve: %w", err)
		}
		r.FromKind = domain.VertexKind(fromKind)
		r.ToKind = domain.VertexKind(toKind)
		r.Source = domain.DataSource(source)
		r.System = domain.DomainNameSystem(system)
		r.Fetcher = domain.DataFetcher(fetcher)
		r.UpdatedAt = nanosToTime(updatedAt)
		resolves = append(resolves, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating resolves: %w", err)
	}
	return resolves, nil
}
