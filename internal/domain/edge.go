package domain

import (
	"time"
)

// EdgeType represents the kind of relationship between two vertices
type EdgeType string

const (
	EdgeTypeProof   EdgeType = "proof"
	EdgeTypeHold    EdgeType = "hold"
	EdgeTypeResolve EdgeType = "resolve"
)

// Proof asserts that two identities belong to the same owner
type Proof struct {
	UUID          string     `json:"uuid"`
	FromUUID      string     `json:"from"`
	ToUUID        string     `json:"to"`
	Source        DataSource `json:"source"`
	RecordID      *string    `json:"record_id,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	LastFetchedAt time.Time  `json:"last_fetched_at"`
}

// NewProof creates a proof edge asserted by source
func NewProof(source DataSource) *Proof {
	return &Proof{Source: source}
}

// WithRecordID sets the upstream record identifier
func (p *Proof) WithRecordID(id string) *Proof {
	if id != "" {
		p.RecordID = &id
	}
	return p
}

// WithCreatedAt sets the upstream-claimed creation time
func (p *Proof) WithCreatedAt(t time.Time) *Proof {
	t = t.UTC()
	p.CreatedAt = &t
	return p
}

// Hold asserts the from identity owns or controls the to entity
type Hold struct {
	UUID        string      `json:"uuid"`
	FromUUID    string      `json:"from"`
	ToUUID      string      `json:"to"`
	ToKind      VertexKind  `json:"to_kind"`
	Source      DataSource  `json:"source"`
	Fetcher     DataFetcher `json:"fetcher"`
	Transaction *string     `json:"transaction,omitempty"`
	ID          string      `json:"id"`
	CreatedAt   *time.Time  `json:"created_at,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// NewHold creates a hold edge. id is the token id or domain name held; it
// may be empty when the held entity is the whole target vertex.
func NewHold(source DataSource, id string) *Hold {
	return &Hold{
		Source:  source,
		Fetcher: DataFetcherRelationService,
		ID:      id,
	}
}

// WithTransaction sets the transaction that established the hold
func (h *Hold) WithTransaction(tx string) *Hold {
	if tx != "" {
		h.Transaction = &tx
	}
	return h
}

// WithCreatedAt sets the upstream-claimed creation time
func (h *Hold) WithCreatedAt(t time.Time) *Hold {
	t = t.UTC()
	h.CreatedAt = &t
	return h
}

// Resolve asserts a name resolves to an address (forward) or an address
// reverse-resolves to a name (reverse). It is directional.
type Resolve struct {
	UUID      string           `json:"uuid"`
	FromUUID  string           `json:"from"`
	FromKind  VertexKind       `json:"from_kind"`
	ToUUID    string           `json:"to"`
	ToKind    VertexKind       `json:"to_kind"`
	Source    DataSource       `json:"source"`
	System    DomainNameSystem `json:"system"`
	Name      string           `json:"name"`
	Fetcher   DataFetcher      `json:"fetcher"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NewResolve creates a resolve edge for name within system
func NewResolve(source DataSource, system DomainNameSystem, name string) *Resolve {
	return &Resolve{
		Source:  source,
		System:  system,
		Name:    name,
		Fetcher: DataFetcherRelationService,
	}
}
