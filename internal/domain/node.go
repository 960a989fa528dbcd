package domain

import (
	"strings"
	"time"
)

// VertexKind distinguishes the two kinds of graph vertex
type VertexKind string

const (
	VertexKindIdentity VertexKind = "identity"
	VertexKindContract VertexKind = "contract"
)

// Vertex is implemented by Identity and Contract
type Vertex interface {
	VertexID() string
	VertexKind() VertexKind
}

// Identity is a handle on one platform
type Identity struct {
	UUID        string     `json:"uuid"`
	Platform    Platform   `json:"platform"`
	Identity    string     `json:"identity"`
	DisplayName *string    `json:"display_name,omitempty"`
	AvatarURL   *string    `json:"avatar_url,omitempty"`
	ProfileURL  *string    `json:"profile_url,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	AddedAt     time.Time  `json:"added_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewIdentity creates an identity with a normalized identity string.
// UUID and timestamps are assigned by the store.
func NewIdentity(platform Platform, identity string) *Identity {
	return &Identity{
		Platform: platform,
		Identity: platform.NormalizeIdentity(identity),
	}
}

// WithDisplayName sets the display name; an empty name is a retraction
func (i *Identity) WithDisplayName(name string) *Identity {
	i.DisplayName = &name
	return i
}

// WithAvatarURL sets the avatar URL
func (i *Identity) WithAvatarURL(url string) *Identity {
	i.AvatarURL = &url
	return i
}

// WithProfileURL sets the profile URL
func (i *Identity) WithProfileURL(url string) *Identity {
	i.ProfileURL = &url
	return i
}

// WithCreatedAt sets the upstream-claimed creation time
func (i *Identity) WithCreatedAt(t time.Time) *Identity {
	t = t.UTC()
	i.CreatedAt = &t
	return i
}

// Normalize rewrites Identity into its canonical form
func (i *Identity) Normalize() {
	i.Identity = i.Platform.NormalizeIdentity(i.Identity)
}

// GetDisplayName returns the display name or "" when unset
func (i *Identity) GetDisplayName() string {
	if i.DisplayName == nil {
		return ""
	}
	return *i.DisplayName
}

// Target returns the crawl target for this identity
func (i *Identity) Target() Target {
	return NewIdentityTarget(i.Platform, i.Identity)
}

func (i *Identity) VertexID() string       { return i.UUID }
func (i *Identity) VertexKind() VertexKind { return VertexKindIdentity }

// Contract is an on-chain contract or collection
type Contract struct {
	UUID      string           `json:"uuid"`
	Category  ContractCategory `json:"category"`
	Chain     Chain            `json:"chain"`
	Address   string           `json:"address"`
	Symbol    *string          `json:"symbol,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NewContract creates a contract with a lower-cased address
func NewContract(category ContractCategory, chain Chain, address string) *Contract {
	return &Contract{
		Category: category,
		Chain:    chain,
		Address:  strings.ToLower(strings.TrimSpace(address)),
	}
}

// NewENSContract returns the ENS registrar contract on Ethereum
func NewENSContract() *Contract {
	symbol := "ENS"
	c := NewContract(ContractCategoryENS, ChainEthereum, ENSRegistryAddress)
	c.Symbol = &symbol
	return c
}

// Normalize rewrites Address into its canonical form
func (c *Contract) Normalize() {
	c.Address = strings.ToLower(strings.TrimSpace(c.Address))
}

func (c *Contract) VertexID() string       { return c.UUID }
func (c *Contract) VertexKind() VertexKind { return VertexKindContract }
