package domain

import (
	"fmt"
	"strings"
)

// TargetKind distinguishes identity targets from NFT targets
type TargetKind string

const (
	TargetKindIdentity TargetKind = "identity"
	TargetKindNFT      TargetKind = "nft"
)

// Target is a unit of crawl work. It is never persisted.
type Target struct {
	Kind TargetKind `json:"kind"`

	// Identity targets
	Platform Platform `json:"platform,omitempty"`
	Identity string   `json:"identity,omitempty"`

	// NFT targets
	Chain           Chain            `json:"chain,omitempty"`
	Category        ContractCategory `json:"category,omitempty"`
	ContractAddress string           `json:"contract_address,omitempty"`
	NFTID           string           `json:"nft_id,omitempty"`
}

// NewIdentityTarget creates a normalized identity target
func NewIdentityTarget(platform Platform, identity string) Target {
	return Target{
		Kind:     TargetKindIdentity,
		Platform: platform,
		Identity: platform.NormalizeIdentity(identity),
	}
}

// NewNFTTarget creates a normalized NFT target. An empty contract address
// is filled from the category's default contract when it has one.
func NewNFTTarget(chain Chain, category ContractCategory, contractAddress, id string) Target {
	t := Target{
		Kind:            TargetKindNFT,
		Chain:           chain,
		Category:        category,
		ContractAddress: contractAddress,
		NFTID:           id,
	}
	return t.Normalize()
}

// NewENSTarget creates an NFT target for an ENS name
func NewENSTarget(name string) Target {
	return NewNFTTarget(ChainEthereum, ContractCategoryENS, ENSRegistryAddress, name)
}

// Normalize returns the canonical form of t
func (t Target) Normalize() Target {
	switch t.Kind {
	case TargetKindIdentity:
		t.Identity = t.Platform.NormalizeIdentity(t.Identity)
	case TargetKindNFT:
		t.ContractAddress = strings.ToLower(strings.TrimSpace(t.ContractAddress))
		if t.ContractAddress == "" {
			if addr, ok := t.Category.DefaultContractAddress(); ok {
				t.ContractAddress = addr
			}
		}
		t.NFTID = strings.TrimSpace(t.NFTID)
		if t.Category == ContractCategoryENS {
			t.NFTID = strings.ToLower(t.NFTID)
		}
	}
	return t
}

// Key is the visited-set key of t. Two targets with equal keys denote the
// same vertex.
func (t Target) Key() string {
	n := t.Normalize()
	switch n.Kind {
	case TargetKindNFT:
		return fmt.Sprintf("nft:%s:%s:%s:%s", n.Chain, n.Category, n.ContractAddress, n.NFTID)
	default:
		return fmt.Sprintf("%s:%s", n.Platform, n.Identity)
	}
}

// String returns the human-readable form of t
func (t Target) String() string {
	return t.Key()
}

// IsIdentity reports whether t is an identity target
func (t Target) IsIdentity() bool {
	return t.Kind == TargetKindIdentity
}

// IsNFT reports whether t is an NFT target
func (t Target) IsNFT() bool {
	return t.Kind == TargetKindNFT
}

// InPlatformSupported reports whether t is an identity target on one of platforms
func (t Target) InPlatformSupported(platforms ...Platform) bool {
	if t.Kind != TargetKindIdentity {
		return false
	}
	for _, p := range platforms {
		if t.Platform == p {
			return true
		}
	}
	return false
}

// InNFTSupported reports whether t is an NFT target of one of categories on chain
func (t Target) InNFTSupported(chain Chain, categories ...ContractCategory) bool {
	if t.Kind != TargetKindNFT || t.Chain != chain {
		return false
	}
	for _, c := range categories {
		if t.Category == c {
			return true
		}
	}
	return false
}

// ParseTarget parses the command-line form of a target:
//
//	<platform>:<identity>                      ethereum:0xabc, twitter:alice
//	nft:<chain>:<category>:<contract>:<id>     nft:ethereum:ENS::vitalik.eth
//	<name>.eth                                 shorthand for an ENS NFT target
func ParseTarget(s string) (Target, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Target{}, fmt.Errorf("empty target")
	}

	if strings.HasPrefix(strings.ToLower(s), "nft:") {
		parts := strings.SplitN(s[len("nft:"):], ":", 4)
		if len(parts) != 4 {
			return Target{}, fmt.Errorf("invalid nft target %q: want nft:<chain>:<category>:<contract>:<id>", s)
		}
		chain := ParseChain(parts[0])
		if chain == ChainUnknown {
			return Target{}, fmt.Errorf("invalid nft target %q: unknown chain %q", s, parts[0])
		}
		category := ParseContractCategory(parts[1])
		if parts[3] == "" {
			return Target{}, fmt.Errorf("invalid nft target %q: empty id", s)
		}
		t := NewNFTTarget(chain, category, parts[2], parts[3])
		if t.ContractAddress == "" {
			return Target{}, fmt.Errorf("invalid nft target %q: contract address required for %s", s, category)
		}
		return t, nil
	}

	platform, identity, ok := strings.Cut(s, ":")
	if !ok {
		if strings.HasSuffix(strings.ToLower(s), ".eth") {
			return NewENSTarget(s), nil
		}
		return Target{}, fmt.Errorf("invalid target %q: want <platform>:<identity>", s)
	}
	p := ParsePlatform(platform)
	if p == PlatformUnknown {
		return Target{}, fmt.Errorf("invalid target %q: unknown platform %q", s, platform)
	}
	if strings.TrimSpace(identity) == "" {
		return Target{}, fmt.Errorf("invalid target %q: empty identity", s)
	}
	return NewIdentityTarget(p, identity), nil
}
