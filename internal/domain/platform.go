package domain

import "strings"

// Platform is the system an identity lives on
type Platform string

const (
	PlatformEthereum           Platform = "ethereum"
	PlatformTwitter            Platform = "twitter"
	PlatformGithub             Platform = "github"
	PlatformNextID             Platform = "nextid"
	PlatformKeybase            Platform = "keybase"
	PlatformDotbit             Platform = "dotbit"
	PlatformSpaceID            Platform = "space_id"
	PlatformLens               Platform = "lens"
	PlatformUnstoppableDomains Platform = "unstoppabledomains"
	PlatformReddit             Platform = "reddit"
	PlatformUnknown            Platform = "unknown"
)

var knownPlatforms = []Platform{
	PlatformEthereum,
	PlatformTwitter,
	PlatformGithub,
	PlatformNextID,
	PlatformKeybase,
	PlatformDotbit,
	PlatformSpaceID,
	PlatformLens,
	PlatformUnstoppableDomains,
	PlatformReddit,
}

// Platforms whose identity strings compare case-insensitively. Reddit
// usernames are case-preserving, so they are stored as given.
var caseInsensitivePlatforms = map[Platform]bool{
	PlatformEthereum:           true,
	PlatformTwitter:            true,
	PlatformGithub:             true,
	PlatformNextID:             true,
	PlatformKeybase:            true,
	PlatformDotbit:             true,
	PlatformSpaceID:            true,
	PlatformLens:               true,
	PlatformUnstoppableDomains: true,
}

// ParsePlatform converts a string to Platform, defaulting to PlatformUnknown
func ParsePlatform(s string) Platform {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, p := range knownPlatforms {
		if string(p) == s {
			return p
		}
	}
	// Aliases seen in upstream payloads
	switch s {
	case "eth":
		return PlatformEthereum
	case "spaceid", "space-id":
		return PlatformSpaceID
	case "next.id":
		return PlatformNextID
	}
	return PlatformUnknown
}

// CaseInsensitive reports whether identities on this platform are compared
// without regard to case
func (p Platform) CaseInsensitive() bool {
	return caseInsensitivePlatforms[p]
}

// NormalizeIdentity returns the canonical form of an identity string on p
func (p Platform) NormalizeIdentity(identity string) string {
	identity = strings.TrimSpace(identity)
	if p.CaseInsensitive() {
		return strings.ToLower(identity)
	}
	return identity
}

// DataSource is the upstream that asserted a fact
type DataSource string

const (
	DataSourceNextID     DataSource = "nextid"
	DataSourceSybilList  DataSource = "sybil_list"
	DataSourceENSReverse DataSource = "ens_reverse"
	DataSourceTheGraph   DataSource = "the_graph"
	DataSourceSpaceID    DataSource = "space_id"
	DataSourceDotbit     DataSource = "dotbit"
	DataSourceRSS3       DataSource = "rss3"
	DataSourceUnknown    DataSource = "unknown"
)

// DataFetcher identifies which service capability produced an edge
type DataFetcher string

const (
	DataFetcherRelationService    DataFetcher = "relation_service"
	DataFetcherAggregationService DataFetcher = "aggregation_service"
)

// DomainNameSystem is the naming system a Resolve edge belongs to
type DomainNameSystem string

const (
	DomainNameSystemENS                DomainNameSystem = "ENS"
	DomainNameSystemDotbit             DomainNameSystem = "dotbit"
	DomainNameSystemLens               DomainNameSystem = "lens"
	DomainNameSystemUnstoppableDomains DomainNameSystem = "unstoppabledomains"
	DomainNameSystemSpaceID            DomainNameSystem = "space_id"
	DomainNameSystemUnknown            DomainNameSystem = "unknown"
)

// Platform returns the platform whose identities are names in this system.
// ENS names are modeled as NFTs on the ENS contract, not as identities.
func (s DomainNameSystem) Platform() Platform {
	switch s {
	case DomainNameSystemDotbit:
		return PlatformDotbit
	case DomainNameSystemLens:
		return PlatformLens
	case DomainNameSystemUnstoppableDomains:
		return PlatformUnstoppableDomains
	case DomainNameSystemSpaceID:
		return PlatformSpaceID
	default:
		return PlatformUnknown
	}
}

// Chain is the blockchain a contract is deployed on
type Chain string

const (
	ChainEthereum Chain = "ethereum"
	ChainBSC      Chain = "bsc"
	ChainPolygon  Chain = "polygon"
	ChainCKB      Chain = "ckb"
	ChainUnknown  Chain = "unknown"
)

// ParseChain converts a string to Chain, defaulting to ChainUnknown
func ParseChain(s string) Chain {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ethereum", "eth", "mainnet":
		return ChainEthereum
	case "bsc", "binance_smart_chain", "bnb":
		return ChainBSC
	case "polygon", "matic":
		return ChainPolygon
	case "ckb":
		return ChainCKB
	default:
		return ChainUnknown
	}
}

// ContractCategory classifies a contract
type ContractCategory string

const (
	ContractCategoryENS     ContractCategory = "ENS"
	ContractCategoryERC721  ContractCategory = "ERC721"
	ContractCategoryERC1155 ContractCategory = "ERC1155"
	ContractCategoryPOAP    ContractCategory = "POAP"
	ContractCategoryUnknown ContractCategory = "unknown"
)

// ENSRegistryAddress is the ENS base registrar on Ethereum mainnet
const ENSRegistryAddress = "0x57f1887a8bf19b14fc0df6fd9b2acc9af147ea85"

// ZeroAddress is returned by resolvers for unregistered names
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// ParseContractCategory converts a string to ContractCategory
func ParseContractCategory(s string) ContractCategory {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ENS":
		return ContractCategoryENS
	case "ERC721", "ERC-721":
		return ContractCategoryERC721
	case "ERC1155", "ERC-1155":
		return ContractCategoryERC1155
	case "POAP":
		return ContractCategoryPOAP
	default:
		return ContractCategoryUnknown
	}
}

// DefaultContractAddress returns the well-known contract for a category, if any
func (c ContractCategory) DefaultContractAddress() (string, bool) {
	if c == ContractCategoryENS {
		return ENSRegistryAddress, true
	}
	return "", false
}
