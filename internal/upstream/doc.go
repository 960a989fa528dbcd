// Package upstream provides the fetchers that query external identity
// sources and persist what they assert.
//
// Every source implements Fetcher. A fetcher is only invoked for targets it
// reports it can fetch; it writes each discovered fact to the graph store in
// its own transaction and returns the neighbouring targets for the next
// crawl round.
//
// # Fetchers
//
//   - ProofClient: proof-of-ownership personas (nextid, ethereum, twitter, github, keybase)
//   - ENSReverse: reverse ENS record of a wallet
//   - SybilList: curated wallet to Twitter allow-list
//   - SpaceID: .bnb forward and reverse resolution
//   - TheGraph: ENS subgraph ownership and resolution
//   - DotBit: .bit account ownership and reverse records
//   - RSS3: NFT activity of a wallet
//
// # Errors
//
// Failures are returned as *Error carrying a Kind. "Nothing found" is
// KindNoResult, which callers treat as success; transport, HTTP and decoding
// failures have their own kinds so they can be told apart in logs and
// metrics. Use errors.Is with the Err* sentinels or KindOf.
//
// # Registry
//
// Registry holds the configured fetchers, selects the capable ones for a
// target and reports the combined platform abilities.
package upstream
