// Package network exposes a BlockVote ledger over HTTP and talks to the
// ledgers of other nodes.
//
// # Core Components
//
// Client: queries peers. FetchChain implements ledger.ChainFetcher and is
// what ResolveConflicts uses; SubmitTransaction and Broadcast relay newly
// admitted transactions.
//
// Server: the node API. Every node serves GET /chain, the chain-query
// endpoint peers rely on during conflict resolution. The other routes wrap
// the ledger operations (mining, transaction submission, peer
// registration, conflict resolution, integrity audit, vote tally, election
// window) and, when an authority is attached, blind ballot signing.
//
// # Propagation
//
// A transaction accepted as new is re-broadcast in the background to every
// registered peer. A transaction already pending is answered with 200 and
// not forwarded, which ends the gossip.
//
// # Metrics
//
// Requests, latencies, mined blocks and admission outcomes are exported in
// the Prometheus text format on GET /metrics.
package network
