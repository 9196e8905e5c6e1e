// Package ledger implements the append-only vote ledger of a BlockVote node.
//
// # Core Components
//
// Ledger: owns the chain, the pending-transaction pool (mempool), the set of
// registered peer nodes and the optional election window. Every mutation
// runs under a single per-instance lock and is persisted through a Store
// before the call returns.
//
// Block: a committed batch of transactions, linked to its predecessor by
// previous_hash and gated by a proof-of-work value.
//
// Validator: the admission rules applied to a candidate transaction
// (election window, signature, duplicate suppression).
//
// # Hashing
//
// Blocks and signed transaction messages are hashed over a canonical JSON
// serialization with sorted keys. The encoding is byte-compatible with
// Python's json.dumps(obj, sort_keys=True), so chains produced by other
// BlockVote nodes hash identically.
//
// # Proof of Work
//
// A proof p is valid for the previous proof q when the SHA-256 hex digest of
// the decimal digits of q followed by those of p starts with "0000". The
// proof is bound to the previous proof value only, never to the block
// content; peers rely on this exact check to accept each other's chains.
//
// # Consensus
//
// ResolveConflicts applies the longest-valid-chain rule: the local chain is
// replaced only by a strictly longer chain that passes ValidChain.
package ledger
