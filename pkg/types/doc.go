// Package types defines the domain model shared across the swarm-RPC
// substrate and the open-group REST client: service nodes, outbound and
// inbound messages, and open-group chat records. Types here carry no
// behavior beyond small invariant checks (e.g. Attachment.Valid) — RPC,
// persistence, and crypto live in their own packages.
package types
