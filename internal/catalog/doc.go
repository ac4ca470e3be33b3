// Package catalog persists asset candidates, selections, locks, and the
// provider refresh ledger in SQLite. Writes are short atomic operations;
// selection swaps run in a single transaction so at most one candidate is
// selected per (entity, asset type) at any observable point.
package catalog
