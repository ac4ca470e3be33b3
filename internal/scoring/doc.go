// Package scoring ranks asset candidates for one (entity, asset type).
//
// Ranking is a pure function: candidates are bucketed into four tiers by
// preferred-language and HD quality, then ordered within a tier by vote
// significance, resolution significance, and finally provider priority. The
// result is deterministic for a given input set; residual ties preserve
// input order. Missing candidate data never causes an error, it only makes
// the affected rule fall through.
package scoring
