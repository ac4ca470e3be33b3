// Package breaker implements a per-provider circuit breaker: consecutive
// failures open the circuit, a cooldown later a single half-open trial
// decides whether to close it again.
package breaker
