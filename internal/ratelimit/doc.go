// Package ratelimit implements a fixed-window request budget per external
// provider, with reserved headroom so urgent work gets through even while a
// background sweep saturates the general quota.
package ratelimit
