// Package selector commits automatic asset selections: it ranks stored
// candidates per asset type and swaps the selection when a better candidate
// exists, honoring locks and manual choices.
package selector
