// Package assets defines the shared domain types for catalog entities and
// their visual asset candidates. It carries no behavior beyond small
// helpers; scoring, selection, and persistence live in their own packages.
package assets
