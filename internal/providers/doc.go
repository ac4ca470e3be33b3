// Package providers defines the contract artwork providers implement and a
// registry the workflow uses to address them by name. Concrete clients live
// in subpackages.
package providers
