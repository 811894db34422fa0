// Package backend defines the interface every platform runner implements to
// execute one workflow step, along with the registry that resolves which
// runner serves a given platform.
package backend
