// Package serverrun wires configuration into the caption pipeline and runs
// the HTTP server until a shutdown signal arrives.
package serverrun
