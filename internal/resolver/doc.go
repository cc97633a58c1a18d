// Package resolver defines the core types shared across the resolution
// subsystems: the adapter registry, the error taxonomy, the Service that
// dispatches a URL to its adapter, and the response envelope assembler.
package resolver
