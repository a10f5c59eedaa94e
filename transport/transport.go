// Package transport provides Sink implementations that consume the
// coalesced, vectored descriptors a netbuf.Manager's StartFlush produces
// and hand them to an actual I/O layer. spec.md names this "socket layer"
// only to place it out of scope; this package implements it thinly, as a
// collaborator rather than a core subsystem.
package transport

import "github.com/mnunberg/netbuf/internal/interfaces"

// Sink is the contract every transport in this package satisfies. It is
// an alias of the shared internal contract so callers can depend on
// either package without incurring an import cycle.
type Sink = interfaces.Sink
