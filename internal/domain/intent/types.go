// Package intent holds the raw Intent type produced by Discovery, before
// any standard-specific parsing or validation has run.
package intent

import "time"

// Intent is the raw value a Discovery source pushes into the Engine's
// intake channel. Its payload is opaque until an Order standard
// implementation parses it.
type Intent struct {
	ID          string
	Source      string
	Standard    string
	Payload     []byte
	DiscoveredAt time.Time
}
