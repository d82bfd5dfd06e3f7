package filter

import (
	"path/filepath"

	"github.com/warrenhq/warren/pkg/sharestore"
)

// Criteria defines filtering criteria for share events.
// All filters are ANDed together - an event must match ALL criteria to pass.
type Criteria struct {
	SinceTimestampMs int64  // Unix timestamp in milliseconds, 0 = no filter
	UntilTimestampMs int64  // Unix timestamp in milliseconds, 0 = no filter
	TypeGlob         string // Glob pattern for event type, empty = no filter
	Actor            string // Exact match for actor conversation ID, empty = no filter
}

// Matches returns true if the event matches all filter criteria.
// Empty/zero criteria values are treated as "match all" for that criterion.
func (c *Criteria) Matches(e *sharestore.Event) bool {
	// Time filtering - check CreatedAtMs field
	if c.SinceTimestampMs > 0 && e.CreatedAtMs < c.SinceTimestampMs {
		return false
	}
	if c.UntilTimestampMs > 0 && e.CreatedAtMs > c.UntilTimestampMs {
		return false
	}

	// Type filtering - glob pattern matching
	if c.TypeGlob != "" {
		matched, err := filepath.Match(c.TypeGlob, string(e.Type))
		if err != nil || !matched {
			return false
		}
	}

	// Actor filtering - exact match on the acting conversation
	if c.Actor != "" && e.ActorConversationID != c.Actor {
		return false
	}

	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.SinceTimestampMs > 0 ||
		c.UntilTimestampMs > 0 ||
		c.TypeGlob != "" ||
		c.Actor != ""
}
