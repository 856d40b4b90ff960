package domain

import "maps"

// Context holds the extended state (domain data) of a running service.
// A service exclusively owns its Context; every value handed out of the engine is a copy.
type Context map[string]any

// Clone returns a shallow copy of the context. A nil context clones to an empty one.
func (c Context) Clone() Context {
	if c == nil {
		return Context{}
	}
	return maps.Clone(c)
}

// Merge returns a new context holding c's entries overridden by other's.
func (c Context) Merge(other Context) Context {
	next := c.Clone()
	maps.Copy(next, other)
	return next
}
