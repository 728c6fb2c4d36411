package models

// EntityState is the lifecycle state of a soft-deletable entity.
type EntityState string

const (
	StateActive  EntityState = "active"
	StateDeleted EntityState = "deleted"
)

// Visibility selects which entity states a read path may return. Every
// repository read of users, posts, and comments takes one explicitly.
type Visibility int

const (
	// VisibleOnly returns active rows.
	VisibleOnly Visibility = iota
	// IncludeDeleted returns rows regardless of state. Used by maintenance
	// paths such as counter reconciliation.
	IncludeDeleted
)

// Allows reports whether a row in state s may be returned.
func (v Visibility) Allows(s EntityState) bool {
	if v == IncludeDeleted {
		return true
	}
	return s == StateActive || s == ""
}
