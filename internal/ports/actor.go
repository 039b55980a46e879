package ports

import "strings"

// Actor identifies who performed a call. ID is never empty on the audit
// path: boundaries substitute a system identifier (engine:<id>, system:core)
// when no authenticated actor exists.
type Actor struct {
	ID    string
	Type  string
	Roles []string
}

// SystemActor returns the fallback identity for unauthenticated engine calls.
func SystemActor(engineID string) Actor {
	id := "system:core"
	if strings.TrimSpace(engineID) != "" {
		id = "engine:" + engineID
	}
	return Actor{ID: id, Type: "system"}
}
