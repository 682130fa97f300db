// Package state_scope splits a state delta into app, user and session scopes.
package state_scope

import "strings"

// Key prefixes that route a delta entry away from the session.
const (
	AppPrefix  = "_app_"
	UserPrefix = "_user_"
)

// Partition is a state delta split by scope. App and User hold the keys with
// their prefix stripped. Session keeps nil values, which mean delete.
type Partition struct {
	App     map[string]any
	User    map[string]any
	Session map[string]any
}

// Split routes every entry of delta to exactly one scope.
func Split(delta map[string]any) Partition {
	p := Partition{
		App:     map[string]any{},
		User:    map[string]any{},
		Session: map[string]any{},
	}
	for k, v := range delta {
		switch {
		case strings.HasPrefix(k, AppPrefix):
			p.App[strings.TrimPrefix(k, AppPrefix)] = v
		case strings.HasPrefix(k, UserPrefix):
			p.User[strings.TrimPrefix(k, UserPrefix)] = v
		default:
			p.Session[k] = v
		}
	}
	return p
}

// ApplySession applies the session scope to state in place: nil deletes, anything
// else sets. It returns state, allocating it when nil.
func (p Partition) ApplySession(state map[string]any) map[string]any {
	if state == nil {
		state = make(map[string]any, len(p.Session))
	}
	for k, v := range p.Session {
		if v == nil {
			delete(state, k)
			continue
		}
		state[k] = v
	}
	return state
}
