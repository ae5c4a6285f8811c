// Package auth decides who may mutate the rate table or pull privileged
// exports.
package auth

import "strings"

// Authorizer answers the admin predicate against a static allow-list of
// user ids and chat handles.
//
// ACCESS-CONTROL DEFAULT, READ BEFORE DEPLOYING: when BOTH lists are
// empty, every user is an admin. That is the inherited behavior of the
// product ("no admins configured" means "everyone may configure") and it
// is deliberately preserved. A production deployment that wants any
// gating at all must configure at least one id or handle.
type Authorizer struct {
	ids     map[int64]struct{}
	handles map[string]struct{}
}

func New(ids []int64, handles []string) *Authorizer {
	a := &Authorizer{
		ids:     make(map[int64]struct{}, len(ids)),
		handles: make(map[string]struct{}, len(handles)),
	}
	for _, id := range ids {
		a.ids[id] = struct{}{}
	}
	for _, h := range handles {
		if h = normalizeHandle(h); h != "" {
			a.handles[h] = struct{}{}
		}
	}
	return a
}

// IsAdmin reports whether the user may perform privileged actions.
// Handle matching is case-insensitive and ignores a leading "@".
func (a *Authorizer) IsAdmin(userID int64, handle string) bool {
	if len(a.ids) == 0 && len(a.handles) == 0 {
		return true // open by default, see type doc
	}
	if _, ok := a.ids[userID]; ok {
		return true
	}
	_, ok := a.handles[normalizeHandle(handle)]
	return ok
}

func normalizeHandle(h string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h), "@"))
}
