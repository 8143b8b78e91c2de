// Package policy decides which catalog actions a caller may perform.
package policy

import "github.com/sahilchouksey/edu-materials-api/model"

// Role is a bit set of the roles a principal holds
type Role uint8

const (
	RoleStaff Role = 1 << iota
	RoleSuperuser
	RoleModerator
)

// Action is an operation on a catalog resource
type Action string

const (
	ActionList          Action = "list"
	ActionRetrieve      Action = "retrieve"
	ActionCreate        Action = "create"
	ActionUpdate        Action = "update"
	ActionPartialUpdate Action = "partial_update"
	ActionDestroy       Action = "destroy"
)

// Principal is the caller identity resolved once per request. The zero
// value is the anonymous caller.
type Principal struct {
	UserID uint
	Roles  Role
}

// FromUser builds a Principal from a user loaded with its groups
func FromUser(u *model.User) Principal {
	p := Principal{UserID: u.ID}
	if u.IsStaff {
		p.Roles |= RoleStaff
	}
	if u.IsSuperuser {
		p.Roles |= RoleSuperuser
	}
	if u.InGroup(model.GroupModerators) {
		p.Roles |= RoleModerator
	}
	return p
}

// Authenticated reports whether the principal is a known user
func (p Principal) Authenticated() bool {
	return p.UserID != 0
}

// Has reports whether every role in r is held
func (p Principal) Has(r Role) bool {
	return p.Roles&r == r
}

// Owns reports whether the principal owns a resource with ownerID
func (p Principal) Owns(ownerID uint) bool {
	return p.Authenticated() && p.UserID == ownerID
}

// SeesAll reports whether list results are left unfiltered
func SeesAll(p Principal) bool {
	return p.Has(RoleSuperuser) || p.Has(RoleModerator)
}

// Visible reports whether a row owned by ownerID appears in the
// principal's list and detail results
func Visible(p Principal, ownerID uint) bool {
	return p.Authenticated() && (SeesAll(p) || p.Owns(ownerID))
}

// Allow evaluates the decision table for action on a resource owned by
// ownerID. ownerID is ignored for list and create.
func Allow(p Principal, action Action, ownerID uint) bool {
	if !p.Authenticated() {
		return false
	}

	switch action {
	case ActionList, ActionRetrieve:
		return true
	case ActionCreate:
		return !p.Has(RoleModerator)
	case ActionUpdate, ActionPartialUpdate:
		return p.Owns(ownerID) || p.Has(RoleModerator) || p.Has(RoleSuperuser)
	case ActionDestroy:
		return p.Owns(ownerID) || p.Has(RoleSuperuser)
	default:
		return false
	}
}
