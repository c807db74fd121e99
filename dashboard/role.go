// Package dashboard holds the presentation logic of the MicroJobs dashboard:
// role-aware navigation, the responsive sidebar, and the buyer's task
// collection view with its pagination and edit/delete flows. It renders
// nothing itself; the web handlers and the terminal UI both drive it.
package dashboard

import (
	"context"
	"strings"
)

// Role is the access category of the signed-in user. The zero value is
// RoleLoading: the role has not been resolved yet.
type Role uint8

const (
	RoleLoading Role = iota
	RoleWorker
	RoleBuyer
	RoleAdmin
)

// ParseRole maps a stored role name to a Role. Unknown names stay
// undetermined.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "worker":
		return RoleWorker
	case "buyer":
		return RoleBuyer
	case "admin":
		return RoleAdmin
	}
	return RoleLoading
}

func (r Role) String() string {
	return DispatchRole[string](r, roleNames{})
}

// RoleVisitor has one method per role. Adding a role adds a method here, so
// every visitor stops compiling until it handles the new role.
type RoleVisitor[T any] interface {
	Worker() T
	Buyer() T
	Admin() T
	Loading() T
}

// DispatchRole calls the visitor method matching r.
func DispatchRole[T any](r Role, v RoleVisitor[T]) T {
	switch r {
	case RoleWorker:
		return v.Worker()
	case RoleBuyer:
		return v.Buyer()
	case RoleAdmin:
		return v.Admin()
	default:
		return v.Loading()
	}
}

type roleNames struct{}

func (roleNames) Worker() string  { return "worker" }
func (roleNames) Buyer() string   { return "buyer" }
func (roleNames) Admin() string   { return "admin" }
func (roleNames) Loading() string { return "loading" }

// RoleResolver supplies the role of a user. It returns RoleLoading while the
// role is still being looked up.
type RoleResolver interface {
	ResolveRole(ctx context.Context, email string) Role
}
