package domain

import "sort"

// Permission names a single operation on a theme.
type Permission string

// Theme operations subject to access control.
const (
	PermissionRead   Permission = "read"
	PermissionWrite  Permission = "write"
	PermissionShare  Permission = "share"
	PermissionDelete Permission = "delete"
)

// PermissionSet is the set of operations granted to a principal on a theme.
// Grants are a union; membership is what matters, not how often a permission
// was granted.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set containing the provided permissions.
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	set.Grant(perms...)
	return set
}

// FullPermissions returns the owner grant set.
func FullPermissions() PermissionSet {
	return NewPermissionSet(PermissionRead, PermissionWrite, PermissionShare, PermissionDelete)
}

// Grant adds permissions to the set.
func (s PermissionSet) Grant(perms ...Permission) {
	for _, p := range perms {
		s[p] = struct{}{}
	}
}

// Has reports whether the set contains the permission.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// IsEmpty reports whether no operation is granted.
func (s PermissionSet) IsEmpty() bool { return len(s) == 0 }

// List returns the granted permissions in stable lexical order.
func (s PermissionSet) List() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
