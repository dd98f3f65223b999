// Package scope decides which branches an acting user may read or write.
// It owns no data; every write path in the engine calls AuthorizeBranchWrite
// before touching storage.
package scope

import (
	"strconv"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/apperrors"
)

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleStaff   = "staff"
	RoleCashier = "cashier"
)

// Actor is the authenticated caller as supplied by the session layer.
// BranchID is the bound branch for non-admin roles. For admins it is the
// branch they chose to act on, or nil for the aggregate view.
type Actor struct {
	UserID   uint
	Role     string
	BranchID *uint
}

// Scope is either every branch (All) or exactly one branch.
type Scope struct {
	All      bool
	BranchID uint
}

func (s Scope) String() string {
	if s.All {
		return "all"
	}
	return strconv.FormatUint(uint64(s.BranchID), 10)
}

// Includes reports whether branchID is readable under s.
func (s Scope) Includes(branchID uint) bool {
	return s.All || s.BranchID == branchID
}

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleStaff, RoleCashier:
		return true
	}
	return false
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// ScopeFor returns "all" for an admin without an acting branch and the single
// bound (or selected) branch otherwise. A non-admin without a branch gets an
// empty scope that matches nothing.
func ScopeFor(a Actor) Scope {
	if a.BranchID == nil {
		if a.IsAdmin() {
			return Scope{All: true}
		}
		return Scope{}
	}
	return Scope{BranchID: *a.BranchID}
}

// AuthorizeBranchWrite allows a mutation only when the actor's scope is that
// one concrete branch. The aggregate scope never authorizes a write.
func AuthorizeBranchWrite(a Actor, branchID uint) error {
	s := ScopeFor(a)
	if s.All {
		return apperrors.Forbidden("select a single branch before editing; the aggregate view is read-only").
			With("branch_id", branchID)
	}
	if s.BranchID == 0 || s.BranchID != branchID {
		return apperrors.Forbidden("branch %d is outside your scope", branchID).
			With("branch_id", branchID).
			With("scope", s.String())
	}
	return nil
}

// AuthorizeBranchRead allows reading a branch that the scope includes. Admins
// may read any branch regardless of their acting branch.
func AuthorizeBranchRead(a Actor, branchID uint) error {
	if a.IsAdmin() {
		return nil
	}
	if !ScopeFor(a).Includes(branchID) || branchID == 0 {
		return apperrors.Forbidden("branch %d is outside your scope", branchID).With("branch_id", branchID)
	}
	return nil
}

// ReadScope resolves a requested read scope. requested nil means the actor's
// own scope: the acting branch, or "all" for an admin without one.
func ReadScope(a Actor, requested *uint) (Scope, error) {
	if requested == nil {
		s := ScopeFor(a)
		if !s.All && s.BranchID == 0 {
			return Scope{}, apperrors.Forbidden("account is not bound to a branch")
		}
		return s, nil
	}
	if err := AuthorizeBranchRead(a, *requested); err != nil {
		return Scope{}, err
	}
	return Scope{BranchID: *requested}, nil
}

func RequireAdmin(a Actor) error {
	if !a.IsAdmin() {
		return apperrors.Forbidden("admin role required")
	}
	return nil
}
