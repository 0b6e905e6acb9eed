package rbac

import (
	"errors"
	"fmt"
)

var (
	// ErrRoleNotFound indicates the requested role does not exist.
	ErrRoleNotFound = errors.New("rbac: role not found")
	// ErrParentNotFound indicates the referenced parent role does not exist.
	ErrParentNotFound = errors.New("rbac: parent role not found")
	// ErrUserNotFound indicates the target user does not exist.
	ErrUserNotFound = errors.New("rbac: user not found")
	// ErrDuplicateCode indicates the role code is already taken. Codes are
	// never reused, so soft-deleted roles still reserve theirs.
	ErrDuplicateCode = errors.New("rbac: role code already exists")
	// ErrAlreadyAssigned indicates the user already holds the role.
	ErrAlreadyAssigned = errors.New("rbac: role already assigned")
	// ErrNotAssigned indicates the user does not hold the role.
	ErrNotAssigned = errors.New("rbac: role not assigned")
	// ErrInvalidHierarchy indicates a parent change that would create a cycle.
	ErrInvalidHierarchy = errors.New("rbac: role hierarchy would form a cycle")
	// ErrRoleInUse and ErrRoleHasChildren are matched through errors.Is on
	// their structured counterparts below.
	ErrRoleInUse       = errors.New("rbac: role has active assignments")
	ErrRoleHasChildren = errors.New("rbac: role has active child roles")
	// ErrAuthorizationDenied is the class sentinel for denial errors.
	ErrAuthorizationDenied = errors.New("rbac: authorization denied")
)

// RoleInUseError blocks deletion of a role that active users still hold.
type RoleInUseError struct {
	Code        string
	Assignments int
}

func (e *RoleInUseError) Error() string {
	return fmt.Sprintf("rbac: role %s has %d active assignment(s)", e.Code, e.Assignments)
}

func (e *RoleInUseError) Is(target error) bool { return target == ErrRoleInUse }

// RoleHasChildrenError blocks deletion of a role with active children.
type RoleHasChildrenError struct {
	Code     string
	Children int
}

func (e *RoleHasChildrenError) Error() string {
	return fmt.Sprintf("rbac: role %s has %d active child role(s)", e.Code, e.Children)
}

func (e *RoleHasChildrenError) Is(target error) bool { return target == ErrRoleHasChildren }

// AuthorizationDeniedError carries the structured denial reason. Denials
// are always surfaced verbatim, never degraded to another error kind.
type AuthorizationDeniedError struct {
	Reason string
}

func (e *AuthorizationDeniedError) Error() string {
	return "rbac: authorization denied: " + e.Reason
}

func (e *AuthorizationDeniedError) Is(target error) bool { return target == ErrAuthorizationDenied }

func denied(reason string) error {
	return &AuthorizationDeniedError{Reason: reason}
}
