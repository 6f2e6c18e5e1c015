// Package authz holds authorization checks over already validated claims.
// Predicates are pure: they never touch the network or storage.
package authz

import (
	"slices"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/usersync/internal/core/domain"
)

// Resource describes what is being accessed. OwnerID is uuid.Nil for
// collections or for resources that have no owner.
type Resource struct {
	OwnerID uuid.UUID
}

// Owned is the resource view of anything that references an owner identifier.
func Owned(ownerID uuid.UUID) Resource {
	return Resource{OwnerID: ownerID}
}

type Predicate func(claims domain.Claims, res Resource) bool

func HasRole(roles ...string) Predicate {
	return func(claims domain.Claims, _ Resource) bool {
		return slices.Contains(roles, claims.Role)
	}
}

func IsOwner() Predicate {
	return func(claims domain.Claims, res Resource) bool {
		return res.OwnerID != uuid.Nil && res.OwnerID == claims.ID
	}
}

// All holds when every predicate holds. All() with no predicates allows.
func All(preds ...Predicate) Predicate {
	return func(claims domain.Claims, res Resource) bool {
		for _, p := range preds {
			if !p(claims, res) {
				return false
			}
		}
		return true
	}
}

// Any holds when at least one predicate holds. Any() with no predicates denies.
func Any(preds ...Predicate) Predicate {
	return func(claims domain.Claims, res Resource) bool {
		for _, p := range preds {
			if p(claims, res) {
				return true
			}
		}
		return false
	}
}

func Authorize(p Predicate, claims domain.Claims, res Resource) error {
	if claims.ID == uuid.Nil {
		return domain.ErrUnauthenticated
	}
	if !p(claims, res) {
		return domain.ErrForbidden
	}
	return nil
}
