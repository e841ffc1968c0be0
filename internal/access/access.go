// Package access decides which customer, interaction and location rows a caller may see.
//
// Every read path goes through a Gate so the role rule lives in one Policy
// instead of being repeated per handler.
package access

import (
	"context"
	"errors"
	"fmt"

	"fieldcrm/internal/model"
	"fieldcrm/internal/store"
)

var (
	// ErrUnauthorized means the caller identity did not resolve to a known user.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the caller may not modify a row it does not own.
	ErrForbidden = errors.New("forbidden")
)

// Caller is an authenticated user as seen by the core.
type Caller struct {
	UserID int64
	Role   string
}

// IsAdmin reports whether the caller has the admin role.
func (c Caller) IsAdmin() bool { return c.Role == model.RoleAdmin }

// Policy maps a caller to the row scope it may read.
type Policy func(Caller) store.Scope

// RoleScope lets admins read everything and everyone else only their own rows.
func RoleScope(c Caller) store.Scope {
	if c.IsAdmin() {
		return store.Scope{All: true}
	}
	return store.Scope{OwnerID: c.UserID}
}

// UserLookup is the slice of the store needed to resolve callers.
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (model.User, error)
}

// Resolve loads the user behind an authenticated id. The role always comes from the
// stored user, never from the token.
func Resolve(ctx context.Context, users UserLookup, userID int64) (Caller, error) {
	if userID <= 0 {
		return Caller{}, ErrUnauthorized
	}
	u, err := users.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return Caller{}, fmt.Errorf("%w: unknown user %d", ErrUnauthorized, userID)
	}
	if err != nil {
		return Caller{}, err
	}
	return Caller{UserID: u.ID, Role: u.Role}, nil
}

// Reader is the scoped part of the store.
type Reader interface {
	ListCustomers(ctx context.Context, sc store.Scope) ([]model.Customer, error)
	ListInteractions(ctx context.Context, sc store.Scope, customerID int64) ([]model.Interaction, error)
	LatestLocations(ctx context.Context, sc store.Scope) ([]model.UserLocation, error)
}

// Gate applies one Policy to every scoped read.
type Gate struct {
	Reader Reader
	Policy Policy
}

// NewGate returns a Gate using RoleScope.
func NewGate(r Reader) Gate { return Gate{Reader: r, Policy: RoleScope} }

func (g Gate) scope(c Caller) store.Scope {
	if g.Policy == nil {
		return RoleScope(c)
	}
	return g.Policy(c)
}

// Customers returns the customers the caller may see.
func (g Gate) Customers(ctx context.Context, c Caller) ([]model.Customer, error) {
	return g.Reader.ListCustomers(ctx, g.scope(c))
}

// Interactions returns the caller's visible interactions, optionally for one customer.
func (g Gate) Interactions(ctx context.Context, c Caller, customerID int64) ([]model.Interaction, error) {
	return g.Reader.ListInteractions(ctx, g.scope(c), customerID)
}

// LatestLocations returns the newest ping of every user the caller may see.
func (g Gate) LatestLocations(ctx context.Context, c Caller) ([]model.UserLocation, error) {
	return g.Reader.LatestLocations(ctx, g.scope(c))
}

// Allows reports whether the caller may see or modify a row owned by ownerID.
func (g Gate) Allows(c Caller, ownerID int64) bool { return g.scope(c).Allows(ownerID) }

// Check returns ErrForbidden unless the caller may modify a row owned by ownerID.
func (g Gate) Check(c Caller, ownerID int64) error {
	if !g.Allows(c, ownerID) {
		return ErrForbidden
	}
	return nil
}
