package store

import (
	"context"
	"errors"

	"fieldcrm/internal/model"
)

// Scope restricts list queries to rows owned by one user unless All is set.
type Scope struct {
	All     bool
	OwnerID int64
}

// Allows reports whether a row owned by ownerID is visible under the scope.
func (s Scope) Allows(ownerID int64) bool { return s.All || s.OwnerID == ownerID }

// Store is the persistence interface used by the API server.
type Store interface {
	// Users
	GetUser(ctx context.Context, id int64) (model.User, error)

	// Customers
	ListCustomers(ctx context.Context, sc Scope) ([]model.Customer, error)
	GetCustomer(ctx context.Context, id int64) (model.Customer, error)
	// GetCustomersByIDs ignores unknown ids and returns rows in ascending id order.
	GetCustomersByIDs(ctx context.Context, ids []int64) ([]model.Customer, error)
	CreateCustomer(ctx context.Context, c model.Customer) (model.Customer, error)
	UpdateCustomer(ctx context.Context, id int64, patch model.CustomerPatch) (model.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error

	// Interactions; customerID 0 means any customer.
	ListInteractions(ctx context.Context, sc Scope, customerID int64) ([]model.Interaction, error)
	CreateInteraction(ctx context.Context, in model.Interaction) (model.Interaction, error)

	// Locations are append-only.
	AppendLocation(ctx context.Context, loc model.Location) (model.Location, error)
	LatestLocation(ctx context.Context, userID int64) (model.Location, error)
	LatestLocations(ctx context.Context, sc Scope) ([]model.UserLocation, error)
}

var ErrNotFound = errors.New("not found")
