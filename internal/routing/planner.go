// Package routing builds sequential visit plans from a rep's current location.
package routing

import (
	"context"
	"errors"
	"fmt"
	"math"

	"fieldcrm/internal/access"
	"fieldcrm/internal/geo"
	"fieldcrm/internal/model"
	"fieldcrm/internal/store"
)

var (
	// ErrNoLocationAvailable means the caller has never reported a location.
	ErrNoLocationAvailable = errors.New("no location available for current user")
	// ErrNoCustomersSelected means the request named no customers.
	ErrNoCustomersSelected = errors.New("no customers selected")
)

// Source is the slice of the store the planner reads.
type Source interface {
	LatestLocation(ctx context.Context, userID int64) (model.Location, error)
	GetCustomersByIDs(ctx context.Context, ids []int64) ([]model.Customer, error)
}

// Planner chains legs from the caller's latest location through the requested customers.
//
// Customers are visited in the order the id lookup returns them (ascending id), not in
// request order, and are never reordered to shorten the route. The lookup is not
// filtered by ownership: any existing customer id can be routed to.
type Planner struct {
	Source    Source
	Estimator geo.Estimator
}

func NewPlanner(src Source, est geo.Estimator) *Planner {
	return &Planner{Source: src, Estimator: est}
}

// Plan builds the route for caller. Customers missing lat or lng are skipped and do not
// move the chain's current position.
func (p *Planner) Plan(ctx context.Context, caller access.Caller, customerIDs []int64) (model.RoutePlan, error) {
	loc, err := p.Source.LatestLocation(ctx, caller.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return model.RoutePlan{}, ErrNoLocationAvailable
	}
	if err != nil {
		return model.RoutePlan{}, fmt.Errorf("latest location: %w", err)
	}
	if len(customerIDs) == 0 {
		return model.RoutePlan{}, ErrNoCustomersSelected
	}
	customers, err := p.Source.GetCustomersByIDs(ctx, customerIDs)
	if err != nil {
		return model.RoutePlan{}, fmt.Errorf("customers by id: %w", err)
	}

	start := geo.Point{Lat: loc.Latitude, Lng: loc.Longitude}
	cur := start
	legs := []model.RouteLeg{}
	totalKm := 0.0
	totalMin := 0
	for _, c := range customers {
		if !c.HasCoordinates() {
			continue
		}
		next := geo.Point{Lat: *c.Lat, Lng: *c.Lng}
		km, _, err := p.Estimator.Measure(cur, next)
		if err != nil {
			return model.RoutePlan{}, fmt.Errorf("customer %d: %w", c.ID, err)
		}
		minutes := int(math.Round(p.Estimator.TravelMinutes(km)))
		legs = append(legs, model.RouteLeg{
			CustomerID:             c.ID,
			CustomerName:           c.Name,
			CustomerCompany:        c.Company,
			Lat:                    next.Lat,
			Lng:                    next.Lng,
			DistanceFromPreviousKm: geo.Round(km, 2),
			EstimatedTimeMinutes:   minutes,
		})
		totalKm += km
		// sums the already-rounded leg minutes
		totalMin += minutes
		cur = next
	}
	return model.RoutePlan{
		Route:                     legs,
		TotalDistanceKm:           geo.Round(totalKm, 2),
		TotalEstimatedTimeMinutes: totalMin,
		StartingLocation:          model.GeoPoint{Lat: start.Lat, Lng: start.Lng},
	}, nil
}
