package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// Roles recognised by the access policy.
const (
	RoleAdmin    = "admin"
	RoleSalesRep = "sales_rep"
)

// Pipeline stages a customer moves through.
const (
	StageNew       = "New"
	StageContacted = "Contacted"
	StageProposal  = "Proposal"
	StageClosed    = "Closed"
)

// TimeLayout is the wire format used for timestamps in list responses.
const TimeLayout = "2006-01-02 15:04:05"

type User struct {
	ID    int64  `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Email string `json:"email" db:"email"`
	Role  string `json:"role" db:"role"`
}

type Customer struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Phone     string    `db:"phone"`
	Company   string    `db:"company"`
	Lat       *float64  `db:"lat"`
	Lng       *float64  `db:"lng"`
	Stage     string    `db:"stage"`
	CreatedBy int64     `db:"created_by"`
	CreatedAt time.Time `db:"created_at"`
}

// HasCoordinates reports whether both lat and lng are present.
func (c Customer) HasCoordinates() bool { return c.Lat != nil && c.Lng != nil }

// Optional tells a field that was absent from a JSON body apart from one sent as null.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] { return Optional[T]{Set: true, Value: &v} }

// Null returns an Optional that clears the field.
func Null[T any]() Optional[T] { return Optional[T]{Set: true} }

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// Apply returns the patched value: cur when absent, else the sent value (nil for null).
func (o Optional[T]) Apply(cur *T) *T {
	if !o.Set {
		return cur
	}
	if o.Value == nil {
		return nil
	}
	v := *o.Value
	return &v
}

// CustomerPatch carries a partial update. Nil string fields are left untouched; coordinates
// are cleared when sent as null.
type CustomerPatch struct {
	Name    *string           `json:"name,omitempty"`
	Email   *string           `json:"email,omitempty"`
	Phone   *string           `json:"phone,omitempty"`
	Company *string           `json:"company,omitempty"`
	Lat     Optional[float64] `json:"lat"`
	Lng     Optional[float64] `json:"lng"`
	Stage   *string           `json:"stage,omitempty"`
}

type Interaction struct {
	ID         int64     `db:"id"`
	CustomerID int64     `db:"customer_id"`
	UserID     int64     `db:"user_id"`
	Type       string    `db:"type"`
	Note       string    `db:"note"`
	Timestamp  time.Time `db:"timestamp"`
}

type Location struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Latitude  float64   `db:"latitude"`
	Longitude float64   `db:"longitude"`
	Timestamp time.Time `db:"timestamp"`
}

// UserLocation is the most recent ping of one user joined with the user's name.
type UserLocation struct {
	UserID    int64     `db:"user_id"`
	Name      string    `db:"name"`
	Latitude  float64   `db:"latitude"`
	Longitude float64   `db:"longitude"`
	Timestamp time.Time `db:"timestamp"`
}

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RouteLeg is one segment of a planned route ending at a customer.
type RouteLeg struct {
	CustomerID             int64   `json:"customer_id"`
	CustomerName           string  `json:"customer_name"`
	CustomerCompany        string  `json:"customer_company"`
	Lat                    float64 `json:"lat"`
	Lng                    float64 `json:"lng"`
	DistanceFromPreviousKm float64 `json:"distance_from_previous_km"`
	EstimatedTimeMinutes   int     `json:"estimated_time_minutes"`
}

type RoutePlan struct {
	Route                     []RouteLeg `json:"route"`
	TotalDistanceKm           float64    `json:"total_distance_km"`
	TotalEstimatedTimeMinutes int        `json:"total_estimated_time_minutes"`
	StartingLocation          GeoPoint   `json:"starting_location"`
}

type RoutePlanRequest struct {
	CustomerIDs []int64 `json:"customer_ids"`
}

type DashboardStats struct {
	TotalCustomers     int `json:"total_customers"`
	TotalInteractions  int `json:"total_interactions"`
	NewCustomers       int `json:"new_customers"`
	ContactedCustomers int `json:"contacted_customers"`
	ProposalCustomers  int `json:"proposal_customers"`
	ClosedCustomers    int `json:"closed_customers"`
}

type AnalyticsStats struct {
	RecentCustomersCount       int     `json:"recent_customers_count"`
	RecentInteractionsCount    int     `json:"recent_interactions_count"`
	ConversionRate             float64 `json:"conversion_rate"`
	AvgInteractionsPerCustomer float64 `json:"avg_interactions_per_customer"`
}

// DistanceRequest uses pointers so a missing coordinate can be told apart from zero.
type DistanceRequest struct {
	Lat1 *float64 `json:"lat1"`
	Lng1 *float64 `json:"lng1"`
	Lat2 *float64 `json:"lat2"`
	Lng2 *float64 `json:"lng2"`
}

type DistanceResult struct {
	DistanceKm           float64 `json:"distance_km"`
	DistanceMi           float64 `json:"distance_mi"`
	EstimatedTimeMinutes int     `json:"estimated_time_minutes"`
	EstimatedTimeText    string  `json:"estimated_time_text"`
}

type LocationInput struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type InteractionInput struct {
	CustomerID int64  `json:"customer_id"`
	Type       string `json:"type,omitempty"`
	Note       string `json:"note,omitempty"`
}
