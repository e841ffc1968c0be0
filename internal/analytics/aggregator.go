// Package analytics computes dashboard and pipeline statistics over a caller's scoped rows.
package analytics

import (
	"context"
	"time"

	"fieldcrm/internal/access"
	"fieldcrm/internal/geo"
	"fieldcrm/internal/model"
)

// Look-back windows; both lower bounds are inclusive.
const (
	RecentCustomerWindow    = 30 * 24 * time.Hour
	RecentInteractionWindow = 7 * 24 * time.Hour
)

// ScopedReader is satisfied by access.Gate.
type ScopedReader interface {
	Customers(ctx context.Context, c access.Caller) ([]model.Customer, error)
	Interactions(ctx context.Context, c access.Caller, customerID int64) ([]model.Interaction, error)
}

type Aggregator struct {
	Reader ScopedReader
	Now    func() time.Time
}

func NewAggregator(r ScopedReader, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{Reader: r, Now: now}
}

func (a *Aggregator) load(ctx context.Context, c access.Caller) ([]model.Customer, []model.Interaction, error) {
	customers, err := a.Reader.Customers(ctx, c)
	if err != nil {
		return nil, nil, err
	}
	interactions, err := a.Reader.Interactions(ctx, c, 0)
	if err != nil {
		return nil, nil, err
	}
	return customers, interactions, nil
}

// Dashboard returns totals and per-stage counts for the caller's customers.
func (a *Aggregator) Dashboard(ctx context.Context, c access.Caller) (model.DashboardStats, error) {
	customers, interactions, err := a.load(ctx, c)
	if err != nil {
		return model.DashboardStats{}, err
	}
	return Dashboard(customers, interactions), nil
}

// Analytics returns windowed counts and ratios. now is read once per call.
func (a *Aggregator) Analytics(ctx context.Context, c access.Caller) (model.AnalyticsStats, error) {
	now := a.Now()
	customers, interactions, err := a.load(ctx, c)
	if err != nil {
		return model.AnalyticsStats{}, err
	}
	return Summarize(customers, interactions, now), nil
}

// Dashboard counts stages by exact match; unknown stages only count toward the total.
func Dashboard(customers []model.Customer, interactions []model.Interaction) model.DashboardStats {
	st := model.DashboardStats{TotalCustomers: len(customers), TotalInteractions: len(interactions)}
	for _, c := range customers {
		switch c.Stage {
		case model.StageNew:
			st.NewCustomers++
		case model.StageContacted:
			st.ContactedCustomers++
		case model.StageProposal:
			st.ProposalCustomers++
		case model.StageClosed:
			st.ClosedCustomers++
		}
	}
	return st
}

// Summarize computes the analytics figures relative to now. Ratios are 0 with no customers.
func Summarize(customers []model.Customer, interactions []model.Interaction, now time.Time) model.AnalyticsStats {
	customerCutoff := now.Add(-RecentCustomerWindow)
	interactionCutoff := now.Add(-RecentInteractionWindow)

	var st model.AnalyticsStats
	closed := 0
	for _, c := range customers {
		if !c.CreatedAt.Before(customerCutoff) {
			st.RecentCustomersCount++
		}
		if c.Stage == model.StageClosed {
			closed++
		}
	}
	for _, in := range interactions {
		if !in.Timestamp.Before(interactionCutoff) {
			st.RecentInteractionsCount++
		}
	}
	if n := len(customers); n > 0 {
		st.ConversionRate = geo.Round(100*float64(closed)/float64(n), 1)
		st.AvgInteractionsPerCustomer = geo.Round(float64(len(interactions))/float64(n), 1)
	}
	return st
}
