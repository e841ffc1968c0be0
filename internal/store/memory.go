package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"fieldcrm/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu           sync.Mutex
	users        map[int64]model.User
	customers    []model.Customer // ascending id
	interactions []model.Interaction
	locations    []model.Location
	nextID       map[string]int64 // table -> last issued id
	// Now stamps rows created without an explicit time.
	Now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users:  map[int64]model.User{},
		nextID: map[string]int64{},
		Now:    time.Now,
	}
}

func (m *Memory) id(table string) int64 {
	m.nextID[table]++
	return m.nextID[table]
}

// PutUser registers a user. Users are owned by the auth collaborator; this is a seeding hook.
func (m *Memory) PutUser(u model.User) model.User {
	m.mu.Lock(); defer m.mu.Unlock()
	if u.ID == 0 {
		u.ID = m.id("users")
	} else if u.ID > m.nextID["users"] {
		m.nextID["users"] = u.ID
	}
	if u.Role == "" { u.Role = model.RoleSalesRep }
	m.users[u.ID] = u
	return u
}

func (m *Memory) GetUser(ctx context.Context, id int64) (model.User, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok { return model.User{}, ErrNotFound }
	return u, nil
}

func (m *Memory) ListCustomers(ctx context.Context, sc Scope) ([]model.Customer, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	out := []model.Customer{}
	for _, c := range m.customers {
		if sc.Allows(c.CreatedBy) { out = append(out, c) }
	}
	return out, nil
}

func (m *Memory) GetCustomer(ctx context.Context, id int64) (model.Customer, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	i := m.customerIndex(id)
	if i < 0 { return model.Customer{}, ErrNotFound }
	return m.customers[i], nil
}

func (m *Memory) GetCustomersByIDs(ctx context.Context, ids []int64) ([]model.Customer, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids { want[id] = struct{}{} }
	out := []model.Customer{}
	for _, c := range m.customers {
		if _, ok := want[c.ID]; ok { out = append(out, c) }
	}
	return out, nil
}

func (m *Memory) CreateCustomer(ctx context.Context, c model.Customer) (model.Customer, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	c.ID = m.id("customers")
	if c.Stage == "" { c.Stage = model.StageNew }
	if c.CreatedAt.IsZero() { c.CreatedAt = m.Now().UTC() }
	m.customers = append(m.customers, c)
	return c, nil
}

func (m *Memory) UpdateCustomer(ctx context.Context, id int64, patch model.CustomerPatch) (model.Customer, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	i := m.customerIndex(id)
	if i < 0 { return model.Customer{}, ErrNotFound }
	c := m.customers[i]
	if patch.Name != nil { c.Name = *patch.Name }
	if patch.Email != nil { c.Email = *patch.Email }
	if patch.Phone != nil { c.Phone = *patch.Phone }
	if patch.Company != nil { c.Company = *patch.Company }
	c.Lat = patch.Lat.Apply(c.Lat)
	c.Lng = patch.Lng.Apply(c.Lng)
	if patch.Stage != nil { c.Stage = *patch.Stage }
	m.customers[i] = c
	return c, nil
}

// DeleteCustomer removes the customer and its interactions.
func (m *Memory) DeleteCustomer(ctx context.Context, id int64) error {
	m.mu.Lock(); defer m.mu.Unlock()
	i := m.customerIndex(id)
	if i < 0 { return ErrNotFound }
	m.customers = append(m.customers[:i], m.customers[i+1:]...)
	kept := m.interactions[:0]
	for _, in := range m.interactions {
		if in.CustomerID != id { kept = append(kept, in) }
	}
	m.interactions = kept
	return nil
}

func (m *Memory) customerIndex(id int64) int {
	i := sort.Search(len(m.customers), func(i int) bool { return m.customers[i].ID >= id })
	if i < len(m.customers) && m.customers[i].ID == id { return i }
	return -1
}

func (m *Memory) ListInteractions(ctx context.Context, sc Scope, customerID int64) ([]model.Interaction, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	out := []model.Interaction{}
	for _, in := range m.interactions {
		if !sc.Allows(in.UserID) { continue }
		if customerID != 0 && in.CustomerID != customerID { continue }
		out = append(out, in)
	}
	return out, nil
}

func (m *Memory) CreateInteraction(ctx context.Context, in model.Interaction) (model.Interaction, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	if m.customerIndex(in.CustomerID) < 0 { return model.Interaction{}, ErrNotFound }
	in.ID = m.id("interactions")
	if in.Timestamp.IsZero() { in.Timestamp = m.Now().UTC() }
	m.interactions = append(m.interactions, in)
	return in, nil
}

func (m *Memory) AppendLocation(ctx context.Context, loc model.Location) (model.Location, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	loc.ID = m.id("locations")
	if loc.Timestamp.IsZero() { loc.Timestamp = m.Now().UTC() }
	m.locations = append(m.locations, loc)
	return loc, nil
}

func (m *Memory) LatestLocation(ctx context.Context, userID int64) (model.Location, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	latest, ok := m.latestByUser()[userID]
	if !ok { return model.Location{}, ErrNotFound }
	return latest, nil
}

func (m *Memory) LatestLocations(ctx context.Context, sc Scope) ([]model.UserLocation, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	out := []model.UserLocation{}
	for uid, l := range m.latestByUser() {
		if !sc.Allows(uid) { continue }
		out = append(out, model.UserLocation{UserID: uid, Name: m.users[uid].Name, Latitude: l.Latitude, Longitude: l.Longitude, Timestamp: l.Timestamp})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// latestByUser picks the max-timestamp ping per user; ties go to the later insert.
func (m *Memory) latestByUser() map[int64]model.Location {
	latest := map[int64]model.Location{}
	for _, l := range m.locations {
		cur, ok := latest[l.UserID]
		if !ok || !l.Timestamp.Before(cur.Timestamp) { latest[l.UserID] = l }
	}
	return latest
}
