package api

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "net/http"
    "net/http/httptest"
    "strconv"
    "strings"
    "testing"
    "time"

    "github.com/gorilla/websocket"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "github.com/xuri/excelize/v2"
    "go.uber.org/zap"

    "fieldcrm/internal/config"
    "fieldcrm/internal/model"
    "fieldcrm/internal/store"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type testEnv struct {
    s     *Server
    h     http.Handler
    mem   *store.Memory
    admin model.User
    rep   model.User
    other model.User
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) testEnv {
    t.Helper()
    cfg := config.Default()
    for _, m := range mutate { m(&cfg) }
    s, err := NewServer(cfg, zap.NewNop())
    require.NoError(t, err)
    t.Cleanup(s.Close)
    s.Now = func() time.Time { return testNow }
    mem := s.Store.(*store.Memory)
    mem.Now = s.Now
    return testEnv{
        s: s, h: s.Routes(), mem: mem,
        admin: mem.PutUser(model.User{Name: "Ada", Role: model.RoleAdmin}),
        rep:   mem.PutUser(model.User{Name: "Rex", Role: model.RoleSalesRep}),
        other: mem.PutUser(model.User{Name: "Olga", Role: model.RoleSalesRep}),
    }
}

func (e testEnv) do(t *testing.T, method, path string, user model.User, body any) *httptest.ResponseRecorder {
    t.Helper()
    var rd *bytes.Reader
    switch b := body.(type) {
    case nil:
        rd = bytes.NewReader(nil)
    case string:
        rd = bytes.NewReader([]byte(b))
    default:
        raw, err := json.Marshal(b)
        require.NoError(t, err)
        rd = bytes.NewReader(raw)
    }
    req := httptest.NewRequest(method, path, rd)
    req.Header.Set("Content-Type", "application/json")
    if user.ID != 0 { req.Header.Set("X-User-Id", strconv.FormatInt(user.ID, 10)) }
    rr := httptest.NewRecorder()
    e.h.ServeHTTP(rr, req)
    return rr
}

func (e testEnv) customer(t *testing.T, owner model.User, name string, lat, lng *float64) model.Customer {
    t.Helper()
    c, err := e.mem.CreateCustomer(context.Background(), model.Customer{Name: name, Company: name + " Inc", Lat: lat, Lng: lng, CreatedBy: owner.ID})
    require.NoError(t, err)
    return c
}

func fptr(v float64) *float64 { return &v }

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
    t.Helper()
    var v T
    require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
    return v
}

func TestHealthReady(t *testing.T) {
    e := newTestEnv(t)
    for _, path := range []string{"/healthz", "/readyz", "/", "/debug/info", "/metrics"} {
        rr := e.do(t, http.MethodGet, path, model.User{}, nil)
        assert.Equal(t, http.StatusOK, rr.Code, path)
    }
}

func TestOpenAPIServedAsJSON(t *testing.T) {
    e := newTestEnv(t)
    rr := e.do(t, http.MethodGet, "/openapi.json", model.User{}, nil)
    require.Equal(t, http.StatusOK, rr.Code)
    doc := decode[map[string]any](t, rr)
    paths, ok := doc["paths"].(map[string]any)
    require.True(t, ok)
    assert.Contains(t, paths, "/api/route-planning")
}

func TestRequestIDEchoed(t *testing.T) {
    e := newTestEnv(t)
    req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
    req.Header.Set("X-Request-ID", "abc-123")
    rr := httptest.NewRecorder()
    e.h.ServeHTTP(rr, req)
    assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))

    rr = e.do(t, http.MethodGet, "/healthz", model.User{}, nil)
    assert.Len(t, rr.Header().Get("X-Request-ID"), 36)
}

func TestUnauthorized(t *testing.T) {
    e := newTestEnv(t)
    rr := e.do(t, http.MethodGet, "/api/dashboard", model.User{}, nil)
    assert.Equal(t, http.StatusUnauthorized, rr.Code)
    p := decode[Problem](t, rr)
    assert.NotEmpty(t, p.Message)

    rr = e.do(t, http.MethodGet, "/api/dashboard", model.User{ID: 999}, nil)
    assert.Equal(t, http.StatusUnauthorized, rr.Code)

    req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
    req.Header.Set("Authorization", "Bearer "+strconv.FormatInt(e.rep.ID, 10))
    rr = httptest.NewRecorder()
    e.h.ServeHTTP(rr, req)
    assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRoutePlanning(t *testing.T) {
    e := newTestEnv(t)
    c1 := e.customer(t, e.rep, "C1", fptr(0), fptr(1))
    c2 := e.customer(t, e.rep, "C2", fptr(0), fptr(2))

    rr := e.do(t, http.MethodPost, "/api/route-planning", e.rep, map[string]any{"customer_ids": []int64{c2.ID, c1.ID}})
    require.Equal(t, http.StatusBadRequest, rr.Code)
    assert.Equal(t, "no location available for current user", decode[Problem](t, rr).Message)

    rr = e.do(t, http.MethodPost, "/api/locations", e.rep, map[string]any{"latitude": 0, "longitude": 0})
    require.Equal(t, http.StatusCreated, rr.Code)

    rr = e.do(t, http.MethodPost, "/api/route-planning", e.rep, map[string]any{"customer_ids": []int64{}})
    require.Equal(t, http.StatusBadRequest, rr.Code)
    assert.Equal(t, "no customers selected", decode[Problem](t, rr).Message)

    rr = e.do(t, http.MethodPost, "/api/route-planning", e.rep, map[string]any{"customer_ids": []int64{c2.ID, c1.ID}})
    require.Equal(t, http.StatusOK, rr.Code)
    plan := decode[model.RoutePlan](t, rr)
    require.Len(t, plan.Route, 2)
    assert.Equal(t, c1.ID, plan.Route[0].CustomerID)
    assert.Equal(t, "C1 Inc", plan.Route[0].CustomerCompany)
    assert.Equal(t, 111.19, plan.Route[0].DistanceFromPreviousKm)
    assert.Equal(t, 133, plan.Route[0].EstimatedTimeMinutes)
    assert.Equal(t, 222.39, plan.TotalDistanceKm)
    assert.Equal(t, 266, plan.TotalEstimatedTimeMinutes)
    assert.Equal(t, model.GeoPoint{}, plan.StartingLocation)

    rr = e.do(t, http.MethodPost, "/api/route-planning", e.rep, "{not json")
    assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouteExport(t *testing.T) {
    e := newTestEnv(t)
    c1 := e.customer(t, e.rep, "C1", fptr(0), fptr(1))
    require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/locations", e.rep, map[string]any{"latitude": 0, "longitude": 0}).Code)

    rr := e.do(t, http.MethodPost, "/api/route-planning/export", e.rep, map[string]any{"customer_ids": []int64{c1.ID}})
    require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
    assert.Contains(t, rr.Header().Get("Content-Disposition"), "route.xlsx")

    f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
    require.NoError(t, err)
    defer func() { _ = f.Close() }()
    rows, err := f.GetRows(routeSheet)
    require.NoError(t, err)
    require.Len(t, rows, 4)
    assert.Equal(t, "Seq", rows[0][0])
    assert.Equal(t, "C1", rows[2][2])
    assert.Equal(t, "111.19", rows[2][6])
    assert.Equal(t, "133", rows[2][7])
    assert.Equal(t, "Total", rows[3][0])

    rr = e.do(t, http.MethodPost, "/api/route-planning/export", e.other, map[string]any{"customer_ids": []int64{c1.ID}})
    assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDistance(t *testing.T) {
    e := newTestEnv(t)
    rr := e.do(t, http.MethodPost, "/api/distance", e.rep, map[string]any{"lat1": 0, "lng1": 0, "lat2": 0, "lng2": 1})
    require.Equal(t, http.StatusOK, rr.Code)
    assert.Equal(t, model.DistanceResult{DistanceKm: 111.32, DistanceMi: 69.17, EstimatedTimeMinutes: 134, EstimatedTimeText: "2h 14m"}, decode[model.DistanceResult](t, rr))

    rr = e.do(t, http.MethodPost, "/api/distance", e.rep, map[string]any{"lat1": 5, "lng1": 5, "lat2": 5, "lng2": 5})
    require.Equal(t, http.StatusOK, rr.Code)
    assert.Equal(t, model.DistanceResult{EstimatedTimeText: "0m"}, decode[model.DistanceResult](t, rr))

    rr = e.do(t, http.MethodPost, "/api/distance", e.rep, map[string]any{"lat1": 0, "lng1": 0, "lat2": 0})
    assert.Equal(t, http.StatusBadRequest, rr.Code)

    rr = e.do(t, http.MethodPost, "/api/distance", e.rep, map[string]any{"lat1": 91, "lng1": 0, "lat2": 0, "lng2": 0})
    assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDistanceModelIsConfigurable(t *testing.T) {
    e := newTestEnv(t, func(c *config.Config) { c.DistanceModel = "sphere"; c.RouteModel = "wgs84" })
    rr := e.do(t, http.MethodPost, "/api/distance", e.rep, map[string]any{"lat1": 0, "lng1": 0, "lat2": 0, "lng2": 1})
    require.Equal(t, http.StatusOK, rr.Code)
    assert.Equal(t, 111.19, decode[model.DistanceResult](t, rr).DistanceKm)

    c1 := e.customer(t, e.rep, "C1", fptr(0), fptr(1))
    rr = e.do(t, http.MethodPost, "/api/locations", e.rep, map[string]any{"latitude": 0, "longitude": 0})
    require.Equal(t, http.StatusCreated, rr.Code)
    rr = e.do(t, http.MethodPost, "/api/route-planning", e.rep, map[string]any{"customer_ids": []int64{c1.ID}})
    require.Equal(t, http.StatusOK, rr.Code)
    plan := decode[model.RoutePlan](t, rr)
    require.Len(t, plan.Route, 1)
    assert.Equal(t, 111.32, plan.Route[0].DistanceFromPreviousKm)
}

func TestDashboardAndAnalyticsAreScoped(t *testing.T) {
    e := newTestEnv(t)
    ctx := context.Background()
    mine := e.customer(t, e.rep, "mine", nil, nil)
    _, err := e.mem.UpdateCustomer(ctx, mine.ID, model.CustomerPatch{Stage: strPtr(model.StageClosed)})
    require.NoError(t, err)
    e.customer(t, e.other, "theirs", nil, nil)
    _, err = e.mem.CreateInteraction(ctx, model.Interaction{CustomerID: mine.ID, UserID: e.rep.ID, Type: "call"})
    require.NoError(t, err)

    rr := e.do(t, http.MethodGet, "/api/dashboard", e.rep, nil)
    require.Equal(t, http.StatusOK, rr.Code)
    assert.Equal(t, model.DashboardStats{TotalCustomers: 1, TotalInteractions: 1, ClosedCustomers: 1}, decode[model.DashboardStats](t, rr))

    rr = e.do(t, http.MethodGet, "/api/dashboard", e.admin, nil)
    assert.Equal(t, model.DashboardStats{TotalCustomers: 2, TotalInteractions: 1, NewCustomers: 1, ClosedCustomers: 1}, decode[model.DashboardStats](t, rr))

    rr = e.do(t, http.MethodGet, "/api/customer-analytics", e.admin, nil)
    require.Equal(t, http.StatusOK, rr.Code)
    assert.Equal(t, model.AnalyticsStats{
        RecentCustomersCount: 2, RecentInteractionsCount: 1, ConversionRate: 50, AvgInteractionsPerCustomer: 0.5,
    }, decode[model.AnalyticsStats](t, rr))
}

func strPtr(s string) *string { return &s }

func TestCustomerCRUD(t *testing.T) {
    e := newTestEnv(t)

    rr := e.do(t, http.MethodPost, "/api/customers", e.rep, map[string]any{"email": "x@y"})
    assert.Equal(t, http.StatusBadRequest, rr.Code)
    rr = e.do(t, http.MethodPost, "/api/customers", e.rep, map[string]any{"name": "Acme", "lat": 120})
    assert.Equal(t, http.StatusBadRequest, rr.Code)

    rr = e.do(t, http.MethodPost, "/api/customers", e.rep, map[string]any{"name": "Acme", "company": "Acme Ltd", "lat": 40.7, "lng": -74})
    require.Equal(t, http.StatusCreated, rr.Code)
    created := decode[map[string]any](t, rr)
    id := int64(created["id"].(float64))
    path := "/api/customers/" + strconv.FormatInt(id, 10)

    rr = e.do(t, http.MethodGet, path, e.rep, nil)
    require.Equal(t, http.StatusOK, rr.Code)
    got := decode[customerView](t, rr)
    assert.Equal(t, model.StageNew, got.Stage)
    assert.Equal(t, e.rep.ID, got.CreatedBy)
    assert.Equal(t, "2026-03-14 12:00:00", got.CreatedAt)

    assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, path, e.other, nil).Code)
    assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodPut, path, e.other, map[string]any{"stage": "Closed"}).Code)
    assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodDelete, path, e.other, nil).Code)

    rr = e.do(t, http.MethodPut, path, e.rep, map[string]any{"stage": model.StageProposal})
    require.Equal(t, http.StatusOK, rr.Code)
    rr = e.do(t, http.MethodGet, path, e.admin, nil)
    got = decode[customerView](t, rr)
    assert.Equal(t, model.StageProposal, got.Stage)
    assert.Equal(t, "Acme Ltd", got.Company)

    rr = e.do(t, http.MethodGet, "/api/customers", e.other, nil)
    assert.Empty(t, decode[[]customerView](t, rr))
    rr = e.do(t, http.MethodGet, "/api/customers", e.admin, nil)
    assert.Len(t, decode[[]customerView](t, rr), 1)

    assert.Equal(t, http.StatusOK, e.do(t, http.MethodDelete, path, e.admin, nil).Code)
    assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodDelete, path, e.admin, nil).Code)
    assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPut, path, e.rep, map[string]any{"name": "x"}).Code)
    assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/customers/abc", e.rep, nil).Code)
}

func TestUpdateCustomerClearsCoordinates(t *testing.T) {
    e := newTestEnv(t)
    c := e.customer(t, e.rep, "Acme", fptr(1), fptr(2))
    path := "/api/customers/" + strconv.FormatInt(c.ID, 10)

    rr := e.do(t, http.MethodPut, path, e.rep, map[string]any{"name": "Acme Two"})
    require.Equal(t, http.StatusOK, rr.Code)
    got := decode[customerView](t, e.do(t, http.MethodGet, path, e.rep, nil))
    require.NotNil(t, got.Lat)
    assert.Equal(t, 1.0, *got.Lat)

    rr = e.do(t, http.MethodPut, path, e.rep, map[string]any{"lat": nil, "lng": nil})
    require.Equal(t, http.StatusOK, rr.Code)
    got = decode[customerView](t, e.do(t, http.MethodGet, path, e.rep, nil))
    assert.Nil(t, got.Lat)
    assert.Nil(t, got.Lng)
    assert.Equal(t, "Acme Two", got.Name)

    // a customer without coordinates drops out of the route
    rr = e.do(t, http.MethodPost, "/api/locations", e.rep, map[string]any{"latitude": 0, "longitude": 0})
    require.Equal(t, http.StatusCreated, rr.Code)
    rr = e.do(t, http.MethodPost, "/api/route-planning", e.rep, map[string]any{"customer_ids": []int64{c.ID}})
    require.Equal(t, http.StatusOK, rr.Code)
    assert.Empty(t, decode[model.RoutePlan](t, rr).Route)

    rr = e.do(t, http.MethodPut, path, e.rep, map[string]any{"lat": 91})
    assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestInteractions(t *testing.T) {
    e := newTestEnv(t)
    mine := e.customer(t, e.rep, "mine", nil, nil)
    theirs := e.customer(t, e.other, "theirs", nil, nil)

    rr := e.do(t, http.MethodPost, "/api/interactions", e.rep, map[string]any{"customer_id": 404})
    assert.Equal(t, http.StatusNotFound, rr.Code)
    rr = e.do(t, http.MethodPost, "/api/interactions", e.rep, map[string]any{})
    assert.Equal(t, http.StatusBadRequest, rr.Code)

    rr = e.do(t, http.MethodPost, "/api/interactions", e.rep, map[string]any{"customer_id": mine.ID, "note": "met"})
    require.Equal(t, http.StatusCreated, rr.Code)
    rr = e.do(t, http.MethodPost, "/api/interactions", e.other, map[string]any{"customer_id": theirs.ID, "type": "call"})
    require.Equal(t, http.StatusCreated, rr.Code)

    rr = e.do(t, http.MethodGet, "/api/interactions", e.rep, nil)
    list := decode[[]interactionView](t, rr)
    require.Len(t, list, 1)
    assert.Equal(t, "note", list[0].Type)
    assert.Equal(t, "met", list[0].Note)
    assert.Equal(t, "2026-03-14 12:00:00", list[0].Timestamp)

    // the customer filter cannot reach outside the caller's scope
    rr = e.do(t, http.MethodGet, "/api/interactions?customer_id="+strconv.FormatInt(theirs.ID, 10), e.rep, nil)
    assert.Empty(t, decode[[]interactionView](t, rr))
    rr = e.do(t, http.MethodGet, "/api/interactions?customer_id="+strconv.FormatInt(theirs.ID, 10), e.admin, nil)
    assert.Len(t, decode[[]interactionView](t, rr), 1)

    assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/interactions?customer_id=x", e.rep, nil).Code)
}

func TestLocations(t *testing.T) {
    e := newTestEnv(t)
    assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/api/locations", e.rep, map[string]any{"latitude": 10}).Code)
    assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/api/locations", e.rep, map[string]any{"latitude": 10, "longitude": 200}).Code)

    require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/locations", e.rep, map[string]any{"latitude": 1, "longitude": 2}).Code)
    require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/locations", e.other, map[string]any{"latitude": 3, "longitude": 4}).Code)

    rr := e.do(t, http.MethodGet, "/api/locations", e.rep, nil)
    mine := decode[[]LatestLocation](t, rr)
    require.Len(t, mine, 1)
    assert.Equal(t, LatestLocation{UserID: e.rep.ID, Name: "Rex", Latitude: 1, Longitude: 2, Timestamp: "2026-03-14 12:00:00"}, mine[0])

    rr = e.do(t, http.MethodGet, "/api/locations", e.admin, nil)
    assert.Len(t, decode[[]LatestLocation](t, rr), 2)
}

func TestLocationsWebSocket(t *testing.T) {
    e := newTestEnv(t)
    srv := httptest.NewServer(e.h)
    defer srv.Close()

    hdr := http.Header{}
    hdr.Set("X-User-Id", strconv.FormatInt(e.rep.ID, 10))
    conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/locations/ws", hdr)
    require.NoError(t, err)
    defer func() { _ = conn.Close() }()

    require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/locations", e.other, map[string]any{"latitude": 3, "longitude": 4}).Code)
    require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/locations", e.rep, map[string]any{"latitude": 1, "longitude": 2}).Code)

    _ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
    var evt Event
    require.NoError(t, conn.ReadJSON(&evt))
    assert.Equal(t, eventLocationUpdated, evt.Type)
    assert.Equal(t, float64(e.rep.ID), evt.Data["user_id"])
    assert.Equal(t, 1.0, evt.Data["latitude"])
    assert.Equal(t, "2026-03-14 12:00:00", evt.Data["timestamp"])
}

type unavailableBroker struct{ *Broker }

func (unavailableBroker) Subscribe(string) (chan Event, error) {
    return nil, errors.New("connection refused")
}

func TestLocationsWebSocketSubscribeFailure(t *testing.T) {
    e := newTestEnv(t)
    e.s.Broker = unavailableBroker{NewBroker()}
    srv := httptest.NewServer(e.h)
    defer srv.Close()

    hdr := http.Header{}
    hdr.Set("X-User-Id", strconv.FormatInt(e.rep.ID, 10))
    _, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/locations/ws", hdr)
    require.ErrorIs(t, err, websocket.ErrBadHandshake)
    require.NotNil(t, resp)
    defer func() { _ = resp.Body.Close() }()
    assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

    // pings are still accepted while the feed is down
    assert.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/locations", e.rep, map[string]any{"latitude": 1, "longitude": 2}).Code)
}

func TestLocationsWebSocketRequiresAuth(t *testing.T) {
    e := newTestEnv(t)
    srv := httptest.NewServer(e.h)
    defer srv.Close()
    _, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/locations/ws", nil)
    require.Error(t, err)
    require.NotNil(t, resp)
    assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
    e := newTestEnv(t, func(c *config.Config) { c.RateRPS = 0.001; c.RateBurst = 1 })
    assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/dashboard", e.rep, nil).Code)
    rr := e.do(t, http.MethodGet, "/api/dashboard", e.rep, nil)
    assert.Equal(t, http.StatusTooManyRequests, rr.Code)
    assert.Equal(t, "1", rr.Header().Get("Retry-After"))
    // buckets are per caller
    assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/dashboard", e.other, nil).Code)
}

func TestCallerLimiterForgetsIdleCallers(t *testing.T) {
    l := newCallerLimiter(1, 1)
    now := testNow
    l.now = func() time.Time { return now }

    assert.True(t, l.allow(1))
    assert.False(t, l.allow(1))
    assert.True(t, l.allow(2))
    assert.Len(t, l.m, 2)

    // caller 2 stays active; caller 1 goes quiet
    now = now.Add(limiterIdle / 2)
    assert.True(t, l.allow(2))
    now = now.Add(limiterIdle / 2)
    assert.True(t, l.allow(2))
    assert.Len(t, l.m, 1)
    assert.Contains(t, l.m, int64(2))

    var none *callerLimiter
    assert.True(t, none.allow(1))
}

func TestCORSPreflight(t *testing.T) {
    e := newTestEnv(t)
    req := httptest.NewRequest(http.MethodOptions, "/api/customers", nil)
    req.Header.Set("Origin", "http://localhost:3000")
    req.Header.Set("Access-Control-Request-Method", "POST")
    rr := httptest.NewRecorder()
    e.h.ServeHTTP(rr, req)
    assert.Equal(t, http.StatusNoContent, rr.Code)
    assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRouteIsProblem(t *testing.T) {
    e := newTestEnv(t)
    rr := e.do(t, http.MethodGet, "/nope", model.User{}, nil)
    assert.Equal(t, http.StatusNotFound, rr.Code)
    assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}
