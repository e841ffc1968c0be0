package api

import (
    "fmt"
    "net/http"
    "time"

    "github.com/gorilla/websocket"
    "go.uber.org/zap"

    "fieldcrm/internal/access"
    "fieldcrm/internal/geo"
    "fieldcrm/internal/metrics"
    "fieldcrm/internal/model"
)

const eventLocationUpdated = "location.updated"

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// LatestLocation is the wire form of a user's most recent ping.
type LatestLocation struct {
    UserID    int64   `json:"user_id"`
    Name      string  `json:"name"`
    Latitude  float64 `json:"latitude"`
    Longitude float64 `json:"longitude"`
    Timestamp string  `json:"timestamp"`
}

func locationEvent(loc model.Location) Event {
    return Event{Type: eventLocationUpdated, Data: map[string]any{
        "user_id":   loc.UserID,
        "latitude":  loc.Latitude,
        "longitude": loc.Longitude,
        "timestamp": loc.Timestamp.UTC().Format(model.TimeLayout),
    }}
}

// eventUserID reads user_id from an event that may have crossed a JSON boundary.
func eventUserID(evt Event) (int64, bool) {
    switch v := evt.Data["user_id"].(type) {
    case int64:
        return v, true
    case float64:
        return int64(v), true
    }
    return 0, false
}

// UpdateLocationHandler handles POST /api/locations. The ping is stamped with server time.
func (s *Server) UpdateLocationHandler(w http.ResponseWriter, r *http.Request) {
    var in model.LocationInput
    if err := decodeJSON(w, r, &in); err != nil { s.writeError(w, r, err); return }
    if in.Latitude == nil || in.Longitude == nil {
        s.writeError(w, r, fmt.Errorf("%w: latitude and longitude are required", geo.ErrInvalidCoordinate))
        return
    }
    if err := (geo.Point{Lat: *in.Latitude, Lng: *in.Longitude}).Validate(); err != nil {
        s.writeError(w, r, err)
        return
    }
    loc, err := s.Store.AppendLocation(r.Context(), model.Location{
        UserID:    callerFrom(r.Context()).UserID,
        Latitude:  *in.Latitude,
        Longitude: *in.Longitude,
        Timestamp: s.Now().UTC(),
    })
    if err != nil { s.writeError(w, r, err); return }
    metrics.LocationPings.Inc()
    s.Broker.Publish(topicLocations, locationEvent(loc))
    writeJSON(w, http.StatusCreated, map[string]string{"message": "Location updated successfully"})
}

// ListLocationsHandler handles GET /api/locations: the latest ping of each visible user.
func (s *Server) ListLocationsHandler(w http.ResponseWriter, r *http.Request) {
    locs, err := s.Gate.LatestLocations(r.Context(), callerFrom(r.Context()))
    if err != nil { s.writeError(w, r, err); return }
    out := make([]LatestLocation, 0, len(locs))
    for _, l := range locs {
        out = append(out, LatestLocation{
            UserID: l.UserID, Name: l.Name, Latitude: l.Latitude, Longitude: l.Longitude,
            Timestamp: l.Timestamp.UTC().Format(model.TimeLayout),
        })
    }
    writeJSON(w, http.StatusOK, out)
}

// LocationsWSHandler handles GET /api/locations/ws, streaming location.updated events for
// users the caller may see. The subscription is taken before the upgrade so no event
// published after the handshake is missed, and a failed subscription is answered with
// 503 instead of an upgraded connection.
func (s *Server) LocationsWSHandler(w http.ResponseWriter, r *http.Request) {
    caller := callerFrom(r.Context())
    ch, err := s.Broker.Subscribe(topicLocations)
    if err != nil {
        s.Log.Warn("location feed subscribe failed", zap.String("request_id", requestID(r.Context())), zap.Error(err))
        writeProblem(w, http.StatusServiceUnavailable, "Service Unavailable", "live location feed unavailable", r.URL.Path)
        return
    }
    defer s.Broker.Unsubscribe(topicLocations, ch)

    conn, err := upgrader.Upgrade(w, r, nil)
    if err != nil {
        return
    }
    defer func() { _ = conn.Close() }()

    // Read loop only watches for the client going away.
    done := make(chan struct{})
    conn.SetReadLimit(1 << 10)
    _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
    conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })
    go func() {
        defer close(done)
        for {
            if _, _, err := conn.ReadMessage(); err != nil {
                return
            }
        }
    }()

    ticker := time.NewTicker(20 * time.Second)
    defer ticker.Stop()
    for {
        select {
        case <-done:
            return
        case <-r.Context().Done():
            return
        case <-ticker.C:
            if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
                return
            }
        case evt, ok := <-ch:
            if !ok {
                return
            }
            if !s.visible(caller, evt) {
                continue
            }
            _ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
            if err := conn.WriteJSON(evt); err != nil {
                s.Log.Debug("ws write failed", zap.Int64("user_id", caller.UserID), zap.Error(err))
                return
            }
        }
    }
}

func (s *Server) visible(c access.Caller, evt Event) bool {
    uid, ok := eventUserID(evt)
    return ok && s.Gate.Allows(c, uid)
}
