package api

import (
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"

    "go.uber.org/zap"

    "fieldcrm/internal/access"
    "fieldcrm/internal/geo"
    "fieldcrm/internal/routing"
    "fieldcrm/internal/store"
)

// Problem represents an RFC7807 problem details response body. Message repeats Detail
// (or Title) for clients that read a flat message field.
type Problem struct {
    Type     string `json:"type"`
    Title    string `json:"title"`
    Status   int    `json:"status"`
    Detail   string `json:"detail,omitempty"`
    Instance string `json:"instance,omitempty"`
    Message  string `json:"message"`
}

// errBadRequest marks request bodies that could not be decoded or failed validation.
var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
    msg := detail
    if msg == "" {
        msg = title
    }
    w.Header().Set("Content-Type", "application/problem+json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(Problem{
        Type:     "about:blank",
        Title:    title,
        Status:   status,
        Detail:   detail,
        Instance: instance,
        Message:  msg,
    })
}

// writeError maps domain errors to problem responses. Unclassified errors are logged and
// reported as 500 without leaking their text.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
    path := r.URL.Path
    switch {
    case errors.Is(err, access.ErrUnauthorized):
        writeProblem(w, http.StatusUnauthorized, "Unauthorized", "missing or invalid credentials", path)
    case errors.Is(err, routing.ErrNoLocationAvailable),
        errors.Is(err, routing.ErrNoCustomersSelected):
        writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error(), path)
    case errors.Is(err, geo.ErrInvalidCoordinate):
        writeProblem(w, http.StatusBadRequest, "Invalid coordinate", err.Error(), path)
    case errors.Is(err, errBadRequest):
        writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error(), path)
    case errors.Is(err, access.ErrForbidden):
        writeProblem(w, http.StatusForbidden, "Forbidden", "permission denied", path)
    case errors.Is(err, store.ErrNotFound):
        writeProblem(w, http.StatusNotFound, "Not Found", err.Error(), path)
    default:
        s.Log.Error("request failed", zap.String("path", path), zap.String("request_id", requestID(r.Context())), zap.Error(err))
        writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "", path)
    }
}

// decodeJSON reads one JSON value from the body. Failures wrap errBadRequest.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
    body := http.MaxBytesReader(w, r.Body, 1<<20)
    if err := json.NewDecoder(body).Decode(v); err != nil {
        if errors.Is(err, io.EOF) {
            return fmt.Errorf("%w: empty body", errBadRequest)
        }
        return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
    }
    return nil
}
