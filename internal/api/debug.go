package api

import (
    "net/http"
    "time"

    "fieldcrm/internal/buildinfo"
)

// DebugJSON reports build info and the non-secret parts of the running config.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, http.StatusOK, map[string]any{
        "build":  buildinfo.Current(),
        "time":   s.Now().UTC().Format(time.RFC3339),
        "config": s.Cfg.Redacted(),
    })
}
