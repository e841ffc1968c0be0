package api

import (
    "fmt"
    "net/http"

    "github.com/xuri/excelize/v2"
    "go.uber.org/zap"
)

const routeSheet = "Route"

var routeHeader = []any{"Seq", "Customer ID", "Customer", "Company", "Lat", "Lng", "Leg km", "Leg minutes"}

// RouteExportHandler handles POST /api/route-planning/export, returning the same plan as
// /api/route-planning as an xlsx workbook.
func (s *Server) RouteExportHandler(w http.ResponseWriter, r *http.Request) {
    plan, err := s.planRoute(w, r)
    if err != nil { s.writeError(w, r, err); return }

    f := excelize.NewFile()
    defer func() { _ = f.Close() }()
    if err := f.SetSheetName("Sheet1", routeSheet); err != nil { s.writeError(w, r, err); return }

    rows := [][]any{
        routeHeader,
        {0, nil, "Start", "", plan.StartingLocation.Lat, plan.StartingLocation.Lng, nil, nil},
    }
    for i, leg := range plan.Route {
        rows = append(rows, []any{
            i + 1, leg.CustomerID, leg.CustomerName, leg.CustomerCompany,
            leg.Lat, leg.Lng, leg.DistanceFromPreviousKm, leg.EstimatedTimeMinutes,
        })
    }
    rows = append(rows, []any{"Total", nil, nil, nil, nil, nil, plan.TotalDistanceKm, plan.TotalEstimatedTimeMinutes})

    for i, row := range rows {
        cell, err := excelize.CoordinatesToCellName(1, i+1)
        if err != nil { s.writeError(w, r, err); return }
        if err := f.SetSheetRow(routeSheet, cell, &row); err != nil {
            s.writeError(w, r, fmt.Errorf("write row %d: %w", i+1, err))
            return
        }
    }

    w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
    w.Header().Set("Content-Disposition", `attachment; filename="route.xlsx"`)
    w.WriteHeader(http.StatusOK)
    if err := f.Write(w); err != nil {
        s.Log.Warn("xlsx write failed", zap.String("request_id", requestID(r.Context())), zap.Error(err))
    }
}
