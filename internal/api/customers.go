package api

import (
    "fmt"
    "net/http"
    "strconv"
    "strings"

    "github.com/go-chi/chi/v5"

    "fieldcrm/internal/geo"
    "fieldcrm/internal/model"
)

type customerView struct {
    ID        int64    `json:"id"`
    Name      string   `json:"name"`
    Email     string   `json:"email"`
    Phone     string   `json:"phone"`
    Company   string   `json:"company"`
    Lat       *float64 `json:"lat"`
    Lng       *float64 `json:"lng"`
    Stage     string   `json:"stage"`
    CreatedBy int64    `json:"created_by"`
    CreatedAt string   `json:"created_at"`
}

func toCustomerView(c model.Customer) customerView {
    return customerView{
        ID: c.ID, Name: c.Name, Email: c.Email, Phone: c.Phone, Company: c.Company,
        Lat: c.Lat, Lng: c.Lng, Stage: c.Stage, CreatedBy: c.CreatedBy,
        CreatedAt: c.CreatedAt.UTC().Format(model.TimeLayout),
    }
}

type interactionView struct {
    ID         int64  `json:"id"`
    CustomerID int64  `json:"customer_id"`
    UserID     int64  `json:"user_id"`
    Type       string `json:"type"`
    Note       string `json:"note"`
    Timestamp  string `json:"timestamp"`
}

func toInteractionView(in model.Interaction) interactionView {
    return interactionView{
        ID: in.ID, CustomerID: in.CustomerID, UserID: in.UserID, Type: in.Type, Note: in.Note,
        Timestamp: in.Timestamp.UTC().Format(model.TimeLayout),
    }
}

// customerInput is the create body; only name is required.
type customerInput struct {
    Name    string   `json:"name"`
    Email   string   `json:"email"`
    Phone   string   `json:"phone"`
    Company string   `json:"company"`
    Lat     *float64 `json:"lat"`
    Lng     *float64 `json:"lng"`
    Stage   string   `json:"stage"`
}

// validateOptionalCoords checks whichever of lat and lng is present.
func validateOptionalCoords(lat, lng *float64) error {
    p := geo.Point{}
    if lat != nil { p.Lat = *lat }
    if lng != nil { p.Lng = *lng }
    return p.Validate()
}

func pathID(r *http.Request) (int64, error) {
    id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
    if err != nil || id <= 0 {
        return 0, fmt.Errorf("%w: invalid id %q", errBadRequest, chi.URLParam(r, "id"))
    }
    return id, nil
}

// ListCustomersHandler handles GET /api/customers
func (s *Server) ListCustomersHandler(w http.ResponseWriter, r *http.Request) {
    cs, err := s.Gate.Customers(r.Context(), callerFrom(r.Context()))
    if err != nil { s.writeError(w, r, err); return }
    out := make([]customerView, 0, len(cs))
    for _, c := range cs { out = append(out, toCustomerView(c)) }
    writeJSON(w, http.StatusOK, out)
}

// GetCustomerHandler handles GET /api/customers/{id}. Customers outside the caller's
// scope are reported as not found.
func (s *Server) GetCustomerHandler(w http.ResponseWriter, r *http.Request) {
    id, err := pathID(r)
    if err != nil { s.writeError(w, r, err); return }
    c, err := s.Store.GetCustomer(r.Context(), id)
    if err != nil { s.writeError(w, r, err); return }
    if !s.Gate.Allows(callerFrom(r.Context()), c.CreatedBy) {
        writeProblem(w, http.StatusNotFound, "Not Found", "customer not found", r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, toCustomerView(c))
}

// CreateCustomerHandler handles POST /api/customers
func (s *Server) CreateCustomerHandler(w http.ResponseWriter, r *http.Request) {
    var in customerInput
    if err := decodeJSON(w, r, &in); err != nil { s.writeError(w, r, err); return }
    if strings.TrimSpace(in.Name) == "" {
        s.writeError(w, r, fmt.Errorf("%w: name is required", errBadRequest))
        return
    }
    if err := validateOptionalCoords(in.Lat, in.Lng); err != nil { s.writeError(w, r, err); return }
    if in.Stage == "" { in.Stage = model.StageNew }
    c, err := s.Store.CreateCustomer(r.Context(), model.Customer{
        Name: in.Name, Email: in.Email, Phone: in.Phone, Company: in.Company,
        Lat: in.Lat, Lng: in.Lng, Stage: in.Stage,
        CreatedBy: callerFrom(r.Context()).UserID,
        CreatedAt: s.Now().UTC(),
    })
    if err != nil { s.writeError(w, r, err); return }
    writeJSON(w, http.StatusCreated, map[string]any{"id": c.ID, "name": c.Name, "message": "Customer created successfully"})
}

// UpdateCustomerHandler handles PUT /api/customers/{id}; absent fields are left unchanged
// and a null lat or lng clears it.
func (s *Server) UpdateCustomerHandler(w http.ResponseWriter, r *http.Request) {
    id, err := pathID(r)
    if err != nil { s.writeError(w, r, err); return }
    var patch model.CustomerPatch
    if err := decodeJSON(w, r, &patch); err != nil { s.writeError(w, r, err); return }
    if err := validateOptionalCoords(patch.Lat.Value, patch.Lng.Value); err != nil { s.writeError(w, r, err); return }
    if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
        s.writeError(w, r, fmt.Errorf("%w: name cannot be empty", errBadRequest))
        return
    }
    c, err := s.Store.GetCustomer(r.Context(), id)
    if err != nil { s.writeError(w, r, err); return }
    if err := s.Gate.Check(callerFrom(r.Context()), c.CreatedBy); err != nil { s.writeError(w, r, err); return }
    if _, err := s.Store.UpdateCustomer(r.Context(), id, patch); err != nil { s.writeError(w, r, err); return }
    writeJSON(w, http.StatusOK, map[string]string{"message": "Customer updated successfully"})
}

// DeleteCustomerHandler handles DELETE /api/customers/{id}; interactions go with it.
func (s *Server) DeleteCustomerHandler(w http.ResponseWriter, r *http.Request) {
    id, err := pathID(r)
    if err != nil { s.writeError(w, r, err); return }
    c, err := s.Store.GetCustomer(r.Context(), id)
    if err != nil { s.writeError(w, r, err); return }
    if err := s.Gate.Check(callerFrom(r.Context()), c.CreatedBy); err != nil { s.writeError(w, r, err); return }
    if err := s.Store.DeleteCustomer(r.Context(), id); err != nil { s.writeError(w, r, err); return }
    writeJSON(w, http.StatusOK, map[string]string{"message": "Customer deleted successfully"})
}

// ListInteractionsHandler handles GET /api/interactions[?customer_id=N]. The customer
// filter narrows the caller's scope; it never widens it.
func (s *Server) ListInteractionsHandler(w http.ResponseWriter, r *http.Request) {
    var customerID int64
    if v := r.URL.Query().Get("customer_id"); v != "" {
        id, err := strconv.ParseInt(v, 10, 64)
        if err != nil || id <= 0 {
            s.writeError(w, r, fmt.Errorf("%w: invalid customer_id %q", errBadRequest, v))
            return
        }
        customerID = id
    }
    ins, err := s.Gate.Interactions(r.Context(), callerFrom(r.Context()), customerID)
    if err != nil { s.writeError(w, r, err); return }
    out := make([]interactionView, 0, len(ins))
    for _, in := range ins { out = append(out, toInteractionView(in)) }
    writeJSON(w, http.StatusOK, out)
}

// CreateInteractionHandler handles POST /api/interactions
func (s *Server) CreateInteractionHandler(w http.ResponseWriter, r *http.Request) {
    var in model.InteractionInput
    if err := decodeJSON(w, r, &in); err != nil { s.writeError(w, r, err); return }
    if in.CustomerID <= 0 {
        s.writeError(w, r, fmt.Errorf("%w: customer_id is required", errBadRequest))
        return
    }
    if in.Type == "" { in.Type = "note" }
    created, err := s.Store.CreateInteraction(r.Context(), model.Interaction{
        CustomerID: in.CustomerID,
        UserID:     callerFrom(r.Context()).UserID,
        Type:       in.Type,
        Note:       in.Note,
        Timestamp:  s.Now().UTC(),
    })
    if err != nil { s.writeError(w, r, err); return }
    writeJSON(w, http.StatusCreated, map[string]any{"id": created.ID, "message": "Interaction logged successfully"})
}
