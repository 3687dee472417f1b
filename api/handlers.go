/*
handlers.go - HTTP API handlers for the inventory engine

PURPOSE:
  Exposes the inventory service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the inventory and accounts services.

ENDPOINTS:
  Materials:     materials.go
  Products:      products.go
  Records/Stats: records.go
  Users/Login:   users.go
  Scenarios:     scenarios.go

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Inventory: catalog, stock, records and reports
  - Accounts:  users and authentication
  - Log:       request-scoped failures

REQUEST FLOW:
  1. Parse HTTP request (path id, query, JSON body checked against its
     validate tags, see validate.go)
  2. Read the acting user from the X-Actor header
  3. Call the service; it validates, runs one transaction and audits
  4. Serialize the Result envelope

ERROR HANDLING:
  The service error kind picks the HTTP status:
  - 400: validation
  - 401: unauthorized
  - 404: not_found
  - 409: duplicate_name, reference, insufficient_stock, stock_not_zero,
         still_referenced
  - 500: persistence (message is generic, cause goes to the log only)

SECURITY NOTE:
  The actor header is trusted. Session handling sits in front of this API.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/warp/inventory-engine/accounts"
	"github.com/warp/inventory-engine/inventory"
)

// ActorHeader carries the username performing a mutation.
const ActorHeader = "X-Actor"

// maxUpload bounds import workbooks.
const maxUpload = 10 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Inventory *inventory.Service
	Accounts  *accounts.Service
	Log       *zap.Logger
}

// NewHandler creates a handler. A nil logger discards output.
func NewHandler(inv *inventory.Service, acc *accounts.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Inventory: inv, Accounts: acc, Log: log}
}

// Health answers liveness probes.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Result{Success: true, Data: map[string]string{"status": "ok"}})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Result{Success: true, Data: data})
}

func writeCreated(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, Result{Success: true, Data: data})
}

// writeError maps a service error onto the envelope and status code.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := inventory.KindOf(err)
	if kind == inventory.KindPersistence {
		err = inventory.AsPersistence("request", err)
	}
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		h.Log.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeJSON(w, status, Result{Success: false, Kind: string(kind), Message: err.Error()})
}

// badRequest reports malformed input that never reached the service.
func badRequest(w http.ResponseWriter, field, message string) {
	writeJSON(w, http.StatusBadRequest, Result{
		Success: false,
		Kind:    string(inventory.KindValidation),
		Message: (&inventory.ValidationError{Field: field, Message: message}).Error(),
	})
}

func statusFor(kind inventory.ErrorKind) int {
	switch kind {
	case inventory.KindValidation:
		return http.StatusBadRequest
	case inventory.KindUnauthorized:
		return http.StatusUnauthorized
	case inventory.KindNotFound:
		return http.StatusNotFound
	case inventory.KindDuplicateName, inventory.KindReference, inventory.KindInsufficientStock,
		inventory.KindStockNotZero, inventory.KindStillReferenced:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// =============================================================================
// REQUEST HELPERS
// =============================================================================

func actor(r *http.Request) string { return strings.TrimSpace(r.Header.Get(ActorHeader)) }

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		badRequest(w, "body", "invalid JSON: "+err.Error())
		return false
	}
	if err := checkRequest(dst); err != nil {
		var ve *inventory.ValidationError
		if errors.As(err, &ve) {
			badRequest(w, ve.Field, ve.Message)
		} else {
			badRequest(w, "body", err.Error())
		}
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(w, "id", "must be a positive integer")
		return 0, false
	}
	return id, true
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &inventory.ValidationError{Field: name, Message: "must be an integer"}
	}
	return n, nil
}

func queryPage(r *http.Request) (inventory.Page, error) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		return inventory.Page{}, err
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		return inventory.Page{}, err
	}
	return inventory.Page{Offset: offset, Limit: limit}, nil
}

// queryList splits a comma separated parameter, dropping blanks.
func queryList(r *http.Request, name string) []string {
	var out []string
	for _, v := range strings.Split(r.URL.Query().Get(name), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// parseBound accepts RFC 3339 or a calendar date in loc. A date used as an
// upper bound covers the whole day.
func parseBound(field, s string, loc *time.Location, upper bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	d, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return nil, &inventory.ValidationError{Field: field, Message: "must be YYYY-MM-DD or RFC 3339"}
	}
	if upper {
		d = d.AddDate(0, 0, 1).Add(-time.Microsecond)
	}
	return &d, nil
}

// attachment prepares headers for a workbook download.
func attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
}
