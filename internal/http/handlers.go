package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"piecework/internal/core"
	applog "piecework/internal/log"
)

var dayKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors onto HTTP statuses. Unknown
// errors become an opaque 500; the detail stays in the logs.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrNotAdmin):
		writeError(w, http.StatusForbidden, "admin privileges required")
	case errors.Is(err, core.ErrInvalidQuantity):
		writeError(w, http.StatusUnprocessableEntity, "quantity must be a whole non-negative number")
	case errors.Is(err, core.ErrInvalidRate):
		writeError(w, http.StatusUnprocessableEntity, "rate must be a non-negative number")
	case errors.Is(err, core.ErrEmptyProduct):
		writeError(w, http.StatusUnprocessableEntity, "product name cannot be empty")
	case errors.Is(err, core.ErrNoRates):
		writeError(w, http.StatusNotFound, "no rates configured")
	case errors.Is(err, core.ErrNoSession):
		writeError(w, http.StatusConflict, "no entry session open")
	case errors.Is(err, core.ErrSessionState):
		writeError(w, http.StatusConflict, "entry session is not at this step")
	default:
		slog.ErrorContext(r.Context(), "Request failed",
			applog.FieldPath, r.URL.Path,
			applog.FieldComponent, applog.ComponentHTTP,
			applog.FieldError, err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// requireUser extracts the gateway-forwarded identity. The user id is
// mandatory; username and full name are whatever the chat platform had.
func requireUser(w http.ResponseWriter, r *http.Request) (core.User, bool) {
	raw := r.FormValue("user_id")
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "user_id must be a positive integer")
		return core.User{}, false
	}
	return core.User{
		ID:       id,
		Username: strings.TrimSpace(r.FormValue("username")),
		FullName: strings.TrimSpace(r.FormValue("full_name")),
	}, true
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

type rateResponse struct {
	Product string `json:"product"`
	Rate    string `json:"rate"`
}

type entryResponse struct {
	ID       int64  `json:"id"`
	Product  string `json:"product"`
	Qty      int64  `json:"qty"`
	Rate     string `json:"rate"`
	Amount   string `json:"amount"`
	WorkDate string `json:"work_date"`
}

func rateList(rates []core.Rate) []rateResponse {
	out := make([]rateResponse, 0, len(rates))
	for _, r := range rates {
		out = append(out, rateResponse{Product: r.Product, Rate: r.PerUnit.String()})
	}
	return out
}

func (s *Server) handleEntryStart(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	rates, err := s.service.StartEntry(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state": "awaiting_product",
		"rates": rateList(rates),
	})
}

func (s *Server) handleEntrySelect(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	product := r.FormValue("product")
	if err := s.service.SelectProduct(r.Context(), user.ID, product); err != nil {
		writeServiceError(w, r, err)
		return
	}
	state := "awaiting_quantity"
	if strings.TrimSpace(product) == "cancel" {
		state = "cancelled"
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": state})
}

func (s *Server) handleEntryQuantity(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	entry, err := s.service.SubmitQuantity(r.Context(), user, r.FormValue("quantity"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entryResponse{
		ID:       entry.ID,
		Product:  entry.Product,
		Qty:      entry.Qty,
		Rate:     entry.Rate.String(),
		Amount:   entry.Amount.String(),
		WorkDate: entry.WorkDate,
	})
}

func (s *Server) handleEntryCancel(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	s.service.Cancel(r.Context(), user.ID)
	writeJSON(w, http.StatusOK, map[string]string{"state": "cancelled"})
}

// handleRates lists the rate table on GET and upserts one rate on POST.
func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rates, err := s.service.Rates(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"rates": rateList(rates)})

	case http.MethodPost:
		user, ok := requireUser(w, r)
		if !ok {
			return
		}
		rate, err := s.service.SetRate(r.Context(), user, r.FormValue("product"), r.FormValue("rate"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rateResponse{
			Product: strings.TrimSpace(r.FormValue("product")),
			Rate:    rate.String(),
		})

	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleDayTotal(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date != "" && !dayKeyPattern.MatchString(date) {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	total, err := s.service.DayTotal(r.Context(), user.ID, date)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"user_id": strconv.FormatInt(user.ID, 10),
		"total":   total.StringFixed(2),
	})
}

func (s *Server) handleWeekTotal(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	total, from, to, err := s.service.WeekTotal(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"user_id": strconv.FormatInt(user.ID, 10),
		"from":    from,
		"to":      to,
		"total":   total.StringFixed(2),
	})
}

func (s *Server) handleWeekExport(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.service.WeekExportCSV(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	data, err := s.service.BackupSnapshot(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="piecework-backup.db"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
