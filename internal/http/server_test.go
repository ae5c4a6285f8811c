package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"piecework/internal/auth"
	"piecework/internal/services"
	"piecework/internal/storage"
)

const testToken = "test-token"

func newTestServer(t *testing.T, az *auth.Authorizer) *Server {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "http.db"))
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	if az == nil {
		az = auth.New(nil, nil)
	}
	svc := services.NewPieceworkService(repo, az, nil, time.UTC)
	srv := NewServer(":0", svc, testToken)
	t.Cleanup(func() { srv.rateLimiter.stop() })
	return srv
}

func doForm(t *testing.T, srv *Server, method, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if method == http.MethodPost {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path+"?"+form.Encode(), nil)
	}
	req.Header.Set("X-Gateway-Token", testToken)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func identity(id string) url.Values {
	return url.Values{
		"user_id":   {id},
		"username":  {"anna"},
		"full_name": {"Anna B"},
	}
}

func TestHealthEndpointsSkipAuth(t *testing.T) {
	srv := newTestServer(t, nil)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rr.Code)
		}
	}
}

func TestGatewayTokenRequired(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/rates", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d, want 401", rr.Code)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/rates", nil)
	req.Header.Set("X-Gateway-Token", "wrong")
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token status = %d, want 401", rr.Code)
	}
}

func TestFullEntryFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t, nil)

	form := identity("1")
	form.Set("product", "Gloves")
	form.Set("rate", "3.0")
	if rr := doForm(t, srv, http.MethodPost, "/rates", form); rr.Code != http.StatusOK {
		t.Fatalf("set rate status = %d: %s", rr.Code, rr.Body)
	}

	rr := doForm(t, srv, http.MethodPost, "/entry/start", identity("42"))
	if rr.Code != http.StatusOK {
		t.Fatalf("start status = %d: %s", rr.Code, rr.Body)
	}
	var started struct {
		State string         `json:"state"`
		Rates []rateResponse `json:"rates"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &started); err != nil {
		t.Fatalf("decode start: %v", err)
	}
	if started.State != "awaiting_product" || len(started.Rates) != 1 {
		t.Fatalf("start response = %+v", started)
	}

	form = identity("42")
	form.Set("product", "Gloves")
	if rr := doForm(t, srv, http.MethodPost, "/entry/select", form); rr.Code != http.StatusOK {
		t.Fatalf("select status = %d: %s", rr.Code, rr.Body)
	}

	form = identity("42")
	form.Set("quantity", "25")
	rr = doForm(t, srv, http.MethodPost, "/entry/quantity", form)
	if rr.Code != http.StatusOK {
		t.Fatalf("quantity status = %d: %s", rr.Code, rr.Body)
	}
	var entry entryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry.Amount != "75" || entry.Qty != 25 {
		t.Fatalf("entry = %+v", entry)
	}

	rr = doForm(t, srv, http.MethodGet, "/totals/day", identity("42"))
	if rr.Code != http.StatusOK {
		t.Fatalf("day total status = %d: %s", rr.Code, rr.Body)
	}
	if !strings.Contains(rr.Body.String(), `"total":"75.00"`) {
		t.Fatalf("day total body = %s", rr.Body)
	}
}

func TestEntryQuantityRejectsGarbage(t *testing.T) {
	srv := newTestServer(t, nil)

	form := identity("1")
	form.Set("product", "Gloves")
	form.Set("rate", "3.0")
	doForm(t, srv, http.MethodPost, "/rates", form)

	doForm(t, srv, http.MethodPost, "/entry/start", identity("42"))
	form = identity("42")
	form.Set("product", "Gloves")
	doForm(t, srv, http.MethodPost, "/entry/select", form)

	form = identity("42")
	form.Set("quantity", "lots")
	rr := doForm(t, srv, http.MethodPost, "/entry/quantity", form)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("garbage quantity status = %d, want 422", rr.Code)
	}

	// Session survived; a valid retry commits.
	form.Set("quantity", "10")
	if rr := doForm(t, srv, http.MethodPost, "/entry/quantity", form); rr.Code != http.StatusOK {
		t.Fatalf("retry status = %d: %s", rr.Code, rr.Body)
	}
}

func TestQuantityWithoutSessionConflicts(t *testing.T) {
	srv := newTestServer(t, nil)
	form := identity("42")
	form.Set("quantity", "5")
	rr := doForm(t, srv, http.MethodPost, "/entry/quantity", form)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
}

func TestStartWithNoRates(t *testing.T) {
	srv := newTestServer(t, nil)
	rr := doForm(t, srv, http.MethodPost, "/entry/start", identity("42"))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestSetRateForbiddenForNonAdmin(t *testing.T) {
	srv := newTestServer(t, auth.New([]int64{1}, nil))

	form := identity("7")
	form.Set("product", "Gloves")
	form.Set("rate", "3.0")
	rr := doForm(t, srv, http.MethodPost, "/rates", form)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
}

func TestWeekExportContentType(t *testing.T) {
	srv := newTestServer(t, nil)
	rr := doForm(t, srv, http.MethodGet, "/export/week.csv", identity("42"))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type = %s", ct)
	}
	if !strings.HasPrefix(rr.Body.String(), "user_id;full_name;total_amount") {
		t.Fatalf("body = %q", rr.Body)
	}
}

func TestBadUserIDRejected(t *testing.T) {
	srv := newTestServer(t, nil)
	form := url.Values{"user_id": {"abc"}}
	rr := doForm(t, srv, http.MethodPost, "/entry/start", form)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, nil)
	rr := doForm(t, srv, http.MethodGet, "/entry/start", identity("42"))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rr.Code)
	}
}
