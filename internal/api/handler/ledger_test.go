package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/chainledger/internal/api/handler"
	"github.com/jmerrifield20/chainledger/internal/identity"
	"github.com/jmerrifield20/chainledger/internal/ledger"
	"go.uber.org/zap"
)

func setupLedgerRouter(t *testing.T, tokens *identity.TokenIssuer) (*gin.Engine, *ledger.ChainLedger) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handler.RequestID())

	l, err := ledger.New(ledger.Config{}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	h := handler.NewLedgerHandler(l, zap.NewNop())
	h.SetTokenIssuer(tokens)
	v1 := r.Group("/api/v1")
	h.Register(v1)
	return r, l
}

func do(router *gin.Engine, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return resp
}

func appendPayloads(t *testing.T, router *gin.Engine, payloads ...string) {
	t.Helper()
	for _, p := range payloads {
		w := do(router, http.MethodPost, "/api/v1/ledger/records", map[string]string{"payload": p}, nil)
		if w.Code != http.StatusCreated {
			t.Fatalf("append %q: expected 201, got %d: %s", p, w.Code, w.Body.String())
		}
	}
}

func TestLedgerOverview_200(t *testing.T) {
	router, _ := setupLedgerRouter(t, nil)

	w := do(router, http.MethodGet, "/api/v1/ledger", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := decode(t, w)
	if records := int(resp["records"].(float64)); records != 1 {
		t.Errorf("expected 1 record (genesis), got %d", records)
	}
	if resp["digest"] != "xxhash" {
		t.Errorf("digest: got %v, want xxhash", resp["digest"])
	}
	if resp["root"] == "" {
		t.Error("root should not be empty")
	}
}

func TestLedgerAppend_201(t *testing.T) {
	router, l := setupLedgerRouter(t, nil)

	w := do(router, http.MethodPost, "/api/v1/ledger/records", map[string]string{"payload": "hello"}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if int(resp["index"].(float64)) != 1 {
		t.Errorf("index: got %v, want 1", resp["index"])
	}
	if resp["payload"] != "hello" {
		t.Errorf("payload: got %v, want hello", resp["payload"])
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID response header")
	}

	n, _ := l.Len(t.Context())
	if n != 2 {
		t.Errorf("ledger length: got %d, want 2", n)
	}
}

func TestLedgerAppend_emptyPayload(t *testing.T) {
	router, _ := setupLedgerRouter(t, nil)

	w := do(router, http.MethodPost, "/api/v1/ledger/records", map[string]string{"payload": ""}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 for empty payload, got %d", w.Code)
	}
}

func TestLedgerAppend_400_missingPayload(t *testing.T) {
	router, _ := setupLedgerRouter(t, nil)

	w := do(router, http.MethodPost, "/api/v1/ledger/records", map[string]string{"data": "x"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestLedgerAppend_requiresToken(t *testing.T) {
	tokens, err := identity.NewTokenIssuer("secret", "test", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	router, _ := setupLedgerRouter(t, tokens)
	body := map[string]string{"payload": "guarded"}

	if w := do(router, http.MethodPost, "/api/v1/ledger/records", body, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: expected 401, got %d", w.Code)
	}

	readOnly, _ := tokens.Issue("viewer", []string{"ledger:read"})
	h := http.Header{"Authorization": {"Bearer " + readOnly}}
	if w := do(router, http.MethodPost, "/api/v1/ledger/records", body, h); w.Code != http.StatusForbidden {
		t.Errorf("wrong scope: expected 403, got %d", w.Code)
	}

	writer, _ := tokens.Issue("ops", []string{identity.ScopeAppend})
	h = http.Header{"Authorization": {"Bearer " + writer}}
	if w := do(router, http.MethodPost, "/api/v1/ledger/records", body, h); w.Code != http.StatusCreated {
		t.Errorf("valid token: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	// Reads stay public.
	if w := do(router, http.MethodGet, "/api/v1/ledger/verify", nil, nil); w.Code != http.StatusOK {
		t.Errorf("verify without token: expected 200, got %d", w.Code)
	}
}

func TestLedgerListRecords_200(t *testing.T) {
	router, _ := setupLedgerRouter(t, nil)
	appendPayloads(t, router, "a", "b", "c")

	w := do(router, http.MethodGet, "/api/v1/ledger/records?from=1&limit=2", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Records []struct {
			Index   int    `json:"index"`
			Payload string `json:"payload"`
		} `json:"records"`
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 2 || len(resp.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(resp.Records))
	}
	if resp.Records[0].Index != 1 || resp.Records[1].Payload != "b" {
		t.Errorf("unexpected records %+v", resp.Records)
	}
}

func TestLedgerListRecords_hugeLimit(t *testing.T) {
	router, _ := setupLedgerRouter(t, nil)
	appendPayloads(t, router, "a")

	w := do(router, http.MethodGet, "/api/v1/ledger/records?from=1&limit=9223372036854775807", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if count := int(decode(t, w)["count"].(float64)); count != 1 {
		t.Errorf("count: got %d, want 1", count)
	}
}

func TestLedgerListRecords_400(t *testing.T) {
	router, _ := setupLedgerRouter(t, nil)

	for _, q := range []string{"from=-1", "from=x", "limit=-5"} {
		w := do(router, http.MethodGet, "/api/v1/ledger/records?"+q, nil, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, w.Code)
		}
	}
}

func TestLedgerGetRecord_200_genesis(t *testing.T) {
	router, _ := setupLedgerRouter(t, nil)

	w := do(router, http.MethodGet, "/api/v1/ledger/records/0", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["prev_digest"] != "0" {
		t.Errorf("genesis prev_digest: got %v, want \"0\"", resp["prev_digest"])
	}
}

func TestLedgerGetRecord_404(t *testing.T) {
	router, _ := setupLedgerRouter(t, nil)

	w := do(router, http.MethodGet, "/api/v1/ledger/records/999", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestLedgerGetRecord_400_invalidIdx(t *testing.T) {
	router, _ := setupLedgerRouter(t, nil)

	w := do(router, http.MethodGet, "/api/v1/ledger/records/abc", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestLedgerVerify_200(t *testing.T) {
	router, _ := setupLedgerRouter(t, nil)
	appendPayloads(t, router, "a", "b")

	w := do(router, http.MethodGet, "/api/v1/ledger/verify", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp := decode(t, w); resp["valid"] != true {
		t.Errorf("expected valid=true, got %v", resp["valid"])
	}
}

func TestLedgerAnalysis_200(t *testing.T) {
	router, _ := setupLedgerRouter(t, nil)
	appendPayloads(t, router, "x", "y", "x")

	w := do(router, http.MethodGet, "/api/v1/ledger/analysis", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Records      int            `json:"records"`
		Distribution map[string]int `json:"distribution"`
		Intervals    int            `json:"intervals"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Records != 4 || resp.Intervals != 3 {
		t.Errorf("records=%d intervals=%d, want 4 and 3", resp.Records, resp.Intervals)
	}
	want := map[string]int{"Genesis Block": 1, "x": 2, "y": 1}
	for k, v := range want {
		if resp.Distribution[k] != v {
			t.Errorf("distribution[%q]: got %d, want %d", k, resp.Distribution[k], v)
		}
	}
}

func TestLedgerSearch(t *testing.T) {
	router, _ := setupLedgerRouter(t, nil)
	appendPayloads(t, router, "A", "B", "A")

	w := do(router, http.MethodGet, "/api/v1/ledger/search?payload=A", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if idx := int(decode(t, w)["index"].(float64)); idx != 1 {
		t.Errorf("index: got %d, want 1", idx)
	}

	if w := do(router, http.MethodGet, "/api/v1/ledger/search?payload=C", nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("miss: expected 404, got %d", w.Code)
	}
	if w := do(router, http.MethodGet, "/api/v1/ledger/search", nil, nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing query: expected 400, got %d", w.Code)
	}
}
