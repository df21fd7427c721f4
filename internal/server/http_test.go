package server_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"github.com/karupanerura/series-formula/internal/datasource"
	"github.com/karupanerura/series-formula/internal/server"
	"github.com/karupanerura/series-formula/internal/types"
)

func newHandler(t *testing.T) http.Handler {
	t.Helper()

	loader := func() (*types.SymbolTable, error) {
		return datasource.ParseYAML(strings.NewReader("revenue: [1, 2, 3]\ncost: 2.5\n"))
	}
	now := func() time.Time {
		return time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h, err := server.NewHTTPHandler(ctx, loader, 0, now)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, map[string]any) {
	t.Helper()

	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		return w.Code, nil
	}
	var res map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return w.Code, res
}

func TestEvaluations(t *testing.T) {
	t.Parallel()

	h := newHandler(t)

	for _, tt := range []struct {
		body   string
		state  string
		typ    string
		result any
		tags   []any
	}{
		{body: `{"formula": "sum(revenue) * cost"}`, state: "SUCCEEDED", typ: "real", result: 15.0},
		{body: `{"formula": "sum(revenue) + x", "variables": {"x": 1}}`, state: "SUCCEEDED", typ: "real", result: 7.0},
		{body: `{"formula": "complex(1, -2)"}`, state: "SUCCEEDED", typ: "complex", result: map[string]any{"re": 1.0, "im": -2.0}},
		{body: `{"formula": "19@oct26 + 1"}`, state: "SUCCEEDED", typ: "date", result: "2026-10-20"},
		{body: `{"formula": "1 +"}`, state: "FAILED", tags: []any{"SyntaxError"}},
		{body: `{"formula": "revenue[3]"}`, state: "FAILED", tags: []any{"IndexError"}},
	} {
		code, res := do(t, h, http.MethodPost, "/v1/evaluations", tt.body)
		if code != http.StatusOK {
			t.Errorf("%s: unexpected status %d", tt.body, code)
			continue
		}
		if res["state"] != tt.state {
			t.Errorf("%s: expect %s but got %v", tt.body, tt.state, res)
			continue
		}
		if tt.state == "SUCCEEDED" {
			if res["type"] != tt.typ || !cmp.Equal(tt.result, res["result"]) {
				t.Errorf("%s: expect %s %v but got %v", tt.body, tt.typ, tt.result, res)
			}
			continue
		}
		exception, _ := res["error"].(map[string]any)
		if !cmp.Equal(tt.tags, exception["tags"]) {
			t.Errorf("%s: expect %v but got %v", tt.body, tt.tags, res["error"])
		}
	}

	_, res := do(t, h, http.MethodGet, "/v1/evaluations", "")
	evaluations, _ := res["evaluations"].([]any)
	if len(evaluations) != 6 {
		t.Fatalf("expect 6 evaluations but got %d", len(evaluations))
	}
	first := evaluations[0].(map[string]any)
	if first["name"] != "/v1/evaluations/000000000001" || first["formula"] != "sum(revenue) * cost" {
		t.Errorf("unexpected first evaluation: %v", first)
	}

	_, res = do(t, h, http.MethodGet, "/v1/evaluations/000000000002", "")
	if res["result"] != 7.0 {
		t.Errorf("unexpected evaluation: %v", res)
	}
}

func TestEvaluationsVariablesDoNotLeak(t *testing.T) {
	t.Parallel()

	h := newHandler(t)
	if _, res := do(t, h, http.MethodPost, "/v1/evaluations", `{"formula": "set cost = 1.0"}`); res["state"] != "SUCCEEDED" {
		t.Fatalf("unexpected response: %v", res)
	}
	if _, res := do(t, h, http.MethodPost, "/v1/evaluations", `{"formula": "cost"}`); res["result"] != 2.5 {
		t.Errorf("set leaked into the data source: %v", res)
	}
}

func TestEvaluationsErrors(t *testing.T) {
	t.Parallel()

	h := newHandler(t)
	for _, tt := range []struct {
		method   string
		path     string
		body     string
		expected int
	}{
		{method: http.MethodGet, path: "/v1/other", expected: http.StatusNotFound},
		{method: http.MethodGet, path: "/v1/evaluations/unknown", expected: http.StatusNotFound},
		{method: http.MethodDelete, path: "/v1/evaluations", expected: http.StatusMethodNotAllowed},
		{method: http.MethodPost, path: "/v1/evaluations/1", body: "{}", expected: http.StatusMethodNotAllowed},
		{method: http.MethodPost, path: "/v1/evaluations", body: "{", expected: http.StatusBadRequest},
		{method: http.MethodPost, path: "/v1/evaluations", body: `{"formula": ""}`, expected: http.StatusBadRequest},
		{method: http.MethodPost, path: "/v1/evaluations", body: `{"formula": "x", "variables": {"x": null}}`, expected: http.StatusBadRequest},
	} {
		if code, _ := do(t, h, tt.method, tt.path, tt.body); code != tt.expected {
			t.Errorf("%s %s: expect %d but got %d", tt.method, tt.path, tt.expected, code)
		}
	}
}

func TestReloadStopsWithContext(t *testing.T) {
	t.Parallel()

	var loads int64
	loader := func() (*types.SymbolTable, error) {
		n := atomic.AddInt64(&loads, 1)
		return datasource.ParseYAML(strings.NewReader(fmt.Sprintf("version: %d\n", n)))
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h, err := server.NewHTTPHandler(ctx, loader, 5*time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for atomic.LoadInt64(&loads) < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if _, res := do(t, h, http.MethodPost, "/v1/evaluations", `{"formula": "version > 1"}`); res["result"] != true {
		t.Errorf("reloaded symbols are not served: %v", res)
	}

	cancel()
	time.Sleep(50 * time.Millisecond)
	stopped := atomic.LoadInt64(&loads)
	time.Sleep(50 * time.Millisecond)
	if actual := atomic.LoadInt64(&loads); actual != stopped {
		t.Errorf("reloading continued after cancel: %d -> %d", stopped, actual)
	}
}
