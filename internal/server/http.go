package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/karupanerura/series-formula/internal/datasource"
	"github.com/karupanerura/series-formula/internal/expression"
	"github.com/karupanerura/series-formula/internal/types"
)

const basePath = "/v1/evaluations"

type evaluation struct {
	mu sync.RWMutex

	Name      string         `json:"name"`
	Formula   string         `json:"formula"`
	Variables map[string]any `json:"variables,omitempty"`
	StartTime time.Time      `json:"startTime"`
	EndTime   time.Time      `json:"endTime,omitempty"`
	State     string         `json:"state"`
	Type      string         `json:"type,omitempty"`
	Result    any            `json:"result,omitempty"`
	Error     any            `json:"error,omitempty"`
}

type httpHandler struct {
	symbols     atomic.Value
	idBase      uint64
	evaluations sync.Map
	now         func() time.Time
}

func (h *httpHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, basePath) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	if strings.TrimSuffix(r.URL.Path, "/") == basePath {
		switch r.Method {
		case http.MethodGet:
			h.listEvaluations(w, r)
			return

		case http.MethodPost:
			h.createEvaluation(w, r)
			return

		default:
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
	}

	evaluationID := r.URL.Path[strings.LastIndexByte(r.URL.Path, '/')+1:]
	switch r.Method {
	case http.MethodGet:
		h.getEvaluation(w, r, evaluationID)
		return

	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
}

func (h *httpHandler) createEvaluation(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var ev *evaluation
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&ev); err != nil || ev == nil || ev.Formula == "" {
		log.Printf("failed to decode request body: %v", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	symbols := h.symbols.Load().(*types.SymbolTable).ShallowClone()
	if len(ev.Variables) != 0 {
		variables, err := datasource.Decode(ev.Variables)
		if err != nil {
			log.Printf("failed to decode variables: %v", err)
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		variables.Parent = symbols
		symbols = variables
	}

	id := fmt.Sprintf("%012x", atomic.AddUint64(&h.idBase, 1))
	ev.Name = basePath + "/" + id
	ev.StartTime = h.now().UTC()
	ev.State = "ACTIVE"
	h.evaluations.Store(id, ev)
	h.evaluate(ev, symbols)

	ev.mu.RLock()
	defer ev.mu.RUnlock()
	resJSON(w, http.StatusOK, ev)
}

func (h *httpHandler) evaluate(ev *evaluation, symbols *types.SymbolTable) {
	ret, typ, err := func() (any, types.Type, error) {
		expr, err := expression.Compile(ev.Formula, expression.WithSymbols(symbols), expression.WithClock(h.now))
		if err != nil {
			return nil, types.Undetermined, err
		}
		evaluator := &expression.Evaluator{SymbolTable: symbols}
		ret, err := evaluator.EvaluateValue(expr)
		return ret, expr.Type(), err
	}()

	ev.mu.Lock()
	defer ev.mu.Unlock()
	ev.EndTime = h.now().UTC()
	if err == nil {
		ev.State = "SUCCEEDED"
		ev.Type = typ.String()
		ev.Result = types.Present(ret)
		return
	}

	ev.State = "FAILED"
	var exception types.Exception
	if errors.As(err, &exception) {
		ev.Error = exception.Exception()
	} else {
		log.Printf("failed to evaluate formula: %v", err)
		ev.Error = map[string]any{"message": err.Error()}
	}
}

func (h *httpHandler) listEvaluations(w http.ResponseWriter, r *http.Request) {
	results := []*evaluation{}
	h.evaluations.Range(func(key, value any) bool {
		results = append(results, value.(*evaluation))
		return true
	})
	for _, ev := range results {
		ev.mu.RLock()
	}
	defer func() {
		for _, ev := range results {
			ev.mu.RUnlock()
		}
	}()
	sort.Slice(results, func(i, j int) bool {
		return results[i].Name < results[j].Name
	})

	resJSON(w, http.StatusOK, map[string][]*evaluation{"evaluations": results})
}

func (h *httpHandler) getEvaluation(w http.ResponseWriter, r *http.Request, id string) {
	ret, ok := h.evaluations.Load(id)
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	ev := ret.(*evaluation)

	ev.mu.RLock()
	defer ev.mu.RUnlock()
	resJSON(w, http.StatusOK, ev)
}

// NewHTTPHandler serves formula evaluations against the symbols loader
// returns. A positive reloadInterval reloads them periodically until ctx is
// done.
func NewHTTPHandler(ctx context.Context, loader func() (*types.SymbolTable, error), reloadInterval time.Duration, now func() time.Time) (http.Handler, error) {
	symbols, err := loader()
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}

	h := &httpHandler{now: now}
	h.symbols.Store(symbols)
	if reloadInterval > 0 {
		go func() {
			t := time.NewTicker(reloadInterval)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
				}

				symbols, err := loader()
				if err != nil {
					log.Printf("failed to reload data source: %v", err)
					continue
				}
				h.symbols.Store(symbols)
			}
		}()
	}
	return h, nil
}

func resJSON(w http.ResponseWriter, status int, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("json.MarshalIndent: %w", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)+1))
	w.WriteHeader(status)

	if _, err = w.Write(b); err != nil {
		return fmt.Errorf("w.Write: %w", err)
	}
	if _, err = io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("io.WriteString: %w", err)
	}
	return nil
}
