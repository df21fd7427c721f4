package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/jessevdk/go-flags"
	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"github.com/karupanerura/series-formula/internal/datasource"
	"github.com/karupanerura/series-formula/internal/defaults"
	"github.com/karupanerura/series-formula/internal/expression"
	"github.com/karupanerura/series-formula/internal/scanner"
	"github.com/karupanerura/series-formula/internal/server"
	"github.com/karupanerura/series-formula/internal/token"
	"github.com/karupanerura/series-formula/internal/types"
)

type Option struct {
	Exprs  []string `short:"e" long:"expr" description:"[REQUIRED unless --listen or --repl] Formula to evaluate (repeatable)"`
	Data   string   `short:"d" long:"data" description:"[OPTIONAL] Named series and variables (YAML or JSON)" required:"false"`
	Tokens bool     `long:"tokens" description:"[OPTIONAL] Dump tokens instead of evaluating"`
	Today  string   `long:"today" description:"[OPTIONAL] Date two-digit years are resolved against (YYYY-MM-DD)" required:"false"`
	Listen string   `short:"l" long:"listen" description:"[OPTIONAL] Listen host and port to serve evaluations" required:"false"`
	REPL   bool     `long:"repl" description:"[OPTIONAL] Read formulas interactively"`
}

type result struct {
	Formula string `json:"formula"`
	Type    string `json:"type,omitempty"`
	Value   any    `json:"value,omitempty"`
	Tokens  []any  `json:"tokens,omitempty"`
	Error   any    `json:"error,omitempty"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var opt Option
	parser := flags.NewParser(&opt, flags.Default)
	_, err := parser.ParseArgs(args)
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return 0
		} else {
			parser.WriteHelp(stdout)
			return 1
		}
	}
	modes := 0
	for _, on := range []bool{len(opt.Exprs) != 0, opt.Listen != "", opt.REPL} {
		if on {
			modes++
		}
	}
	if modes != 1 {
		parser.WriteHelp(stdout)
		return 1
	}

	now := time.Now
	if opt.Today != "" {
		today, err := types.ParseDate(opt.Today)
		if err != nil {
			log.Printf("invalid --today: %v", err)
			return 1
		}
		now = func() time.Time { return today.Time() }
	}

	// server mode
	if opt.Listen != "" {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		err = serveEvaluations(ctx, opt.Listen, func() (*types.SymbolTable, error) {
			return loadSymbols(opt.Data)
		}, now)
		if err != nil {
			log.Printf("failed to serve evaluations: %v", err)
			return 1
		}
		return 0
	}

	symbols, err := loadSymbols(opt.Data)
	if err != nil {
		log.Printf("failed to load data source: %v", err)
		return 1
	}
	if opt.REPL {
		return runREPL(symbols, now, stdout)
	}

	// every formula gets its own scanner, scope stack and symbol table
	results := make([]*result, len(opt.Exprs))
	var eg errgroup.Group
	for i, source := range opt.Exprs {
		i, source := i, source
		eg.Go(func() error {
			if opt.Tokens {
				results[i] = dumpTokens(source, now)
			} else {
				results[i] = evaluate(source, symbols.ShallowClone(), now)
			}
			return nil
		})
	}
	_ = eg.Wait()

	status := 0
	for _, r := range results {
		if r.Error != nil {
			status = 1
		}
	}
	if err = dumpJSON(stdout, results); err != nil {
		log.Printf("failed to dump results: %v", err)
		return 1
	}
	return status
}

func loadSymbols(filePath string) (*types.SymbolTable, error) {
	if filePath == "" {
		return types.NewSymbolTableWith(nil, defaults.DefaultSymbolTable), nil
	}

	symbols, err := datasource.ParseFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("datasource.ParseFile(%q): %w", filePath, err)
	}
	return symbols, nil
}

func evaluate(source string, symbols *types.SymbolTable, now func() time.Time) *result {
	r := &result{Formula: source}
	expr, err := expression.Compile(source, expression.WithSymbols(symbols), expression.WithClock(now))
	if err != nil {
		r.Error = renderError(err)
		return r
	}
	r.Type = expr.Type().String()

	evaluator := &expression.Evaluator{SymbolTable: symbols}
	v, err := evaluator.EvaluateValue(expr)
	if err != nil {
		r.Error = renderError(err)
		return r
	}
	r.Value = types.Present(v)
	return r
}

func dumpTokens(source string, now func() time.Time) *result {
	r := &result{Formula: source, Tokens: []any{}}
	sc, err := scanner.New(source, scanner.WithClock(now))
	if err != nil {
		r.Error = renderError(err)
		return r
	}
	for {
		tok := sc.Current()
		r.Tokens = append(r.Tokens, renderToken(tok))
		if tok.Kind == token.EOF {
			return r
		}
		if err := sc.Advance(); err != nil {
			r.Error = renderError(err)
			return r
		}
	}
}

func renderToken(tok token.Token) map[string]any {
	o := map[string]any{
		"kind":   tok.Kind,
		"offset": tok.Offset,
	}
	if tok.Text != "" {
		o["text"] = tok.Text
	}
	switch v := tok.Value.(type) {
	case token.IntValue:
		o["value"] = int64(v)
	case token.RealValue:
		o["value"] = types.Present(float64(v))
	case token.DateValue:
		o["value"] = types.Date(v)
	}
	return o
}

func renderError(err error) any {
	var exception types.Exception
	if errors.As(err, &exception) {
		return exception.Exception()
	}
	return map[string]any{"message": err.Error()}
}

func serveEvaluations(ctx context.Context, listen string, loader func() (*types.SymbolTable, error), now func() time.Time) error {
	handler, err := server.NewHTTPHandler(ctx, loader, 5*time.Second, now)
	if err != nil {
		return err
	}

	srv := http.Server{
		Handler: handler,
		Addr:    listen,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("failed to shut down: %v", err)
		}
	}()

	log.Printf("Listen HTTP on %s", listen)
	if err := srv.ListenAndServe(); errors.Is(err, http.ErrServerClosed) {
		return nil
	} else if err != nil {
		return err
	}
	return nil
}

func dumpJSON(w io.Writer, v any) error {
	opts := []json.EncodeOptionFunc{json.DisableHTMLEscape()}
	if f, ok := w.(interface{ Fd() uintptr }); ok {
		if isatty.IsTerminal(f.Fd()) {
			opts = append(opts, json.Colorize(json.DefaultColorScheme))
		}
	}

	b, err := json.MarshalIndentWithOption(v, "", "\t", opts...)
	if err != nil {
		return fmt.Errorf("json.MarshalIndentWithOption: %w", err)
	}

	if _, err = w.Write(b); err != nil {
		return fmt.Errorf("w.Write: %w", err)
	}
	if _, err = io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("io.WriteString: %w", err)
	}
	return nil
}
