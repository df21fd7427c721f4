package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/samber/lo"

	"github.com/karupanerura/series-formula/internal/defaults"
	"github.com/karupanerura/series-formula/internal/types"
)

const (
	historyFile = ".series_formula_history"
	prompt      = "formula> "
)

type lineReader interface {
	Prompt(string) (string, error)
	AppendHistory(string)
}

// runREPL reads formulas until EOF or :quit. The session shares one symbol
// table so "set" results are visible to later lines.
func runREPL(symbols *types.SymbolTable, now func() time.Time, stdout io.Writer) int {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(func(line string) []string {
		return complete(line, symbols)
	})

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	return repl(ln, symbols, now, stdout)
}

func repl(ln lineReader, symbols *types.SymbolTable, now func() time.Time, stdout io.Writer) int {
	for {
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(stdout)
			return 0
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			log.Printf("failed to read a line: %v", err)
			return 1
		}

		source := strings.TrimSpace(line)
		switch {
		case source == "":
			continue
		case strings.EqualFold(source, ":quit"):
			return 0
		case strings.HasPrefix(source, ":"):
			fmt.Fprintln(stdout, "unknown command. Type :quit to exit.")
			continue
		}

		if err := dumpJSON(stdout, evaluate(source, symbols, now)); err != nil {
			log.Printf("failed to dump result: %v", err)
			return 1
		}
		ln.AppendHistory(source)
	}
}

// complete offers builtin and data source names for the word under the cursor.
func complete(line string, symbols *types.SymbolTable) []string {
	start := strings.LastIndexFunc(line, func(r rune) bool {
		return !(r == '_' || r == ':' || 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9')
	}) + 1
	head, word := line[:start], strings.ToLower(line[start:])
	if word == "" {
		return nil
	}

	names := lo.Filter(lo.Uniq(append(defaults.FunctionNames(), symbols.Keys()...)), func(name string, _ int) bool {
		return strings.HasPrefix(name, word)
	})
	sort.Strings(names)
	return lo.Map(names, func(name string, _ int) string {
		return head + name
	})
}
