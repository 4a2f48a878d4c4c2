// Package script runs user-supplied lint rules written in zygomys Lisp.
// Scripts are evaluated in a fresh sandbox with read-only builtins over a
// finished analysis and a (diag ...) form to emit extra diagnostics. A
// script can extend the checklist without touching the built-in rule
// table.
//
// Builtin names use underscores (cut_length_mm, min_rapid_z_mm, ...)
// because zygomys reads a hyphen between identifiers as subtraction.
package script

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	zygo "github.com/glycerine/zygomys/zygo"

	"toolpath/pkg/gcode"
	"toolpath/pkg/lint"
)

// RuleError is a non-fatal error from a rules script, such as a parse
// error or a runtime error in user code.
type RuleError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (e RuleError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Engine evaluates rules scripts. Each call to Run creates a fresh
// sandboxed environment for determinism. Runs are latest-wins: starting a
// new Run supersedes any still in flight, and a superseded run returns an
// error instead of its results.
type Engine struct {
	mu         sync.Mutex
	generation uint64
}

// NewEngine creates a new Engine instance.
func NewEngine() *Engine {
	return &Engine{}
}

// Run evaluates a rules script against an analysis result.
//
// Return semantics:
//   - On success: diagnostics emitted by the script + nil errors + nil error
//   - On parse/eval failure: nil + rule errors + nil error
//   - On fatal failure (timeout, panic): nil + nil + error
func (e *Engine) Run(source string, res *gcode.AnalysisResult) ([]lint.Diagnostic, []RuleError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan runResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- runResult{err: fmt.Errorf("panic during rules evaluation: %v", r)}
			}
		}()

		diags, ruleErrs, err := e.run(source, res)
		ch <- runResult{diags: diags, errors: ruleErrs, err: err}
	}()

	return waitWithTimeout(ch, gen, &e.mu, &e.generation)
}

// run performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) run(source string, res *gcode.AnalysisResult) ([]lint.Diagnostic, []RuleError, error) {
	// An empty script is a valid rule set that emits nothing.
	if strings.TrimSpace(source) == "" {
		return nil, nil, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or
	// syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	var collected []lint.Diagnostic
	registerBuiltins(env, res, &collected)

	if err := env.LoadString(source); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}

	return collected, nil, nil
}

// registerBuiltins installs the read-only accessors and the diag emitter
// into a zygomys environment.
func registerBuiltins(env *zygo.Zlisp, res *gcode.AnalysisResult, out *[]lint.Diagnostic) {
	num := func(name string, get func() float64) {
		env.AddFunction(name, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			return &zygo.SexpFloat{Val: get()}, nil
		})
	}

	num("cut_length_mm", func() float64 { return res.CutLengthMm })
	num("rapid_xy_mm", func() float64 { return res.RapidXYLengthMm })
	num("rapid_z_mm", func() float64 { return res.RapidZLengthMm })
	num("estimated_seconds", func() float64 { return res.EstimatedTimeSeconds })
	num("feed_mm_min", func() float64 { return res.FeedMmMin })
	num("cut_moves", func() float64 { return float64(res.Counts.CutMoves) })
	num("rapid_moves", func() float64 { return float64(res.Counts.RapidMoves) })
	num("min_rapid_z_mm", func() float64 {
		if res.MinRapidZMm == nil {
			return 0
		}
		return *res.MinRapidZMm
	})

	env.AddFunction("units", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return &zygo.SexpStr{S: string(res.Units)}, nil
	})

	env.AddFunction("absolute_mode", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return &zygo.SexpBool{Val: res.DistanceModeAbsolute}, nil
	})

	// (bbox_mm "xmax") returns one extremum of the millimeter bounding box.
	env.AddFunction("bbox_mm", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("bbox_mm: expected one axis argument")
		}
		axis, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("bbox_mm: %w", err)
		}
		bb := res.BoundingBoxMm
		var v float64
		switch strings.ToLower(axis) {
		case "xmin":
			v = bb.XMin
		case "xmax":
			v = bb.XMax
		case "ymin":
			v = bb.YMin
		case "ymax":
			v = bb.YMax
		case "zmin":
			v = bb.ZMin
		case "zmax":
			v = bb.ZMax
		default:
			return zygo.SexpNull, fmt.Errorf("bbox_mm: unknown axis %q", axis)
		}
		return &zygo.SexpFloat{Val: v}, nil
	})

	// (diag "code" "warn" "message") appends a custom diagnostic.
	env.AddFunction("diag", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("diag: expected (diag code severity message)")
		}
		code, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("diag: code: %w", err)
		}
		sevName, err := toString(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("diag: severity: %w", err)
		}
		msg, err := toString(args[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("diag: message: %w", err)
		}

		var sev lint.Severity
		switch strings.ToLower(sevName) {
		case "info":
			sev = lint.SeverityInfo
		case "warn", "warning":
			sev = lint.SeverityWarn
		case "error":
			sev = lint.SeverityError
		default:
			return zygo.SexpNull, fmt.Errorf("diag: invalid severity %q, expected info/warn/error", sevName)
		}

		*out = append(*out, lint.Diagnostic{Code: code, Severity: sev, Message: msg})
		return zygo.SexpNull, nil
	})
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more RuleError
// values, extracting line numbers from the message where possible.
func parseZygomysError(err error) []RuleError {
	msg := err.Error()

	if m := linePattern.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return []RuleError{{Line: line, Message: strings.TrimSpace(m[2])}}
	}
	if m := linePatternShort.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return []RuleError{{Line: line, Message: strings.TrimSpace(m[2])}}
	}

	return []RuleError{{Message: strings.TrimSpace(msg)}}
}
