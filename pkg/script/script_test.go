package script

import (
	"strings"
	"sync"
	"testing"
	"time"

	"toolpath/pkg/gcode"
	"toolpath/pkg/lint"
)

// analyzed returns a small real analysis for scripts to inspect:
// a 10mm cut at F100 plus a rapid down to Z-2.
func analyzed(t *testing.T) *gcode.AnalysisResult {
	t.Helper()
	return gcode.Analyze([]string{
		"G21 G90 G54",
		"M3",
		"G1 X10 F100",
		"G0 Z-2",
	}, gcode.DefaultOptions())
}

func TestEmptyScript(t *testing.T) {
	diags, ruleErrs, err := NewEngine().Run("   \n", analyzed(t))
	if err != nil || len(ruleErrs) != 0 || len(diags) != 0 {
		t.Errorf("empty script: got %v / %v / %v", diags, ruleErrs, err)
	}
}

func TestDiagEmission(t *testing.T) {
	src := `(diag "shop-rule" "warn" "custom finding")`
	diags, ruleErrs, err := NewEngine().Run(src, analyzed(t))
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(ruleErrs) != 0 {
		t.Fatalf("rule errors: %v", ruleErrs)
	}
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %v", diags)
	}
	want := lint.Diagnostic{Code: "shop-rule", Severity: lint.SeverityWarn, Message: "custom finding"}
	if diags[0] != want {
		t.Errorf("got %+v, want %+v", diags[0], want)
	}
}

func TestConditionalRule(t *testing.T) {
	// The analysis has a 10mm cut; the first rule fires, the second does not.
	src := `
(if (> (cut_length_mm) 5.0)
    (diag "long-cut" "info" "more than 5mm of cutting"))
(if (> (cut_length_mm) 100.0)
    (diag "very-long-cut" "warn" "more than 100mm of cutting"))
`
	diags, ruleErrs, err := NewEngine().Run(src, analyzed(t))
	if err != nil || len(ruleErrs) != 0 {
		t.Fatalf("unexpected errors: %v / %v", ruleErrs, err)
	}
	if len(diags) != 1 || diags[0].Code != "long-cut" {
		t.Errorf("expected only long-cut to fire, got %v", diags)
	}
}

func TestBBoxAccessor(t *testing.T) {
	src := `
(if (< (bbox_mm "zmin") -1.0)
    (diag "deep" "warn" "goes below -1mm"))
`
	diags, ruleErrs, err := NewEngine().Run(src, analyzed(t))
	if err != nil || len(ruleErrs) != 0 {
		t.Fatalf("unexpected errors: %v / %v", ruleErrs, err)
	}
	if len(diags) != 1 {
		t.Errorf("bbox_mm zmin is -2, rule should fire: %v", diags)
	}
}

func TestSyntaxErrorIsReportedNotFatal(t *testing.T) {
	diags, ruleErrs, err := NewEngine().Run(`(diag "x"`, analyzed(t))
	if err != nil {
		t.Fatalf("syntax errors must not be fatal: %v", err)
	}
	if len(ruleErrs) == 0 {
		t.Fatal("expected rule errors for a syntax error")
	}
	if len(diags) != 0 {
		t.Errorf("expected no diagnostics on error, got %v", diags)
	}
}

func TestInvalidSeverityIsReported(t *testing.T) {
	_, ruleErrs, err := NewEngine().Run(`(diag "x" "fatal" "boom")`, analyzed(t))
	if err != nil {
		t.Fatalf("invalid severity must not be fatal: %v", err)
	}
	if len(ruleErrs) == 0 {
		t.Fatal("expected a rule error for an invalid severity")
	}
	found := false
	for _, re := range ruleErrs {
		if strings.Contains(re.Message, "severity") {
			found = true
		}
	}
	if !found {
		t.Errorf("rule error should mention severity: %v", ruleErrs)
	}
}

func TestPanicDuringRulesIsFatal(t *testing.T) {
	// A nil analysis makes every accessor builtin dereference nil; the
	// resulting panic must surface as a fatal error, never escape Run.
	diags, ruleErrs, err := NewEngine().Run(`(cut_length_mm)`, nil)
	if err == nil {
		t.Fatal("expected a fatal error from a panicking evaluation")
	}
	if !strings.Contains(err.Error(), "panic") {
		t.Errorf("error should mention the panic, got: %v", err)
	}
	if diags != nil || ruleErrs != nil {
		t.Errorf("no results expected on panic, got %v / %v", diags, ruleErrs)
	}
}

func TestRunTimesOut(t *testing.T) {
	// Exercise the timeout path of waitWithTimeout directly with a channel
	// that never sends, rather than asking zygomys to spin for 5 seconds.
	var mu sync.Mutex
	gen := uint64(1)
	ch := make(chan runResult) // never sends

	done := make(chan struct{})
	var gotErr error
	go func() {
		defer close(done)
		_, _, gotErr = waitWithTimeout(ch, 1, &mu, &gen)
	}()

	select {
	case <-done:
		if gotErr == nil {
			t.Fatal("expected a timeout error, got nil")
		}
		if !strings.Contains(gotErr.Error(), "timed out") {
			t.Errorf("expected a timeout message, got: %v", gotErr)
		}
	case <-time.After(RunTimeout + 2*time.Second):
		t.Fatal("test itself timed out waiting for the evaluation timeout")
	}
}

func TestStaleGenerationIsDiscarded(t *testing.T) {
	var mu sync.Mutex
	gen := uint64(2) // a newer run has started

	ch := make(chan runResult, 1)
	ch <- runResult{diags: []lint.Diagnostic{{Code: "stale"}}}

	// The waiter holds generation 1, which has been superseded.
	diags, ruleErrs, err := waitWithTimeout(ch, 1, &mu, &gen)
	if err == nil {
		t.Fatal("expected an error for a stale generation")
	}
	if !strings.Contains(err.Error(), "superseded") {
		t.Errorf("expected a superseded message, got: %v", err)
	}
	if diags != nil || ruleErrs != nil {
		t.Errorf("stale results must be discarded, got %v / %v", diags, ruleErrs)
	}
}

func TestUnitsAccessor(t *testing.T) {
	src := `
(if (== (units) "mm")
    (diag "metric" "info" "metric program"))
`
	diags, ruleErrs, err := NewEngine().Run(src, analyzed(t))
	if err != nil || len(ruleErrs) != 0 {
		t.Fatalf("unexpected errors: %v / %v", ruleErrs, err)
	}
	if len(diags) != 1 || diags[0].Code != "metric" {
		t.Errorf("expected metric rule to fire, got %v", diags)
	}
}
