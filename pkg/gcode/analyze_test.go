package gcode

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"toolpath/pkg/lint"
	"toolpath/pkg/machine"
)

// hasDiag returns true if diags contains a diagnostic with the given code.
func hasDiag(diags []lint.Diagnostic, code string) bool {
	for _, d := range diags {
		if d.Code == code {
			return true
		}
	}
	return false
}

func TestNoMotionProgram(t *testing.T) {
	res := Analyze([]string{"G21 G90 G54", "M3", "M5", "M30"}, DefaultOptions())

	if len(res.Segments2D) != 0 || len(res.Segments3DMm) != 0 {
		t.Errorf("expected no segments, got %d/%d", len(res.Segments2D), len(res.Segments3DMm))
	}
	origin := BBox{}
	if res.BoundingBoxNative != origin || res.BoundingBoxMm != origin {
		t.Errorf("expected origin bounding boxes, got %+v and %+v",
			res.BoundingBoxNative, res.BoundingBoxMm)
	}
	if res.Counts.RapidMoves != 0 || res.Counts.CutMoves != 0 {
		t.Errorf("expected zero counts, got %+v", res.Counts)
	}
	if res.MinRapidZMm != nil {
		t.Errorf("expected no rapid Z tracked, got %v", *res.MinRapidZMm)
	}
}

func TestEmptyProgram(t *testing.T) {
	res := Analyze(nil, DefaultOptions())

	if res.Units != UnitsMm || !res.DistanceModeAbsolute {
		t.Errorf("expected default modal state, got units=%s absolute=%v",
			res.Units, res.DistanceModeAbsolute)
	}
	if res.EstimatedTimeSeconds != 0 {
		t.Errorf("expected zero estimate, got %v", res.EstimatedTimeSeconds)
	}
	// An empty program still lints: units, distance mode, and work offset
	// were never set.
	for _, code := range []string{"no-units", "no-distance-mode", "no-work-offset"} {
		if !hasDiag(res.Diagnostics, code) {
			t.Errorf("expected diagnostic %q", code)
		}
	}
}

func TestIdempotence(t *testing.T) {
	lines := []string{
		"G20 G90 G55",
		"M3",
		"G0 X1 Y1 Z0.5",
		"G1 Z-0.1 F10",
		"G1 X2 Y3",
		"G83 M42",
	}
	a := Analyze(lines, DefaultOptions())
	b := Analyze(lines, DefaultOptions())
	if !reflect.DeepEqual(a, b) {
		t.Errorf("two passes over identical text differ:\n%+v\n%+v", a, b)
	}
}

func TestInchConversion(t *testing.T) {
	res := Analyze([]string{"G20 G90", "G1 X1 Y1 Z1 F10"}, DefaultOptions())

	mm := res.BoundingBoxMm
	for name, got := range map[string]float64{"xmax": mm.XMax, "ymax": mm.YMax, "zmax": mm.ZMax} {
		if math.Abs(got-25.4) > 1e-9 {
			t.Errorf("mm bbox %s = %v, want 25.4", name, got)
		}
	}
	native := res.BoundingBoxNative
	for name, got := range map[string]float64{"xmax": native.XMax, "ymax": native.YMax, "zmax": native.ZMax} {
		if got != 1.0 {
			t.Errorf("native bbox %s = %v, want 1.0", name, got)
		}
	}
	if res.Units != UnitsInch {
		t.Errorf("units = %s, want in", res.Units)
	}
}

func TestEndToEnd(t *testing.T) {
	lines := []string{"G21 G90", "G0 X0 Y0", "G1 X10 Y0 F100", "G1 X10 Y10"}
	res := Analyze(lines, DefaultOptions())

	// The initial G0 is degenerate: target equals the starting position.
	if res.Counts.RapidMoves != 0 {
		t.Errorf("rapidMoves = %d, want 0", res.Counts.RapidMoves)
	}
	if res.Counts.CutMoves != 2 {
		t.Fatalf("cutMoves = %d, want 2", res.Counts.CutMoves)
	}

	s := res.Segments2D
	if s[0].From.X != 0 || s[0].From.Y != 0 || s[0].To.X != 10 || s[0].To.Y != 0 {
		t.Errorf("first cut segment = %+v, want (0,0)->(10,0)", s[0])
	}
	if s[1].From.X != 10 || s[1].From.Y != 0 || s[1].To.X != 10 || s[1].To.Y != 10 {
		t.Errorf("second cut segment = %+v, want (10,0)->(10,10)", s[1])
	}

	want := BBox{XMin: 0, XMax: 10, YMin: 0, YMax: 10, ZMin: 0, ZMax: 0}
	if res.BoundingBoxMm != want {
		t.Errorf("mm bbox = %+v, want %+v", res.BoundingBoxMm, want)
	}
	if res.CutLengthMm != 20 {
		t.Errorf("cut length = %v, want 20", res.CutLengthMm)
	}
	if math.Abs(res.EstimatedTimeSeconds-12.0) > 1e-9 {
		t.Errorf("estimated time = %v, want 12.0", res.EstimatedTimeSeconds)
	}
}

func TestModalWordsApplyBeforeAxisWords(t *testing.T) {
	// G91 takes effect before X5 even though it appears after it on the
	// line; token order within a line does not matter for modal words.
	res := Analyze([]string{"G90 G0 X10", "X5 G91 G1 F100"}, DefaultOptions())

	if res.Counts.CutMoves != 1 {
		t.Fatalf("cutMoves = %d, want 1", res.Counts.CutMoves)
	}
	to := res.Segments3DMm[len(res.Segments3DMm)-1].To
	if to.X != 15 {
		t.Errorf("incremental target X = %v, want 15", to.X)
	}
}

func TestUnitSwitchMidProgram(t *testing.T) {
	// The mm bounding box converts each waypoint with the factor in effect
	// at that waypoint, never retroactively: after G20 the position X10 is
	// re-read as inches for the next segment's start point.
	res := Analyze([]string{"G21 G90", "G0 X10", "G20", "G0 X2"}, DefaultOptions())

	if got := res.BoundingBoxMm.XMax; got != 254.0 {
		t.Errorf("mm bbox xmax = %v, want 254 (10 in * 25.4)", got)
	}
	if got := res.BoundingBoxNative.XMax; got != 10.0 {
		t.Errorf("native bbox xmax = %v, want 10", got)
	}
}

func TestRapidLengthsSplitXYAndZ(t *testing.T) {
	res := Analyze([]string{"G21 G90", "G0 X3 Y4 Z-5"}, DefaultOptions())

	if res.RapidXYLengthMm != 5 {
		t.Errorf("rapid XY length = %v, want 5", res.RapidXYLengthMm)
	}
	if res.RapidZLengthMm != 5 {
		t.Errorf("rapid Z length = %v, want 5", res.RapidZLengthMm)
	}
	if res.MinRapidZMm == nil || *res.MinRapidZMm != -5 {
		t.Errorf("min rapid Z = %v, want -5", res.MinRapidZMm)
	}
	if res.CutLengthMm != 0 {
		t.Errorf("cut length = %v, want 0", res.CutLengthMm)
	}
}

func TestLastMotionCodeWins(t *testing.T) {
	res := Analyze([]string{"G0 G1 X5 F100"}, DefaultOptions())
	if res.Counts.CutMoves != 1 || res.Counts.RapidMoves != 0 {
		t.Errorf("counts = %+v, want the later G1 to win", res.Counts)
	}
}

func TestFlagOnlyLinesContributeNothing(t *testing.T) {
	res := Analyze([]string{"G21", "G90", "G54", "F500", "M3"}, DefaultOptions())
	if len(res.Segments3DMm) != 0 {
		t.Errorf("expected no segments from flag-only lines, got %d", len(res.Segments3DMm))
	}
	if res.FeedMmMin != 500 {
		t.Errorf("feed = %v, want 500", res.FeedMmMin)
	}
}

func TestUnknownCodesCollected(t *testing.T) {
	res := Analyze([]string{"G83 X1", "G83 Z-2", "G38.2", "M42 M7"}, DefaultOptions())

	if !reflect.DeepEqual(res.UnknownGCodes, []string{"G38.2", "G83"}) {
		t.Errorf("unknown G codes = %v", res.UnknownGCodes)
	}
	if !reflect.DeepEqual(res.UnknownMCodes, []string{"M42"}) {
		t.Errorf("unknown M codes = %v", res.UnknownMCodes)
	}
	if !hasDiag(res.Diagnostics, "unknown-g") || !hasDiag(res.Diagnostics, "unknown-m") {
		t.Errorf("expected unknown-g and unknown-m diagnostics, got %v", res.Diagnostics)
	}
}

func TestWorkOffsetSuppressesLint(t *testing.T) {
	with := Analyze([]string{"G54", "G0 X1"}, DefaultOptions())
	if hasDiag(with.Diagnostics, "no-work-offset") {
		t.Errorf("no-work-offset should be suppressed when G54 is present")
	}
	without := Analyze([]string{"G0 X1"}, DefaultOptions())
	if !hasDiag(without.Diagnostics, "no-work-offset") {
		t.Errorf("no-work-offset should fire when no G54..G59 appears")
	}
}

func TestCutBeforeSpindleAndFeed(t *testing.T) {
	res := Analyze([]string{"G21 G90", "G1 X5"}, DefaultOptions())
	if !hasDiag(res.Diagnostics, "cut-before-spindle") {
		t.Errorf("expected cut-before-spindle")
	}
	if !hasDiag(res.Diagnostics, "cut-before-feed") {
		t.Errorf("expected cut-before-feed")
	}

	ok := Analyze([]string{"G21 G90", "M3", "G1 X5 F100"}, DefaultOptions())
	if hasDiag(ok.Diagnostics, "cut-before-spindle") || hasDiag(ok.Diagnostics, "cut-before-feed") {
		t.Errorf("unexpected spindle/feed diagnostics: %v", ok.Diagnostics)
	}
}

func TestSafeZOption(t *testing.T) {
	safe := 5.0
	opts := DefaultOptions()
	opts.SafeZ = &safe

	res := Analyze([]string{"G21 G90", "G0 Z-2"}, opts)
	if !hasDiag(res.Diagnostics, "rapid-below-safe-z") {
		t.Errorf("expected rapid-below-safe-z, got %v", res.Diagnostics)
	}

	high := Analyze([]string{"G21 G90", "G0 Z10"}, opts)
	if hasDiag(high.Diagnostics, "rapid-below-safe-z") {
		t.Errorf("rapid at Z10 should not trip a safe Z of 5")
	}
}

func TestStockContainment(t *testing.T) {
	opts := DefaultOptions()
	opts.Stock = &machine.Stock{Length: 50, Width: 50, Height: 10}

	out := Analyze([]string{"G21 G90", "G1 X60 F100"}, opts)
	if !hasDiag(out.Diagnostics, "exits-stock-xy") {
		t.Errorf("path to X60 should exit 50mm stock, got %v", out.Diagnostics)
	}

	in := Analyze([]string{"G21 G90", "G1 X50 F100"}, opts)
	if hasDiag(in.Diagnostics, "exits-stock-xy") {
		t.Errorf("path confined to X<=50 should stay inside stock")
	}

	deep := Analyze([]string{"G21 G90", "G1 Z-11 F100"}, opts)
	if !hasDiag(deep.Diagnostics, "exits-stock-z") {
		t.Errorf("cut to Z-11 should exit 10mm-tall stock")
	}
}

func TestAnalyzeReader(t *testing.T) {
	src := "G21 G90\nG1 X10 Y0 F100\n"
	res, err := AnalyzeReader(strings.NewReader(src), DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Counts.CutMoves != 1 {
		t.Errorf("cutMoves = %d, want 1", res.Counts.CutMoves)
	}
}

// failingReader always errors, standing in for an unreadable source.
type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk on fire")
}

func TestAnalyzeReaderBadSource(t *testing.T) {
	if _, err := AnalyzeReader(nil, DefaultOptions()); !errors.Is(err, ErrReadSource) {
		t.Errorf("nil reader: got %v, want ErrReadSource", err)
	}
	if _, err := AnalyzeReader(failingReader{}, DefaultOptions()); !errors.Is(err, ErrReadSource) {
		t.Errorf("failing reader: got %v, want ErrReadSource", err)
	}
}

func TestForProfile(t *testing.T) {
	p := machine.Profile{RapidXY: 24000, RapidZ: 15240, SafeZ: 5}
	opts := ForProfile(p, &machine.Stock{Length: 100, Width: 60, Height: 12})

	if opts.RapidXY != 24000 || opts.RapidZ != 15240 {
		t.Errorf("rates not taken from profile: %+v", opts)
	}
	if opts.SafeZ == nil || *opts.SafeZ != 5 {
		t.Errorf("safe Z not taken from profile: %v", opts.SafeZ)
	}
	if opts.Stock == nil {
		t.Errorf("stock not carried through")
	}
}
