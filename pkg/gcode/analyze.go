package gcode

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"toolpath/pkg/lint"
	"toolpath/pkg/machine"
)

// ErrReadSource is the analyzer's one hard failure: the input source could
// not be consumed as lines of text. It is distinct from every diagnostic
// condition, which are ordinary entries in AnalysisResult.Diagnostics.
var ErrReadSource = errors.New("gcode: input not readable as lines of text")

// Options are the caller-supplied parameters of a pass. The zero value is
// not useful; start from DefaultOptions.
type Options struct {
	RapidXY float64        // rapid traverse rate in the XY plane, mm/min
	RapidZ  float64        // rapid traverse rate along Z, mm/min
	SafeZ   *float64       // safe rapid height in mm; nil disables the check
	Stock   *machine.Stock // stock envelope in mm; nil disables containment checks
}

// DefaultOptions returns the default traverse rates with no machine/job
// context.
func DefaultOptions() Options {
	return Options{RapidXY: 3000, RapidZ: 1500}
}

// ForProfile derives analyzer options from a machine profile and optional
// stock envelope.
func ForProfile(p machine.Profile, stock *machine.Stock) Options {
	safeZ := p.SafeZ
	return Options{
		RapidXY: p.RapidXY,
		RapidZ:  p.RapidZ,
		SafeZ:   &safeZ,
		Stock:   stock,
	}
}

// Analyze performs one forward pass over the program lines and returns the
// complete analysis. It is pure: identical lines and options always yield
// an identical result, and concurrent invocations share no state.
func Analyze(lines []string, opts Options) *AnalysisResult {
	state := newModalState()
	unknownG := newCodeSet('G')
	unknownM := newCodeSet('M')

	res := &AnalysisResult{
		Units:                UnitsMm,
		DistanceModeAbsolute: true,
		Segments2D:           []Segment2D{},
		Segments3DMm:         []Segment3D{},
	}

	// Both boxes are seeded with the implicit starting point.
	res.BoundingBoxNative.include(v3.Vec{})
	res.BoundingBoxMm.include(v3.Vec{})

	var cutBeforeSpindle, cutBeforeFeed bool

	for _, raw := range lines {
		words := SanitizeLine(raw)
		if len(words) == 0 {
			continue
		}

		mo := state.applyModal(words, unknownG, unknownM)
		if mo == motionNone {
			continue
		}

		target := state.target(words)
		if target == state.pos {
			// Degenerate move: no segment, no bounding-box update.
			continue
		}

		// The conversion factor is evaluated at this instant; units may
		// change mid-program and earlier waypoints are never revisited.
		conv := state.units.factor()
		from, to := state.pos, target
		fromMm := from.MulScalar(conv)
		toMm := to.MulScalar(conv)

		kind := KindRapid
		if mo == motionCut {
			kind = KindCut
		}

		res.Segments2D = append(res.Segments2D, Segment2D{
			Kind: kind,
			From: v2.Vec{X: from.X, Y: from.Y},
			To:   v2.Vec{X: to.X, Y: to.Y},
		})
		res.Segments3DMm = append(res.Segments3DMm, Segment3D{Kind: kind, From: fromMm, To: toMm})

		d := toMm.Sub(fromMm)
		switch mo {
		case motionCut:
			if res.Counts.CutMoves == 0 {
				cutBeforeSpindle = !state.spindleEverOn
				cutBeforeFeed = !state.feedSet
			}
			res.Counts.CutMoves++
			res.CutLengthMm += d.Length()
		case motionRapid:
			res.Counts.RapidMoves++
			if d.X != 0 || d.Y != 0 {
				res.RapidXYLengthMm += math.Hypot(d.X, d.Y)
			}
			if d.Z != 0 {
				res.RapidZLengthMm += math.Abs(d.Z)
			}
			// Track where the rapid ends up; a retract that starts low
			// after a cut is fine, a rapid that lands low is not.
			low := toMm.Z
			if res.MinRapidZMm == nil || low < *res.MinRapidZMm {
				res.MinRapidZMm = &low
			}
		}

		state.pos = target
		res.BoundingBoxNative.include(state.pos)
		res.BoundingBoxMm.include(toMm)
	}

	res.Units = state.units
	res.DistanceModeAbsolute = state.absolute
	res.FeedMmMin = state.feed
	res.UnknownGCodes = unknownG.sorted()
	res.UnknownMCodes = unknownM.sorted()
	res.EstimatedTimeSeconds = estimateSeconds(res, opts)

	res.Diagnostics = lint.Evaluate(lint.Input{
		UnitsSet:         state.unitsSet,
		DistanceModeSet:  state.distanceModeSet,
		WorkOffsetSeen:   state.workOffsetSeen,
		CutMoves:         res.Counts.CutMoves,
		CutBeforeSpindle: cutBeforeSpindle,
		CutBeforeFeed:    cutBeforeFeed,
		MinRapidZMm:      res.MinRapidZMm,
		UnknownG:         res.UnknownGCodes,
		UnknownM:         res.UnknownMCodes,
		BBoxMm:           res.BoundingBoxMm.Extents(),
	}, lint.Params{SafeZ: opts.SafeZ, Stock: opts.Stock})

	return res
}

// AnalyzeReader consumes an io.Reader line by line and analyzes it. The
// whole program is buffered before the pass; callers wanting bounded
// latency should impose a size guard on the source first.
func AnalyzeReader(r io.Reader, opts Options) (*AnalysisResult, error) {
	if r == nil {
		return nil, ErrReadSource
	}

	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadSource, err)
	}

	return Analyze(lines, opts), nil
}
