// Package lint evaluates manufacturability diagnostics over the summary of
// a finished analysis pass. Rules live in a single ordered table and are
// evaluated as a non-short-circuiting checklist: every applicable rule
// fires independently. Extending the checklist means adding a table entry,
// not a new code path.
package lint

import (
	"fmt"

	"toolpath/pkg/machine"
)

// tolerance for all geometric comparisons (mm).
const tolerance = 1e-6

// Severity classifies how serious a diagnostic is.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Diagnostic is a single non-fatal finding about program quality or safety.
type Diagnostic struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Extents are the final millimeter bounding-box extrema of a program.
type Extents struct {
	XMin, XMax float64
	YMin, YMax float64
	ZMin, ZMax float64
}

// Input is the post-pass summary the rules read. It is assembled by the
// analyzer once the full program has been consumed; no rule runs
// mid-pass.
type Input struct {
	UnitsSet         bool     // G20/G21 seen
	DistanceModeSet  bool     // G90/G91 seen
	WorkOffsetSeen   bool     // any of G54..G59 seen
	CutMoves         int      // count of cutting segments emitted
	CutBeforeSpindle bool     // first cut preceded the spindle ever turning on
	CutBeforeFeed    bool     // first cut preceded any explicit F word
	MinRapidZMm      *float64 // minimum Z reached during a rapid, nil if no rapids
	UnknownG         []string // non-whitelisted G codes, ascending
	UnknownM         []string // non-whitelisted M codes, ascending
	BBoxMm           Extents
}

// Params is optional machine/job context. Rules guarded on a parameter
// stay silent when it is absent.
type Params struct {
	SafeZ *float64       // safe rapid height, mm
	Stock *machine.Stock // stock envelope, mm
}

// rule is one entry of the diagnostic table. run returns zero or more
// messages; each becomes a Diagnostic with the rule's code and severity.
type rule struct {
	code     string
	severity Severity
	run      func(in Input, p Params) []string
}

// ruleTable is evaluated in order, once, after the full pass.
var ruleTable = []rule{
	{
		code: "no-units", severity: SeverityWarn,
		run: func(in Input, p Params) []string {
			if in.UnitsSet {
				return nil
			}
			return []string{"units never set explicitly (no G20/G21); assuming millimeters"}
		},
	},
	{
		code: "no-distance-mode", severity: SeverityWarn,
		run: func(in Input, p Params) []string {
			if in.DistanceModeSet {
				return nil
			}
			return []string{"distance mode never set explicitly (no G90/G91); assuming absolute"}
		},
	},
	{
		code: "no-work-offset", severity: SeverityWarn,
		run: func(in Input, p Params) []string {
			if in.WorkOffsetSeen {
				return nil
			}
			return []string{"no work offset selected (G54..G59)"}
		},
	},
	{
		code: "cut-before-spindle", severity: SeverityError,
		run: func(in Input, p Params) []string {
			if in.CutMoves == 0 || !in.CutBeforeSpindle {
				return nil
			}
			return []string{"first cutting move occurs before the spindle is started (M3/M4)"}
		},
	},
	{
		code: "cut-before-feed", severity: SeverityWarn,
		run: func(in Input, p Params) []string {
			if in.CutMoves == 0 || !in.CutBeforeFeed {
				return nil
			}
			return []string{"first cutting move occurs before any feed rate is set (F)"}
		},
	},
	{
		code: "rapid-below-safe-z", severity: SeverityError,
		run: func(in Input, p Params) []string {
			if p.SafeZ == nil || in.MinRapidZMm == nil {
				return nil
			}
			if *in.MinRapidZMm < *p.SafeZ-tolerance {
				return []string{fmt.Sprintf(
					"rapid traverse reaches Z=%.3f mm, below safe height %.3f mm",
					*in.MinRapidZMm, *p.SafeZ)}
			}
			return nil
		},
	},
	{
		code: "unknown-g", severity: SeverityInfo,
		run: func(in Input, p Params) []string {
			msgs := make([]string, 0, len(in.UnknownG))
			for _, c := range in.UnknownG {
				msgs = append(msgs, fmt.Sprintf("G code %s is outside the supported whitelist", c))
			}
			return msgs
		},
	},
	{
		code: "unknown-m", severity: SeverityInfo,
		run: func(in Input, p Params) []string {
			msgs := make([]string, 0, len(in.UnknownM))
			for _, c := range in.UnknownM {
				msgs = append(msgs, fmt.Sprintf("M code %s is outside the supported whitelist", c))
			}
			return msgs
		},
	},
	{
		code: "exits-stock-xy", severity: SeverityWarn,
		run: func(in Input, p Params) []string {
			if p.Stock == nil {
				return nil
			}
			box := p.Stock.Box()
			bb := in.BBoxMm
			if bb.XMin < box.Min.X-tolerance || bb.XMax > box.Max.X+tolerance ||
				bb.YMin < box.Min.Y-tolerance || bb.YMax > box.Max.Y+tolerance {
				return []string{fmt.Sprintf(
					"toolpath XY extents [%.3f, %.3f] x [%.3f, %.3f] mm exceed stock %.0fx%.0f mm",
					bb.XMin, bb.XMax, bb.YMin, bb.YMax, p.Stock.Length, p.Stock.Width)}
			}
			return nil
		},
	},
	{
		code: "exits-stock-z", severity: SeverityWarn,
		run: func(in Input, p Params) []string {
			if p.Stock == nil {
				return nil
			}
			box := p.Stock.Box()
			if in.BBoxMm.ZMin < box.Min.Z-tolerance {
				return []string{fmt.Sprintf(
					"toolpath reaches Z=%.3f mm, below stock bottom at %.3f mm",
					in.BBoxMm.ZMin, box.Min.Z)}
			}
			return nil
		},
	},
}

// Evaluate runs the full rule table against the pass summary and optional
// machine/job context, in table order.
func Evaluate(in Input, p Params) []Diagnostic {
	diags := []Diagnostic{}
	for _, r := range ruleTable {
		for _, msg := range r.run(in, p) {
			diags = append(diags, Diagnostic{Code: r.code, Severity: r.severity, Message: msg})
		}
	}
	return diags
}
