package gcode

import (
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"toolpath/pkg/lint"
)

// mmPerInch is the conversion factor applied to inch-mode coordinates.
const mmPerInch = 25.4

// Units is the measurement system selected by G20/G21.
type Units string

const (
	UnitsMm   Units = "mm"
	UnitsInch Units = "in"
)

// factor returns the native-unit→millimeter conversion factor.
func (u Units) factor() float64 {
	if u == UnitsInch {
		return mmPerInch
	}
	return 1.0
}

// SegmentKind distinguishes rapid positioning moves from feed-controlled
// cutting moves.
type SegmentKind string

const (
	KindRapid SegmentKind = "rapid"
	KindCut   SegmentKind = "cut"
)

// Segment2D is a planar XY segment in the program's native units, suitable
// for a 2D canvas preview.
type Segment2D struct {
	Kind SegmentKind `json:"kind"`
	From v2.Vec      `json:"from"`
	To   v2.Vec      `json:"to"`
}

// Segment3D is a full XYZ segment converted to millimeters using the unit
// factor in effect when the segment was emitted.
type Segment3D struct {
	Kind SegmentKind `json:"kind"`
	From v3.Vec      `json:"from"`
	To   v3.Vec      `json:"to"`
}

// BBox is an axis-aligned bounding box over all visited waypoints. It is
// seeded with the implicit starting point (0,0,0) and only ever widens.
type BBox struct {
	XMin float64 `json:"xmin"`
	XMax float64 `json:"xmax"`
	YMin float64 `json:"ymin"`
	YMax float64 `json:"ymax"`
	ZMin float64 `json:"zmin"`
	ZMax float64 `json:"zmax"`
}

// include widens the box to contain the waypoint v.
func (b *BBox) include(v v3.Vec) {
	b.XMin = min(b.XMin, v.X)
	b.XMax = max(b.XMax, v.X)
	b.YMin = min(b.YMin, v.Y)
	b.YMax = max(b.YMax, v.Y)
	b.ZMin = min(b.ZMin, v.Z)
	b.ZMax = max(b.ZMax, v.Z)
}

// Box3 converts the bounding box to an sdfx box for geometry interop.
func (b BBox) Box3() sdf.Box3 {
	return sdf.Box3{
		Min: v3.Vec{X: b.XMin, Y: b.YMin, Z: b.ZMin},
		Max: v3.Vec{X: b.XMax, Y: b.YMax, Z: b.ZMax},
	}
}

// Extents returns the lint-facing view of the box.
func (b BBox) Extents() lint.Extents {
	return lint.Extents{
		XMin: b.XMin, XMax: b.XMax,
		YMin: b.YMin, YMax: b.YMax,
		ZMin: b.ZMin, ZMax: b.ZMax,
	}
}

// Counts tallies the segments emitted during the pass.
type Counts struct {
	RapidMoves int `json:"rapidMoves"`
	CutMoves   int `json:"cutMoves"`
}

// AnalysisResult is the immutable aggregate produced by one pass over a
// program. It is the sole artifact returned to the caller and serializes
// directly to JSON.
type AnalysisResult struct {
	Units                Units             `json:"units"`
	DistanceModeAbsolute bool              `json:"distanceModeAbsolute"`
	BoundingBoxNative    BBox              `json:"boundingBoxNative"`
	BoundingBoxMm        BBox              `json:"boundingBoxMm"`
	Segments2D           []Segment2D       `json:"segments2D"`
	Segments3DMm         []Segment3D       `json:"segments3DMm"`
	Counts               Counts            `json:"counts"`
	Diagnostics          []lint.Diagnostic `json:"diagnostics"`
	EstimatedTimeSeconds float64           `json:"estimatedTimeSeconds"`

	// Motion totals, all in millimeters.
	CutLengthMm     float64  `json:"cutLengthMm"`
	RapidXYLengthMm float64  `json:"rapidXYLengthMm"`
	RapidZLengthMm  float64  `json:"rapidZLengthMm"`
	MinRapidZMm     *float64 `json:"minRapidZMm,omitempty"` // nil when no rapid move occurred

	// FeedMmMin is the last feed rate in effect. Feed words are taken at
	// face value as mm/min regardless of the active units.
	FeedMmMin float64 `json:"feedMmMin"`

	// Codes outside the whitelist, deduplicated and ascending, e.g. "G83".
	UnknownGCodes []string `json:"unknownGCodes"`
	UnknownMCodes []string `json:"unknownMCodes"`
}
