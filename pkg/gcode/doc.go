// Package gcode implements a single-pass analyzer for numeric-control
// (G-code) programs. It turns raw toolpath text into geometric segments,
// motion totals, dual-unit bounding boxes, an estimated cycle time, and a
// set of manufacturability diagnostics.
package gcode
