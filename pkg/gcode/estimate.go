package gcode

// estimateSeconds converts the accumulated lengths into an estimated cycle
// time. It is a kinematic lower bound: no acceleration modeling, no dwell,
// no tool-change overhead.
func estimateSeconds(res *AnalysisResult, opts Options) float64 {
	cut := res.CutLengthMm / max(res.FeedMmMin, 1e-6) * 60.0
	rapid := (res.RapidXYLengthMm/max(opts.RapidXY, 1e-6) +
		res.RapidZLengthMm/max(opts.RapidZ, 1e-6)) * 60.0
	return cut + rapid
}
