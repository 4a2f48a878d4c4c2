package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"toolpath/pkg/gcode"
	"toolpath/pkg/lint"
	"toolpath/pkg/machine"
	"toolpath/pkg/script"
)

var (
	machinePath string
	safeZFlag   float64
	stockFlag   string
	rulesPath   string
	jsonOut     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE",
	Short: "Analyze a G-code program and print diagnostics",
	Long: `Analyzes a G-code file in a single forward pass.

Examples:
  nccheck analyze part.nc
  nccheck analyze part.nc --machine haas-vf2.toml --stock 100x60x12
  nccheck analyze part.nc --safe-z 5 --rules shop-rules.zy --json`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&machinePath, "machine", "m", "", "machine profile TOML file")
	analyzeCmd.Flags().Float64Var(&safeZFlag, "safe-z", 0, "safe rapid height in mm (enables the rapid-below-safe-z check)")
	analyzeCmd.Flags().StringVar(&stockFlag, "stock", "", "stock envelope in mm as LxWxH, e.g. 100x60x12")
	analyzeCmd.Flags().StringVar(&rulesPath, "rules", "", "custom lint rules script (zygomys)")
	analyzeCmd.Flags().BoolVar(&jsonOut, "json", false, "print the full analysis as JSON")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	path := args[0]

	opts := gcode.DefaultOptions()

	if machinePath != "" {
		profile, stock, err := machine.LoadProfile(machinePath)
		if err != nil {
			return err
		}
		logger.Debug("loaded machine profile",
			zap.String("name", profile.Name),
			zap.Float64("rapidXY", profile.RapidXY),
			zap.Float64("rapidZ", profile.RapidZ))
		opts = gcode.ForProfile(profile, stock)
	}
	if cmd.Flags().Changed("safe-z") {
		z := safeZFlag
		opts.SafeZ = &z
	}
	if stockFlag != "" {
		stock, err := parseStock(stockFlag)
		if err != nil {
			return err
		}
		opts.Stock = &stock
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open program: %w", err)
	}
	defer f.Close()

	res, err := gcode.AnalyzeReader(f, opts)
	if err != nil {
		return err
	}
	logger.Debug("analysis complete",
		zap.Int("rapidMoves", res.Counts.RapidMoves),
		zap.Int("cutMoves", res.Counts.CutMoves),
		zap.Float64("estimatedSeconds", res.EstimatedTimeSeconds))

	if rulesPath != "" {
		src, err := os.ReadFile(rulesPath)
		if err != nil {
			return fmt.Errorf("read rules: %w", err)
		}
		diags, ruleErrs, err := script.NewEngine().Run(string(src), res)
		if err != nil {
			return fmt.Errorf("rules: %w", err)
		}
		for _, re := range ruleErrs {
			logger.Warn("rules script error", zap.Int("line", re.Line), zap.String("message", re.Message))
		}
		res.Diagnostics = append(res.Diagnostics, diags...)
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printSummary(res)
	}

	// Exiting here would skip the deferred file close and the logger sync
	// in PersistentPostRun; main applies the status after Execute returns.
	if hasErrorDiagnostic(res.Diagnostics) {
		exitStatus = 1
	}
	return nil
}

// hasErrorDiagnostic reports whether any diagnostic carries error severity.
func hasErrorDiagnostic(diags []lint.Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == lint.SeverityError {
			return true
		}
	}
	return false
}

// parseStock parses a LxWxH flag value like "100x60x12" into millimeters.
func parseStock(s string) (machine.Stock, error) {
	parts := strings.Split(strings.ToLower(s), "x")
	if len(parts) != 3 {
		return machine.Stock{}, fmt.Errorf("invalid stock %q, expected LxWxH", s)
	}
	dims := make([]float64, 3)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || v <= 0 {
			return machine.Stock{}, fmt.Errorf("invalid stock dimension %q in %q", p, s)
		}
		dims[i] = v
	}
	return machine.Stock{Length: dims[0], Width: dims[1], Height: dims[2]}, nil
}

var severityColors = map[lint.Severity]*color.Color{
	lint.SeverityError: color.New(color.FgRed, color.Bold),
	lint.SeverityWarn:  color.New(color.FgYellow),
	lint.SeverityInfo:  color.New(color.FgCyan),
}

func printSummary(res *gcode.AnalysisResult) {
	bb := res.BoundingBoxMm
	fmt.Printf("units            %s\n", res.Units)
	fmt.Printf("distance mode    %s\n", distanceMode(res.DistanceModeAbsolute))
	fmt.Printf("moves            %d rapid, %d cut\n", res.Counts.RapidMoves, res.Counts.CutMoves)
	fmt.Printf("cut length       %.2f mm\n", res.CutLengthMm)
	fmt.Printf("rapid length     %.2f mm XY, %.2f mm Z\n", res.RapidXYLengthMm, res.RapidZLengthMm)
	fmt.Printf("envelope (mm)    X [%.3f, %.3f]  Y [%.3f, %.3f]  Z [%.3f, %.3f]\n",
		bb.XMin, bb.XMax, bb.YMin, bb.YMax, bb.ZMin, bb.ZMax)
	fmt.Printf("estimated time   %.1f s\n", res.EstimatedTimeSeconds)

	if len(res.Diagnostics) == 0 {
		color.New(color.FgGreen).Println("no diagnostics")
		return
	}
	fmt.Println()
	for _, d := range res.Diagnostics {
		c, ok := severityColors[d.Severity]
		if !ok {
			c = color.New()
		}
		c.Printf("%-5s", d.Severity)
		fmt.Printf("  %-20s %s\n", d.Code, d.Message)
	}
}

func distanceMode(absolute bool) string {
	if absolute {
		return "absolute (G90)"
	}
	return "incremental (G91)"
}
