package main

import (
	"context"
	"log"
	"strings"

	"toolpath/pkg/gcode"
	"toolpath/pkg/lint"
	"toolpath/pkg/machine"
	"toolpath/pkg/preview"
	"toolpath/pkg/script"
)

// App is the Wails backend. It exposes methods to the frontend via bindings.
type App struct {
	ctx   context.Context
	rules *script.Engine
}

// AnalyzeParams are the optional machine/job parameters the frontend can
// attach to a run. Zero rates fall back to the analyzer defaults.
type AnalyzeParams struct {
	RapidXY float64        `json:"rapidXY"`
	RapidZ  float64        `json:"rapidZ"`
	SafeZ   *float64       `json:"safeZ"`
	Stock   *machine.Stock `json:"stock"`
	Rules   string         `json:"rules"` // optional zygomys rules source
}

// AnalyzeResponse is the full result returned to the frontend.
type AnalyzeResponse struct {
	Result     *gcode.AnalysisResult `json:"result"`
	Preview    *preview.Payload      `json:"preview"`
	RuleErrors []script.RuleError    `json:"ruleErrors"`
}

// NewApp creates a new App with a rules engine.
func NewApp() *App {
	return &App{rules: script.NewEngine()}
}

// startup is called by Wails on app startup. The context is saved
// so we can call Wails runtime methods later if needed.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
}

// Analyze runs the analyzer on raw program text and returns the analysis
// plus render-ready preview data. This is the primary binding called by
// the frontend editor.
func (a *App) Analyze(source string, params AnalyzeParams) AnalyzeResponse {
	opts := gcode.DefaultOptions()
	if params.RapidXY > 0 {
		opts.RapidXY = params.RapidXY
	}
	if params.RapidZ > 0 {
		opts.RapidZ = params.RapidZ
	}
	opts.SafeZ = params.SafeZ
	opts.Stock = params.Stock

	resp := AnalyzeResponse{RuleErrors: []script.RuleError{}}
	resp.Result = gcode.Analyze(strings.Split(source, "\n"), opts)

	if strings.TrimSpace(params.Rules) != "" {
		diags, ruleErrs, err := a.rules.Run(params.Rules, resp.Result)
		if err != nil {
			// Fatal errors (panic, timeout) are reported, never raised.
			log.Printf("rules fatal error: %v", err)
			resp.RuleErrors = append(resp.RuleErrors, script.RuleError{Message: err.Error()})
		}
		resp.RuleErrors = append(resp.RuleErrors, ruleErrs...)
		resp.Result.Diagnostics = append(resp.Result.Diagnostics, diags...)
	}

	pv, err := preview.Build(resp.Result, params.Stock)
	if err != nil {
		log.Printf("preview error: %v", err)
	} else {
		resp.Preview = pv
	}

	return resp
}

// Diagnostics re-runs only the analysis and returns the diagnostics for
// the frontend's lint panel.
func (a *App) Diagnostics(source string, params AnalyzeParams) []lint.Diagnostic {
	return a.Analyze(source, params).Result.Diagnostics
}
