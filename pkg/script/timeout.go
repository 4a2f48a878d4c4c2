package script

import (
	"fmt"
	"sync"
	"time"

	"toolpath/pkg/lint"
)

// RunTimeout is the hard limit for a single rules-script evaluation.
const RunTimeout = 5 * time.Second

// runResult is the internal type used to pass evaluation results through
// channels.
type runResult struct {
	diags  []lint.Diagnostic
	errors []RuleError
	err    error
}

// waitWithTimeout waits for a result from ch, but returns a timeout error
// if the evaluation exceeds RunTimeout. It uses a generation counter to
// discard stale results from previous evaluations.
//
// On timeout, the goroutine may still be running; the generation check
// ensures its result is discarded when it eventually completes.
func waitWithTimeout(
	ch <-chan runResult,
	gen uint64,
	mu *sync.Mutex,
	currentGen *uint64,
) ([]lint.Diagnostic, []RuleError, error) {
	timer := time.NewTimer(RunTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		// Check if this result is still relevant (not stale).
		mu.Lock()
		current := *currentGen
		mu.Unlock()
		if gen != current {
			return nil, nil, fmt.Errorf("rules evaluation superseded by a newer run")
		}
		return res.diags, res.errors, res.err

	case <-timer.C:
		return nil, nil, fmt.Errorf("rules evaluation timed out after %s", RunTimeout)
	}
}
