// Package autofix executes bounded, reversible corrective actions
// against external service APIs. Every execution is a single attempt
// with a hard timeout; retries are operator-triggered replays.
package autofix

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/remedian/remedian/internal/database"
)

// Result carries what an action runner did, for the resolution record
type Result struct {
	Details string
	PRURL   string
}

// ActionRunner performs one named corrective action through an external
// service API. Implementations must honor context cancellation.
type ActionRunner interface {
	Action() database.AutoFixAction
	Run(ctx context.Context, alert *database.Alert) (*Result, error)
}

// Executor dispatches auto-fix actions to their registered runners
type Executor struct {
	runners map[database.AutoFixAction]ActionRunner
	timeout time.Duration
}

// New creates an executor with the given per-action timeout
func New(timeout time.Duration) *Executor {
	return &Executor{
		runners: make(map[database.AutoFixAction]ActionRunner),
		timeout: timeout,
	}
}

// Register adds a runner for an action
func (e *Executor) Register(runner ActionRunner) {
	e.runners[runner.Action()] = runner
	log.Printf("Registered auto-fix runner: %s", runner.Action())
}

// ErrUnknownAction is returned when no runner is registered for the
// analysis's action. The action set is a fixed, closed enumeration.
var ErrUnknownAction = errors.New("no runner registered for auto-fix action")

// Execute runs exactly the action named in the analysis. On success it
// returns the resolution record to attach; on failure or timeout the
// alert must be left unresolved and routed to manual review by the
// caller. Execute never retries.
func (e *Executor) Execute(ctx context.Context, alert *database.Alert, analysis database.AlertAnalysis) (*database.AlertResolution, error) {
	runner, ok := e.runners[analysis.AutoFixAction]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, analysis.AutoFixAction)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	result, err := runner.Run(ctx, alert)
	if err != nil {
		// A timeout is treated identically to a failed call: no
		// partial or ambiguous state is recorded.
		return nil, fmt.Errorf("auto-fix action %s failed: %w", analysis.AutoFixAction, err)
	}

	return &database.AlertResolution{
		Type:    database.ResolutionTypeAutoFix,
		Action:  analysis.AutoFixAction,
		Details: result.Details,
		PRURL:   result.PRURL,
	}, nil
}
