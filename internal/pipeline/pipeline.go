// Package pipeline runs the asynchronous processing chain for ingested
// alerts: analysis, risk assessment, optional auto-fix, notification
// and event broadcast. Ingestion acknowledges before any of this runs.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/remedian/remedian/internal/analyzer"
	"github.com/remedian/remedian/internal/autofix"
	"github.com/remedian/remedian/internal/broadcast"
	"github.com/remedian/remedian/internal/database"
	"github.com/remedian/remedian/internal/notify"
	"github.com/remedian/remedian/internal/risk"
	"gorm.io/gorm"
)

// Pipeline owns the worker pool that processes alerts end to end
type Pipeline struct {
	db        *gorm.DB
	analyzer  *analyzer.Analyzer
	assessor  *risk.Assessor
	executor  *autofix.Executor
	notifier  *notify.Notifier
	publisher broadcast.Publisher

	queue chan string
	wg    sync.WaitGroup

	// inFlight guards against the same alert being picked up twice by
	// workers in this process; the database claim guards across restarts
	mu       sync.Mutex
	inFlight map[string]bool
}

// New creates a pipeline with a buffered queue and no running workers
func New(db *gorm.DB, an *analyzer.Analyzer, as *risk.Assessor, ex *autofix.Executor, no *notify.Notifier, pub broadcast.Publisher, queueSize int) *Pipeline {
	if pub == nil {
		pub = broadcast.NopPublisher{}
	}
	return &Pipeline{
		db:        db,
		analyzer:  an,
		assessor:  as,
		executor:  ex,
		notifier:  no,
		publisher: pub,
		queue:     make(chan string, queueSize),
		inFlight:  make(map[string]bool),
	}
}

// Start launches the worker pool. Workers drain the queue until ctx is
// cancelled, then Wait returns once in-progress alerts finish.
func (p *Pipeline) Start(ctx context.Context, workers int) {
	log.Printf("Starting alert pipeline with %d workers", workers)
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Wait blocks until all workers have exited
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Enqueue schedules an alert for processing. It never blocks: when the
// queue is full the alert stays pending and the reconciler re-enqueues
// it later.
func (p *Pipeline) Enqueue(alertUUID string) bool {
	select {
	case p.queue <- alertUUID:
		return true
	default:
		log.Printf("Pipeline queue full, alert %s stays pending", alertUUID)
		return false
	}
}

func (p *Pipeline) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case alertUUID := <-p.queue:
			if err := p.Process(ctx, alertUUID, database.AlertStatusPending); err != nil {
				log.Printf("Pipeline: alert %s: %v", alertUUID, err)
			}
		}
	}
}

// Process runs the full chain for one alert. The alert is claimed with
// an atomic status transition from one of the allowed states; a lost
// claim means another worker owns it and is not an error.
func (p *Pipeline) Process(ctx context.Context, alertUUID string, allowed ...database.AlertStatus) error {
	if !p.acquire(alertUUID) {
		return nil
	}
	defer p.release(alertUUID)

	claimed, err := database.ClaimAlert(p.db, alertUUID, allowed...)
	if err != nil {
		return fmt.Errorf("failed to claim alert: %w", err)
	}
	if !claimed {
		return nil
	}

	alert, err := database.GetAlertByUUID(p.db, alertUUID)
	if err != nil {
		return fmt.Errorf("failed to load claimed alert: %w", err)
	}

	// Analysis
	analysis := p.analyzer.Analyze(alert)
	if err := database.AttachAnalysis(p.db, alert.UUID, analysis); err != nil {
		return fmt.Errorf("failed to store analysis: %w", err)
	}
	alert.Analysis = analysis
	p.logStep(alert, database.ActivityActorSystem, "alert.analyzed",
		fmt.Sprintf("Root cause: %s (confidence %.2f)", analysis.RootCause, analysis.Confidence),
		database.JSONB{"confidence": analysis.Confidence, "auto_fixable": analysis.AutoFixable})

	// Risk assessment
	assessment := p.assessor.Assess(alert, analysis)
	p.logStep(alert, database.ActivityActorSystem, "alert.assessed",
		fmt.Sprintf("Risk %s, recommendation %s", assessment.Level, assessment.Recommendation),
		database.JSONB{"level": string(assessment.Level), "recommendation": string(assessment.Recommendation)})

	// Auto-fix
	if assessment.ShouldAutoFix {
		assessment = p.runAutoFix(ctx, alert, analysis, assessment)
	}

	// Unresolved alerts stay in processing awaiting a human; the attached
	// analysis marks them as parked rather than actively worked. Resolved
	// ones were already transitioned by AttachResolution.

	// Notification failures never affect alert state
	cfg, err := database.GetNotificationConfig(p.db)
	if err != nil {
		log.Printf("Pipeline: failed to load notification config: %v", err)
	} else if err := p.notifier.Send(ctx, alert, assessment, cfg); err != nil {
		log.Printf("Pipeline: %v", err)
	}

	p.publisher.Publish(broadcast.Event{
		Type:      broadcast.EventAlertProcessed,
		AlertUUID: alert.UUID,
		Payload: map[string]interface{}{
			"status":         string(alert.Status),
			"risk_level":     string(assessment.Level),
			"recommendation": string(assessment.Recommendation),
		},
	})
	return nil
}

// runAutoFix executes the recommended action once. Failure or timeout
// downgrades the recommendation to manual review.
func (p *Pipeline) runAutoFix(ctx context.Context, alert *database.Alert, analysis database.AlertAnalysis, assessment risk.Assessment) risk.Assessment {
	resolution, err := p.executor.Execute(ctx, alert, analysis)
	if err != nil {
		log.Printf("Pipeline: auto-fix for alert %s failed: %v", alert.UUID, err)
		p.logStep(alert, database.ActivityActorAgent, "autofix.failed", err.Error(), nil)
		assessment.Recommendation = database.RecommendationManualReview
		assessment.ShouldAutoFix = false
		return assessment
	}

	if err := database.AttachResolution(p.db, alert.UUID, *resolution); err != nil {
		log.Printf("Pipeline: failed to store resolution for alert %s: %v", alert.UUID, err)
		return assessment
	}
	alert.Resolution = *resolution
	alert.Status = database.AlertStatusResolved
	p.logStep(alert, database.ActivityActorAgent, "autofix.applied", resolution.Details,
		database.JSONB{"action": string(resolution.Action), "pr_url": resolution.PRURL})

	p.publisher.Publish(broadcast.Event{
		Type:      broadcast.EventAlertResolved,
		AlertUUID: alert.UUID,
		Payload:   map[string]interface{}{"action": string(resolution.Action)},
	})
	return assessment
}

func (p *Pipeline) logStep(alert *database.Alert, actor database.ActivityActor, action, description string, metadata database.JSONB) {
	if err := database.AppendAlertLog(p.db, alert.ID, actor, action, description, metadata); err != nil {
		log.Printf("Pipeline: failed to append activity log: %v", err)
	}
}

func (p *Pipeline) acquire(alertUUID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight[alertUUID] {
		return false
	}
	p.inFlight[alertUUID] = true
	return true
}

func (p *Pipeline) release(alertUUID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, alertUUID)
}
