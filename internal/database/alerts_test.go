package database

import (
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"
)

func deliveryRef(id string) *string {
	return &id
}

func createTestAlert(t *testing.T, db *gorm.DB, mutate func(*Alert)) *Alert {
	t.Helper()
	alert := &Alert{
		Source:   AlertSourceCI,
		Type:     "workflow.failure",
		Severity: AlertSeverityWarning,
		Title:    "Build failed",
	}
	if mutate != nil {
		mutate(alert)
	}
	if err := CreateAlert(db, alert); err != nil {
		t.Fatalf("failed to create test alert: %v", err)
	}
	return alert
}

func TestFindAlertByDelivery(t *testing.T) {
	db := setupTestDB(t)

	created := createTestAlert(t, db, func(a *Alert) { a.DeliveryID = deliveryRef("delivery-1") })

	found, err := FindAlertByDelivery(db, AlertSourceCI, "delivery-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.UUID != created.UUID {
		t.Errorf("expected alert %s, got %s", created.UUID, found.UUID)
	}

	// Same delivery ID under a different source is a different delivery
	_, err = FindAlertByDelivery(db, AlertSourceDeployment, "delivery-1")
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("expected record not found for other source, got %v", err)
	}
}

func TestDuplicateDelivery_UniqueIndex(t *testing.T) {
	db := setupTestDB(t)

	createTestAlert(t, db, func(a *Alert) { a.DeliveryID = deliveryRef("delivery-1") })

	dup := &Alert{
		Source:     AlertSourceCI,
		Type:       "workflow.failure",
		Severity:   AlertSeverityWarning,
		Title:      "Build failed again",
		DeliveryID: deliveryRef("delivery-1"),
	}
	if err := CreateAlert(db, dup); err == nil {
		t.Error("expected unique constraint violation for duplicate source+delivery")
	}
}

func TestCreateAlert_WithoutDeliveryIDNeverCollides(t *testing.T) {
	db := setupTestDB(t)

	// Sources that send no delivery identifier leave the column NULL,
	// which must not trip the source+delivery unique index
	createTestAlert(t, db, nil)
	createTestAlert(t, db, nil)

	_, total, err := ListAlerts(db, AlertFilter{}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Errorf("expected 2 alerts without delivery IDs, got %d", total)
	}
}

func TestClaimAlert_AtMostOnce(t *testing.T) {
	db := setupTestDB(t)
	alert := createTestAlert(t, db, nil)

	claimed, err := ClaimAlert(db, alert.UUID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !claimed {
		t.Fatal("expected first claim to succeed")
	}

	claimed, err = ClaimAlert(db, alert.UUID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed {
		t.Error("expected second claim to fail while processing")
	}

	loaded, _ := GetAlertByUUID(db, alert.UUID)
	if loaded.Status != AlertStatusProcessing {
		t.Errorf("expected status 'processing', got '%s'", loaded.Status)
	}
}

func TestClaimAlert_Concurrent(t *testing.T) {
	db := setupTestDB(t)
	alert := createTestAlert(t, db, nil)

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := ClaimAlert(db, alert.UUID)
			if err != nil {
				t.Errorf("claim error: %v", err)
				return
			}
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly 1 winning claim, got %d", wins)
	}
}

func TestClaimAlert_AllowedStatuses(t *testing.T) {
	db := setupTestDB(t)
	alert := createTestAlert(t, db, func(a *Alert) { a.Status = AlertStatusResolved })

	claimed, err := ClaimAlert(db, alert.UUID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed {
		t.Error("resolved alert must not be claimable with default statuses")
	}

	claimed, err = ClaimAlert(db, alert.UUID, AlertStatusResolved)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !claimed {
		t.Error("expected claim to succeed when resolved is explicitly allowed")
	}
}

func TestAttachAnalysisAndResolution(t *testing.T) {
	db := setupTestDB(t)
	alert := createTestAlert(t, db, nil)

	analysis := AlertAnalysis{
		RootCause:     "Transient infrastructure failure",
		SuggestedFix:  "Re-run the workflow",
		AutoFixable:   true,
		AutoFixAction: AutoFixActionRetryWorkflow,
		Confidence:    0.8,
	}
	if err := AttachAnalysis(db, alert.UUID, analysis); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, _ := GetAlertByUUID(db, alert.UUID)
	if !loaded.Analysis.Present() {
		t.Fatal("expected analysis to be present after attach")
	}
	if loaded.Analysis.Confidence != 0.8 {
		t.Errorf("expected confidence 0.8, got %v", loaded.Analysis.Confidence)
	}
	if loaded.Analysis.AutoFixAction != AutoFixActionRetryWorkflow {
		t.Errorf("expected retry_workflow action, got '%s'", loaded.Analysis.AutoFixAction)
	}

	res := AlertResolution{
		Type:    ResolutionTypeAutoFix,
		Action:  AutoFixActionRetryWorkflow,
		Details: "Re-ran workflow",
	}
	if err := AttachResolution(db, alert.UUID, res); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, _ = GetAlertByUUID(db, alert.UUID)
	if loaded.Status != AlertStatusResolved {
		t.Errorf("expected status 'resolved', got '%s'", loaded.Status)
	}
	if loaded.ResolvedAt == nil {
		t.Error("expected resolved_at to be set")
	}
	if !loaded.Resolution.Present() {
		t.Error("expected resolution to be present")
	}
}

func TestListAlerts_FiltersAndPagination(t *testing.T) {
	db := setupTestDB(t)

	for i := 0; i < 3; i++ {
		createTestAlert(t, db, nil)
	}
	createTestAlert(t, db, func(a *Alert) {
		a.Source = AlertSourceErrorTracker
		a.Severity = AlertSeverityCritical
	})

	alerts, total, err := ListAlerts(db, AlertFilter{Source: AlertSourceCI}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(alerts) != 3 {
		t.Errorf("expected 3 ci alerts, got total=%d len=%d", total, len(alerts))
	}

	alerts, total, err = ListAlerts(db, AlertFilter{Severity: AlertSeverityCritical}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(alerts) != 1 {
		t.Errorf("expected 1 critical alert, got total=%d len=%d", total, len(alerts))
	}

	alerts, total, err = ListAlerts(db, AlertFilter{}, 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 4 {
		t.Errorf("expected total 4, got %d", total)
	}
	if len(alerts) != 2 {
		t.Errorf("expected page of 2, got %d", len(alerts))
	}
}

func TestStalePending_SkipsAnalyzedAlerts(t *testing.T) {
	db := setupTestDB(t)

	old := time.Now().Add(-10 * time.Minute)

	stale := createTestAlert(t, db, nil)
	db.Model(&Alert{}).Where("id = ?", stale.ID).Update("created_at", old)

	analyzed := createTestAlert(t, db, nil)
	db.Model(&Alert{}).Where("id = ?", analyzed.ID).Update("created_at", old)
	if err := AttachAnalysis(db, analyzed.UUID, AlertAnalysis{RootCause: "known", Confidence: 0.3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fresh := createTestAlert(t, db, nil)
	_ = fresh

	got, err := StalePending(db, 5*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 stale alert, got %d", len(got))
	}
	if got[0].UUID != stale.UUID {
		t.Errorf("expected stale alert %s, got %s", stale.UUID, got[0].UUID)
	}
}

func TestDeleteExpired_CascadesLogs(t *testing.T) {
	db := setupTestDB(t)

	expired := createTestAlert(t, db, func(a *Alert) {
		a.ExpiresAt = time.Now().Add(-time.Hour)
	})
	if err := AppendAlertLog(db, expired.ID, ActivityActorSystem, "alert.received", "test", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	kept := createTestAlert(t, db, nil)
	if err := AppendAlertLog(db, kept.ID, ActivityActorSystem, "alert.received", "test", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deleted, err := DeleteExpired(db, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted alert, got %d", deleted)
	}

	if _, err := GetAlertByUUID(db, expired.UUID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("expected expired alert to be gone, got %v", err)
	}
	if _, err := GetAlertByUUID(db, kept.UUID); err != nil {
		t.Errorf("expected kept alert to survive, got %v", err)
	}

	logs, err := ListLogsForAlert(db, expired.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 0 {
		t.Errorf("expected logs of expired alert to be purged, got %d", len(logs))
	}

	logs, _ = ListLogsForAlert(db, kept.ID)
	if len(logs) != 1 {
		t.Errorf("expected kept alert's log to survive, got %d", len(logs))
	}
}

func TestTouchDuplicate_OnlyBumpsUpdatedAt(t *testing.T) {
	db := setupTestDB(t)
	alert := createTestAlert(t, db, func(a *Alert) { a.DeliveryID = deliveryRef("d-1") })

	// Backdate updated_at so the bump is observable
	past := time.Now().Add(-time.Hour)
	db.Model(&Alert{}).Where("id = ?", alert.ID).Update("updated_at", past)

	if err := TouchDuplicate(db, alert); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, _ := GetAlertByUUID(db, alert.UUID)
	if !loaded.UpdatedAt.After(past.Add(30 * time.Minute)) {
		t.Errorf("expected updated_at to be bumped, got %v", loaded.UpdatedAt)
	}
	if loaded.Status != AlertStatusPending {
		t.Errorf("duplicate touch must not change status, got '%s'", loaded.Status)
	}
}
