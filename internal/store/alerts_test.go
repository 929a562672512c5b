package store_test

import (
	"context"
	"testing"
	"time"

	"argus/internal/store"
	"argus/internal/testsupport"
)

func TestInsertAlertDefaults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	alert, err := st.InsertAlert(context.Background(), &store.Alert{Title: "Person at door"})
	if err != nil {
		t.Fatalf("InsertAlert failed: %v", err)
	}
	if alert.UID == "" {
		t.Fatal("expected alert UID to be assigned")
	}
	if alert.Status != store.AlertPending {
		t.Fatalf("expected pending status, got %s", alert.Status)
	}
	if alert.Severity != store.SeverityInfo {
		t.Fatalf("expected info severity, got %s", alert.Severity)
	}
}

func TestPendingAlertsOldestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first, err := st.InsertAlert(ctx, &store.Alert{Title: "first"})
	if err != nil {
		t.Fatalf("InsertAlert failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := st.InsertAlert(ctx, &store.Alert{Title: "second"}); err != nil {
		t.Fatalf("InsertAlert failed: %v", err)
	}

	pending, err := st.PendingAlerts(ctx, 10)
	if err != nil {
		t.Fatalf("PendingAlerts failed: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != first.ID {
		t.Fatalf("expected oldest-first pending alerts, got %#v", pending)
	}
}

func TestLastAlertForDedupWindow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := st.InsertAlert(ctx, &store.Alert{Title: "Person at door", DedupKey: "rule-1:porch:person"}); err != nil {
		t.Fatalf("InsertAlert failed: %v", err)
	}

	hit, err := st.LastAlertForDedup(ctx, "rule-1:porch:person", time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("LastAlertForDedup failed: %v", err)
	}
	if hit == nil {
		t.Fatal("expected dedup hit inside window")
	}

	miss, err := st.LastAlertForDedup(ctx, "rule-1:porch:person", time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("LastAlertForDedup failed: %v", err)
	}
	if miss != nil {
		t.Fatalf("expected no dedup hit outside window, got %#v", miss)
	}

	other, err := st.LastAlertForDedup(ctx, "rule-2:porch:person", time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("LastAlertForDedup failed: %v", err)
	}
	if other != nil {
		t.Fatalf("expected no hit for different key, got %#v", other)
	}
}

func TestAcknowledgeAlert(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	alert, err := st.InsertAlert(ctx, &store.Alert{Title: "Noise in yard"})
	if err != nil {
		t.Fatalf("InsertAlert failed: %v", err)
	}

	acked, err := st.AcknowledgeAlert(ctx, alert.UID, "operator")
	if err != nil {
		t.Fatalf("AcknowledgeAlert failed: %v", err)
	}
	if acked == nil || acked.Status != store.AlertAcknowledged {
		t.Fatalf("expected acknowledged alert, got %#v", acked)
	}
	if acked.AcknowledgedAt == nil || acked.AcknowledgedBy != "operator" {
		t.Fatalf("expected acknowledgement recorded, got %#v", acked)
	}

	missing, err := st.AcknowledgeAlert(ctx, "no-such-uid", "operator")
	if err != nil {
		t.Fatalf("AcknowledgeAlert failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown alert, got %#v", missing)
	}
}

func TestRetryFailedAlerts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	alert, err := st.InsertAlert(ctx, &store.Alert{Title: "Delivery failed"})
	if err != nil {
		t.Fatalf("InsertAlert failed: %v", err)
	}
	alert.Status = store.AlertFailed
	alert.DeliveryError = "connection refused"
	if err := st.UpdateAlert(ctx, alert); err != nil {
		t.Fatalf("UpdateAlert failed: %v", err)
	}

	count, err := st.RetryFailedAlerts(ctx)
	if err != nil {
		t.Fatalf("RetryFailedAlerts failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 alert retried, got %d", count)
	}

	retried, err := st.AlertByID(ctx, alert.ID)
	if err != nil {
		t.Fatalf("AlertByID failed: %v", err)
	}
	if retried.Status != store.AlertPending || retried.DeliveryError != "" {
		t.Fatalf("expected pending alert with error cleared, got %#v", retried)
	}
}

func TestAlertStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := st.InsertAlert(ctx, &store.Alert{Title: "pending"}); err != nil {
			t.Fatalf("InsertAlert failed: %v", err)
		}
	}
	dispatched, err := st.InsertAlert(ctx, &store.Alert{Title: "sent"})
	if err != nil {
		t.Fatalf("InsertAlert failed: %v", err)
	}
	now := time.Now().UTC()
	dispatched.Status = store.AlertDispatched
	dispatched.DispatchedAt = &now
	if err := st.UpdateAlert(ctx, dispatched); err != nil {
		t.Fatalf("UpdateAlert failed: %v", err)
	}

	stats, err := st.AlertStats(ctx)
	if err != nil {
		t.Fatalf("AlertStats failed: %v", err)
	}
	if stats[store.AlertPending] != 2 || stats[store.AlertDispatched] != 1 {
		t.Fatalf("unexpected alert stats: %#v", stats)
	}
}
