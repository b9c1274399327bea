package queue_test

import (
	"context"
	"testing"
	"time"

	"menuvision/internal/menu"
	"menuvision/internal/queue"
	"menuvision/internal/testsupport"
)

func TestNewJobRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "/tmp/menu.jpg")
	if job.ID == "" {
		t.Fatal("job id should be assigned")
	}
	if job.Status != queue.StatusPending {
		t.Fatalf("new job status = %s", job.Status)
	}
	if job.ImagePath != "/tmp/menu.jpg" {
		t.Fatalf("image path = %q", job.ImagePath)
	}
	if len(job.Dishes) != 0 {
		t.Fatalf("new job should have no dishes, got %d", len(job.Dishes))
	}

	loaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded == nil {
		t.Fatal("job should exist")
	}
	if loaded.ID != job.ID {
		t.Fatalf("loaded %s, want %s", loaded.ID, job.ID)
	}
}

func TestGetByIDAbsent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job, err := store.GetByID(context.Background(), "f2b7e130-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job != nil {
		t.Fatal("absent job should load as nil")
	}
}

func TestUpdatePersistsDishesAndAbsence(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "/tmp/menu.jpg")
	lang := "fr"
	started := time.Now().UTC().Truncate(time.Millisecond)
	deadline := started.Add(15 * time.Minute)

	price := "€12"
	dishWithImage := menu.Dish{
		OriginalName: "Coq au vin",
		Price:        &price,
		Ingredients:  []string{"chicken", "red wine"},
	}
	dishWithImage.SetImageRef("/data/jobs/x/dish_0.png")
	dishMissing := menu.Dish{OriginalName: "Tarte tatin", Ingredients: []string{}}
	dishMissing.SetPlaceholder()

	job.Status = queue.StatusPartial
	job.SourceLanguage = &lang
	job.StartedAt = &started
	job.Deadline = &deadline
	job.Dishes = []menu.Dish{dishWithImage, dishMissing}
	job.ErrorMessage = "image generation incomplete: 1 of 2 dishes"

	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	loaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded.Status != queue.StatusPartial {
		t.Fatalf("status = %s", loaded.Status)
	}
	if loaded.SourceLanguage == nil || *loaded.SourceLanguage != "fr" {
		t.Fatalf("source language = %v", loaded.SourceLanguage)
	}
	if len(loaded.Dishes) != 2 {
		t.Fatalf("dish count = %d", len(loaded.Dishes))
	}
	first := loaded.Dishes[0]
	if first.TranslatedName != nil || first.Description != nil {
		t.Fatal("absent dish fields must stay absent after a round trip")
	}
	if first.Price == nil || *first.Price != "€12" {
		t.Fatalf("price = %v", first.Price)
	}
	if !first.HasImage() {
		t.Fatal("first dish should keep its image ref")
	}
	if loaded.Dishes[1].HasImage() {
		t.Fatal("second dish should hold the placeholder")
	}
	if loaded.StartedAt == nil || !loaded.StartedAt.Equal(started) {
		t.Fatalf("started_at = %v, want %v", loaded.StartedAt, started)
	}
	if loaded.Deadline == nil || !loaded.Deadline.Equal(deadline) {
		t.Fatalf("deadline = %v, want %v", loaded.Deadline, deadline)
	}
}

func TestNextPendingOrdersByAge(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewJob(t, store, "/tmp/a.jpg")
	time.Sleep(5 * time.Millisecond)
	testsupport.NewJob(t, store, "/tmp/b.jpg")

	next, err := store.NextPending(ctx)
	if err != nil {
		t.Fatalf("NextPending: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected oldest pending job %s, got %+v", first.ID, next)
	}

	next.Status = queue.StatusProcessing
	if err := store.Update(ctx, next); err != nil {
		t.Fatalf("Update: %v", err)
	}

	second, err := store.NextPending(ctx)
	if err != nil {
		t.Fatalf("NextPending: %v", err)
	}
	if second == nil || second.ID == first.ID {
		t.Fatal("processing job must not be returned as pending")
	}
}

func TestReclaimStaleProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "/tmp/a.jpg")
	job.Status = queue.StatusProcessing
	stale := time.Now().Add(-time.Hour)
	job.LastHeartbeat = &stale
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	fresh := testsupport.NewJob(t, store, "/tmp/b.jpg")
	fresh.Status = queue.StatusProcessing
	now := time.Now()
	fresh.LastHeartbeat = &now
	if err := store.Update(ctx, fresh); err != nil {
		t.Fatalf("Update: %v", err)
	}

	reclaimed, err := store.ReclaimStaleProcessing(ctx, time.Now().Add(-2*time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStaleProcessing: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("reclaimed = %d, want 1", reclaimed)
	}

	loaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded.Status != queue.StatusFailed {
		t.Fatalf("stale job status = %s, want failed", loaded.Status)
	}
	if loaded.ErrorMessage != queue.StaleReclaimMessage {
		t.Fatalf("error message = %q", loaded.ErrorMessage)
	}

	untouched, err := store.GetByID(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if untouched.Status != queue.StatusProcessing {
		t.Fatalf("fresh job status = %s, want processing", untouched.Status)
	}
}

func TestSummaryCountsStatuses(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	statuses := []queue.Status{
		queue.StatusPending,
		queue.StatusCompleted,
		queue.StatusCompleted,
		queue.StatusPartial,
		queue.StatusFailed,
	}
	for _, status := range statuses {
		job := testsupport.NewJob(t, store, "/tmp/x.jpg")
		job.Status = status
		if err := store.Update(ctx, job); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	summary, err := store.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.Total != 5 || summary.Pending != 1 || summary.Completed != 2 || summary.Partial != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := queue.ParseStatus(" Partial "); !ok || status != queue.StatusPartial {
		t.Fatalf("ParseStatus partial = %v %v", status, ok)
	}
	if _, ok := queue.ParseStatus("bogus"); ok {
		t.Fatal("unknown status should not parse")
	}
	if !queue.StatusPartial.IsTerminal() || queue.StatusProcessing.IsTerminal() {
		t.Fatal("terminal classification wrong")
	}
}
