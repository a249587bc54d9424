package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	cache, err := NewCache(mr.Host(), mr.Server().Addr().Port, "", 0)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create cache: %v", err)
	}

	return cache, mr
}

func TestNewCache(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	if err := cache.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestCache_JobOperations(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	job := &models.RenderJob{
		ID:         "job-1",
		QuestionID: "q-1",
		Script:     "Hello there.",
		Status:     models.StageScriptGenerated,
	}

	if err := cache.SetJob(ctx, job, 5*time.Minute); err != nil {
		t.Fatalf("SetJob failed: %v", err)
	}

	retrieved, err := cache.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if retrieved == nil {
		t.Fatal("Retrieved job should not be nil")
	}
	if retrieved.Status != models.StageScriptGenerated || retrieved.Script != job.Script {
		t.Errorf("Unexpected job %+v", retrieved)
	}

	if err := cache.DeleteJob(ctx, job.ID); err != nil {
		t.Fatalf("DeleteJob failed: %v", err)
	}

	retrieved, err = cache.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob after delete failed: %v", err)
	}
	if retrieved != nil {
		t.Error("Expected cache miss after delete")
	}
}

func TestCache_JobExpiry(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()
	if err := cache.SetJob(ctx, &models.RenderJob{ID: "job-2"}, time.Second); err != nil {
		t.Fatalf("SetJob failed: %v", err)
	}

	mr.FastForward(2 * time.Second)

	retrieved, err := cache.GetJob(ctx, "job-2")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if retrieved != nil {
		t.Error("Expected expired job to miss")
	}
}

func TestCache_JobProgress(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	if _, ok, err := cache.GetJobProgress(ctx, "job-3"); err != nil || ok {
		t.Fatalf("Expected no progress, got ok=%v err=%v", ok, err)
	}

	if err := cache.SetJobProgress(ctx, "job-3", 42.5, time.Minute); err != nil {
		t.Fatalf("SetJobProgress failed: %v", err)
	}

	progress, ok, err := cache.GetJobProgress(ctx, "job-3")
	if err != nil || !ok {
		t.Fatalf("GetJobProgress failed: ok=%v err=%v", ok, err)
	}
	if progress != 42.5 {
		t.Errorf("Expected progress 42.5, got %v", progress)
	}

	if !mr.Exists("job:progress:job-3") {
		t.Error("Expected progress key job:progress:job-3")
	}

	if err := cache.ClearJobProgress(ctx, "job-3"); err != nil {
		t.Fatalf("ClearJobProgress failed: %v", err)
	}
	if mr.Exists("job:progress:job-3") {
		t.Error("Expected progress key to be removed")
	}
}

func TestCache_Lock(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	lock, err := cache.AcquireLock(ctx, "job-4", time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}

	if _, err := cache.AcquireLock(ctx, "job-4", time.Minute); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("Expected ErrLockHeld, got %v", err)
	}

	if err := lock.Release(ctx); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	again, err := cache.AcquireLock(ctx, "job-4", time.Minute)
	if err != nil {
		t.Fatalf("Expected lock to be free after release: %v", err)
	}
	defer again.Release(ctx)
}

func TestCache_LockReleaseAfterTakeover(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	stale, err := cache.AcquireLock(ctx, "job-5", time.Second)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}

	mr.FastForward(2 * time.Second)

	owner, err := cache.AcquireLock(ctx, "job-5", time.Minute)
	if err != nil {
		t.Fatalf("Expected expired lock to be free: %v", err)
	}

	// The stale holder must not drop the new owner's lock.
	if err := stale.Release(ctx); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := cache.AcquireLock(ctx, "job-5", time.Minute); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("Expected lock to still be held, got %v", err)
	}

	if err := owner.Release(ctx); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
}
