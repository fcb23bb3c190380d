package jobs

import (
	"sync"
	"testing"
	"time"
)

func TestRegistryCreateAndGet(t *testing.T) {
	registry := NewRegistry()

	jobID := registry.Create("https://example.com/watch?v=abc", "137", "140")
	if jobID == "" {
		t.Fatal("expected non-empty job id")
	}

	job, ok := registry.Get(jobID)
	if !ok {
		t.Fatalf("job %s not found", jobID)
	}
	if job.Status != StatusDownloading {
		t.Fatalf("unexpected status: %s", job.Status)
	}
	if job.URL != "https://example.com/watch?v=abc" {
		t.Fatalf("unexpected url: %s", job.URL)
	}
	if job.VideoFormat != "137" || job.AudioFormat != "140" {
		t.Fatalf("unexpected formats: %s / %s", job.VideoFormat, job.AudioFormat)
	}
	if job.StartedAt.IsZero() {
		t.Fatal("expected StartedAt to be set")
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	registry := NewRegistry()

	if _, ok := registry.Get("no-such-job"); ok {
		t.Fatal("expected not found for unknown id")
	}
}

func TestRegistryCreateConcurrentUniqueIDs(t *testing.T) {
	registry := NewRegistry()

	const n = 100
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- registry.Create("https://example.com", "", "")
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate job id: %s", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d unique ids, got %d", n, len(seen))
	}
}

func TestRegistryProgressMonotonic(t *testing.T) {
	registry := NewRegistry()
	jobID := registry.Create("https://example.com", "", "")

	registry.MarkProgress(jobID, 40)
	registry.MarkProgress(jobID, 25)

	job, _ := registry.Get(jobID)
	if job.Progress != 40 {
		t.Fatalf("progress should not decrease, got %.1f", job.Progress)
	}
}

func TestRegistryMarkProcessingPinsProgress(t *testing.T) {
	registry := NewRegistry()
	jobID := registry.Create("https://example.com", "", "")

	registry.MarkProgress(jobID, 80)
	registry.MarkProcessing(jobID)

	job, _ := registry.Get(jobID)
	if job.Status != StatusProcessing {
		t.Fatalf("unexpected status: %s", job.Status)
	}
	if job.Progress != 100 {
		t.Fatalf("expected progress pinned to 100, got %.1f", job.Progress)
	}

	// Processing 中の進捗イベントは反映されない
	registry.MarkProgress(jobID, 10)
	job, _ = registry.Get(jobID)
	if job.Progress != 100 {
		t.Fatalf("progress changed after processing: %.1f", job.Progress)
	}
}

func TestRegistryCompletedFields(t *testing.T) {
	registry := NewRegistry()
	jobID := registry.Create("https://example.com", "", "")

	if !registry.MarkCompleted(jobID, "/tmp/downloads/"+jobID+"/"+jobID+".mp4") {
		t.Fatal("expected first MarkCompleted to apply")
	}

	job, _ := registry.Get(jobID)
	if job.Status != StatusCompleted {
		t.Fatalf("unexpected status: %s", job.Status)
	}
	if job.OutputPath == "" {
		t.Fatal("expected OutputPath on completed job")
	}
	if job.Error != "" {
		t.Fatalf("unexpected error on completed job: %s", job.Error)
	}
	if job.CompletedAt.IsZero() {
		t.Fatal("expected CompletedAt to be set")
	}
}

func TestRegistryTerminalIdempotent(t *testing.T) {
	registry := NewRegistry()
	jobID := registry.Create("https://example.com", "", "")

	if !registry.MarkCompleted(jobID, "/out/first.mp4") {
		t.Fatal("first terminal write rejected")
	}
	if registry.MarkCompleted(jobID, "/out/second.mp4") {
		t.Fatal("second MarkCompleted should be a no-op")
	}
	if registry.MarkFailed(jobID, "boom") {
		t.Fatal("MarkFailed after completion should be a no-op")
	}

	job, _ := registry.Get(jobID)
	if job.OutputPath != "/out/first.mp4" {
		t.Fatalf("output path overwritten: %s", job.OutputPath)
	}
	if job.Status != StatusCompleted || job.Error != "" {
		t.Fatalf("terminal state mutated: %s %q", job.Status, job.Error)
	}
}

func TestRegistryTerminalWinsOverProgress(t *testing.T) {
	registry := NewRegistry()
	jobID := registry.Create("https://example.com", "", "")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(percent float64) {
			defer wg.Done()
			registry.MarkProgress(jobID, percent)
		}(float64(i))
	}
	registry.MarkFailed(jobID, "engine error")
	wg.Wait()

	// 終了遷移後に届いた進捗イベントは捨てられる
	registry.MarkProgress(jobID, 99)

	job, _ := registry.Get(jobID)
	if job.Status != StatusFailed {
		t.Fatalf("unexpected status: %s", job.Status)
	}
	if job.Error != "engine error" {
		t.Fatalf("unexpected error: %s", job.Error)
	}
	if job.Progress == 99 {
		t.Fatal("progress overwritten after terminal write")
	}
}

func TestRegistryCancel(t *testing.T) {
	registry := NewRegistry()
	jobID := registry.Create("https://example.com", "", "")

	if err := registry.Cancel(jobID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	job, _ := registry.Get(jobID)
	if job.Status != StatusCanceled {
		t.Fatalf("unexpected status: %s", job.Status)
	}

	if err := registry.Cancel(jobID); err != ErrNotCancelable {
		t.Fatalf("expected ErrNotCancelable, got %v", err)
	}
	if err := registry.Cancel("no-such-job"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistryCancelCompletedRejected(t *testing.T) {
	registry := NewRegistry()
	jobID := registry.Create("https://example.com", "", "")
	registry.MarkCompleted(jobID, "/out/file.mp4")

	if err := registry.Cancel(jobID); err != ErrNotCancelable {
		t.Fatalf("expected ErrNotCancelable, got %v", err)
	}
	job, _ := registry.Get(jobID)
	if job.Status != StatusCompleted || job.OutputPath != "/out/file.mp4" {
		t.Fatalf("completed job mutated by cancel: %s %s", job.Status, job.OutputPath)
	}
}

func TestRegistryListExpired(t *testing.T) {
	registry := NewRegistry()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return base }

	oldJob := registry.Create("https://example.com/old", "", "")
	registry.MarkFailed(oldJob, "boom")

	registry.now = func() time.Time { return base.Add(25 * time.Minute) }
	freshJob := registry.Create("https://example.com/fresh", "", "")
	registry.MarkCompleted(freshJob, "/out/fresh.mp4")

	runningJob := registry.Create("https://example.com/running", "", "")

	now := base.Add(40 * time.Minute)
	expired := registry.ListExpired(now, 30*time.Minute)
	if len(expired) != 1 || expired[0] != oldJob {
		t.Fatalf("unexpected expired set: %v", expired)
	}

	// 実行中のジョブはどれだけ古くても回収対象にならない
	expired = registry.ListExpired(now.Add(24*time.Hour), 30*time.Minute)
	for _, id := range expired {
		if id == runningJob {
			t.Fatal("running job listed as expired")
		}
	}
}

func TestRegistryCounts(t *testing.T) {
	registry := NewRegistry()

	first := registry.Create("https://example.com/1", "", "")
	registry.Create("https://example.com/2", "", "")
	registry.MarkCompleted(first, "/out/1.mp4")

	active, terminal := registry.Counts()
	if active != 1 || terminal != 1 {
		t.Fatalf("unexpected counts: active=%d terminal=%d", active, terminal)
	}
}
