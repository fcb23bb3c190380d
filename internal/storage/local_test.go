package storage

import (
	"bytes"
	"log"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newArea(t *testing.T) *Area {
	t.Helper()
	root := t.TempDir()
	area := NewArea(
		filepath.Join(root, "downloads"),
		filepath.Join(root, "temp"),
		filepath.Join(root, "cookie.txt"),
		log.New(os.Stderr, "", 0),
	)
	if err := area.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	return area
}

func TestAreaInitCreatesRoots(t *testing.T) {
	area := newArea(t)

	for _, dir := range []string{area.downloadRoot, area.scratchRoot} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("root %s missing: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("root %s is not a directory", dir)
		}
	}
}

func TestAreaJobDirLifecycle(t *testing.T) {
	area := newArea(t)

	dir, err := area.CreateJobDir("job-1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if dir != area.JobDir("job-1") {
		t.Fatalf("unexpected dir: %s", dir)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("job dir missing: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "job-1.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if err := area.RemoveJobDir("job-1"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("job dir still on disk, stat err=%v", err)
	}

	// 存在しないディレクトリの削除はエラーにならない
	if err := area.RemoveJobDir("job-1"); err != nil {
		t.Fatalf("second remove failed: %v", err)
	}
}

func TestAreaSweepOrphans(t *testing.T) {
	area := newArea(t)
	now := time.Now()

	liveDir, _ := area.CreateJobDir("live-job")
	orphanDir, _ := area.CreateJobDir("orphan-job")
	freshOrphanDir, _ := area.CreateJobDir("fresh-orphan")
	scratchDir, _ := area.CreateScratchDir("stale-scratch")

	old := now.Add(-3 * time.Hour)
	for _, dir := range []string{liveDir, orphanDir, scratchDir} {
		if err := os.Chtimes(dir, old, old); err != nil {
			t.Fatalf("failed to age %s: %v", dir, err)
		}
	}

	removed := area.SweepOrphans(now, 2*time.Hour, func(jobID string) bool {
		return jobID == "live-job"
	})

	if removed != 2 {
		t.Fatalf("expected 2 removals, got %d", removed)
	}
	if _, err := os.Stat(liveDir); err != nil {
		t.Fatalf("live job dir removed: %v", err)
	}
	if _, err := os.Stat(freshOrphanDir); err != nil {
		t.Fatalf("fresh orphan removed before ttl: %v", err)
	}
	if _, err := os.Stat(orphanDir); !os.IsNotExist(err) {
		t.Fatalf("stale orphan still on disk, stat err=%v", err)
	}
	if _, err := os.Stat(scratchDir); !os.IsNotExist(err) {
		t.Fatalf("stale scratch dir still on disk, stat err=%v", err)
	}
}

func TestAreaSweepOrphansMissingRoot(t *testing.T) {
	area := NewArea("/nonexistent/downloads", "/nonexistent/temp", "/nonexistent/cookie.txt", nil)

	if removed := area.SweepOrphans(time.Now(), time.Hour, func(string) bool { return false }); removed != 0 {
		t.Fatalf("expected 0 removals, got %d", removed)
	}
}

func cookieFileHeader(t *testing.T, content string) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("cookie_file", "cookies.txt")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	writer.Close()

	reader := multipart.NewReader(&buf, writer.Boundary())
	form, err := reader.ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("failed to read form: %v", err)
	}
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["cookie_file"][0]
}

func TestAreaSaveCookie(t *testing.T) {
	area := newArea(t)

	if area.CookieExists() {
		t.Fatal("cookie should not exist before upload")
	}

	if err := area.SaveCookie(cookieFileHeader(t, "# Netscape HTTP Cookie File\nfirst")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !area.CookieExists() {
		t.Fatal("cookie should exist after upload")
	}
	data, err := os.ReadFile(area.CookiePath())
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "# Netscape HTTP Cookie File\nfirst" {
		t.Fatalf("unexpected cookie content: %q", data)
	}

	// 2回目のアップロードは既存の内容を置き換える
	if err := area.SaveCookie(cookieFileHeader(t, "second")); err != nil {
		t.Fatalf("second save failed: %v", err)
	}
	data, _ = os.ReadFile(area.CookiePath())
	if string(data) != "second" {
		t.Fatalf("cookie not replaced: %q", data)
	}
}

func TestAreaSaveCookieNilFile(t *testing.T) {
	area := newArea(t)

	if err := area.SaveCookie(nil); err == nil {
		t.Fatal("expected error for nil file header")
	}
}
