package importer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/larder/internal/testutil"
)

func tempInbox(t *testing.T) *Inbox {
	t.Helper()
	in, err := OpenInbox(t.TempDir())
	if err != nil {
		t.Fatalf("OpenInbox: %v", err)
	}
	in.now = func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC) }
	return in
}

func TestOpenInboxCreatesDirs(t *testing.T) {
	in := tempInbox(t)
	for _, d := range []string{ImportedDir, FailedDir} {
		if info, err := os.Stat(filepath.Join(in.Root(), d)); err != nil || !info.IsDir() {
			t.Errorf("%s missing: %v", d, err)
		}
	}
}

func TestPendingFiltersFiles(t *testing.T) {
	in := tempInbox(t)
	for _, name := range []string{"b.json", "a.yaml", ".tmp.json", "notes.txt"} {
		os.WriteFile(filepath.Join(in.Root(), name), []byte("[]"), 0o644)
	}
	got, err := in.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, ",") != "a.yaml,b.json" {
		t.Errorf("pending = %v", got)
	}
}

func TestReadRejectsTraversal(t *testing.T) {
	in := tempInbox(t)
	if _, err := in.Read("../../etc/passwd"); err == nil {
		t.Error("expected error for traversal")
	}
	if _, err := in.Read("/etc/passwd"); err == nil {
		t.Error("expected error for absolute path")
	}
}

func TestProcessFileImportsAndArchives(t *testing.T) {
	in := tempInbox(t)
	st := testutil.TestStore(t)
	os.WriteFile(filepath.Join(in.Root(), "batch.json"), []byte(`[{"title":"Soup"},"nope"]`), 0o644)

	sum, err := ProcessFile(context.Background(), in, New(st, nil), "u1", "batch.json")
	if err != nil {
		t.Fatal(err)
	}
	if sum.SuccessCount != 1 || sum.ErrorCount != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	archived := filepath.Join(in.Root(), ImportedDir, "20260203T040506-batch.json")
	if _, err := os.Stat(archived); err != nil {
		t.Fatalf("not archived: %v", err)
	}
	data, err := os.ReadFile(archived + ".report.json")
	if err != nil {
		t.Fatalf("report missing: %v", err)
	}
	var report Summary
	if err := json.Unmarshal(data, &report); err != nil || report.ErrorCount != 1 {
		t.Errorf("report = %s", data)
	}
}

func TestProcessFileUndecodable(t *testing.T) {
	in := tempInbox(t)
	os.WriteFile(filepath.Join(in.Root(), "broken.json"), []byte(`{`), 0o644)

	if _, err := ProcessFile(context.Background(), in, New(testutil.TestStore(t), nil), "u1", "broken.json"); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := os.Stat(filepath.Join(in.Root(), FailedDir, "20260203T040506-broken.json.report.json")); err != nil {
		t.Errorf("failure report missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(in.Root(), "broken.json")); !os.IsNotExist(err) {
		t.Error("file left in inbox")
	}
}
