package reports

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stockpredict/server/internal/app/domain/prediction"
	"github.com/stockpredict/server/internal/app/storage/memory"
)

func newService(t *testing.T) (*Service, string) {
	t.Helper()
	store := memory.New()
	_, err := store.CreateModelVersion(context.Background(), prediction.ModelVersion{Version: "v1", Status: "active"})
	if err != nil {
		t.Fatalf("seed model: %v", err)
	}

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "v1"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return New(store, dir, nil), dir
}

func TestReportRewritesImagePaths(t *testing.T) {
	svc, dir := newService(t)

	md := "# Report\n\n![confusion](plots/confusion.png)\n![ext](https://example.com/x.png)\n"
	if err := os.WriteFile(filepath.Join(dir, "v1", "report.md"), []byte(md), 0o644); err != nil {
		t.Fatalf("write report: %v", err)
	}

	got, err := svc.Report(context.Background(), "v1")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(got, "![confusion](/api/v1/reports/v1/images/confusion.png)") {
		t.Fatalf("local image not rewritten:\n%s", got)
	}
	if !strings.Contains(got, "https://example.com/x.png") {
		t.Fatalf("external image should be left alone:\n%s", got)
	}
}

func TestReportMissing(t *testing.T) {
	svc, _ := newService(t)
	if _, err := svc.Report(context.Background(), "v1"); err == nil {
		t.Fatalf("missing report.md should fail")
	}
}

func TestReportUnknownModel(t *testing.T) {
	svc, _ := newService(t)
	if _, err := svc.Report(context.Background(), "v9"); err == nil {
		t.Fatalf("unknown model version should fail")
	}
}

func TestImage(t *testing.T) {
	svc, dir := newService(t)
	if err := os.WriteFile(filepath.Join(dir, "v1", "roc.png"), []byte("png"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}

	path, contentType, err := svc.Image(context.Background(), "v1", "roc.png")
	if err != nil {
		t.Fatalf("image: %v", err)
	}
	if contentType != "image/png" {
		t.Fatalf("content type = %s, want image/png", contentType)
	}
	if filepath.Base(path) != "roc.png" {
		t.Fatalf("unexpected path %s", path)
	}
}

func TestImageRejectsTraversal(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	for _, name := range []string{"../secret.png", "a/../../b.png", "..%2Fescape.png"} {
		if _, _, err := svc.Image(ctx, "v1", name); err == nil {
			t.Fatalf("traversal name %q should be rejected", name)
		}
	}
	if _, _, err := svc.Image(ctx, "../v1", "roc.png"); err == nil {
		t.Fatalf("traversal version should be rejected")
	}
}

func TestImageRejectsDisallowedExtension(t *testing.T) {
	svc, dir := newService(t)
	if err := os.WriteFile(filepath.Join(dir, "v1", "model.pkl"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, _, err := svc.Image(context.Background(), "v1", "model.pkl"); err == nil {
		t.Fatalf("non-image extension should be rejected")
	}
}
