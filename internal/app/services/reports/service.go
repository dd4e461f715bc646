// Package reports serves model training reports: the registry of model
// versions and the markdown/image bundles written next to each model.
package reports

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/stockpredict/server/internal/app/domain/prediction"
	"github.com/stockpredict/server/internal/app/storage"
	"github.com/stockpredict/server/pkg/logger"
)

// imagePattern matches markdown image references so their paths can be
// rewritten to the serving endpoint.
var imagePattern = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)

// allowedImageExts are the only file types served from a report bundle.
var allowedImageExts = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".svg":  "image/svg+xml",
}

// Service serves model reports from the models directory.
type Service struct {
	registry  storage.ModelRegistryStore
	modelsDir string
	log       *logger.Logger
}

// New constructs a reports service rooted at modelsDir.
func New(registry storage.ModelRegistryStore, modelsDir string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("reports")
	}
	return &Service{registry: registry, modelsDir: modelsDir, log: log}
}

// ListModels returns the registered model versions, newest first.
func (s *Service) ListModels(ctx context.Context) ([]prediction.ModelVersion, error) {
	return s.registry.ListModelVersions(ctx)
}

// GetModel returns one model version.
func (s *Service) GetModel(ctx context.Context, version string) (prediction.ModelVersion, error) {
	return s.registry.GetModelVersion(ctx, version)
}

// Report returns the markdown report for a model version with image
// references rewritten to the image-serving endpoint.
func (s *Service) Report(ctx context.Context, version string) (string, error) {
	if _, err := s.registry.GetModelVersion(ctx, version); err != nil {
		return "", err
	}

	dir, err := s.versionDir(version)
	if err != nil {
		return "", err
	}
	raw, err := os.ReadFile(filepath.Join(dir, "report.md"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("report for model %s: %w", version, storage.ErrNotFound)
		}
		return "", err
	}

	rewritten := imagePattern.ReplaceAllStringFunc(string(raw), func(match string) string {
		parts := imagePattern.FindStringSubmatch(match)
		alt, src := parts[1], parts[2]
		if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
			return match
		}
		name := filepath.Base(src)
		return fmt.Sprintf("![%s](/api/v1/reports/%s/images/%s)", alt, version, name)
	})
	return rewritten, nil
}

// Image resolves an image inside a model's report bundle and returns its
// path and content type. Only basenames with an allowed extension are
// served; anything that would escape the bundle directory is rejected.
func (s *Service) Image(ctx context.Context, version, filename string) (string, string, error) {
	if _, err := s.registry.GetModelVersion(ctx, version); err != nil {
		return "", "", err
	}

	if filename != filepath.Base(filename) || strings.Contains(filename, "..") {
		return "", "", fmt.Errorf("invalid image name %q", filename)
	}
	contentType, ok := allowedImageExts[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		return "", "", fmt.Errorf("image type %q not allowed", filepath.Ext(filename))
	}

	dir, err := s.versionDir(version)
	if err != nil {
		return "", "", err
	}
	path := filepath.Join(dir, filename)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", "", fmt.Errorf("image %s: %w", filename, storage.ErrNotFound)
		}
		return "", "", err
	}
	return path, contentType, nil
}

// versionDir resolves a model version to its bundle directory, refusing
// names that would resolve outside the models root.
func (s *Service) versionDir(version string) (string, error) {
	if version != filepath.Base(version) || strings.Contains(version, "..") {
		return "", fmt.Errorf("invalid model version %q", version)
	}
	return filepath.Join(s.modelsDir, version), nil
}
