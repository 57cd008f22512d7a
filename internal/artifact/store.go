// Package artifact persists the downloadable outputs of a run.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/Gmabatah93/Project2Article/internal/config"
)

// Artifact names written for every finished run.
const (
	ArticleMarkdown = "article.md"
	ArticleHTML     = "article.html"
	Report          = "report.json"
	Structure       = "structure.mmd"
)

// Store defines operations for persisting run artifacts.
type Store interface {
	Put(ctx context.Context, runID, name string, content []byte) error
	Get(ctx context.Context, runID, name string) ([]byte, error)
	// GetURL returns a direct download URL, or "" when the backend has none.
	GetURL(ctx context.Context, runID, name string) (string, error)
	List(ctx context.Context, runID string) ([]string, error)
}

var (
	ErrNotFound    = errors.New("artifact not found")
	ErrInvalidName = errors.New("invalid artifact name")
)

// Open builds the store selected by cfg.Backend.
func Open(cfg config.ArtifactConfig) (Store, error) {
	switch cfg.Backend {
	case "", "disk":
		return NewDiskStore(cfg.Dir)
	case "memory":
		return NewMemoryStore(), nil
	case "s3":
		return NewS3Store(S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			UseSSL:    cfg.S3.Secure,
			Prefix:    cfg.S3.Prefix,
		})
	default:
		return nil, fmt.Errorf("artifact: unknown backend %q", cfg.Backend)
	}
}

// cleanKey validates runID and name and returns them trimmed. Names are
// relative slash paths that stay below the run.
func cleanKey(runID, name string) (string, string, error) {
	runID = strings.TrimSpace(runID)
	name = strings.TrimLeft(strings.TrimSpace(name), "/")
	if runID == "" || strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return "", "", fmt.Errorf("%w: run id %q", ErrInvalidName, runID)
	}
	if name == "" {
		return "", "", fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	clean := path.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, "../") || strings.Contains(name, `\`) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return runID, clean, nil
}

// ContentType returns the MIME type served for an artifact name.
func ContentType(name string) string {
	switch path.Ext(name) {
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".html":
		return "text/html; charset=utf-8"
	case ".json":
		return "application/json"
	case ".mmd":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
