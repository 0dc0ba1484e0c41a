// Package storage persists network documents and frame reports.
//
// A DocumentStore is a flat namespace of byte blobs addressed by a path
// such as "networks/volume.json". Put returns a reference that Get accepts;
// for the file and memory stores the reference is the path itself, for the
// Azure store it is the blob URL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotFound is returned by Get when nothing is stored under the reference.
var ErrNotFound = errors.New("document not found")

// DocumentStore stores serialized documents.
type DocumentStore interface {
	Put(ctx context.Context, name string, data []byte, metadata map[string]string) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
}

// NetworkPath returns the standard path of a saved network document.
func NetworkPath(name string) string {
	return fmt.Sprintf("networks/%s.json", name)
}

// ReportPath returns the standard path of a run's frame report file.
func ReportPath(runID string) string {
	return fmt.Sprintf("reports/%s/frames.json", runID)
}

// cleanPath normalizes a store path and rejects escapes from the store root.
func cleanPath(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("storage: path is required")
	}
	cleaned := path.Clean("/" + strings.ReplaceAll(name, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("storage: invalid path %q", name)
	}
	return cleaned, nil
}
