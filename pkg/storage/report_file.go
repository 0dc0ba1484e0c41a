package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wehubfusion/Prism/pkg/executor"
)

// ProcessorEntry is the stored outcome of one processor in one frame.
type ProcessorEntry struct {
	Type       string `json:"type"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	DurationUs int64  `json:"duration_us"`
}

// FrameEntry is the stored form of an executor.FrameReport.
type FrameEntry struct {
	ID         string                    `json:"id"`
	Frame      uint64                    `json:"frame"`
	Started    time.Time                 `json:"started"`
	DurationUs int64                     `json:"duration_us"`
	Order      []string                  `json:"order"`
	Processors map[string]ProcessorEntry `json:"processors"`
}

// ReportFile is the per-run file holding every archived frame.
type ReportFile struct {
	RunID  string       `json:"run_id"`
	Frames []FrameEntry `json:"frames"`
}

// NewFrameEntry converts a frame report.
func NewFrameEntry(report *executor.FrameReport) FrameEntry {
	entry := FrameEntry{
		ID:         report.ID.String(),
		Frame:      report.Frame,
		Started:    report.Started,
		DurationUs: report.Duration.Microseconds(),
		Order:      make([]string, len(report.Order)),
		Processors: make(map[string]ProcessorEntry, len(report.Results)),
	}
	for i, id := range report.Order {
		entry.Order[i] = id.String()
	}
	for _, res := range report.Results {
		entry.Processors[res.Processor.String()] = ProcessorEntry{
			Type:       res.Type,
			Status:     string(res.Status),
			Error:      res.Error,
			DurationUs: res.Duration.Microseconds(),
		}
	}
	return entry
}

// ReportArchive appends frame reports to one shared file per run.
type ReportArchive struct {
	store  DocumentStore
	logger *zap.Logger
	mu     sync.Mutex
}

// NewReportArchive creates an archive on store.
func NewReportArchive(store DocumentStore, logger *zap.Logger) *ReportArchive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportArchive{store: store, logger: logger}
}

// Append adds report to the run's file. It reads the current file, adds the
// frame and writes it back; a file that cannot be parsed is started afresh.
func (a *ReportArchive) Append(ctx context.Context, runID string, report *executor.FrameReport) (string, error) {
	if a.store == nil {
		return "", fmt.Errorf("document store not initialized")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	path := ReportPath(runID)
	file := &ReportFile{RunID: runID}

	existing, err := a.store.Get(ctx, path)
	switch {
	case errors.Is(err, ErrNotFound):
		a.logger.Debug("Report file doesn't exist yet, creating new", zap.String("path", path))
	case err != nil:
		return "", fmt.Errorf("failed to read report file: %w", err)
	default:
		if err := json.Unmarshal(existing, file); err != nil {
			a.logger.Error("Failed to parse existing report file, starting fresh",
				zap.String("path", path),
				zap.Error(err))
			file = &ReportFile{RunID: runID}
		}
	}

	file.Frames = append(file.Frames, NewFrameEntry(report))
	data, err := json.Marshal(file)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report file: %w", err)
	}

	ref, err := a.store.Put(ctx, path, data, map[string]string{
		"run_id":        runID,
		"frame_count":   strconv.Itoa(len(file.Frames)),
		"last_frame":    strconv.FormatUint(report.Frame, 10),
		"last_modified": time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload report file: %w", err)
	}

	a.logger.Debug("Archived frame report",
		zap.String("run_id", runID),
		zap.Uint64("frame", report.Frame),
		zap.Int("total_frames", len(file.Frames)))
	return ref, nil
}

// Get downloads and parses a run's report file.
func (a *ReportArchive) Get(ctx context.Context, runID string) (*ReportFile, error) {
	if a.store == nil {
		return nil, fmt.Errorf("document store not initialized")
	}
	data, err := a.store.Get(ctx, ReportPath(runID))
	if err != nil {
		return nil, fmt.Errorf("failed to download report file: %w", err)
	}
	var file ReportFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse report file: %w", err)
	}
	return &file, nil
}
