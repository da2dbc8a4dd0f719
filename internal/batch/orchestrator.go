// Package batch drives synthesis over a contiguous window of the syllable
// enumeration, skipping syllables whose audio already exists on disk.
//
// Progress is always recomputed by scanning the output directory, so a batch
// can be re-run at any offset and only missing files are produced.
package batch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/book-expert/hangul-tts/internal/core"
	"github.com/book-expert/hangul-tts/internal/hangul"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
)

const (
	// DefaultBatchSize is used when a request does not name a size.
	DefaultBatchSize = 50
	// DefaultCallDelay is the fixed pause between successive synthesis calls.
	DefaultCallDelay = 100 * time.Millisecond
	// ReportLimit caps the results and errors echoed back per batch.
	ReportLimit = 5
)

const (
	logFmtBatchStart    = "Batch %s starting at %d, size %d"
	logFmtProgress      = "Progress: %d%% (%d/%d)"
	logFmtSkip          = "Skipping existing file: '%s' -> %s (%d/%d)"
	logFmtGenerating    = "Generating: '%s' -> %s (%d/%d) jamo (%s, %s, %s)"
	logFmtSyllableError = "Failed for syllable '%s' (%s): %v"
	logFmtBatchDone     = "Batch %s done: processed %d (restored %d), skipped %d, errors %d"
	logFmtMirrorFailed  = "Failed to mirror %s: %v"
	logFmtRestored      = "Restored from mirror: '%s' -> %s (%d/%d)"
	logFmtRestoreFailed = "Failed to restore %s from mirror: %v"
	logFmtNotifyFailed  = "Failed to announce %s: %v"
	logFmtLastBatch     = "Last batch completed, regenerating index"
)

var (
	// ErrInvalidRequest indicates a negative offset or non-positive batch size.
	ErrInvalidRequest = errors.New("invalid batch request")
	// ErrNoIndexBuilder indicates a final batch without an index builder configured.
	ErrNoIndexBuilder = errors.New("index builder not configured")
)

// Request selects the window [StartIndex, StartIndex+BatchSize).
type Request struct {
	StartIndex int `json:"startIndex"`
	BatchSize  int `json:"batchSize"`
}

// SyllableError records one failed syllable without aborting the batch.
type SyllableError struct {
	Syllable string `json:"syllable"`
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// Window echoes the requested slice.
type Window struct {
	StartIndex int `json:"startIndex"`
	EndIndex   int `json:"endIndex"`
	BatchSize  int `json:"batchSize"`
}

// Progress is a snapshot derived from the files on disk.
type Progress struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
	Remaining  int `json:"remaining"`
}

// Result summarizes one batch.
type Result struct {
	Success        bool             `json:"success"`
	BatchID        string           `json:"batchId"`
	Processed      int              `json:"processed"`
	Restored       int              `json:"restored"`
	Skipped        int              `json:"skipped"`
	ErrorCount     int              `json:"errorCount"`
	TotalSyllables int              `json:"totalSyllables"`
	CurrentBatch   Window           `json:"currentBatch"`
	IsComplete     bool             `json:"isComplete"`
	NextStartIndex *int             `json:"nextStartIndex"`
	IndexGenerated bool             `json:"indexGenerated"`
	IndexPath      string           `json:"-"`
	Progress       Progress         `json:"progress"`
	Results        []core.SavedFile `json:"results"`
	Errors         []SyllableError  `json:"errors"`
}

// Options wires the orchestrator's collaborators. Mirror and Notifier are optional.
type Options struct {
	Synthesizer core.Synthesizer
	Store       core.AudioStore
	Index       core.IndexBuilder
	Mirror      core.ObjectStore
	Notifier    core.Notifier
	CallDelay   time.Duration
	Log         *logger.Logger
}

// Orchestrator runs batches strictly sequentially within one call.
type Orchestrator struct {
	opts  Options
	sleep func(ctx context.Context, d time.Duration)
}

// New creates an orchestrator. A zero CallDelay means DefaultCallDelay; use a negative value to disable the pause.
func New(opts Options) *Orchestrator {
	if opts.CallDelay == 0 {
		opts.CallDelay = DefaultCallDelay
	}

	return &Orchestrator{opts: opts, sleep: sleepContext}
}

// Progress scans the output directory and compares it with the enumeration size.
func (o *Orchestrator) Progress() (Progress, error) {
	completed, err := o.opts.Store.CountCompleted()
	if err != nil {
		return Progress{}, fmt.Errorf("failed to count completed files: %w", err)
	}

	return newProgress(completed, hangul.Total), nil
}

func newProgress(completed, total int) Progress {
	percentage := 0
	if total > 0 {
		percentage = int(math.Round(float64(completed) / float64(total) * 100))
	}

	return Progress{
		Completed:  completed,
		Total:      total,
		Percentage: percentage,
		Remaining:  max(0, total-completed),
	}
}

// Run processes one window of the enumeration. Per-syllable failures are recorded in the
// result; filesystem scan failures abort the whole call.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if req.BatchSize == 0 {
		req.BatchSize = DefaultBatchSize
	}

	if req.StartIndex < 0 || req.BatchSize < 0 {
		return nil, fmt.Errorf("%w: startIndex=%d batchSize=%d", ErrInvalidRequest, req.StartIndex, req.BatchSize)
	}

	batchID := uuid.NewString()
	selected := hangul.Slice(req.StartIndex, req.BatchSize)
	end := windowEnd(req.StartIndex, req.BatchSize)

	o.opts.Log.Info(logFmtBatchStart, batchID, req.StartIndex, len(selected))

	before, err := o.Progress()
	if err != nil {
		return nil, err
	}

	o.opts.Log.Info(logFmtProgress, before.Percentage, before.Completed, before.Total)

	result := &Result{
		Success:        true,
		BatchID:        batchID,
		TotalSyllables: hangul.Total,
		CurrentBatch: Window{
			StartIndex: req.StartIndex,
			EndIndex:   end,
			BatchSize:  req.BatchSize,
		},
		Results: []core.SavedFile{},
		Errors:  []SyllableError{},
	}

	err = o.processWindow(ctx, batchID, selected, result)
	if err != nil {
		return nil, err
	}

	o.opts.Log.Info(logFmtBatchDone, batchID, result.Processed, result.Restored, result.Skipped, result.ErrorCount)

	result.Progress, err = o.Progress()
	if err != nil {
		return nil, err
	}

	o.opts.Log.Info(logFmtProgress, result.Progress.Percentage, result.Progress.Completed, result.Progress.Total)

	result.IsComplete = end >= hangul.Total

	if !result.IsComplete {
		next := end
		result.NextStartIndex = &next

		return result, nil
	}

	if o.opts.Index == nil {
		return nil, ErrNoIndexBuilder
	}

	o.opts.Log.Info(logFmtLastBatch)

	result.IndexPath, err = o.opts.Index.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build index: %w", err)
	}

	result.IndexGenerated = true

	return result, nil
}

func (o *Orchestrator) processWindow(
	ctx context.Context,
	batchID string,
	selected []hangul.Syllable,
	result *Result,
) error {
	called := false

	for _, syllable := range selected {
		ctxErr := ctx.Err()
		if ctxErr != nil {
			return fmt.Errorf("batch %s interrupted: %w", batchID, ctxErr)
		}

		exists, err := o.opts.Store.Exists(syllable)
		if err != nil {
			return err
		}

		position := syllable.Index + 1

		if exists {
			result.Skipped++
			o.opts.Log.Info(logFmtSkip, syllable, syllable.Filename, position, hangul.Total)

			continue
		}

		saved, restored := o.restore(ctx, syllable)
		if restored {
			o.opts.Log.Info(logFmtRestored, syllable, syllable.Filename, position, hangul.Total)
			result.Restored++
			o.record(ctx, batchID, saved, syllable, result)

			continue
		}

		if called {
			o.sleep(ctx, o.opts.CallDelay)
		}

		called = true

		o.opts.Log.Info(logFmtGenerating, syllable, syllable.Filename, position, hangul.Total,
			syllable.Initial, syllable.Medial, syllable.Final)

		saved, err = o.generate(ctx, syllable)
		if err != nil {
			o.opts.Log.Error(logFmtSyllableError, syllable, syllable.Filename, err)
			result.ErrorCount++

			if len(result.Errors) < ReportLimit {
				result.Errors = append(result.Errors, SyllableError{
					Syllable: syllable.String(),
					Filename: syllable.Filename,
					Error:    err.Error(),
				})
			}

			continue
		}

		o.record(ctx, batchID, saved, syllable, result)
	}

	return nil
}

func (o *Orchestrator) record(
	ctx context.Context,
	batchID string,
	saved core.SavedFile,
	syllable hangul.Syllable,
	result *Result,
) {
	result.Processed++
	if len(result.Results) < ReportLimit {
		result.Results = append(result.Results, saved)
	}

	o.publish(ctx, batchID, saved, syllable)
}

// restore copies a mirrored object back to disk when the local file is missing.
// Any failure falls through to synthesis.
func (o *Orchestrator) restore(ctx context.Context, syllable hangul.Syllable) (core.SavedFile, bool) {
	if o.opts.Mirror == nil {
		return core.SavedFile{}, false
	}

	audio, err := o.opts.Mirror.Download(ctx, mirrorKey(syllable))
	if errors.Is(err, core.ErrObjectNotFound) {
		return core.SavedFile{}, false
	}

	if err != nil {
		o.opts.Log.Warn(logFmtRestoreFailed, syllable.Filename, err)

		return core.SavedFile{}, false
	}

	if len(audio) == 0 {
		return core.SavedFile{}, false
	}

	saved, err := o.opts.Store.Save(audio, syllable)
	if err != nil {
		o.opts.Log.Warn(logFmtRestoreFailed, syllable.Filename, err)

		return core.SavedFile{}, false
	}

	return saved, true
}

func (o *Orchestrator) generate(ctx context.Context, syllable hangul.Syllable) (core.SavedFile, error) {
	audio, err := o.opts.Synthesizer.Synthesize(ctx, syllable.String())
	if err != nil {
		return core.SavedFile{}, err
	}

	saved, err := o.opts.Store.Save(audio, syllable)
	if err != nil {
		return core.SavedFile{}, err
	}

	if o.opts.Mirror != nil {
		mirrorErr := o.opts.Mirror.Upload(ctx, mirrorKey(syllable), audio)
		if mirrorErr != nil {
			o.opts.Log.Warn(logFmtMirrorFailed, saved.PublicPath, mirrorErr)
		}
	}

	return saved, nil
}

func (o *Orchestrator) publish(ctx context.Context, batchID string, saved core.SavedFile, syllable hangul.Syllable) {
	if o.opts.Notifier == nil {
		return
	}

	notifyErr := o.opts.Notifier.AudioSaved(ctx, batchID, saved, syllable.Index, hangul.Total)
	if notifyErr != nil {
		o.opts.Log.Warn(logFmtNotifyFailed, saved.PublicPath, notifyErr)
	}
}

// windowEnd returns the exclusive end of the window, clamped to the enumeration
// without overflowing on very large sizes.
func windowEnd(start, size int) int {
	if size >= hangul.Total-start {
		return max(start, hangul.Total)
	}

	return start + size
}

// mirrorKey is the object name used for a syllable in the blob store.
func mirrorKey(syllable hangul.Syllable) string {
	return syllable.Initial + "/" + syllable.Filename
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
