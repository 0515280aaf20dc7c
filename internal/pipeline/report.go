// Package pipeline wires the stage orchestrators: each stage pulls from one
// layer, transforms, and pushes to the next, reporting per-item outcomes
// instead of aborting on the first bad record.
package pipeline

import (
	"sync"

	"go.uber.org/zap"
)

// Failure records one item a stage could not process.
type Failure struct {
	Item string
	Err  string
}

// Report accumulates per-item outcomes for a stage run. Safe for
// concurrent use by the stage's workers. Counters only ever increase;
// the caller reads them after the run.
type Report struct {
	mu        sync.Mutex
	processed int
	failed    int
	skipped   int
	chunks    int
	failures  []Failure
}

// AddProcessed counts one successfully handled item.
func (r *Report) AddProcessed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed++
}

// AddFailed counts one failed item and records why.
func (r *Report) AddFailed(item string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed++
	r.failures = append(r.failures, Failure{Item: item, Err: err.Error()})
}

// AddSkipped counts one item intentionally not processed.
func (r *Report) AddSkipped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped++
}

// AddChunks counts chunks written to the vector store.
func (r *Report) AddChunks(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks += n
}

// Processed returns the success count.
func (r *Report) Processed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processed
}

// Failed returns the failure count.
func (r *Report) Failed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed
}

// Skipped returns the skip count.
func (r *Report) Skipped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.skipped
}

// Chunks returns the chunk count.
func (r *Report) Chunks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chunks
}

// Failures returns a copy of the recorded failures.
func (r *Report) Failures() []Failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Failure, len(r.failures))
	copy(out, r.failures)
	return out
}

// Total returns processed+failed+skipped. After a run this must equal the
// number of input items; LogSummary flags the discrepancy if it does not.
func (r *Report) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processed + r.failed + r.skipped
}

// LogSummary emits the end-of-run accounting. expected is the number of
// input items the stage saw.
func (r *Report) LogSummary(logger *zap.Logger, stage string, expected int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	logger.Info("Stage summary",
		zap.String("stage", stage),
		zap.Int("processed", r.processed),
		zap.Int("failed", r.failed),
		zap.Int("skipped", r.skipped),
		zap.Int("chunks", r.chunks))

	for _, f := range r.failures {
		logger.Warn("Item failed",
			zap.String("stage", stage),
			zap.String("item", f.Item),
			zap.String("error", f.Err))
	}

	total := r.processed + r.failed + r.skipped
	if total != expected {
		logger.Warn("Accounting discrepancy",
			zap.String("stage", stage),
			zap.Int("expected", expected),
			zap.Int("accounted", total))
	}
}

// Summary is the JSON payload published after a stage run.
type Summary struct {
	Stage     string    `json:"stage"`
	Window    string    `json:"window,omitempty"`
	Processed int       `json:"processed"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	Chunks    int       `json:"chunks,omitempty"`
	Deleted   int64     `json:"deleted,omitempty"`
	Inserted  int64     `json:"inserted,omitempty"`
	Failures  []Failure `json:"failures,omitempty"`
}

// Summarize freezes a report into a publishable payload.
func (r *Report) Summarize(stage, window string) Summary {
	return Summary{
		Stage:     stage,
		Window:    window,
		Processed: r.Processed(),
		Failed:    r.Failed(),
		Skipped:   r.Skipped(),
		Chunks:    r.Chunks(),
		Failures:  r.Failures(),
	}
}
