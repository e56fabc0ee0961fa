// Package audit writes payment audit entries in the background so that a
// slow or failing audit log never holds up a committed payment.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MrJamesThe3rd/billy/internal/billing"
)

const (
	DefaultBuffer = 256
	writeTimeout  = 5 * time.Second
)

// Writer persists a single audit entry.
type Writer interface {
	RecordAudit(ctx context.Context, e billing.AuditEntry) error
}

// Recorder queues entries and writes them from one goroutine. Entries that
// arrive while the queue is full are dropped and logged.
type Recorder struct {
	w       Writer
	logger  *slog.Logger
	entries chan billing.AuditEntry

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewRecorder(w Writer, buffer int, logger *slog.Logger) *Recorder {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		w:       w,
		logger:  logger,
		entries: make(chan billing.AuditEntry, buffer),
		done:    make(chan struct{}),
	}

	go r.run()

	return r
}

// Record enqueues e without blocking.
func (r *Recorder) Record(e billing.AuditEntry) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.logger.Warn("audit recorder closed, dropping entry", "payment_id", e.PaymentID, "action", e.Action)
		return
	}

	select {
	case r.entries <- e:
	default:
		r.logger.Warn("audit queue full, dropping entry", "payment_id", e.PaymentID, "action", e.Action)
	}
}

// Close stops accepting entries and waits until the queue is drained or ctx ends.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.entries)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) run() {
	defer close(r.done)

	for e := range r.entries {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)

		if err := r.w.RecordAudit(ctx, e); err != nil {
			r.logger.Error("failed to write audit entry",
				"payment_id", e.PaymentID,
				"action", e.Action,
				"error", err,
			)
		}

		cancel()
	}
}
