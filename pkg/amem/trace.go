package amem

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dan-solli/agenticmemory/pkg/trace"
)

// opTrace accumulates spans for one top-level operation call, then emits a
// metrics.RecordOperation/RecordStage/RecordError triple and a sanitized
// trace.TraceRecord on finish. Adapted from the donor's OperationTrace/Span
// accumulator (pkg/gognee/trace.go), generalized to emit through the two
// ambient-stack interfaces instead of returning the trace inline to the
// caller.
type opTrace struct {
	h         *Handle
	operation string
	opID      string
	start     time.Time
	spans     []trace.SpanRecord
}

func (h *Handle) beginOp(operation string) *opTrace {
	return &opTrace{
		h:         h,
		operation: operation,
		opID:      uuid.NewString(),
		start:     time.Now(),
	}
}

// span times one stage of the operation; fn's error (if any) marks the
// span failed and is returned unchanged to the caller.
func (t *opTrace) span(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	rec := trace.SpanRecord{
		Name:       name,
		DurationMs: time.Since(start).Milliseconds(),
		OK:         err == nil,
	}
	if err != nil {
		rec.ErrorType = errorKind(err)
	}
	t.spans = append(t.spans, rec)
	return err
}

func (t *opTrace) finish(err error) {
	ctx := context.Background()
	duration := time.Since(t.start).Milliseconds()

	status := "success"
	errType := ""
	if err != nil {
		status = "error"
		errType = errorKind(err)
		t.h.metrics.RecordError(ctx, t.operation, errType)
	}
	t.h.metrics.RecordOperation(ctx, t.operation, status, duration)
	for _, s := range t.spans {
		t.h.metrics.RecordStage(ctx, t.operation, s.Name, s.DurationMs)
	}

	record := &trace.TraceRecord{
		Timestamp:   t.start,
		OperationID: t.opID,
		Operation:   t.operation,
		DurationMs:  duration,
		Status:      status,
		Spans:       t.spans,
		ErrorType:   errType,
	}
	_ = t.h.tracer.Export(ctx, record)
}
