// Package audit delivers activity log records. Delivery is best effort:
// callers go through a Recorder, which never surfaces a failure.
package audit

import (
	"context"
	"log/slog"

	"github.com/geocoder89/authservice/internal/domain/activity"
)

type Sink interface {
	Record(ctx context.Context, l activity.Log) error
}

type LogWriter interface {
	Create(ctx context.Context, l activity.Log) error
}

// StoreSink writes records straight into the activity log store.
type StoreSink struct {
	store LogWriter
}

func NewStoreSink(store LogWriter) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Record(ctx context.Context, l activity.Log) error {
	if err := l.Validate(); err != nil {
		return err
	}
	return s.store.Create(ctx, l)
}

// Recorder is the fire-and-forget front of a Sink.
type Recorder struct {
	sink Sink
	log  *slog.Logger
}

func NewRecorder(sink Sink, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{sink: sink, log: log}
}

func (r *Recorder) Record(ctx context.Context, l activity.Log) {
	if r == nil || r.sink == nil {
		return
	}

	if err := r.sink.Record(ctx, l); err != nil {
		r.log.WarnContext(ctx, "activity log dropped",
			"action", l.Action,
			"user_id", l.UserID,
			"err", err,
		)
	}
}

// Discard drops every record.
type Discard struct{}

func (Discard) Record(context.Context, activity.Log) error { return nil }
