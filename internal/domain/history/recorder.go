package history

import (
	"context"

	"github.com/matiasleandrokruk/cropdoctor/internal/domain/diagnosis"
	"github.com/matiasleandrokruk/cropdoctor/internal/infra/eventbus"
	"github.com/matiasleandrokruk/cropdoctor/internal/infra/logger"
)

// Observer is told the result of every write.
type Observer interface {
	ObserveHistory(err error)
}

// Saver is the write side of Store.
type Saver interface {
	Save(ctx context.Context, r Record) (Record, error)
}

// Recorder writes diagnosis.completed events to the store.
type Recorder struct {
	store    Saver
	log      logger.Logger
	observer Observer
}

// NewRecorder creates a Recorder. observer may be nil.
func NewRecorder(store Saver, log logger.Logger, observer Observer) *Recorder {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Recorder{store: store, log: log, observer: observer}
}

// Run consumes events until ch is closed or ctx is done. Payloads that are
// not diagnosis.CompletedEvent are ignored.
func (r *Recorder) Run(ctx context.Context, ch <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			ev, isCompleted := evt.Payload.(diagnosis.CompletedEvent)
			if !isCompleted {
				continue
			}
			r.record(ctx, ev)
		}
	}
}

func (r *Recorder) record(ctx context.Context, ev diagnosis.CompletedEvent) {
	rec, err := r.store.Save(ctx, RecordFromEvent(ev))
	if r.observer != nil {
		r.observer.ObserveHistory(err)
	}
	if err != nil {
		r.log.WithError(err).Error("history write failed", map[string]interface{}{"mode": string(ev.Mode)})
		return
	}
	r.log.Debug("history recorded", map[string]interface{}{"id": rec.ID, "cached": rec.Cached})
}
