package collector

import (
	"context"

	"glossync/pkg/models"
)

// ReadingSource derives a reading for a term, returning "" when unsure.
type ReadingSource interface {
	Reading(term string) string
}

// withReadings fills empty readings of the wrapped collector's output.
type withReadings struct {
	Collector
	src ReadingSource
}

// WithReadings wraps c so that terms its site publishes without a reading
// get one from src. Readings the site does publish are kept as they are.
func WithReadings(c Collector, src ReadingSource) Collector {
	if src == nil {
		return c
	}
	return &withReadings{Collector: c, src: src}
}

func (w *withReadings) Collect(ctx context.Context) ([]models.RawTerm, error) {
	terms, err := w.Collector.Collect(ctx)
	for i := range terms {
		if terms[i].Reading == "" {
			terms[i].Reading = w.src.Reading(terms[i].Term)
		}
	}
	return terms, err
}
