// Package report turns each control-loop cycle into a domain.Report and
// fans it out to logging, metrics, the signal bus, the trade journal, and
// operator notifications.
package report

import (
	"context"
	"log/slog"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Reporter publishes reports to its sinks in registration order.
type Reporter struct {
	sinks  []domain.ReportSink
	logger *slog.Logger
}

// NewReporter creates a Reporter. Nil sinks are ignored.
func NewReporter(logger *slog.Logger, sinks ...domain.ReportSink) *Reporter {
	r := &Reporter{logger: logger.With(slog.String("component", "reporter"))}
	for _, s := range sinks {
		if s != nil {
			r.sinks = append(r.sinks, s)
		}
	}
	return r
}

// Publish hands rep to every sink. Sink failures are logged and otherwise
// ignored; reporting never fails a cycle.
func (r *Reporter) Publish(ctx context.Context, rep domain.Report) {
	for _, s := range r.sinks {
		if err := s.Consume(ctx, rep); err != nil {
			r.logger.WarnContext(ctx, "report sink failed",
				slog.String("sink", s.Name()),
				slog.Uint64("cycle", rep.Cycle),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Sinks returns the registered sink names.
func (r *Reporter) Sinks() []string {
	out := make([]string, len(r.sinks))
	for i, s := range r.sinks {
		out[i] = s.Name()
	}
	return out
}
