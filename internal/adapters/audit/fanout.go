// Package audit fans meeting log events out to the relational store and
// the optional mongo mirror and amqp topic.
package audit

import (
	"context"
	"errors"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

// Fanout writes every event to each sink in order. One failing sink does not
// stop the others; all failures come back joined.
type Fanout struct {
	sinks []core.AuditSink
}

func NewFanout(sinks ...core.AuditSink) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

func (f *Fanout) AppendAuditEvent(ctx context.Context, ev *domain.AuditEvent) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.AppendAuditEvent(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) Len() int { return len(f.sinks) }
