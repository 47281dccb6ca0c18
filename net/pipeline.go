package net

import (
	"context"
	"encoding/hex"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// Disposition is the outcome of a processor.
type Disposition int

const (
	// Continue passes the envelope on to the next processor.
	Continue Disposition = iota
	// Handled stops the pipeline; the envelope is consumed.
	Handled
)

func (d Disposition) String() string {
	switch d {
	case Continue:
		return "continue"
	case Handled:
		return "handled"
	default:
		return "unknown"
	}
}

// Processor inspects or rewrites an envelope on its way in or out of a
// session. It may replace env.Payload.
type Processor interface {
	Process(ctx context.Context, env *Envelope, s *Session) (Disposition, error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, env *Envelope, s *Session) (Disposition, error)

func (f ProcessorFunc) Process(ctx context.Context, env *Envelope, s *Session) (Disposition, error) {
	return f(ctx, env, s)
}

// Pipeline is an ordered, immutable list of processors.
type Pipeline struct {
	processors []Processor
}

func NewPipeline(ps ...Processor) *Pipeline {
	return &Pipeline{processors: append([]Processor(nil), ps...)}
}

// Len returns the number of processors.
func (p *Pipeline) Len() int {
	if p == nil {
		return 0
	}
	return len(p.processors)
}

// Run passes env through each processor in order. It stops at the first
// processor reporting Handled, and marks env as handled. A nil pipeline
// passes everything through.
func (p *Pipeline) Run(ctx context.Context, env *Envelope, s *Session) (Disposition, error) {
	if p == nil {
		return Continue, nil
	}
	for i, proc := range p.processors {
		d, err := proc.Process(ctx, env, s)
		if err != nil {
			return Continue, errors.Wrapf(err, "processor %d", i)
		}
		if d == Handled {
			env.Handled = true
			return Handled, nil
		}
	}
	return Continue, nil
}

// LogPackets returns a processor dumping every envelope at glog verbosity 3.
func LogPackets(direction string) Processor {
	return ProcessorFunc(func(_ context.Context, env *Envelope, s *Session) (Disposition, error) {
		if !glog.V(3) {
			return Continue, nil
		}
		if s == nil {
			glog.Infof("%s %d bytes:\n%s", direction, len(env.Payload), hex.Dump(env.Payload))
		} else {
			glog.Infof("%s %s %d bytes:\n%s", s, direction, len(env.Payload), hex.Dump(env.Payload))
		}
		return Continue, nil
	})
}

// DropEmpty consumes envelopes without a payload.
func DropEmpty() Processor {
	return ProcessorFunc(func(_ context.Context, env *Envelope, _ *Session) (Disposition, error) {
		if len(env.Payload) == 0 {
			return Handled, nil
		}
		return Continue, nil
	})
}
