package core

import (
	"context"
	"io"

	"go.uber.org/atomic"

	"github.com/wundergraph/fusion/pkg/execution"
)

// hookedStream runs stream observers inline with the consumer's pull. It
// buffers nothing: each Next reaches the source stream, so upstream
// backpressure propagates to the client. End observers fire exactly once,
// regardless of whether the stream exhausts, errors or the consumer walks
// away and closes it.
type hookedStream struct {
	source execution.ResultStream
	onNext []func(ctx context.Context, payload *StreamItemPayload) error
	onEnd  []func(ctx context.Context)
	ended  atomic.Bool
}

func newHookedStream(
	source execution.ResultStream,
	onNext []func(ctx context.Context, payload *StreamItemPayload) error,
	onEnd []func(ctx context.Context),
) *hookedStream {
	return &hookedStream{
		source: source,
		onNext: onNext,
		onEnd:  onEnd,
	}
}

func (s *hookedStream) Next(ctx context.Context) (*execution.Result, error) {
	result, err := s.source.Next(ctx)
	if err != nil {
		// io.EOF, cancellation and mid-flight stream errors all terminate
		// the stream; the error still reaches the consumer.
		s.fireEnd(ctx)
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, err
	}

	payload := &StreamItemPayload{result: result}
	for _, next := range s.onNext {
		if err := next(ctx, payload); err != nil {
			s.fireEnd(ctx)
			return nil, err
		}
	}
	return payload.result, nil
}

func (s *hookedStream) Close(ctx context.Context) error {
	err := s.source.Close(ctx)
	s.fireEnd(ctx)
	return err
}

func (s *hookedStream) fireEnd(ctx context.Context) {
	if !s.ended.CompareAndSwap(false, true) {
		return
	}
	for _, end := range s.onEnd {
		end(ctx)
	}
}
