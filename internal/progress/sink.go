package progress

import "context"

// Sink consumes batches of events. Implementations must honor ctx deadlines
// and tolerate repeated Consume calls after Close.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes single events. Hub satisfies it, so the orchestrator
// stays unaware of buffering and fan-out.
type Emitter interface {
	Emit(evt Event)
}
