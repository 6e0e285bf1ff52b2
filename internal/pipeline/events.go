package pipeline

import "context"

// Stage names a step of a summarization run.
type Stage string

const (
	StageResolve    Stage = "resolve"
	StageFilter     Stage = "filter"
	StageEvidence   Stage = "evidence"
	StagePlan       Stage = "plan"
	StageFetch      Stage = "fetch"
	StageBudget     Stage = "budget"
	StageSynthesize Stage = "synthesize"
	StageValidate   Stage = "validate"
)

// Event reports progress of a run. Progress is 0-100.
type Event struct {
	Stage    Stage          `json:"stage"`
	Message  string         `json:"message"`
	Progress int32          `json:"progress"`
	Data     map[string]any `json:"data,omitempty"`
}

// Emitter receives run events. Implementations must not block.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

func (f EmitterFunc) Emit(e Event) { f(e) }

type emitterKey struct{}

// WithEmitter attaches an emitter to the context.
func WithEmitter(ctx context.Context, e Emitter) context.Context {
	return context.WithValue(ctx, emitterKey{}, e)
}

// EmitterFrom returns the emitter in ctx, or one that drops everything.
func EmitterFrom(ctx context.Context) Emitter {
	if e, ok := ctx.Value(emitterKey{}).(Emitter); ok && e != nil {
		return e
	}
	return noopEmitter{}
}

type noopEmitter struct{}

func (noopEmitter) Emit(Event) {}

// ChannelEmitter forwards events to Ch, dropping them when Ch is full.
type ChannelEmitter struct {
	Ch chan<- Event
}

func (e ChannelEmitter) Emit(ev Event) {
	select {
	case e.Ch <- ev:
	default:
	}
}

func emit(ctx context.Context, stage Stage, progress int32, msg string, data map[string]any) {
	EmitterFrom(ctx).Emit(Event{Stage: stage, Message: msg, Progress: progress, Data: data})
}
