// Package progress carries ordered progress events from long-running
// operations to whatever displays them.
package progress

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Stage identifies a point in an operation's lifecycle
type Stage string

const (
	StageStart              Stage = "start"
	StageRequestSent        Stage = "request-sent"
	StageAwaiting           Stage = "awaiting"
	StageProcessingResponse Stage = "processing-response"
	StageComplete           Stage = "complete"

	StageBatchStart    Stage = "batch-start"
	StageResolving     Stage = "resolving"
	StageMoving        Stage = "moving"
	StageTagging       Stage = "tagging"
	StageMessageFailed Stage = "message-failed"
	StageBatchComplete Stage = "batch-complete"
)

// Level is the severity of an event
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Event is one progress update
type Event struct {
	Stage Stage  `json:"stage"`
	Level Level  `json:"level"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Sink receives progress events in emission order
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, ev Event)

// Emit calls f(ctx, ev)
func (f SinkFunc) Emit(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// Discard drops every event
var Discard Sink = SinkFunc(func(context.Context, Event) {})

// LogSink writes events to logrus
type LogSink struct {
	Logger logrus.FieldLogger
}

// Emit logs the event at a level matching its severity
func (s LogSink) Emit(_ context.Context, ev Event) {
	logger := s.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	entry := logger.WithFields(logrus.Fields{
		"stage": ev.Stage,
		"title": ev.Title,
	})
	switch ev.Level {
	case LevelError:
		entry.Error(ev.Text)
	case LevelWarning:
		entry.Warn(ev.Text)
	default:
		entry.Info(ev.Text)
	}
}

// Multi fans each event out to every sink, in order
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, ev Event) {
		for _, s := range sinks {
			if s != nil {
				s.Emit(ctx, ev)
			}
		}
	})
}

// Recorder keeps every event it receives. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit appends ev
func (r *Recorder) Emit(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Stages returns the stage of each recorded event, in order
func (r *Recorder) Stages() []Stage {
	events := r.Events()
	out := make([]Stage, len(events))
	for i, ev := range events {
		out[i] = ev.Stage
	}
	return out
}

// Last returns the most recent event
func (r *Recorder) Last() (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return Event{}, false
	}
	return r.events[len(r.events)-1], true
}
