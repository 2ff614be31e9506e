package progress

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func TestMultiPreservesOrder(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	sink := Multi(a, nil, b)

	sink.Emit(context.Background(), Event{Stage: StageStart})
	sink.Emit(context.Background(), Event{Stage: StageComplete})

	assert.Equal(t, []Stage{StageStart, StageComplete}, a.Stages())
	assert.Equal(t, a.Events(), b.Events())
}

func TestRecorderLast(t *testing.T) {
	r := &Recorder{}
	_, ok := r.Last()
	assert.False(t, ok)

	r.Emit(context.Background(), Event{Stage: StageAwaiting, Text: "waiting"})
	ev, ok := r.Last()
	assert.True(t, ok)
	assert.Equal(t, "waiting", ev.Text)
}

func TestLogSinkLevels(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sink := LogSink{Logger: logger}

	sink.Emit(context.Background(), Event{Stage: StageStart, Level: LevelInfo, Text: "start"})
	sink.Emit(context.Background(), Event{Stage: StageComplete, Level: LevelWarning, Text: "no label"})
	sink.Emit(context.Background(), Event{Stage: StageComplete, Level: LevelError, Text: "boom"})

	entries := hook.AllEntries()
	if assert.Len(t, entries, 3) {
		assert.Equal(t, logrus.InfoLevel, entries[0].Level)
		assert.Equal(t, logrus.WarnLevel, entries[1].Level)
		assert.Equal(t, logrus.ErrorLevel, entries[2].Level)
		assert.Equal(t, StageComplete, entries[2].Data["stage"])
	}
}
