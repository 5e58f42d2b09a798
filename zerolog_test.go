package dispatchz

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		out = append(out, line)
	}
	return out
}

func TestZerologSink(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	engine := New(WithDebug(DebugBinds|DebugCalls, NewZerologSink(logger)))

	mustBind(t, engine, "order.saved", func(args ...any) (any, error) {
		panic("bad plugin")
	}, WithPriority(3))
	_, err := engine.Run("order.saved")
	require.NoError(t, err)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)

	assert.Equal(t, "debug", lines[0]["level"])
	assert.Equal(t, "binds", lines[0]["category"])
	assert.Equal(t, "order.saved", lines[0]["hook"])
	assert.Equal(t, float64(3), lines[0]["priority"])

	assert.Equal(t, "calls", lines[1]["category"])
	assert.Equal(t, "call", lines[1]["op"])

	assert.Equal(t, "warn", lines[2]["level"])
	assert.Contains(t, lines[2]["error"], "bad plugin")
}

func TestZerologSinkRespectsLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.InfoLevel)
	engine := New(WithDebug(DebugAll, NewZerologSink(logger)))

	mustBind(t, engine, "k", addOne())
	_, err := engine.Filter("k", 1)
	require.NoError(t, err)

	assert.Zero(t, buf.Len())
}

// levelSampler records every level the logger is asked to open an event at.
type levelSampler struct {
	levels []zerolog.Level
}

func (s *levelSampler) Sample(lvl zerolog.Level) bool {
	s.levels = append(s.levels, lvl)
	return true
}

func TestZerologSinkOpensOneEventPerRecord(t *testing.T) {
	var buf bytes.Buffer
	sampler := &levelSampler{}
	sink := NewZerologSink(zerolog.New(&buf).Level(zerolog.DebugLevel).Sample(sampler))

	sink.Record(Event{Category: DebugCalls, Op: "call", Key: "k", Err: assert.AnError})
	sink.Record(Event{Category: DebugCalls, Op: "call", Key: "k"})

	assert.Equal(t, []zerolog.Level{zerolog.WarnLevel, zerolog.DebugLevel}, sampler.levels)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, assert.AnError.Error(), lines[0]["error"])
	assert.Equal(t, "debug", lines[1]["level"])
}
