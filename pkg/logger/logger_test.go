package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var m map[string]any
		require.NoError(t, dec.Decode(&m))
		out = append(out, m)
	}
	return out
}

func TestLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(Config{Level: DebugLevel, Service: "svc", Output: &buf})

	log.WithFields(SessionIDField("s1")).Info("hello", UserIDField("u1"), IntField("n", 3))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "hello", lines[0]["msg"])
	assert.Equal(t, "svc", lines[0]["service"])
	assert.Equal(t, "s1", lines[0]["session_id"])
	assert.Equal(t, "u1", lines[0]["user_id"])
	assert.Equal(t, "3", lines[0]["n"])
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(Config{Level: WarnLevel, Output: &buf})

	log.Debug("dropped")
	log.Info("dropped")
	log.Warn("kept")
	log.Error("kept", ErrorField(errors.New("boom")))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "boom", lines[1]["error"])
}

func TestWithFieldsIsImmutable(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(Config{Output: &buf})
	_ = parent.WithFields(StringField("child", "yes"))

	parent.Info("parent")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	_, ok := lines[0]["child"]
	assert.False(t, ok)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		"warn":    WarnLevel,
		"error":   ErrorLevel,
		"bogus":   InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestFieldHelpers(t *testing.T) {
	assert.Equal(t, LogField{Key: "error", Value: "<nil>"}, ErrorField(nil))
	assert.Equal(t, "1.5s", DurationField("d", 1500*time.Millisecond).Value)
	assert.Equal(t, "true", BoolField("b", true).Value)
	assert.Equal(t, "[a b]", Field("s", []string{"a", "b"}).Value)
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(Config{Output: &buf})

	ctx := WithCorrelationIDContext(context.Background(), "abc")
	FromContext(ctx, base).Info("tagged")
	FromContext(context.Background(), base).Info("untagged")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "abc", lines[0][CorrelationIDFieldKey])
	_, ok := lines[1][CorrelationIDFieldKey]
	assert.False(t, ok)
}
