package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_JSONRespectsLevel(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log, err := newWithSink("warn", false, &buf)
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown", zap.String("op", "list"))
	require.NoError(t, log.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "shown", entry["msg"])
	require.Equal(t, "list", entry["op"])
	require.Equal(t, "warn", entry["level"])
}

func TestNew_PrettyIsNotJSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log, err := newWithSink("debug", true, &buf)
	require.NoError(t, err)

	log.Debug("hello")
	require.Contains(t, buf.String(), "hello")
	require.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestNew_UnknownLevel(t *testing.T) {
	t.Parallel()
	_, err := New("loud", false)
	require.Error(t, err)
}
