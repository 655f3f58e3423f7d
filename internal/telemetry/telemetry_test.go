package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kindError struct{ kind Kind }

func (e kindError) Error() string { return string(e.kind) }
func (e kindError) Kind() Kind    { return e.kind }

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain", err: errors.New("boom"), want: KindUnknown},
		{name: "direct", err: kindError{KindLocalWrite}, want: KindLocalWrite},
		{name: "wrapped", err: fmt.Errorf("save: %w", kindError{KindSerialization}), want: KindSerialization},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestLogReporterWritesAttemptFieldsAndCounts(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "debug", "json")
	metrics := NewMetrics()
	reporter := NewLogReporter(logger, metrics)

	ctx := WithAttempt(context.Background(), "att-1", "manual")
	reporter.Report(ctx, Event{
		Kind:     KindRemoteUnavailable,
		Severity: SeverityWarning,
		Op:       "remote_put",
		Key:      "resume",
		Err:      errors.New("network down"),
	})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "remote_unavailable", line["kind"])
	assert.Equal(t, "att-1", line["attempt_id"])
	assert.Equal(t, "manual", line["source"])
	assert.Equal(t, "persistence", line["component"])
	assert.Equal(t, "network down", line["err"])

	got := testutil.ToFloat64(metrics.events.WithLabelValues("remote_unavailable", "warning"))
	assert.Equal(t, float64(1), got)
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Report(context.Background(), Event{Kind: KindConfiguration})
	r.Report(context.Background(), Event{Kind: KindLocalWrite})

	assert.Equal(t, []Kind{KindConfiguration, KindLocalWrite}, r.Kinds())
	assert.Len(t, r.Events(), 2)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.IncEvent(KindUnknown, SeverityError)
	m.IncRemoteWrite("ok")
	m.ObserveAttempt("auto", "ok", 0)
	assert.Nil(t, m.Registry())
}
