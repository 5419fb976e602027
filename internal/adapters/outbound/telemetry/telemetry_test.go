package telemetry_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/vibeheal/vibeheal/internal/adapters/outbound/telemetry"
)

func TestRecorder_CountsAndWritesTextfile(t *testing.T) {
	r := telemetry.NewRecorder("claude-code")
	r.ObserveFix("fixed", 3*time.Second)
	r.ObserveFix("fixed", 5*time.Second)
	r.ObserveFix("failed", time.Second)
	r.ObserveCommit()
	r.ObserveCommit()
	r.ObserveIteration(4)
	r.ObserveIteration(1)

	families, err := r.Registry().Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "outcome" {
					key += "{" + lp.GetValue() + "}"
				}
			}
			switch {
			case m.GetCounter() != nil:
				values[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[key] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				values[key] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}

	assert.Equal(t, 2.0, values["vibeheal_fix_attempts_total{fixed}"])
	assert.Equal(t, 1.0, values["vibeheal_fix_attempts_total{failed}"])
	assert.Equal(t, 2.0, values["vibeheal_fix_duration_seconds{fixed}"])
	assert.Equal(t, 2.0, values["vibeheal_fix_commits_total"])
	assert.Equal(t, 2.0, values["vibeheal_cleanup_iterations_total"])
	assert.Equal(t, 1.0, values["vibeheal_cleanup_issues_observed"])

	path := filepath.Join(t.TempDir(), "vibeheal.prom")
	require.NoError(t, r.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `vibeheal_fix_commits_total{tool="claude-code"} 2`)
}

func TestRecorder_WriteTextfileBadPath(t *testing.T) {
	r := telemetry.NewRecorder("aider")
	err := r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "m.prom"))
	assert.Error(t, err)
}

func TestTracerProvider_ExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	tp, err := telemetry.NewTracerProvider(&buf, "test")
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "fix.file")
	span.End()

	require.NoError(t, tp.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "fix.file")
	assert.Contains(t, buf.String(), "vibeheal")
}
