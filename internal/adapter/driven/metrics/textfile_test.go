package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Evolveum/midpoint-password-agent-ad/internal/domain/model"
)

func TestTextfileRecorder_Record(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collector", "midpoint.prom")
	rec := NewTextfileRecorder(path)
	assert.Equal(t, path, rec.Path())

	start := time.Unix(1_700_000_000, 0)
	err := rec.Record(model.RunSummary{
		StartedAt:  start,
		FinishedAt: start.Add(2500 * time.Millisecond),
		Discovered: 4,
		Stale:      1,
		Applied:    2,
		Failed:     1,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, `midpoint_password_agent_records{status="discovered"} 4`)
	assert.Contains(t, out, `midpoint_password_agent_records{status="applied"} 2`)
	assert.Contains(t, out, `midpoint_password_agent_records{status="stale"} 1`)
	assert.Contains(t, out, `midpoint_password_agent_records{status="failed"} 1`)
	assert.Contains(t, out, `midpoint_password_agent_records{status="malformed"} 0`)
	assert.Contains(t, out, "midpoint_password_agent_last_run_duration_seconds 2.5")
	assert.Contains(t, out, "midpoint_password_agent_last_run_timestamp_seconds 1.7000000025e+09")
	assert.Contains(t, out, "midpoint_password_agent_last_run_success 0")
}

func TestTextfileRecorder_Record_Success(t *testing.T) {
	path := filepath.Join(t.TempDir(), "midpoint.prom")
	rec := NewTextfileRecorder(path)

	require.NoError(t, rec.Record(model.RunSummary{Discovered: 1, Applied: 1}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "midpoint_password_agent_last_run_success 1")
}

func TestTextfileRecorder_Record_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "midpoint.prom")
	rec := NewTextfileRecorder(path)

	require.NoError(t, rec.Record(model.RunSummary{Discovered: 7}))
	require.NoError(t, rec.Record(model.RunSummary{Discovered: 2}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `midpoint_password_agent_records{status="discovered"} 2`)
	assert.NotContains(t, string(data), `status="discovered"} 7`)
}

func TestTextfileRecorder_Record_AbortedRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "midpoint.prom")
	rec := NewTextfileRecorder(path)

	require.NoError(t, rec.Record(model.RunSummary{Aborted: "spool unreadable"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "midpoint_password_agent_last_run_success 0")
}
