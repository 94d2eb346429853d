package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/geoload/internal/validate"
)

func sampleReport() *Report {
	r := &Report{RunID: "run-1"}
	r.finish([]FileResult{
		{File: "a.geojson", Status: StatusLoaded, Features: 2, Rows: 2},
		{File: "b.geojson", Status: StatusRejected, Fault: "schema_violation", Category: validate.CategoryInput, Reason: "b.geojson: schema violation"},
		{}, // never started
		{File: "c.geojson", Status: StatusFailed, Fault: "persistence", Category: validate.CategoryStore},
	})
	return r
}

func TestReport_Finish(t *testing.T) {
	r := sampleReport()
	assert.Len(t, r.Files, 3)
	assert.Equal(t, Totals{Files: 3, Loaded: 1, Rejected: 1, Failed: 1, Rows: 2}, r.Totals)
	assert.True(t, r.Failed())
	assert.False(t, r.FinishedAt.IsZero())
}

func TestReport_NotFailed(t *testing.T) {
	r := &Report{}
	r.finish([]FileResult{{File: "a.geojson", Status: StatusLoaded}})
	assert.False(t, r.Failed())
}

func TestReport_WriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, sampleReport().WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "run-1", got["run_id"])
	files := got["files"].([]any)
	require.Len(t, files, 3)
	assert.Equal(t, "schema_violation", files[1].(map[string]any)["fault"])
	assert.NotContains(t, files[0].(map[string]any), "fault")
}

func TestReport_WriteYAML(t *testing.T) {
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(t.TempDir(), "report"+ext)
		require.NoError(t, sampleReport().WriteFile(path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var got Report
		require.NoError(t, yaml.Unmarshal(data, &got))
		assert.Equal(t, "run-1", got.RunID)
		assert.Equal(t, 1, got.Totals.Failed)
		assert.Equal(t, validate.CategoryStore, got.Files[2].Category)
	}
}

func TestReport_UnsupportedFormat(t *testing.T) {
	err := sampleReport().WriteFile(filepath.Join(t.TempDir(), "report.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported report format")
}
