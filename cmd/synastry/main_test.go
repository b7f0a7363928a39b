package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ZanzyTHEbar/synastry-o-meter/internal/errors"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/synastry"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/types"
)

const (
	leoChart   = `{"ascendant":{"sign":"Le"},"planets":[{"name":"Su","sign":"Le","house":1},{"name":"Mo","sign":"Sc","house":4},{"name":"Ma","sign":"Cp","house":6},{"name":"Ve","sign":"Cn","house":12}]}`
	ariesChart = `{"ascendant":{"sign":"Ar"},"planets":[{"name":"Su","sign":"Le","house":5},{"name":"Mo","sign":"Cn","house":4},{"name":"Ma","sign":"Vi","house":6},{"name":"Ve","sign":"Cp","house":10}]}`
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--rules", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeCharts(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	left := filepath.Join(dir, "left.json")
	right := filepath.Join(dir, "right.json")
	require.NoError(t, os.WriteFile(left, []byte(leoChart), 0o600))
	require.NoError(t, os.WriteFile(right, []byte(ariesChart), 0o600))
	return left, right
}

func TestReportFromChartFiles(t *testing.T) {
	left, right := writeCharts(t)

	for _, name := range []string{"report", "score"} {
		t.Run(name, func(t *testing.T) {
			out, err := execute(t, "", name,
				"--left-chart", left, "--right-chart", right,
				"--left-gender", "m", "--right-gender", "f",
				"--left-birth", "24.12.1980", "--right-birth", "10.09.2000")
			require.NoError(t, err)

			var resp types.ReportResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.NotEmpty(t, resp.RulesetVersion)
			assert.Equal(t, synastry.OrientationMaleFemale, resp.Report.Orientation)
			assert.True(t, resp.Report.Percent >= 0 && resp.Report.Percent <= 100)
			require.NotNil(t, resp.Report.Expression)
			_, ok := resp.Report.Module(synastry.ModuleOverlays)
			assert.True(t, ok)
		})
	}
}

func TestDirectionalFromStdin(t *testing.T) {
	pair := `{"left":{"chart":` + leoChart + `,"profile":{"gender":"female"}},"right":{"chart":` + ariesChart + `,"profile":{"gender":"male"}}}`

	out, err := execute(t, pair, "directional", "--input", "-")
	require.NoError(t, err)

	var resp types.DirectionalResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, synastry.OrientationFemaleMale, resp.Result.Orientation)
	_, ok := resp.Result.Module(synastry.ModuleSunMoon)
	assert.True(t, ok)

	// Profile flags override the document.
	out, err = execute(t, pair, "directional", "-i", "-", "--right-gender", "female")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, synastry.OrientationSame, resp.Result.Orientation)
}

func TestTextFormat(t *testing.T) {
	left, right := writeCharts(t)

	out, err := execute(t, "", "report", "-f", "text", "--left-chart", left, "--right-chart", right)
	require.NoError(t, err)
	assert.Contains(t, out, "Compatibility: ")
	assert.Contains(t, out, "MODULE")
	assert.Contains(t, out, synastry.ModuleAscendant)

	out, err = execute(t, "", "tables", "--format", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "Rule set ")
	assert.Contains(t, out, "Penalty bases: single -16, mutual -9")
}

func TestTablesJSON(t *testing.T) {
	out, err := execute(t, "", "tables")
	require.NoError(t, err)

	var tables types.TablesResponse
	require.NoError(t, json.Unmarshal([]byte(out), &tables))
	assert.Len(t, tables.Weights, len(synastry.ModuleKeys))
	assert.Len(t, tables.AffinityRing, 12)
}

func TestBatchCommand(t *testing.T) {
	doc := `{
		"subject": {"chart": ` + leoChart + `, "profile": {"gender": "male", "birthDateTime": "24.12.1980"}},
		"candidates": [
			{"id": "broken", "party": {"profile": {"gender": "female", "birthDateTime": "soon"}}},
			{"id": "aries", "party": {"chart": ` + ariesChart + `, "profile": {"gender": "female"}}},
			{"id": "blank", "party": {"profile": {"gender": "female"}}}
		]
	}`

	out, err := execute(t, doc, "batch", "--mode", "directional", "-c", "2")
	require.NoError(t, err)

	var resp types.BatchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, types.ModeDirectional, resp.Mode)
	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "broken", resp.Results[2].ID)
	assert.NotNil(t, resp.Results[0].Directional)

	out, err = execute(t, doc, "batch", "-f", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "RANK")
	assert.Contains(t, out, "VALIDATION_ERROR")
}

func TestCommandErrors(t *testing.T) {
	left, _ := writeCharts(t)

	tests := []struct {
		name string
		args []string
	}{
		{"no pair", []string{"report"}},
		{"one chart only", []string{"report", "--left-chart", left}},
		{"missing chart file", []string{"report", "--left-chart", left, "--right-chart", "/nonexistent/chart.json"}},
		{"unknown format", []string{"tables", "--format", "yaml"}},
		{"bad batch mode", []string{"batch", "--mode", "ranked"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, `{"candidates":[{"id":"a"}]}`, tt.args...)
			require.Error(t, err)
			assert.Equal(t, 2, exitCode(apperrors.ToAppError(err)))
		})
	}
}

func TestBadBirthDate(t *testing.T) {
	left, right := writeCharts(t)

	_, err := execute(t, "", "report", "--left-chart", left, "--right-chart", right, "--left-birth", "sometime in spring", "--right-birth", "21.02.1987")
	require.Error(t, err)
	assert.True(t, errors.Is(err, synastry.ErrBadDateFormat))
	assert.Equal(t, 2, exitCode(apperrors.ToAppError(err)))
}
