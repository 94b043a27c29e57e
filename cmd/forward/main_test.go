package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vdyp_forward/pkg/core/pipeline"
)

var controlFile = filepath.Join("..", "..", "pkg", "core", "control", "testdata", "control.yaml")

func TestRun_Check(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-mode", "check", "-control", controlFile}, env(nil), &stdout, &stderr)
	require.NoError(t, err)

	assert.Contains(t, stdout.String(), "Control map OK")
	assert.Regexp(t, `bec_zones\s+2\n`, stdout.String())
	assert.Contains(t, stderr.String(), "control map")
}

func TestRun_CheckRejectsBadControlFile(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "control.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("bec_zones: []\n"), 0o644))

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-mode", "check", "-control", bad}, env(nil), &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no BEC zones")
	assert.Empty(t, stdout.String())
}

func TestRun_Project(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.jsonl")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"-control", controlFile,
		"-polygons", filepath.Join("testdata", "polygons.hjson"),
		"-output", out,
		"-workers", "2",
		"-log-level", "warn",
	}, env(nil), &stdout, &stderr)
	require.NoError(t, err)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "2 polygons read")

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()

	var records []pipeline.Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1<<20), 1<<24)
	for sc.Scan() {
		var r pipeline.Record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		records = append(records, r)
	}
	require.NoError(t, sc.Err())
	require.Len(t, records, 2)

	assert.Equal(t, "01002 S000001 00", records[0].Polygon.Name)
	assert.Equal(t, records[0].RunID, records[1].RunID)

	failed := records[1]
	assert.Equal(t, pipeline.StatusFailed, failed.Status)
	require.NotNil(t, failed.Failure)
	assert.Equal(t, "NONE", failed.Failure.Step)
	assert.Contains(t, stderr.String(), "failed 01002 S000002 00")
}
