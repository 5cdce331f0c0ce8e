package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivercam/alert"
	"drivercam/landmarks"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestDefaultTuningConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultTuningConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.21, cfg.GetEARThreshold())
	assert.Equal(t, 15, cfg.GetAlarmFrames())
	assert.Equal(t, alert.FaceLostCountsAsClosed, cfg.GetFaceLostPolicy())
	assert.Equal(t, DefaultModelPath, cfg.GetModelPath())
	assert.Equal(t, landmarks.FaceMeshSize, cfg.GetTopology())
	assert.False(t, cfg.GetForceCPU())
}

func TestEmptyConfigFallsBack(t *testing.T) {
	t.Parallel()

	cfg := EmptyTuningConfig()
	assert.Equal(t, alert.DefaultConfig(), cfg.AlertConfig())
	assert.Equal(t, DefaultCascadePath, cfg.GetCascadePath())
	assert.Equal(t, DefaultTraceLimit, cfg.GetTraceLimit())

	mc := cfg.MonitorConfig()
	assert.Equal(t, landmarks.FaceMeshSize, mc.Topology)
	assert.Equal(t, DefaultTraceLimit, mc.TraceLimit)
}

func TestLoadTuningConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "tuning.json", `{
  "ear_threshold": 0.25,
  "alarm_frames": 20,
  "face_lost_policy": "hold",
  "model_path": "/models/mesh.onnx"
}`)

	cfg, err := LoadTuningConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 0.25, cfg.GetEARThreshold())
	assert.Equal(t, 20, cfg.GetAlarmFrames())
	assert.Equal(t, alert.FaceLostHolds, cfg.GetFaceLostPolicy())
	assert.Equal(t, "/models/mesh.onnx", cfg.GetModelPath())
	// unset fields keep defaults
	assert.Equal(t, DefaultCascadePath, cfg.GetCascadePath())
	assert.Nil(t, cfg.TraceLimit)
}

func TestLoadTuningConfig_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"wrong extension", writeFile(t, dir, "tuning.yaml", "ear_threshold: 0.2"), ".json extension"},
		{"missing", filepath.Join(dir, "nope.json"), "failed to stat"},
		{"bad json", writeFile(t, dir, "bad.json", "{"), "failed to parse"},
		{"threshold out of range", writeFile(t, dir, "thr.json", `{"ear_threshold": 1.5}`), "ear_threshold"},
		{"zero frames", writeFile(t, dir, "frames.json", `{"alarm_frames": 0}`), "alarm_frames"},
		{"unknown policy", writeFile(t, dir, "policy.json", `{"face_lost_policy": "panic"}`), "face_lost_policy"},
		{"negative trace", writeFile(t, dir, "trace.json", `{"trace_limit": -1}`), "trace_limit"},
		{"too large", writeFile(t, dir, "big.json", `{"model_path":"`+strings.Repeat("a", 1024*1024)+`"}`), "too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTuningConfig(tt.path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMerge(t *testing.T) {
	t.Parallel()

	base := DefaultTuningConfig()
	base.Merge(&TuningConfig{AlarmFrames: ptrInt(30), ForceCPU: ptrBool(true)})

	assert.Equal(t, 30, base.GetAlarmFrames())
	assert.True(t, base.GetForceCPU())
	assert.Equal(t, 0.21, base.GetEARThreshold())

	base.Merge(nil)
	assert.Equal(t, 30, base.GetAlarmFrames())
}

// Environment tests mutate process state and must not run in parallel.

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvEARThreshold, "0.18")
	t.Setenv(EnvAlarmFrames, "10")
	t.Setenv(EnvFaceLostPolicy, "reset")
	t.Setenv(EnvForceCPU, "true")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 0.18, cfg.GetEARThreshold())
	assert.Equal(t, 10, cfg.GetAlarmFrames())
	assert.Equal(t, alert.FaceLostResets, cfg.GetFaceLostPolicy())
	assert.True(t, cfg.GetForceCPU())
	assert.Nil(t, cfg.ModelPath)
}

func TestFromEnv_Invalid(t *testing.T) {
	t.Setenv(EnvAlarmFrames, "many")
	_, err := FromEnv()
	assert.ErrorContains(t, err, EnvAlarmFrames)
}

func TestFromEnv_OutOfRange(t *testing.T) {
	t.Setenv(EnvEARThreshold, "-0.1")
	_, err := FromEnv()
	assert.ErrorContains(t, err, "invalid environment")
}

func TestLoad_Layers(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tuning.json", `{"ear_threshold": 0.25, "alarm_frames": 20}`)
	t.Setenv(EnvAlarmFrames, "12")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.25, cfg.GetEARThreshold(), "file overrides default")
	assert.Equal(t, 12, cfg.GetAlarmFrames(), "environment overrides file")
	assert.Equal(t, DefaultModelPath, cfg.GetModelPath())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, "test.env", EnvModel+"=/opt/models/mesh.onnx\n")
	t.Setenv(EnvModel, "")
	os.Unsetenv(EnvModel)

	require.NoError(t, LoadDotEnv(envFile, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "/opt/models/mesh.onnx", os.Getenv(EnvModel))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}
