package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"drivercam/alert"
	"drivercam/landmarks"
	"drivercam/pipeline"
)

// Fallback values used by the Get* methods when a field is unset
const (
	DefaultModelPath   = "face_mesh.onnx"
	DefaultCascadePath = "haarcascade_frontalface_default.xml"
	DefaultTraceLimit  = 9000 // five minutes at 30 FPS
)

// TuningConfig holds the drowsiness thresholds and model locations.
// Nil fields fall back to the defaults, so partial files are safe.
type TuningConfig struct {
	// Alert params
	EARThreshold   *float64 `json:"ear_threshold,omitempty"`
	AlarmFrames    *int     `json:"alarm_frames,omitempty"`
	FaceLostPolicy *string  `json:"face_lost_policy,omitempty"` // "closed", "hold" or "reset"

	// Detector params
	ModelPath   *string `json:"model_path,omitempty"`
	CascadePath *string `json:"cascade_path,omitempty"`
	ForceCPU    *bool   `json:"force_cpu,omitempty"`
	Topology    *int    `json:"topology,omitempty"` // expected landmark count, 0 disables the check

	// Reporting params
	TraceLimit *int `json:"trace_limit,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		EARThreshold:   ptrFloat64(alert.DefaultEARThreshold),
		AlarmFrames:    ptrInt(alert.DefaultAlarmFrames),
		FaceLostPolicy: ptrString(alert.FaceLostCountsAsClosed.String()),
		ModelPath:      ptrString(DefaultModelPath),
		CascadePath:    ptrString(DefaultCascadePath),
		ForceCPU:       ptrBool(false),
		Topology:       ptrInt(landmarks.FaceMeshSize),
		TraceLimit:     ptrInt(DefaultTraceLimit),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the fields that are set
func (c *TuningConfig) Validate() error {
	if c.EARThreshold != nil {
		if *c.EARThreshold <= 0 || *c.EARThreshold >= 1 {
			return fmt.Errorf("ear_threshold must be between 0 and 1, got %f", *c.EARThreshold)
		}
	}

	if c.AlarmFrames != nil && *c.AlarmFrames < 1 {
		return fmt.Errorf("alarm_frames must be at least 1, got %d", *c.AlarmFrames)
	}

	if c.FaceLostPolicy != nil {
		if _, err := alert.ParseFaceLostPolicy(*c.FaceLostPolicy); err != nil {
			return fmt.Errorf("invalid face_lost_policy: %w", err)
		}
	}

	if c.Topology != nil && *c.Topology < 0 {
		return fmt.Errorf("topology must be non-negative, got %d", *c.Topology)
	}

	if c.TraceLimit != nil && *c.TraceLimit < 0 {
		return fmt.Errorf("trace_limit must be non-negative, got %d", *c.TraceLimit)
	}

	return nil
}

// GetEARThreshold returns the closed-eye threshold
func (c *TuningConfig) GetEARThreshold() float64 {
	if c.EARThreshold == nil {
		return alert.DefaultEARThreshold
	}
	return *c.EARThreshold
}

// GetAlarmFrames returns how many closed frames raise the alarm
func (c *TuningConfig) GetAlarmFrames() int {
	if c.AlarmFrames == nil {
		return alert.DefaultAlarmFrames
	}
	return *c.AlarmFrames
}

// GetFaceLostPolicy returns the parsed no-face policy, the default when unset or invalid
func (c *TuningConfig) GetFaceLostPolicy() alert.FaceLostPolicy {
	if c.FaceLostPolicy == nil {
		return alert.FaceLostCountsAsClosed
	}
	p, err := alert.ParseFaceLostPolicy(*c.FaceLostPolicy)
	if err != nil {
		return alert.FaceLostCountsAsClosed
	}
	return p
}

func (c *TuningConfig) GetModelPath() string {
	if c.ModelPath == nil || *c.ModelPath == "" {
		return DefaultModelPath
	}
	return *c.ModelPath
}

func (c *TuningConfig) GetCascadePath() string {
	if c.CascadePath == nil || *c.CascadePath == "" {
		return DefaultCascadePath
	}
	return *c.CascadePath
}

func (c *TuningConfig) GetForceCPU() bool {
	if c.ForceCPU == nil {
		return false
	}
	return *c.ForceCPU
}

func (c *TuningConfig) GetTopology() int {
	if c.Topology == nil {
		return landmarks.FaceMeshSize
	}
	return *c.Topology
}

func (c *TuningConfig) GetTraceLimit() int {
	if c.TraceLimit == nil {
		return DefaultTraceLimit
	}
	return *c.TraceLimit
}

// AlertConfig builds the state machine configuration
func (c *TuningConfig) AlertConfig() alert.Config {
	return alert.Config{
		EARThreshold: c.GetEARThreshold(),
		AlarmFrames:  c.GetAlarmFrames(),
		FaceLost:     c.GetFaceLostPolicy(),
	}
}

// MonitorConfig builds the per-frame pipeline configuration
func (c *TuningConfig) MonitorConfig() pipeline.Config {
	return pipeline.Config{
		Alert:      c.AlertConfig(),
		Topology:   c.GetTopology(),
		TraceLimit: c.GetTraceLimit(),
	}
}

// Merge copies every field that is set in other over c
func (c *TuningConfig) Merge(other *TuningConfig) {
	if other == nil {
		return
	}
	if other.EARThreshold != nil {
		c.EARThreshold = other.EARThreshold
	}
	if other.AlarmFrames != nil {
		c.AlarmFrames = other.AlarmFrames
	}
	if other.FaceLostPolicy != nil {
		c.FaceLostPolicy = other.FaceLostPolicy
	}
	if other.ModelPath != nil {
		c.ModelPath = other.ModelPath
	}
	if other.CascadePath != nil {
		c.CascadePath = other.CascadePath
	}
	if other.ForceCPU != nil {
		c.ForceCPU = other.ForceCPU
	}
	if other.Topology != nil {
		c.Topology = other.Topology
	}
	if other.TraceLimit != nil {
		c.TraceLimit = other.TraceLimit
	}
}
