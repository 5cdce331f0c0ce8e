package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variable names
const (
	EnvEARThreshold   = "DMS_EAR_THRESHOLD"
	EnvAlarmFrames    = "DMS_ALARM_FRAMES"
	EnvFaceLostPolicy = "DMS_FACE_LOST_POLICY"
	EnvModel          = "DMS_MODEL"
	EnvCascade        = "DMS_CASCADE"
	EnvForceCPU       = "DMS_FORCE_CPU"
	EnvTraceLimit     = "DMS_TRACE_LIMIT"
)

// LoadDotEnv loads the given .env files (default ".env") into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	present := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", f, err)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

// FromEnv builds a TuningConfig containing only the fields set in the environment.
func FromEnv() (*TuningConfig, error) {
	cfg := EmptyTuningConfig()

	if v := os.Getenv(EnvEARThreshold); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvEARThreshold, err)
		}
		cfg.EARThreshold = &f
	}
	if v := os.Getenv(EnvAlarmFrames); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvAlarmFrames, err)
		}
		cfg.AlarmFrames = &n
	}
	if v := os.Getenv(EnvFaceLostPolicy); v != "" {
		cfg.FaceLostPolicy = ptrString(v)
	}
	if v := os.Getenv(EnvModel); v != "" {
		cfg.ModelPath = ptrString(v)
	}
	if v := os.Getenv(EnvCascade); v != "" {
		cfg.CascadePath = ptrString(v)
	}
	if v := os.Getenv(EnvForceCPU); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvForceCPU, err)
		}
		cfg.ForceCPU = &b
	}
	if v := os.Getenv(EnvTraceLimit); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvTraceLimit, err)
		}
		cfg.TraceLimit = &n
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	return cfg, nil
}

// Load resolves the defaults, the optional JSON file and the environment, in
// that order of increasing priority. path may be empty.
func Load(path string) (*TuningConfig, error) {
	cfg := DefaultTuningConfig()
	if path != "" {
		fileCfg, err := LoadTuningConfig(path)
		if err != nil {
			return nil, err
		}
		cfg.Merge(fileCfg)
	}

	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	envCfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	cfg.Merge(envCfg)
	return cfg, nil
}
