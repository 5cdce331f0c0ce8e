package detection

import (
	"errors"
	"fmt"
	"image"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"gocv.io/x/gocv"

	"drivercam/landmarks"
)

// MeshResult is the output of one landmark inference
type MeshResult struct {
	Found     bool
	Face      image.Rectangle // region fed to the mesh model, frame pixels
	Landmarks landmarks.Set   // normalized to the full frame, nil when !Found
	Width     int
	Height    int
}

var (
	// ErrModelLoad means the mesh network or the face cascade could not be loaded
	ErrModelLoad = errors.New("detection: model load failed")
	// ErrBadOutput means the network produced something that is not a face mesh
	ErrBadOutput = errors.New("detection: unexpected mesh output")
)

// Global debug function for detection package
var debugMsgFunc func(string, string, ...string)

// SetDebugFunction allows main package to provide debug function
func SetDebugFunction(fn func(string, string, ...string)) {
	debugMsgFunc = fn
}

// debugMsg is a wrapper that handles nil checks
func debugMsg(component, message string, sessionID ...string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message, sessionID...)
	}
}

// LandmarkProvider runs face landmark inference on one backend
type LandmarkProvider interface {
	Initialize(modelPath, cascadePath string) error
	Detect(frame gocv.Mat) (*MeshResult, error)
	SelfTest() error
	Close() error
	GetProviderInfo() ProviderInfo
}

// ProviderInfo describes the active landmark backend for the startup log
type ProviderInfo struct {
	Type         string // GPU or CPU
	Backend      string // OpenCV DNN backend name
	Device       string
	EstimatedFPS int           // rough mesh throughput, cascade included
	InitTime     time.Duration // load plus self-test
}

// ProviderManager picks the CUDA provider when it passes its self-test and the CPU one otherwise
type ProviderManager struct {
	currentProvider LandmarkProvider
	providerInfo    ProviderInfo
	forceCPU        bool
}

// NewProviderManager returns a manager with no provider loaded
func NewProviderManager() *ProviderManager {
	return &ProviderManager{}
}

// ForceCPU skips GPU detection entirely
func (pm *ProviderManager) ForceCPU() {
	pm.forceCPU = true
}

// Initialize loads the model on the best backend that runs it
func (pm *ProviderManager) Initialize(modelPath, cascadePath string) error {
	debugMsg("PROVIDER", "Auto-detecting best inference provider...")

	if !pm.forceCPU && hasGPUCapability() {
		debugMsg("PROVIDER", "GPU capability detected, attempting GPU initialization...")
		gpuProvider := &GPUProvider{}

		startTime := time.Now()
		err := gpuProvider.Initialize(modelPath, cascadePath)
		if err == nil {
			// A CUDA build can load the net and still fail on first forward pass
			if err = testProvider(gpuProvider); err == nil {
				pm.currentProvider = gpuProvider
				pm.providerInfo = gpuProvider.GetProviderInfo()
				pm.providerInfo.InitTime = time.Since(startTime)
				debugMsg("PROVIDER", fmt.Sprintf("GPU provider successfully initialized (%v)", pm.providerInfo.InitTime))
				return nil
			}
			debugMsg("PROVIDER", fmt.Sprintf("GPU test inference failed: %v, falling back to CPU", err))
			gpuProvider.Close()
		} else {
			debugMsg("PROVIDER", fmt.Sprintf("GPU initialization failed: %v, falling back to CPU", err))
		}
	}

	debugMsg("PROVIDER", "Initializing CPU provider...")
	cpuProvider := &CPUProvider{}

	startTime := time.Now()
	if err := cpuProvider.Initialize(modelPath, cascadePath); err != nil {
		return fmt.Errorf("both GPU and CPU providers failed: %w", err)
	}
	if err := testProvider(cpuProvider); err != nil {
		cpuProvider.Close()
		return fmt.Errorf("CPU test inference failed: %w", err)
	}

	pm.currentProvider = cpuProvider
	pm.providerInfo = cpuProvider.GetProviderInfo()
	pm.providerInfo.InitTime = time.Since(startTime)
	debugMsg("PROVIDER", fmt.Sprintf("CPU provider initialized (%v)", pm.providerInfo.InitTime))

	return nil
}

// GetProvider returns the loaded provider, nil before Initialize
func (pm *ProviderManager) GetProvider() LandmarkProvider {
	return pm.currentProvider
}

// GetProviderInfo describes the loaded provider
func (pm *ProviderManager) GetProviderInfo() ProviderInfo {
	return pm.providerInfo
}

// Close releases the loaded provider
func (pm *ProviderManager) Close() error {
	if pm.currentProvider != nil {
		return pm.currentProvider.Close()
	}
	return nil
}

// hasGPUCapability reports whether CUDA inference is worth attempting: an
// NVIDIA device node exists and nvidia-smi can query it. CUDA itself is only
// proven by the test inference.
func hasGPUCapability() bool {
	nodes, _ := filepath.Glob("/dev/nvidia[0-9]*")
	if len(nodes) == 0 {
		debugMsg("GPU_DETECT", "No NVIDIA device nodes")
		return false
	}
	out, err := exec.Command("nvidia-smi", "--query-gpu=name", "--format=csv,noheader").Output()
	if err != nil {
		debugMsg("GPU_DETECT", fmt.Sprintf("nvidia-smi unavailable: %v", err))
		return false
	}
	debugMsg("GPU_DETECT", fmt.Sprintf("Found %s", strings.TrimSpace(string(out))))
	return true
}

// testProvider runs the network once; a blank frame would stop at the face
// cascade and never reach it
func testProvider(provider LandmarkProvider) error {
	if err := provider.SelfTest(); err != nil {
		return fmt.Errorf("%s provider: %w", provider.GetProviderInfo().Type, err)
	}
	return nil
}
