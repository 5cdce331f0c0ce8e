package detection

import (
	"gocv.io/x/gocv"
)

// CPUProvider runs the face mesh on the OpenCV CPU backend
type CPUProvider struct {
	mesh meshNet
}

// Initialize loads the face cascade and mesh model for CPU inference
func (cp *CPUProvider) Initialize(modelPath, cascadePath string) error {
	return cp.mesh.load(modelPath, cascadePath, gocv.NetBackendDefault, gocv.NetTargetCPU)
}

// Detect finds the face and its landmarks on the CPU
func (cp *CPUProvider) Detect(frame gocv.Mat) (*MeshResult, error) {
	return cp.mesh.detect(frame)
}

// SelfTest runs one forward pass of the mesh network
func (cp *CPUProvider) SelfTest() error {
	return cp.mesh.selfTest()
}

// Close releases resources used by the CPU provider
func (cp *CPUProvider) Close() error {
	return cp.mesh.close()
}

// GetProviderInfo returns information about the CPU provider
func (cp *CPUProvider) GetProviderInfo() ProviderInfo {
	return ProviderInfo{
		Type:         "CPU",
		Backend:      "OpenCV CPU",
		Device:       "CPU",
		EstimatedFPS: 30, // mesh model is small; the cascade dominates
	}
}
