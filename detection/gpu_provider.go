package detection

import (
	"gocv.io/x/gocv"
)

// GPUProvider runs the face mesh on the OpenCV CUDA backend
type GPUProvider struct {
	mesh meshNet
}

// Initialize loads the face cascade and mesh model for CUDA inference
func (gp *GPUProvider) Initialize(modelPath, cascadePath string) error {
	return gp.mesh.load(modelPath, cascadePath, gocv.NetBackendCUDA, gocv.NetTargetCUDA)
}

// Detect finds the face and its landmarks; the cascade still runs on the CPU
func (gp *GPUProvider) Detect(frame gocv.Mat) (*MeshResult, error) {
	return gp.mesh.detect(frame)
}

// SelfTest runs one forward pass of the mesh network
func (gp *GPUProvider) SelfTest() error {
	return gp.mesh.selfTest()
}

// Close releases resources used by the GPU provider
func (gp *GPUProvider) Close() error {
	return gp.mesh.close()
}

// GetProviderInfo returns information about the GPU provider
func (gp *GPUProvider) GetProviderInfo() ProviderInfo {
	return ProviderInfo{
		Type:         "GPU",
		Backend:      "OpenCV CUDA",
		Device:       "NVIDIA GPU",
		EstimatedFPS: 60,
	}
}
