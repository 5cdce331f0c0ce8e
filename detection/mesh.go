package detection

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"drivercam/landmarks"
)

// MeshInputSize is the square input resolution of the face mesh network
const MeshInputSize = 192

// roiMargin widens the cascade box so the mesh sees the whole face, chin and brows included
const roiMargin = 0.25

// meshNet is the shared cascade + mesh network pipeline. Providers differ only
// in the DNN backend they select.
type meshNet struct {
	net     gocv.Net
	cascade gocv.CascadeClassifier
	mu      sync.Mutex
	loaded  bool
}

func (m *meshNet) load(modelPath, cascadePath string, backend gocv.NetBackendType, target gocv.NetTargetType) error {
	m.cascade = gocv.NewCascadeClassifier()
	if !m.cascade.Load(cascadePath) {
		m.cascade.Close()
		return fmt.Errorf("%w: face cascade %s", ErrModelLoad, cascadePath)
	}

	m.net = gocv.ReadNet(modelPath, "")
	if m.net.Empty() {
		m.cascade.Close()
		return fmt.Errorf("%w: mesh network %s", ErrModelLoad, modelPath)
	}
	m.net.SetPreferableBackend(backend)
	m.net.SetPreferableTarget(target)
	m.loaded = true
	return nil
}

func (m *meshNet) detect(frame gocv.Mat) (*MeshResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}
	res := &MeshResult{Width: frame.Cols(), Height: frame.Rows()}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	gocv.EqualizeHist(gray, &gray)

	roi, ok := faceROI(m.cascade.DetectMultiScale(gray), res.Width, res.Height)
	if !ok {
		return res, nil
	}

	face := frame.Region(roi)
	defer face.Close()

	blob := gocv.BlobFromImage(face, 1.0/255.0, image.Pt(MeshInputSize, MeshInputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	m.net.SetInput(blob, "")
	output := m.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadOutput, err)
	}
	set, err := decodeMesh(data, roi, MeshInputSize, res.Width, res.Height)
	if err != nil {
		return nil, err
	}

	res.Found = true
	res.Face = roi
	res.Landmarks = set
	return res, nil
}

// selfTest runs one forward pass on a blank input and checks the output is a
// face mesh. It catches backends that load the net but cannot execute it, and
// models exported with the wrong topology.
func (m *meshNet) selfTest() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		return fmt.Errorf("%w: network not loaded", ErrModelLoad)
	}

	blank := gocv.NewMatWithSize(MeshInputSize, MeshInputSize, gocv.MatTypeCV8UC3)
	defer blank.Close()
	blob := gocv.BlobFromImage(blank, 1.0/255.0, image.Pt(MeshInputSize, MeshInputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	m.net.SetInput(blob, "")
	output := m.net.Forward("")
	defer output.Close()
	if output.Empty() {
		return fmt.Errorf("%w: forward pass produced no output", ErrBadOutput)
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadOutput, err)
	}
	full := image.Rect(0, 0, MeshInputSize, MeshInputSize)
	_, err = decodeMesh(data, full, MeshInputSize, MeshInputSize, MeshInputSize)
	return err
}

func (m *meshNet) close() error {
	if !m.loaded {
		return nil
	}
	m.loaded = false
	m.cascade.Close()
	return m.net.Close()
}

// faceROI picks the largest detected face, widens it by roiMargin and makes it
// square and inside the frame. ok is false when there is no usable face.
func faceROI(faces []image.Rectangle, frameW, frameH int) (image.Rectangle, bool) {
	var best image.Rectangle
	for _, f := range faces {
		if f.Dx()*f.Dy() > best.Dx()*best.Dy() {
			best = f
		}
	}
	if best.Empty() {
		return image.Rectangle{}, false
	}

	side := best.Dx()
	if best.Dy() > side {
		side = best.Dy()
	}
	side += int(float64(side) * roiMargin * 2)

	c := image.Pt((best.Min.X+best.Max.X)/2, (best.Min.Y+best.Max.Y)/2)
	roi := image.Rect(c.X-side/2, c.Y-side/2, c.X-side/2+side, c.Y-side/2+side)
	roi = roi.Intersect(image.Rect(0, 0, frameW, frameH))
	if roi.Empty() {
		return image.Rectangle{}, false
	}
	return roi, true
}

// decodeMesh maps raw mesh output (x, y, z triples in network input pixels)
// back onto the full frame as normalized landmarks. Both the 468 and the
// refined 478 point topologies are accepted.
func decodeMesh(data []float32, roi image.Rectangle, inputSize, frameW, frameH int) (landmarks.Set, error) {
	if frameW <= 0 || frameH <= 0 || inputSize <= 0 || roi.Empty() {
		return nil, fmt.Errorf("%w: bad geometry roi=%v input=%d frame=%dx%d", ErrBadOutput, roi, inputSize, frameW, frameH)
	}

	var n int
	switch len(data) {
	case landmarks.FaceMeshSize * 3:
		n = landmarks.FaceMeshSize
	case landmarks.BaseMeshSize * 3:
		n = landmarks.BaseMeshSize
	default:
		// some exports append a face-presence score
		switch len(data) - 1 {
		case landmarks.FaceMeshSize * 3:
			n = landmarks.FaceMeshSize
		case landmarks.BaseMeshSize * 3:
			n = landmarks.BaseMeshSize
		default:
			return nil, fmt.Errorf("%w: %w: %d values", ErrBadOutput, landmarks.ErrTopologyMismatch, len(data))
		}
	}

	sx := float64(roi.Dx()) / float64(inputSize)
	sy := float64(roi.Dy()) / float64(inputSize)

	set := make(landmarks.Set, n)
	for i := 0; i < n; i++ {
		x := float64(data[i*3])
		y := float64(data[i*3+1])
		z := float64(data[i*3+2])
		set[i] = landmarks.Landmark{
			X: (float64(roi.Min.X) + x*sx) / float64(frameW),
			Y: (float64(roi.Min.Y) + y*sy) / float64(frameH),
			Z: z * sx / float64(frameW),
		}
	}
	return set, nil
}
