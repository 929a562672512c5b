package analysis

import (
	"fmt"
	"image"
	"os"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	defaultDetectorInput = 320
	// detectorNoiseFloor discards detections the model itself barely
	// believes in before any fusion happens.
	detectorNoiseFloor = 0.05
)

// rawDetection is one detector hit on one sampled frame.
type rawDetection struct {
	label      string
	score      float64
	box        Box
	frameIndex int
}

// objectDetector wraps an SSD-style ONNX detection model: one NHWC image
// input, outputs carrying boxes [1,N,4] (ymin,xmin,ymax,xmax normalized),
// class ids [1,N], and scores [1,N].
type objectDetector struct {
	session     *ort.DynamicAdvancedSession
	inputName   string
	outputNames []string
	boxesIdx    int
	classesIdx  int
	scoresIdx   int
	labels      []string
	inputSize   int
}

func newObjectDetector(modelPath, labelsPath, runtimeLib string) (*objectDetector, error) {
	if err := initRuntime(runtimeLib); err != nil {
		return nil, err
	}
	labels, err := loadLabels(labelsPath)
	if err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("read detector model info: %w", err)
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("detector model has %d inputs, want 1", len(inputs))
	}
	inputSize, err := imageInputSize(inputs[0], defaultDetectorInput)
	if err != nil {
		return nil, fmt.Errorf("detector model: %w", err)
	}

	boxesIdx, classesIdx, scoresIdx, err := classifyDetectorOutputs(outputs)
	if err != nil {
		return nil, err
	}
	outputNames := make([]string, len(outputs))
	for i, out := range outputs {
		outputNames[i] = out.Name
	}

	opts, err := newSessionOptions()
	if err != nil {
		return nil, err
	}
	defer opts.Destroy()

	session, err := ort.NewDynamicAdvancedSession(modelPath, []string{inputs[0].Name}, outputNames, opts)
	if err != nil {
		return nil, fmt.Errorf("create detector session: %w", err)
	}

	return &objectDetector{
		session:     session,
		inputName:   inputs[0].Name,
		outputNames: outputNames,
		boxesIdx:    boxesIdx,
		classesIdx:  classesIdx,
		scoresIdx:   scoresIdx,
		labels:      labels,
		inputSize:   inputSize,
	}, nil
}

// detect runs one sampled frame through the model. Output tensors are
// left to the session to allocate because N is dynamic in most exported
// detection models.
func (d *objectDetector) detect(img image.Image, frameIndex int) ([]rawDetection, error) {
	data := resizeRGB(img, d.inputSize, d.inputSize)
	size := int64(d.inputSize)
	input, err := ort.NewTensor(ort.NewShape(1, size, size, 3), data)
	if err != nil {
		return nil, fmt.Errorf("create detector input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := make([]ort.Value, len(d.outputNames))
	if err := d.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("detector inference: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	boxes, err := tensorData(outputs[d.boxesIdx])
	if err != nil {
		return nil, fmt.Errorf("detector boxes output: %w", err)
	}
	scores, err := tensorData(outputs[d.scoresIdx])
	if err != nil {
		return nil, fmt.Errorf("detector scores output: %w", err)
	}
	var classes []float32
	if d.classesIdx >= 0 {
		classes, err = tensorData(outputs[d.classesIdx])
		if err != nil {
			return nil, fmt.Errorf("detector classes output: %w", err)
		}
	}

	return decodeDetections(boxes, scores, classes, d.labels, frameIndex), nil
}

func (d *objectDetector) close() error {
	if d == nil || d.session == nil {
		return nil
	}
	return d.session.Destroy()
}

// classifyDetectorOutputs maps model outputs onto the boxes/classes/scores
// roles. Boxes are recognized by their trailing dimension of 4; the flat
// outputs are matched by name, falling back to the TensorFlow export order
// (classes before scores). classesIdx is -1 when the model emits no class
// tensor, in which case every detection takes the first label.
func classifyDetectorOutputs(outputs []ort.InputOutputInfo) (boxesIdx, classesIdx, scoresIdx int, err error) {
	boxesIdx, classesIdx, scoresIdx = -1, -1, -1
	var flat []int
	for i, out := range outputs {
		dims := out.Dimensions
		if len(dims) >= 2 && dims[len(dims)-1] == 4 && boxesIdx == -1 {
			boxesIdx = i
			continue
		}
		flat = append(flat, i)
	}
	if boxesIdx == -1 {
		return -1, -1, -1, fmt.Errorf("detector model has no [_,N,4] boxes output")
	}

	remaining := make([]int, 0, len(flat))
	for _, i := range flat {
		name := strings.ToLower(outputs[i].Name)
		switch {
		case strings.Contains(name, "score") && scoresIdx == -1:
			scoresIdx = i
		case (strings.Contains(name, "class") || strings.Contains(name, "label")) && classesIdx == -1:
			classesIdx = i
		default:
			remaining = append(remaining, i)
		}
	}
	switch {
	case scoresIdx == -1 && classesIdx == -1 && len(remaining) == 1:
		// A two-output model (boxes + one flat tensor) carries scores.
		scoresIdx = remaining[0]
	case scoresIdx == -1 && classesIdx == -1 && len(remaining) >= 2:
		classesIdx = remaining[0]
		scoresIdx = remaining[1]
	case scoresIdx == -1 && len(remaining) > 0:
		scoresIdx = remaining[0]
	case classesIdx == -1 && len(remaining) > 0:
		classesIdx = remaining[0]
	}
	if scoresIdx == -1 {
		return -1, -1, -1, fmt.Errorf("detector model has no scores output")
	}
	return boxesIdx, classesIdx, scoresIdx, nil
}

// decodeDetections converts raw SSD output slices into detections. Boxes
// arrive as [ymin xmin ymax xmax] per detection, normalized to the frame.
func decodeDetections(boxes, scores, classes []float32, labels []string, frameIndex int) []rawDetection {
	count := len(boxes) / 4
	if len(scores) < count {
		count = len(scores)
	}

	out := make([]rawDetection, 0, count)
	for i := 0; i < count; i++ {
		score := float64(scores[i])
		if score < detectorNoiseFloor {
			continue
		}
		box := Box{
			Y: float64(boxes[i*4]),
			X: float64(boxes[i*4+1]),
		}
		box.H = float64(boxes[i*4+2]) - box.Y
		box.W = float64(boxes[i*4+3]) - box.X
		box = box.clamp()
		if box.Area() == 0 {
			continue
		}
		classID := 0
		if i < len(classes) {
			classID = int(classes[i])
		}
		out = append(out, rawDetection{
			label:      labelFor(labels, classID),
			score:      min(score, 1),
			box:        box,
			frameIndex: frameIndex,
		})
	}
	return out
}

func labelFor(labels []string, id int) string {
	if id >= 0 && id < len(labels) {
		if label := strings.TrimSpace(labels[id]); label != "" {
			return label
		}
	}
	return "object"
}

// imageInputSize reads the spatial size from an NHWC image input,
// tolerating dynamic dimensions.
func imageInputSize(input ort.InputOutputInfo, fallback int) (int, error) {
	dims := input.Dimensions
	if len(dims) != 4 {
		return 0, fmt.Errorf("input %q has rank %d, want 4 (NHWC)", input.Name, len(dims))
	}
	if dims[3] != 3 {
		if dims[1] == 3 {
			return 0, fmt.Errorf("input %q is NCHW; only NHWC models are supported", input.Name)
		}
		return 0, fmt.Errorf("input %q has %d channels, want 3", input.Name, dims[3])
	}
	if dims[1] > 0 {
		return int(dims[1]), nil
	}
	return fallback, nil
}

// tensorData extracts float32 data from a session-allocated output.
func tensorData(value ort.Value) ([]float32, error) {
	tensor, ok := value.(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("output is %T, want float32 tensor", value)
	}
	src := tensor.GetData()
	out := make([]float32, len(src))
	copy(out, src)
	return out, nil
}

// loadLabels reads one label per line. An empty path yields no labels and
// detections fall back to generic names.
func loadLabels(path string) ([]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	labels := make([]string, len(lines))
	for i, line := range lines {
		labels[i] = strings.TrimSpace(line)
	}
	for len(labels) > 0 && labels[len(labels)-1] == "" {
		labels = labels[:len(labels)-1]
	}
	return labels, nil
}
