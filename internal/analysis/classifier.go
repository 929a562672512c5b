package analysis

import (
	"fmt"
	"image"
	"math"

	ort "github.com/yalue/onnxruntime_go"
)

const defaultClassifierInput = 224

// sceneClassifier wraps an image classification ONNX model: one NHWC
// input, one [1,C] logits or probabilities output.
type sceneClassifier struct {
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
	labels     []string
	inputSize  int
	classCount int64
}

func newSceneClassifier(modelPath, labelsPath, runtimeLib string) (*sceneClassifier, error) {
	if err := initRuntime(runtimeLib); err != nil {
		return nil, err
	}
	labels, err := loadLabels(labelsPath)
	if err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("read scene model info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("scene model has %d inputs and %d outputs, want 1 and 1", len(inputs), len(outputs))
	}
	inputSize, err := imageInputSize(inputs[0], defaultClassifierInput)
	if err != nil {
		return nil, fmt.Errorf("scene model: %w", err)
	}

	dims := outputs[0].Dimensions
	classCount := int64(0)
	if len(dims) > 0 {
		classCount = dims[len(dims)-1]
	}
	if classCount <= 0 {
		classCount = int64(len(labels))
	}
	if classCount <= 0 {
		return nil, fmt.Errorf("scene model output size unknown and no labels provided")
	}

	opts, err := newSessionOptions()
	if err != nil {
		return nil, err
	}
	defer opts.Destroy()

	session, err := ort.NewDynamicAdvancedSession(modelPath, []string{inputs[0].Name}, []string{outputs[0].Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("create scene session: %w", err)
	}

	return &sceneClassifier{
		session:    session,
		inputName:  inputs[0].Name,
		outputName: outputs[0].Name,
		labels:     labels,
		inputSize:  inputSize,
		classCount: classCount,
	}, nil
}

// classify returns the model's top label for one frame.
func (c *sceneClassifier) classify(img image.Image) (Scene, error) {
	data := resizeRGB(img, c.inputSize, c.inputSize)
	size := int64(c.inputSize)
	input, err := ort.NewTensor(ort.NewShape(1, size, size, 3), data)
	if err != nil {
		return Scene{}, fmt.Errorf("create scene input tensor: %w", err)
	}
	defer input.Destroy()

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, c.classCount))
	if err != nil {
		return Scene{}, fmt.Errorf("create scene output tensor: %w", err)
	}
	defer output.Destroy()

	if err := c.session.Run([]ort.Value{input}, []ort.Value{output}); err != nil {
		return Scene{}, fmt.Errorf("scene inference: %w", err)
	}

	src := output.GetData()
	scores := make([]float32, len(src))
	copy(scores, src)
	return topScene(ensureProbabilities(scores), c.labels), nil
}

func (c *sceneClassifier) close() error {
	if c == nil || c.session == nil {
		return nil
	}
	return c.session.Destroy()
}

// ensureProbabilities softmaxes raw logits but leaves already-normalized
// outputs alone: models export either, and double-softmax flattens real
// probabilities.
func ensureProbabilities(scores []float32) []float32 {
	if len(scores) == 0 {
		return scores
	}
	var sum float64
	normalized := true
	for _, s := range scores {
		if s < 0 || s > 1 {
			normalized = false
			break
		}
		sum += float64(s)
	}
	if normalized && sum > 0.99 && sum < 1.01 {
		return scores
	}

	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}
	var total float64
	exps := make([]float64, len(scores))
	for i, s := range scores {
		exps[i] = math.Exp(float64(s - maxScore))
		total += exps[i]
	}
	out := make([]float32, len(scores))
	for i := range exps {
		out[i] = float32(exps[i] / total)
	}
	return out
}

// topScene picks the highest-probability class.
func topScene(scores []float32, labels []string) Scene {
	best := -1
	for i, s := range scores {
		if best == -1 || s > scores[best] {
			best = i
		}
	}
	if best == -1 {
		return Scene{}
	}
	label := fmt.Sprintf("scene-%d", best)
	if best < len(labels) && labels[best] != "" {
		label = labels[best]
	}
	return Scene{Label: label, Score: float64(scores[best])}
}
