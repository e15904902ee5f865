package classifier

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/valentinpelus/langfeed/pkg/types"
)

// ortEnv guards the process-wide ONNX Runtime initialisation
var ortEnv struct {
	once sync.Once
	err  error
}

func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// ONNXProvider runs a pretrained transformer sequence classifier exported
// to ONNX. The model takes input_ids and attention_mask (token_type_ids when
// present) and returns logits shaped [batch, len(labels)].
type ONNXProvider struct {
	mu         sync.Mutex
	session    *ort.DynamicAdvancedSession
	inputNames []string
	vocab      *wordpieceVocab
	labels     []types.Label
	logger     *zap.Logger
}

// NewONNXProvider loads the model and vocabulary. modelLabels lists the
// label of each logit in output order and is parsed with labelSet. The
// ONNX Runtime shared library is expected next to the model file.
func NewONNXProvider(modelPath, vocabPath string, modelLabels []string, labelSet types.LabelSet, logger *zap.Logger) (*ONNXProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(modelLabels) == 0 {
		return nil, fmt.Errorf("onnx: model label order must be configured")
	}
	labels := make([]types.Label, len(modelLabels))
	for i, name := range modelLabels {
		l, err := labelSet.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("onnx: label %d: %w", i, err)
		}
		labels[i] = l
	}

	vocab, err := loadWordpieceVocab(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: %w", err)
	}

	libPath := filepath.Join(filepath.Dir(modelPath), "libonnxruntime.so")
	if err := initORT(libPath); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}
	inputNames, err := classifierInputs(inputs)
	if err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("onnx: model has no outputs")
	}
	dims := outputs[0].Dimensions
	if len(dims) != 2 {
		return nil, fmt.Errorf("onnx: expected 2D logits output, got %v", dims)
	}
	if dims[1] > 0 && int(dims[1]) != len(labels) {
		return nil, fmt.Errorf("onnx: model has %d outputs but %d labels are configured", dims[1], len(labels))
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	opts.SetIntraOpNumThreads(2)
	opts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, []string{outputs[0].Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}

	logger.Info("Loaded ONNX classifier", zap.String("model", modelPath), zap.Strings("inputs", inputNames))
	return &ONNXProvider{
		session:    session,
		inputNames: inputNames,
		vocab:      vocab,
		labels:     labels,
		logger:     logger,
	}, nil
}

// classifierInputs returns the input names in the order they are fed
func classifierInputs(inputs []ort.InputOutputInfo) ([]string, error) {
	present := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		present[in.Name] = true
	}
	for _, name := range []string{"input_ids", "attention_mask"} {
		if !present[name] {
			return nil, fmt.Errorf("onnx: model missing required input %q", name)
		}
	}
	names := []string{"input_ids", "attention_mask"}
	if present["token_type_ids"] {
		names = append(names, "token_type_ids")
	}
	return names, nil
}

// Name returns the provider name
func (p *ONNXProvider) Name() string {
	return "ONNX transformer"
}

// Predict runs one inference and returns the arg-max label
func (p *ONNXProvider) Predict(_ context.Context, text string) (types.Label, error) {
	if isBlank(text) {
		return types.LabelNone, ErrEmptyInput
	}

	enc := p.vocab.encode(text)
	shape := ort.NewShape(1, int64(len(enc.inputIDs)))

	feeds := map[string][]int64{
		"input_ids":      enc.inputIDs,
		"attention_mask": enc.attentionMask,
		"token_type_ids": enc.tokenTypeIDs,
	}
	inputs := make([]ort.Value, 0, len(p.inputNames))
	for _, name := range p.inputNames {
		t, err := ort.NewTensor(shape, feeds[name])
		if err != nil {
			return types.LabelNone, fmt.Errorf("onnx: failed to create %s tensor: %w", name, err)
		}
		defer t.Destroy()
		inputs = append(inputs, t)
	}

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(p.labels))))
	if err != nil {
		return types.LabelNone, fmt.Errorf("onnx: failed to create output tensor: %w", err)
	}
	defer out.Destroy()

	p.mu.Lock()
	err = p.session.Run(inputs, []ort.Value{out})
	p.mu.Unlock()
	if err != nil {
		return types.LabelNone, fmt.Errorf("onnx: inference failed: %w", err)
	}

	return p.labels[argmax(out.GetData())], nil
}

// Close releases the session
func (p *ONNXProvider) Close() error {
	return p.session.Destroy()
}

// argmax returns the index of the largest value; the first one wins ties
func argmax(xs []float32) int {
	best := 0
	for i := 1; i < len(xs); i++ {
		if xs[i] > xs[best] {
			best = i
		}
	}
	return best
}
