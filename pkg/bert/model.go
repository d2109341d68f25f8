package bert

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

const (
	ConfigFile  = "config.json"
	VocabFile   = "vocab.txt"
	WeightsFile = "model.safetensors"
)

var (
	ErrEmptyEncoding   = errors.New("encoding has no attended positions")
	ErrSequenceTooLong = errors.New("sequence exceeds max position embeddings")
	ErrTokenOutOfRange = errors.New("token id out of vocabulary range")
)

// Config mirrors the fields of a Hugging Face BertConfig that inference needs.
type Config struct {
	VocabSize             int               `json:"vocab_size"`
	HiddenSize            int               `json:"hidden_size"`
	NumHiddenLayers       int               `json:"num_hidden_layers"`
	NumAttentionHeads     int               `json:"num_attention_heads"`
	IntermediateSize      int               `json:"intermediate_size"`
	HiddenAct             string            `json:"hidden_act"`
	MaxPositionEmbeddings int               `json:"max_position_embeddings"`
	TypeVocabSize         int               `json:"type_vocab_size"`
	LayerNormEps          float64           `json:"layer_norm_eps"`
	ID2Label              map[string]string `json:"id2label,omitempty"`
}

// LoadConfig reads config.json.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read model config %s: %w", path, err)
	}
	cfg := Config{HiddenAct: "gelu", LayerNormEps: 1e-12, TypeVocabSize: 2}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse model config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.HiddenSize <= 0, c.NumAttentionHeads <= 0, c.NumHiddenLayers < 0:
		return fmt.Errorf("invalid model dimensions: hidden=%d heads=%d layers=%d", c.HiddenSize, c.NumAttentionHeads, c.NumHiddenLayers)
	case c.HiddenSize%c.NumAttentionHeads != 0:
		return fmt.Errorf("hidden size %d is not a multiple of %d heads", c.HiddenSize, c.NumAttentionHeads)
	}
	if _, err := activation(c.HiddenAct); err != nil {
		return err
	}
	return nil
}

func activation(name string) (func(float32) float32, error) {
	switch name {
	case "", "gelu":
		return gelu, nil
	case "gelu_new", "gelu_pytorch_tanh":
		return geluNew, nil
	case "relu":
		return relu, nil
	default:
		return nil, fmt.Errorf("unsupported activation %q", name)
	}
}

type encoderLayer struct {
	query, key, value *linear
	attnOut           *linear
	attnNorm          *layerNorm
	intermediate      *linear
	output            *linear
	outNorm           *layerNorm
}

// Model is a BertForSequenceClassification in inference mode. It holds no
// mutable state after construction and is safe for concurrent Logits calls.
type Model struct {
	cfg        Config
	dev        Device
	act        func(float32) float32
	wordEmb    *matrix
	posEmb     *matrix
	typeEmb    *matrix
	embNorm    *layerNorm
	layers     []encoderLayer
	pooler     *linear
	classifier *linear
}

// Load reads config.json and model.safetensors from dir.
func Load(dir string, dev Device) (*Model, error) {
	cfg, err := LoadConfig(filepath.Join(dir, ConfigFile))
	if err != nil {
		return nil, err
	}
	weights, err := LoadSafetensors(filepath.Join(dir, WeightsFile))
	if err != nil {
		return nil, err
	}
	return NewModel(cfg, weights, dev)
}

// NewModel binds decoded weights to the model graph described by cfg.
func NewModel(cfg Config, w Weights, dev Device) (*Model, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	act, _ := activation(cfg.HiddenAct)
	m := &Model{cfg: cfg, dev: dev, act: act}
	eps := float32(cfg.LayerNormEps)

	var err error
	if m.wordEmb, err = embedding(w, cfg.HiddenSize, "embeddings.word_embeddings.weight"); err != nil {
		return nil, err
	}
	if m.posEmb, err = embedding(w, cfg.HiddenSize, "embeddings.position_embeddings.weight"); err != nil {
		return nil, err
	}
	if m.typeEmb, err = embedding(w, cfg.HiddenSize, "embeddings.token_type_embeddings.weight"); err != nil {
		return nil, err
	}
	if m.embNorm, err = loadLayerNorm(w, "embeddings.LayerNorm", cfg.HiddenSize, eps); err != nil {
		return nil, err
	}

	m.layers = make([]encoderLayer, cfg.NumHiddenLayers)
	for i := range m.layers {
		p := fmt.Sprintf("encoder.layer.%d.", i)
		l := &m.layers[i]
		if l.query, err = dense(w, p+"attention.self.query"); err != nil {
			return nil, err
		}
		if l.key, err = dense(w, p+"attention.self.key"); err != nil {
			return nil, err
		}
		if l.value, err = dense(w, p+"attention.self.value"); err != nil {
			return nil, err
		}
		if l.attnOut, err = dense(w, p+"attention.output.dense"); err != nil {
			return nil, err
		}
		if l.attnNorm, err = loadLayerNorm(w, p+"attention.output.LayerNorm", cfg.HiddenSize, eps); err != nil {
			return nil, err
		}
		if l.intermediate, err = dense(w, p+"intermediate.dense"); err != nil {
			return nil, err
		}
		if l.output, err = dense(w, p+"output.dense"); err != nil {
			return nil, err
		}
		if l.outNorm, err = loadLayerNorm(w, p+"output.LayerNorm", cfg.HiddenSize, eps); err != nil {
			return nil, err
		}
		if l.query.in() != cfg.HiddenSize || l.intermediate.out() != l.output.in() || l.output.out() != cfg.HiddenSize {
			return nil, fmt.Errorf("layer %d: weight shapes do not match hidden size %d", i, cfg.HiddenSize)
		}
	}

	if m.pooler, err = dense(w, "pooler.dense"); err != nil {
		return nil, err
	}
	if m.classifier, err = dense(w, "classifier"); err != nil {
		return nil, err
	}
	if m.classifier.in() != cfg.HiddenSize {
		return nil, fmt.Errorf("classifier expects %d inputs, hidden size is %d", m.classifier.in(), cfg.HiddenSize)
	}
	return m, nil
}

// NumLabels is the width of the classifier head.
func (m *Model) NumLabels() int { return m.classifier.out() }

// Device returns the device the model computes on.
func (m *Model) Device() Device { return m.dev }

// Config returns the architecture the model was built from.
func (m *Model) Config() Config { return m.cfg }

// Logits runs one forward pass and returns the classifier scores.
//
// Padding must be trailing. Positions after the last attended token never
// influence attended positions, so only the attended prefix is computed.
func (m *Model) Logits(enc Encoding) ([]float32, error) {
	n := 0
	for i, v := range enc.AttentionMask {
		if v != 0 {
			n = i + 1
		}
	}
	if n == 0 {
		return nil, ErrEmptyEncoding
	}
	if n > m.posEmb.rows {
		return nil, fmt.Errorf("%w: %d > %d", ErrSequenceTooLong, n, m.posEmb.rows)
	}

	hidden := m.cfg.HiddenSize
	h := newMatrix(n, hidden)
	for i := 0; i < n; i++ {
		id := enc.InputIDs[i]
		tt := 0
		if i < len(enc.TokenTypeIDs) {
			tt = enc.TokenTypeIDs[i]
		}
		if id < 0 || id >= m.wordEmb.rows || tt < 0 || tt >= m.typeEmb.rows {
			return nil, fmt.Errorf("%w: position %d id %d type %d", ErrTokenOutOfRange, i, id, tt)
		}
		r := h.row(i)
		we, pe, te := m.wordEmb.row(id), m.posEmb.row(i), m.typeEmb.row(tt)
		for j := range r {
			r[j] = we[j] + pe[j] + te[j]
		}
	}
	m.embNorm.apply(h)

	mask := make([]float32, n)
	for i := 0; i < n; i++ {
		if enc.AttentionMask[i] == 0 {
			mask[i] = -math.MaxFloat32
		}
	}

	for i := range m.layers {
		h = m.encode(&m.layers[i], h, mask)
	}

	cls := &matrix{rows: 1, cols: hidden, data: h.row(0)}
	pooled := m.pooler.forward(m.dev, cls)
	for i, v := range pooled.data {
		pooled.data[i] = float32(math.Tanh(float64(v)))
	}
	return m.classifier.forward(m.dev, pooled).data, nil
}

func (m *Model) encode(l *encoderLayer, h *matrix, mask []float32) *matrix {
	n := h.rows
	heads := m.cfg.NumAttentionHeads
	headDim := m.cfg.HiddenSize / heads
	scale := float32(1 / math.Sqrt(float64(headDim)))

	q := l.query.forward(m.dev, h)
	k := l.key.forward(m.dev, h)
	v := l.value.forward(m.dev, h)

	ctx := newMatrix(n, m.cfg.HiddenSize)
	m.dev.parallelRows(n, func(start, end int) {
		scores := vec(make([]float32, n))
		for hd := 0; hd < heads; hd++ {
			off := hd * headDim
			kh, vh := k.columns(off, headDim), v.columns(off, headDim)
			for i := start; i < end; i++ {
				// scores = scale·K_h·q_i + mask, ctx_i = V_hᵀ·softmax(scores)
				blas32.Gemv(blas.NoTrans, scale, kh, vec(q.row(i)[off:off+headDim]), 0, scores)
				blas32.Axpy(1, vec(mask), scores)
				softmaxInPlace(scores.Data)
				blas32.Gemv(blas.Trans, 1, vh, scores, 0, vec(ctx.row(i)[off:off+headDim]))
			}
		}
	})

	attn := l.attnOut.forward(m.dev, ctx)
	addInPlace(attn, h)
	l.attnNorm.apply(attn)

	inter := l.intermediate.forward(m.dev, attn)
	for i, x := range inter.data {
		inter.data[i] = m.act(x)
	}
	out := l.output.forward(m.dev, inter)
	addInPlace(out, attn)
	l.outNorm.apply(out)
	return out
}

func names(name string) []string {
	return []string{"bert." + name, name}
}

func embedding(w Weights, hidden int, name string) (*matrix, error) {
	t, err := w.lookup(names(name)...)
	if err != nil {
		return nil, err
	}
	if len(t.Shape) != 2 || t.Shape[1] != hidden {
		return nil, fmt.Errorf("%s: expected [*, %d], got %v", name, hidden, t.Shape)
	}
	return &matrix{rows: t.Shape[0], cols: t.Shape[1], data: t.Data}, nil
}

func dense(w Weights, prefix string) (*linear, error) {
	weight, err := w.lookup(names(prefix + ".weight")...)
	if err != nil {
		return nil, err
	}
	bias, err := w.lookup(names(prefix + ".bias")...)
	if err != nil {
		return nil, err
	}
	l, err := newLinear(weight, bias)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", prefix, err)
	}
	return l, nil
}

func loadLayerNorm(w Weights, prefix string, hidden int, eps float32) (*layerNorm, error) {
	gamma, err := w.lookup(append(names(prefix+".weight"), names(prefix+".gamma")...)...)
	if err != nil {
		return nil, err
	}
	beta, err := w.lookup(append(names(prefix+".bias"), names(prefix+".beta")...)...)
	if err != nil {
		return nil, err
	}
	if len(gamma.Data) != hidden || len(beta.Data) != hidden {
		return nil, fmt.Errorf("%s: expected %d parameters", prefix, hidden)
	}
	return newLayerNorm(gamma.Data, beta.Data, eps), nil
}
