package bert

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// Tensor is a dense row-major float32 tensor.
type Tensor struct {
	Shape []int
	Data  []float32
}

func (t *Tensor) numel() int {
	n := 1
	for _, s := range t.Shape {
		n *= s
	}
	return n
}

// matrix is a 2-D view used by the forward pass.
type matrix struct {
	rows, cols int
	data       []float32
}

func newMatrix(rows, cols int) *matrix {
	return &matrix{rows: rows, cols: cols, data: make([]float32, rows*cols)}
}

func (m *matrix) row(i int) []float32 {
	return m.data[i*m.cols : (i+1)*m.cols]
}

func (m *matrix) general() blas32.General {
	return blas32.General{Rows: m.rows, Cols: m.cols, Stride: m.cols, Data: m.data}
}

// columns views the width columns starting at off as a strided matrix.
func (m *matrix) columns(off, width int) blas32.General {
	return blas32.General{Rows: m.rows, Cols: width, Stride: m.cols, Data: m.data[off:]}
}

func vec(x []float32) blas32.Vector {
	return blas32.Vector{N: len(x), Inc: 1, Data: x}
}

// linear holds a dense layer in the torch layout: weight is [out, in].
type linear struct {
	weight *matrix
	bias   []float32
}

func newLinear(w, b *Tensor) (*linear, error) {
	if len(w.Shape) != 2 {
		return nil, fmt.Errorf("linear weight must be 2-D, got shape %v", w.Shape)
	}
	out, in := w.Shape[0], w.Shape[1]
	if len(b.Shape) != 1 || b.Shape[0] != out {
		return nil, fmt.Errorf("linear bias shape %v does not match weight %v", b.Shape, w.Shape)
	}
	return &linear{weight: &matrix{rows: out, cols: in, data: w.Data}, bias: b.Data}, nil
}

func (l *linear) in() int  { return l.weight.cols }
func (l *linear) out() int { return l.weight.rows }

// forward computes x·Wᵀ + b. Rows go through Gemv one at a time, so a
// row's result does not depend on how rows are split across workers.
func (l *linear) forward(dev Device, x *matrix) *matrix {
	y := newMatrix(x.rows, l.out())
	w := l.weight.general()
	dev.parallelRows(x.rows, func(start, end int) {
		for i := start; i < end; i++ {
			yr := y.row(i)
			copy(yr, l.bias)
			blas32.Gemv(blas.NoTrans, 1, w, vec(x.row(i)), 1, vec(yr))
		}
	})
	return y
}

type layerNorm struct {
	gamma, beta []float32
	ones        []float32
	eps         float32
}

func newLayerNorm(gamma, beta []float32, eps float32) *layerNorm {
	ones := make([]float32, len(gamma))
	for i := range ones {
		ones[i] = 1
	}
	return &layerNorm{gamma: gamma, beta: beta, ones: ones, eps: eps}
}

func (ln *layerNorm) apply(x *matrix) {
	n := float32(x.cols)
	ones := vec(ln.ones)
	for i := 0; i < x.rows; i++ {
		r := vec(x.row(i))
		mean := blas32.Dot(r, ones) / n
		blas32.Axpy(-mean, ones, r)
		variance := blas32.Dot(r, r) / n
		blas32.Scal(float32(1/math.Sqrt(float64(variance+ln.eps))), r)
		for j, v := range r.Data {
			r.Data[j] = v*ln.gamma[j] + ln.beta[j]
		}
	}
}

func addInPlace(dst, src *matrix) {
	blas32.Axpy(1, vec(src.data), vec(dst.data))
}

func gelu(x float32) float32 {
	return float32(0.5 * float64(x) * (1 + math.Erf(float64(x)/math.Sqrt2)))
}

func geluNew(x float32) float32 {
	xf := float64(x)
	return float32(0.5 * xf * (1 + math.Tanh(math.Sqrt(2/math.Pi)*(xf+0.044715*xf*xf*xf))))
}

func relu(x float32) float32 {
	if x < 0 {
		return 0
	}
	return x
}

// Softmax returns the normalised probabilities of logits.
func Softmax(logits []float32) []float32 {
	out := make([]float32, len(logits))
	if len(logits) == 0 {
		return out
	}
	maxV := logits[0]
	for _, v := range logits[1:] {
		if v > maxV {
			maxV = v
		}
	}
	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v - maxV))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}

// Argmax returns the index of the largest value, the first one on ties.
func Argmax(values []float32) int {
	best := -1
	for i, v := range values {
		if best < 0 || v > values[best] {
			best = i
		}
	}
	return best
}

func softmaxInPlace(r []float32) {
	maxV := float32(math.Inf(-1))
	for _, v := range r {
		if v > maxV {
			maxV = v
		}
	}
	var sum float32
	for i, v := range r {
		e := float32(math.Exp(float64(v - maxV)))
		r[i] = e
		sum += e
	}
	for i := range r {
		r[i] /= sum
	}
}
