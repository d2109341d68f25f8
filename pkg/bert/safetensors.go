package bert

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/x448/float16"
)

const maxSafetensorsHeader = 100 << 20

var ErrTensorNotFound = errors.New("tensor not found")

type tensorInfo struct {
	DType       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// Weights is a named set of tensors decoded to float32.
type Weights map[string]*Tensor

// LoadSafetensors reads a .safetensors file from disk.
func LoadSafetensors(path string) (Weights, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read weights %s: %w", path, err)
	}
	return ParseSafetensors(raw)
}

// ParseSafetensors decodes a safetensors blob. F32, F16 and BF16 tensors are supported.
func ParseSafetensors(raw []byte) (Weights, error) {
	if len(raw) < 8 {
		return nil, fmt.Errorf("safetensors: file too short (%d bytes)", len(raw))
	}
	headerLen := binary.LittleEndian.Uint64(raw[:8])
	if headerLen > maxSafetensorsHeader || uint64(len(raw)-8) < headerLen {
		return nil, fmt.Errorf("safetensors: invalid header length %d", headerLen)
	}
	var header map[string]json.RawMessage
	if err := json.Unmarshal(raw[8:8+headerLen], &header); err != nil {
		return nil, fmt.Errorf("safetensors: invalid header: %w", err)
	}
	data := raw[8+headerLen:]

	weights := make(Weights, len(header))
	for name, msg := range header {
		if name == "__metadata__" {
			continue
		}
		var info tensorInfo
		if err := json.Unmarshal(msg, &info); err != nil {
			return nil, fmt.Errorf("safetensors: tensor %s: %w", name, err)
		}
		t, err := decodeTensor(info, data)
		if err != nil {
			return nil, fmt.Errorf("safetensors: tensor %s: %w", name, err)
		}
		weights[name] = t
	}
	return weights, nil
}

func decodeTensor(info tensorInfo, data []byte) (*Tensor, error) {
	begin, end := info.DataOffsets[0], info.DataOffsets[1]
	if begin < 0 || end < begin || end > int64(len(data)) {
		return nil, fmt.Errorf("data offsets [%d, %d] out of range", begin, end)
	}
	buf := data[begin:end]
	t := &Tensor{Shape: append([]int(nil), info.Shape...)}
	n := t.numel()

	var width int
	switch info.DType {
	case "F32":
		width = 4
	case "F16", "BF16":
		width = 2
	default:
		return nil, fmt.Errorf("unsupported dtype %s", info.DType)
	}
	if len(buf) != n*width {
		return nil, fmt.Errorf("expected %d bytes for shape %v, got %d", n*width, info.Shape, len(buf))
	}

	t.Data = make([]float32, n)
	for i := 0; i < n; i++ {
		switch info.DType {
		case "F32":
			t.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		case "F16":
			t.Data[i] = float16.Frombits(binary.LittleEndian.Uint16(buf[i*2:])).Float32()
		case "BF16":
			t.Data[i] = math.Float32frombits(uint32(binary.LittleEndian.Uint16(buf[i*2:])) << 16)
		}
	}
	return t, nil
}

// lookup finds a tensor trying each candidate name in order.
func (w Weights) lookup(names ...string) (*Tensor, error) {
	for _, n := range names {
		if t, ok := w[n]; ok {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTensorNotFound, names[0])
}
