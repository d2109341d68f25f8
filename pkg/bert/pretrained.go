package bert

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Pretrained bundles everything loaded from one model directory.
type Pretrained struct {
	Tokenizer *Tokenizer
	Model     *Model
}

type tokenizerConfig struct {
	DoLowerCase *bool `json:"do_lower_case"`
}

// LoadPretrained loads the tokenizer and model stored in dir.
func LoadPretrained(dir string, dev Device, maxLength int) (*Pretrained, error) {
	vocab, err := LoadVocab(filepath.Join(dir, VocabFile))
	if err != nil {
		return nil, err
	}
	lower, err := readLowerCase(filepath.Join(dir, tokenizerConfigFile))
	if err != nil {
		return nil, err
	}
	model, err := Load(dir, dev)
	if err != nil {
		return nil, err
	}
	if maxLength > model.Config().MaxPositionEmbeddings && model.Config().MaxPositionEmbeddings > 0 {
		return nil, fmt.Errorf("max length %d exceeds model limit %d", maxLength, model.Config().MaxPositionEmbeddings)
	}
	tok, err := NewTokenizer(vocab, lower, maxLength)
	if err != nil {
		return nil, err
	}
	return &Pretrained{Tokenizer: tok, Model: model}, nil
}

// readLowerCase defaults to true, the setting of uncased BERT checkpoints.
func readLowerCase(path string) (bool, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var cfg tokenizerConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cfg.DoLowerCase == nil {
		return true, nil
	}
	return *cfg.DoLowerCase, nil
}
