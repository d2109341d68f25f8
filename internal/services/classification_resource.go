package services

import (
	"errors"
	"fmt"

	"spamguard/pkg/bert"

	"go.uber.org/zap"
)

// Encoder turns raw text into fixed-length model input.
type Encoder interface {
	Encode(text string) (bert.Encoding, error)
}

// SequenceClassifier runs one forward pass and returns per-class logits.
type SequenceClassifier interface {
	Logits(enc bert.Encoding) ([]float32, error)
}

// ClassificationResource pairs a tokenizer with a loaded model. It is built
// once at startup and shared read-only by every classify request.
type ClassificationResource struct {
	Tokenizer Encoder
	Model     SequenceClassifier
	Device    bert.Device
	ModelName string
}

// ResourceOptions configures LoadClassificationResource.
type ResourceOptions struct {
	Fetch     bert.FetchOptions
	Device    string
	MaxLength int
}

// LoadClassificationResource selects the device, makes sure the model
// artifacts are cached locally and loads tokenizer and model. Any failure is
// meant to abort startup.
func LoadClassificationResource(opts ResourceOptions, log *zap.Logger) (*ClassificationResource, error) {
	dev, err := bert.SelectDevice(opts.Device)
	if err != nil {
		return nil, err
	}
	log.Info("selected compute device", zap.Stringer("device", dev))

	fetched, err := bert.Fetch(opts.Fetch)
	if errors.Is(err, bert.ErrArtifactMissing) {
		return nil, fmt.Errorf("failed to fetch model %s (check MODEL_REVISION and MODEL_DIR): %w", opts.Fetch.Repo, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch model %s: %w", opts.Fetch.Repo, err)
	}
	if len(fetched.Downloaded) > 0 {
		log.Info("downloaded model artifacts",
			zap.String("repo", opts.Fetch.Repo),
			zap.Strings("files", fetched.Downloaded),
			zap.String("dir", fetched.Dir))
	}

	maxLength := opts.MaxLength
	if maxLength == 0 {
		maxLength = bert.DefaultMaxLength
	}
	pretrained, err := bert.LoadPretrained(fetched.Dir, dev, maxLength)
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", opts.Fetch.Repo, err)
	}
	cfg := pretrained.Model.Config()
	log.Info("classification model loaded",
		zap.String("repo", opts.Fetch.Repo),
		zap.Int("layers", cfg.NumHiddenLayers),
		zap.Int("hidden_size", cfg.HiddenSize),
		zap.Int("labels", pretrained.Model.NumLabels()),
		zap.Int("max_length", maxLength))

	return &ClassificationResource{
		Tokenizer: pretrained.Tokenizer,
		Model:     pretrained.Model,
		Device:    dev,
		ModelName: opts.Fetch.Repo,
	}, nil
}
