package services

import (
	"fmt"
	"strconv"
	"strings"

	"spamguard/internal/metrics"
	"spamguard/pkg/bert"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	LabelNotSpam = "Not Spam"
	LabelSpam    = "Spam"
	LabelUnknown = "Unknown"
)

var classLabels = map[int]string{0: LabelNotSpam, 1: LabelSpam}

// ClassificationResult is the outcome of one classify request.
type ClassificationResult struct {
	Classification string  `json:"classification"`
	Confidence     float64 `json:"confidence"`
}

// ClassifyService runs spam classification over a shared resource.
type ClassifyService struct {
	res    *ClassificationResource
	events EventPublisher
	log    *zap.Logger
}

// NewClassifyService creates a new ClassifyService. events may be nil.
func NewClassifyService(res *ClassificationResource, events EventPublisher, log *zap.Logger) *ClassifyService {
	return &ClassifyService{
		res:    res,
		events: events,
		log:    log,
	}
}

// Classify labels text as spam or not. Blank text yields ErrEmptyText without
// touching the model; every tokenizer or model failure, including a panic,
// is returned wrapped in ErrClassification.
func (s *ClassifyService) Classify(text string) (result *ClassificationResult, err error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrClassification, r)
		}
		if err != nil {
			metrics.ClassificationErrors.Inc()
		}
	}()

	timer := prometheus.NewTimer(metrics.InferenceLatency)
	enc, err := s.res.Tokenizer.Encode(text)
	if err != nil {
		return nil, fmt.Errorf("%w: tokenize: %v", ErrClassification, err)
	}
	logits, err := s.res.Model.Logits(enc)
	if err != nil {
		return nil, fmt.Errorf("%w: inference: %v", ErrClassification, err)
	}
	timer.ObserveDuration()
	if len(logits) == 0 {
		return nil, fmt.Errorf("%w: model returned no logits", ErrClassification)
	}

	idx := bert.Argmax(logits)
	label := LabelFor(idx)
	probs := bert.Softmax(logits)
	result = &ClassificationResult{
		Classification: label,
		Confidence:     roundConfidence(probs[idx]),
	}

	metrics.Classifications.WithLabelValues(label).Inc()
	s.publish(map[string]interface{}{
		"classification": result.Classification,
		"confidence":     result.Confidence,
		"text_length":    len([]rune(text)),
	})
	return result, nil
}

// LabelFor maps a class index to its label.
func LabelFor(idx int) string {
	if l, ok := classLabels[idx]; ok {
		return l
	}
	return LabelUnknown
}

// roundConfidence rounds to two decimals the way "%.2f" formatting does.
func roundConfidence(p float32) float64 {
	v, _ := strconv.ParseFloat(strconv.FormatFloat(float64(p), 'f', 2, 64), 64)
	return v
}

func (s *ClassifyService) publish(payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(EventTextClassified, payload); err != nil {
		s.log.Warn("failed to publish event", zap.String("event", EventTextClassified), zap.Error(err))
	}
}

