package services_test

import (
	"errors"
	"math"
	"sync"
	"testing"

	"spamguard/internal/services"
	"spamguard/pkg/bert"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockEncoder is a mock implementation of services.Encoder
type MockEncoder struct {
	mock.Mock
}

func (m *MockEncoder) Encode(text string) (bert.Encoding, error) {
	args := m.Called(text)
	return args.Get(0).(bert.Encoding), args.Error(1)
}

// MockModel is a mock implementation of services.SequenceClassifier
type MockModel struct {
	mock.Mock
}

func (m *MockModel) Logits(enc bert.Encoding) ([]float32, error) {
	args := m.Called(enc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type panickingModel struct{}

func (panickingModel) Logits(bert.Encoding) ([]float32, error) {
	var m map[string]int
	m["boom"]++
	return nil, nil
}

var testEncoding = bert.Encoding{InputIDs: []int{101, 102}, AttentionMask: []int{1, 1}, TokenTypeIDs: []int{0, 0}}

func newClassifyService(enc services.Encoder, model services.SequenceClassifier, events services.EventPublisher) *services.ClassifyService {
	res := &services.ClassificationResource{Tokenizer: enc, Model: model, Device: bert.Device{Kind: bert.DeviceCPU, Workers: 1}}
	return services.NewClassifyService(res, events, zap.NewNop())
}

func TestClassifyService_EmptyTextSkipsModel(t *testing.T) {
	enc := new(MockEncoder)
	model := new(MockModel)
	svc := newClassifyService(enc, model, nil)

	for _, text := range []string{"", " ", "\t\n  "} {
		_, err := svc.Classify(text)
		assert.ErrorIs(t, err, services.ErrEmptyText)
	}
	enc.AssertNotCalled(t, "Encode", mock.Anything)
	model.AssertNotCalled(t, "Logits", mock.Anything)
}

func TestClassifyService_Labels(t *testing.T) {
	tests := []struct {
		name       string
		logits     []float32
		label      string
		confidence float64
	}{
		{"spam", []float32{-1.5, 2.5}, services.LabelSpam, 0.98},
		{"not spam", []float32{3, -1}, services.LabelNotSpam, 0.98},
		{"tie picks first", []float32{0, 0}, services.LabelNotSpam, 0.5},
		{"unexpected class", []float32{0, 0, 5}, services.LabelUnknown, 0.99},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			enc := new(MockEncoder)
			model := new(MockModel)
			enc.On("Encode", "some text").Return(testEncoding, nil).Once()
			model.On("Logits", testEncoding).Return(tc.logits, nil).Once()

			res, err := newClassifyService(enc, model, nil).Classify("some text")
			require.NoError(t, err)
			assert.Equal(t, tc.label, res.Classification)
			assert.Equal(t, tc.confidence, res.Confidence)
			model.AssertExpectations(t)
		})
	}
}

func TestClassifyService_ConfidenceIsRoundedAndBounded(t *testing.T) {
	enc := new(MockEncoder)
	model := new(MockModel)
	enc.On("Encode", mock.Anything).Return(testEncoding, nil)
	model.On("Logits", testEncoding).Return([]float32{0.1234, 0.9876}, nil)
	svc := newClassifyService(enc, model, nil)

	res, err := svc.Classify("hello")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 1.0)
	assert.Equal(t, res.Confidence, math.Round(res.Confidence*100)/100)

	again, err := svc.Classify("hello")
	require.NoError(t, err)
	assert.Equal(t, res, again)
}

func TestClassifyService_Errors(t *testing.T) {
	enc := new(MockEncoder)
	model := new(MockModel)
	enc.On("Encode", "bad tokens").Return(bert.Encoding{}, errors.New("tokenizer exploded")).Once()
	enc.On("Encode", "bad model").Return(testEncoding, nil).Once()
	model.On("Logits", testEncoding).Return(nil, errors.New("shape mismatch")).Once()
	svc := newClassifyService(enc, model, nil)

	_, err := svc.Classify("bad tokens")
	assert.ErrorIs(t, err, services.ErrClassification)
	assert.ErrorContains(t, err, "tokenizer exploded")

	_, err = svc.Classify("bad model")
	assert.ErrorIs(t, err, services.ErrClassification)
	assert.ErrorContains(t, err, "shape mismatch")
}

func TestClassifyService_RecoversModelPanic(t *testing.T) {
	enc := new(MockEncoder)
	enc.On("Encode", "boom").Return(testEncoding, nil).Once()
	svc := newClassifyService(enc, panickingModel{}, nil)

	res, err := svc.Classify("boom")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, services.ErrClassification)
}

func TestClassifyService_PublishesEventWithoutText(t *testing.T) {
	enc := new(MockEncoder)
	model := new(MockModel)
	publisher := new(MockPublisher)
	enc.On("Encode", "win a prize").Return(testEncoding, nil).Once()
	model.On("Logits", testEncoding).Return([]float32{-2, 2}, nil).Once()
	publisher.On("PublishEvent", services.EventTextClassified, map[string]interface{}{
		"classification": services.LabelSpam,
		"confidence":     0.98,
		"text_length":    11,
	}).Return(nil).Once()

	_, err := newClassifyService(enc, model, publisher).Classify("win a prize")
	require.NoError(t, err)
	publisher.AssertExpectations(t)
}

func TestClassifyService_ConcurrentRequests(t *testing.T) {
	enc := new(MockEncoder)
	model := new(MockModel)
	enc.On("Encode", mock.Anything).Return(testEncoding, nil)
	model.On("Logits", testEncoding).Return([]float32{-1, 1}, nil)
	svc := newClassifyService(enc, model, nil)

	var wg sync.WaitGroup
	results := make([]*services.ClassificationResult, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = svc.Classify("same text")
		}(i)
	}
	wg.Wait()
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, results[0], r)
	}
}

func TestLabelFor(t *testing.T) {
	assert.Equal(t, "Not Spam", services.LabelFor(0))
	assert.Equal(t, "Spam", services.LabelFor(1))
	assert.Equal(t, "Unknown", services.LabelFor(2))
	assert.Equal(t, "Unknown", services.LabelFor(-1))
}
