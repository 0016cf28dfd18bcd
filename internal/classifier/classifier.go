// Package classifier wraps the pretrained plant disease model.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"gaunroots/internal/metrics"
)

// ErrModelUnavailable is returned while the model artifact cannot be loaded.
var ErrModelUnavailable = errors.New("disease detection model unavailable")

// Config defines model artifact and runtime parameters.
type Config struct {
	ModelPath   string
	LibraryPath string // optional onnxruntime shared library location
	InputName   string
	OutputName  string
}

// Result is one classification outcome. Confidence is the probability mass
// assigned to the winning label; RawScore is the model's healthy score.
type Result struct {
	Prediction string  `json:"prediction"`
	Confidence float64 `json:"confidence"`
	RawScore   float64 `json:"raw_score"`
}

// Classifier runs the binary healthy/diseased model. The session is created
// lazily on first use and kept for the process lifetime. A failed load is
// not cached: every later request retries, so a model artifact dropped in
// after startup is picked up without a restart.
type Classifier struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
}

// New creates a Classifier; the model file is not touched until the first
// classification request.
func New(cfg Config, logger *slog.Logger, metricRegistry *metrics.Metrics) *Classifier {
	if cfg.InputName == "" {
		cfg.InputName = "input"
	}
	if cfg.OutputName == "" {
		cfg.OutputName = "output"
	}
	return &Classifier{
		cfg:     cfg,
		logger:  logger.With("component", "classifier"),
		metrics: metricRegistry,
	}
}

func (c *Classifier) ensureSession() (*ort.DynamicAdvancedSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return c.session, nil
	}

	if _, err := os.Stat(c.cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: model file %s missing", ErrModelUnavailable, c.cfg.ModelPath)
	}

	if !ort.IsInitialized() {
		if c.cfg.LibraryPath != "" {
			ort.SetSharedLibraryPath(c.cfg.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("%w: initialize runtime: %v", ErrModelUnavailable, err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(c.cfg.ModelPath,
		[]string{c.cfg.InputName}, []string{c.cfg.OutputName}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: load model: %v", ErrModelUnavailable, err)
	}

	c.session = session
	c.logger.Info("plant disease model loaded", "path", c.cfg.ModelPath)
	return session, nil
}

// Classify decodes the base64 image, runs inference and interprets the
// scalar score: healthy at >= 0.5, diseased otherwise.
func (c *Classifier) Classify(ctx context.Context, imageData string) (*Result, error) {
	session, err := c.ensureSession()
	if err != nil {
		if c.metrics != nil {
			c.metrics.Predictions.WithLabelValues("unavailable").Inc()
		}
		return nil, err
	}

	pixels, err := PrepareImage(imageData)
	if err != nil {
		if c.metrics != nil {
			c.metrics.Predictions.WithLabelValues("invalid_input").Inc()
		}
		return nil, fmt.Errorf("prepare image: %w", err)
	}

	input, err := ort.NewTensor(ort.NewShape(1, inputSize, inputSize, inputChannels), pixels)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer input.Destroy()

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	defer output.Destroy()

	start := time.Now()
	if err := session.Run([]ort.Value{input}, []ort.Value{output}); err != nil {
		if c.metrics != nil {
			c.metrics.Errors.WithLabelValues("classifier").Inc()
		}
		return nil, fmt.Errorf("run inference: %w", err)
	}
	if c.metrics != nil {
		c.metrics.PredictionLatency.Observe(time.Since(start).Seconds())
	}

	score := float64(output.GetData()[0])
	result := interpretScore(score)
	if c.metrics != nil {
		c.metrics.Predictions.WithLabelValues(result.Prediction).Inc()
	}
	c.logger.Debug("image classified", "prediction", result.Prediction, "raw_score", result.RawScore)
	return result, nil
}

// interpretScore maps the model's healthy score to a labelled result.
func interpretScore(score float64) *Result {
	if score >= 0.5 {
		return &Result{Prediction: "healthy", Confidence: score, RawScore: score}
	}
	return &Result{Prediction: "diseased", Confidence: 1 - score, RawScore: score}
}

// Close releases the cached session.
func (c *Classifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.session.Destroy()
		c.session = nil
	}
}
