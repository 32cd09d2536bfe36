package percept

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the recognized detection options.  A snapshot of the current
// configuration is taken once per detect call with any per call overrides
// applied, and is read-only for the remainder of that call.
type Config struct {
	// Backend names the compute backend to run model sessions on
	Backend string `yaml:"backend"`
	// Async selects concurrent pipeline execution over sequential
	Async bool `yaml:"async"`
	// VideoOptimized enables the object frame-skip cache for video input
	VideoOptimized bool `yaml:"videoOptimized"`
	// Scoped wraps each detect call in a buffer scope that releases all
	// transient buffers on return
	Scoped bool `yaml:"scoped"`
	// Debug enables verbose logging
	Debug bool `yaml:"debug"`

	Gesture GestureConfig `yaml:"gesture"`
	Face    FaceConfig    `yaml:"face"`
	Body    BodyConfig    `yaml:"body"`
	Hand    HandConfig    `yaml:"hand"`
	Object  ObjectConfig  `yaml:"object"`
}

// GestureConfig controls gesture derivation from pipeline outputs
type GestureConfig struct {
	Enabled bool `yaml:"enabled"`
}

// FaceConfig controls the face pipeline and its attribute sub pipeline
type FaceConfig struct {
	Enabled       bool    `yaml:"enabled"`
	ModelPath     string  `yaml:"modelPath"`
	MinConfidence float32 `yaml:"minConfidence"`
	MaxResults    int     `yaml:"maxResults"`

	Age       SubModelConfig `yaml:"age"`
	Gender    SubModelConfig `yaml:"gender"`
	Emotion   SubModelConfig `yaml:"emotion"`
	Embedding SubModelConfig `yaml:"embedding"`
	Describe  SubModelConfig `yaml:"describe"`
}

// SubModelConfig is a face attribute model that consumes a cropped face
// region
type SubModelConfig struct {
	Enabled   bool   `yaml:"enabled"`
	ModelPath string `yaml:"modelPath"`
}

// BodyConfig controls the body pose pipeline.  ModelPath selects one of the
// interchangeable body model variants by substring match
type BodyConfig struct {
	Enabled       bool    `yaml:"enabled"`
	ModelPath     string  `yaml:"modelPath"`
	MinConfidence float32 `yaml:"minConfidence"`
	MaxResults    int     `yaml:"maxResults"`
}

// HandConfig controls the hand pipeline
type HandConfig struct {
	Enabled       bool    `yaml:"enabled"`
	ModelPath     string  `yaml:"modelPath"`
	MinConfidence float32 `yaml:"minConfidence"`
	MaxResults    int     `yaml:"maxResults"`
}

// ObjectConfig controls the object detection pipeline
type ObjectConfig struct {
	Enabled       bool    `yaml:"enabled"`
	ModelPath     string  `yaml:"modelPath"`
	MinConfidence float32 `yaml:"minConfidence"`
	IoUThreshold  float32 `yaml:"iouThreshold"`
	MaxResults    int     `yaml:"maxResults"`
	// SkipFrames is the number of consecutive frames the previous result
	// is reused for when VideoOptimized is set
	SkipFrames int `yaml:"skipFrames"`
	// BackgroundClass is the label index excluded during decode, tied to
	// the model's label set
	BackgroundClass int `yaml:"backgroundClass"`
	// Labels overrides the built in object label set
	Labels []string `yaml:"labels"`
}

// DefaultConfig returns the configuration used when no overrides are given.
// All capabilities are enabled with stock model paths and thresholds
func DefaultConfig() Config {
	return Config{
		Backend:        "cpu",
		Async:          true,
		VideoOptimized: false,
		Scoped:         true,
		Gesture:        GestureConfig{Enabled: true},
		Face: FaceConfig{
			Enabled:       true,
			ModelPath:     "models/blazeface.onnx",
			MinConfidence: 0.2,
			MaxResults:    5,
			Age:           SubModelConfig{Enabled: true, ModelPath: "models/age.onnx"},
			Gender:        SubModelConfig{Enabled: true, ModelPath: "models/gender.onnx"},
			Emotion:       SubModelConfig{Enabled: true, ModelPath: "models/emotion.onnx"},
			Embedding:     SubModelConfig{Enabled: false, ModelPath: "models/mobileface.onnx"},
			Describe:      SubModelConfig{Enabled: false, ModelPath: "models/faceres.onnx"},
		},
		Body: BodyConfig{
			Enabled:       true,
			ModelPath:     "models/movenet-lightning.onnx",
			MinConfidence: 0.2,
			MaxResults:    1,
		},
		Hand: HandConfig{
			Enabled:       true,
			ModelPath:     "models/handlandmark.onnx",
			MinConfidence: 0.2,
			MaxResults:    2,
		},
		Object: ObjectConfig{
			Enabled:         true,
			ModelPath:       "models/nanodet.onnx",
			MinConfidence:   0.2,
			IoUThreshold:    0.45,
			MaxResults:      10,
			SkipFrames:      0,
			BackgroundClass: 61,
		},
	}
}

// LoadConfigFile reads a yaml configuration file layered over the defaults
func LoadConfigFile(path string) (Config, error) {

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)

	if err != nil {
		return cfg, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// Option is a per call configuration override applied to a copy of the
// current configuration before a detect call runs
type Option func(*Config)

// WithAsync selects concurrent or sequential pipeline execution
func WithAsync(async bool) Option {
	return func(c *Config) { c.Async = async }
}

// WithBackend selects the compute backend by name
func WithBackend(name string) Option {
	return func(c *Config) { c.Backend = name }
}

// WithVideoOptimized toggles the object frame-skip cache
func WithVideoOptimized(on bool) Option {
	return func(c *Config) { c.VideoOptimized = on }
}

// WithScoped toggles the per call buffer scope
func WithScoped(on bool) Option {
	return func(c *Config) { c.Scoped = on }
}

// WithFaceEnabled toggles the face pipeline
func WithFaceEnabled(on bool) Option {
	return func(c *Config) { c.Face.Enabled = on }
}

// WithBodyEnabled toggles the body pipeline
func WithBodyEnabled(on bool) Option {
	return func(c *Config) { c.Body.Enabled = on }
}

// WithBodyModel selects the body model variant by path
func WithBodyModel(path string) Option {
	return func(c *Config) { c.Body.ModelPath = path }
}

// WithHandEnabled toggles the hand pipeline
func WithHandEnabled(on bool) Option {
	return func(c *Config) { c.Hand.Enabled = on }
}

// WithObjectEnabled toggles the object pipeline
func WithObjectEnabled(on bool) Option {
	return func(c *Config) { c.Object.Enabled = on }
}

// WithObjectThresholds overrides the object pipeline thresholds
func WithObjectThresholds(minConfidence, iouThreshold float32, maxResults int) Option {
	return func(c *Config) {
		c.Object.MinConfidence = minConfidence
		c.Object.IoUThreshold = iouThreshold
		c.Object.MaxResults = maxResults
	}
}

// WithSkipFrames overrides the object frame-skip count
func WithSkipFrames(n int) Option {
	return func(c *Config) { c.Object.SkipFrames = n }
}

// WithGestures toggles gesture derivation
func WithGestures(on bool) Option {
	return func(c *Config) { c.Gesture.Enabled = on }
}

// snapshot copies the configuration and applies the per call overrides.
// The merge happens exactly once per detect call
func (c Config) snapshot(overrides ...Option) Config {

	for _, o := range overrides {
		o(&c)
	}

	return c
}
