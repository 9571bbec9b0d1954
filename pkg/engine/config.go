package engine

import (
	"time"

	"github.com/rhuss/chorus/pkg/api"
)

// Config holds configuration for the query engine.
type Config struct {
	// DefaultDeadline bounds a query that carries neither a Deadline nor a
	// TimeoutMs. Defaults to 30s.
	DefaultDeadline time.Duration

	// MaxInFlight caps concurrent model invocations across all queries.
	// Defaults to 64.
	MaxInFlight int

	// MaxModels caps the models per query. Defaults to 8.
	MaxModels int

	// MaxPromptSize caps the prompt in bytes. Defaults to 256KB.
	MaxPromptSize int

	// MaxTimeout caps a caller-supplied TimeoutMs. Defaults to 10m.
	MaxTimeout time.Duration

	// PersistTimeout bounds the transcript write after a query. Defaults to 5s.
	PersistTimeout time.Duration
}

func (c Config) withDefaults() Config {
	def := api.DefaultValidationConfig()
	if c.DefaultDeadline <= 0 {
		c.DefaultDeadline = 30 * time.Second
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = 64
	}
	if c.MaxModels <= 0 {
		c.MaxModels = def.MaxModels
	}
	if c.MaxPromptSize <= 0 {
		c.MaxPromptSize = def.MaxPromptSize
	}
	if c.MaxTimeout <= 0 {
		c.MaxTimeout = time.Duration(def.MaxTimeoutMs) * time.Millisecond
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = 5 * time.Second
	}
	return c
}

func (c Config) validation() api.ValidationConfig {
	return api.ValidationConfig{
		MaxModels:     c.MaxModels,
		MaxPromptSize: c.MaxPromptSize,
		MaxTimeoutMs:  int(c.MaxTimeout / time.Millisecond),
	}
}
