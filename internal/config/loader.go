package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/mirrorpen/mirrorpen/internal/workflow"
)

// ValidProviderNames lists known LLM provider names. Used by [Validate] to
// warn about unrecognised names, which are usually typos.
var ValidProviderNames = []string{
	"openai", "openai-direct", "anthropic", "gemini", "ollama",
	"deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Providers — warn on unknown names, error on missing primary.
	validateProviderName("providers.llm", cfg.Providers.LLM.Name)
	for i, entry := range cfg.Providers.Fallbacks {
		prefix := fmt.Sprintf("providers.fallbacks[%d]", i)
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		validateProviderName(prefix, entry.Name)
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("providers.llm is not configured; only the local default style guide and deterministic analysis will be available")
	}

	// Pipeline
	p := cfg.Pipeline
	if p.Mode != "" {
		switch workflow.Mode(p.Mode) {
		case workflow.ModeSentenceEdit, workflow.ModeFullText:
		default:
			errs = append(errs, fmt.Errorf("pipeline.mode %q is invalid; valid values: sentence-edit, full-text", p.Mode))
		}
	}
	if p.MaxBatchSize > 0 && p.InitialBatchSize > p.MaxBatchSize {
		errs = append(errs, fmt.Errorf("pipeline.initial_batch_size %d exceeds pipeline.max_batch_size %d", p.InitialBatchSize, p.MaxBatchSize))
	}
	if chain := p.DegradationChain; len(chain) > 0 {
		for i, v := range chain {
			if v <= 0 {
				errs = append(errs, fmt.Errorf("pipeline.degradation_chain[%d] must be positive, got %d", i, v))
			}
			if i > 0 && chain[i] >= chain[i-1] {
				errs = append(errs, fmt.Errorf("pipeline.degradation_chain must be strictly descending, got %v", chain))
				break
			}
		}
	}
	if p.FastThreshold > 0 && p.SlowThreshold > 0 && p.FastThreshold.Std() >= p.SlowThreshold.Std() {
		errs = append(errs, fmt.Errorf("pipeline.fast_threshold %v must be below pipeline.slow_threshold %v", p.FastThreshold.Std(), p.SlowThreshold.Std()))
	}
	if p.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_retries must not be negative, got %d", p.MaxRetries))
	}
	if p.MinChunkChars > 0 && p.MaxChunkChars > 0 && p.MinChunkChars > p.MaxChunkChars {
		errs = append(errs, fmt.Errorf("pipeline.min_chunk_chars %d exceeds pipeline.max_chunk_chars %d", p.MinChunkChars, p.MaxChunkChars))
	}
	if p.TargetClauseChars > 0 && p.MaxSentenceChars > 0 && p.TargetClauseChars > p.MaxSentenceChars {
		errs = append(errs, fmt.Errorf("pipeline.target_clause_chars %d exceeds pipeline.max_sentence_chars %d", p.TargetClauseChars, p.MaxSentenceChars))
	}

	// Report
	if cfg.Report.PostgresDSN == "" {
		slog.Debug("report.postgres_dsn is empty; run reports will not be archived")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// [ValidProviderNames].
func validateProviderName(field, name string) {
	if name == "" {
		return
	}
	if slices.Contains(ValidProviderNames, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"field", field,
		"name", name,
		"known", ValidProviderNames,
	)
}
