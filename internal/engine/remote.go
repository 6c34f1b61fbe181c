package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/pet-gateway/internal/anonymizer"
)

const solvePath = "/solve"

// Config contains remote engine configuration
type Config struct {
	URL              string        `yaml:"url" mapstructure:"url"`
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxResponseBytes int64         `yaml:"max_response_bytes" mapstructure:"max_response_bytes"`
}

// RemoteEngine submits jobs to an external optimization engine over HTTP
type RemoteEngine struct {
	endpoint string
	client   *http.Client
	config   *Config
	logger   *zap.Logger
}

// NewRemoteEngine creates a client for the engine at config.URL
func NewRemoteEngine(config *Config, logger *zap.Logger) (*RemoteEngine, error) {
	base, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse engine URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported engine URL scheme: %q", base.Scheme)
	}

	return &RemoteEngine{
		endpoint: strings.TrimSuffix(base.String(), "/") + solvePath,
		client:   &http.Client{Timeout: config.Timeout},
		config:   config,
		logger:   logger,
	}, nil
}

// Solve posts the job and decodes the outcome. The call is bound to ctx, so a
// cancelled request also abandons the engine call.
func (e *RemoteEngine) Solve(ctx context.Context, job *anonymizer.Job) (*anonymizer.Outcome, error) {
	payload, err := encodeJob(job)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create engine request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("engine request failed: %w", err)
	}
	defer resp.Body.Close()

	limit := e.config.MaxResponseBytes
	if limit <= 0 {
		limit = 64 << 20
	}
	reader := io.LimitReader(resp.Body, limit)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(reader, 4096))
		return nil, fmt.Errorf("engine returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var outcome wireOutcome
	if err := json.NewDecoder(reader).Decode(&outcome); err != nil {
		return nil, fmt.Errorf("failed to decode engine response: %w", err)
	}

	e.logger.Debug("Engine call completed",
		zap.Bool("optimum_found", outcome.OptimumFound),
		zap.Int("rows", len(outcome.Rows)),
		zap.Int("request_bytes", len(body)),
		zap.Duration("duration", time.Since(start)),
	)

	return decodeOutcome(&outcome), nil
}
