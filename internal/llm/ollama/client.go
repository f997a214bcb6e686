package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice2order/constants"
	"github.com/joseph-ayodele/invoice2order/internal/llm"
)

var _ llm.Completer = (*Client)(nil)

type Config struct {
	BaseURL string // default http://localhost:11434
	Model   string // e.g., "llama3:8b"
	Timeout time.Duration
}

// Client implements llm.Completer against a local Ollama server's /api/generate.
type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3:8b"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, log: logger}
}

func (c *Client) Name() string { return constants.ProviderOllama }

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// Complete issues a single non-streaming generate call.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	body := generateRequest{
		Model:  c.cfg.Model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: false,
		Options: map[string]any{
			"temperature": req.Temperature,
		},
	}
	if req.JSON {
		body.Format = "json"
	}
	if req.MaxTokens > 0 {
		body.Options["num_predict"] = req.MaxTokens
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/generate"
	c.log.Info("llm.complete.start", "req_id", rid, "provider", c.Name(), "model", c.cfg.Model, "prompt_len", len(req.Prompt))

	raw, status, err := llm.SendJSON(ctx, c.http, url, body, nil, c.log)
	if err != nil {
		c.log.Error("llm.complete.error", "req_id", rid, "provider", c.Name(), "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("ollama generate: %w", err)
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama error: %s", out.Error)
	}

	c.log.Info("llm.complete.ok", "req_id", rid, "provider", c.Name(),
		"content_len", len(out.Response),
		"elapsed_ms", time.Since(start).Milliseconds())
	return out.Response, nil
}
