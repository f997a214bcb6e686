package openai

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/joseph-ayodele/invoice2order/constants"
	"github.com/joseph-ayodele/invoice2order/internal/llm"
)

var _ llm.Completer = (*Client)(nil)

// Config for the OpenAI client. BaseURL may point at any OpenAI-compatible endpoint.
type Config struct {
	APIKey  string
	BaseURL string // default https://api.openai.com/v1
	Model   string // e.g., "gpt-4o-mini"
	Timeout time.Duration
}

// Client implements llm.Completer over the chat completions API.
type Client struct {
	cfg         Config
	completions openai.ChatCompletionService
	log         *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/") + "/"),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMaxRetries(0),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	return &Client{
		cfg:         cfg,
		completions: openai.NewChatCompletionService(opts...),
		log:         logger,
	}
}

func (c *Client) Name() string { return constants.ProviderOpenAI }

// Complete sends one non-streaming chat completion and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.Prompt),
		},
		Temperature: openai.Float(float64(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	c.log.Info("llm.complete.start", "req_id", rid, "provider", c.Name(), "model", c.cfg.Model, "prompt_len", len(req.Prompt))

	completion, err := c.completions.New(ctx, params)
	if err != nil {
		c.log.Error("llm.complete.error", "req_id", rid, "provider", c.Name(), "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}
	if len(completion.Choices) == 0 {
		c.log.Error("llm.complete.no_choices", "req_id", rid, "provider", c.Name(),
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", errors.New("no choices in openai response")
	}

	content := completion.Choices[0].Message.Content
	c.log.Info("llm.complete.ok", "req_id", rid, "provider", c.Name(),
		"finish_reason", completion.Choices[0].FinishReason,
		"content_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds())
	return content, nil
}
