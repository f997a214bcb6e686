package anthropic

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice2order/constants"
	"github.com/joseph-ayodele/invoice2order/internal/llm"
)

var _ llm.Completer = (*Client)(nil)

type Config struct {
	APIKey  string
	BaseURL string // default https://api.anthropic.com/
	Model   string
	Timeout time.Duration
}

// Client implements llm.Completer over the Messages API.
type Client struct {
	cfg      Config
	messages anthropic.MessageService
	log      *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com/"
	}
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-haiku-latest"
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
		cfg:      cfg,
		messages: anthropic.NewMessageService(opts...),
		log:      logger,
	}
}

func (c *Client) Name() string { return constants.ProviderAnthropic }

// Complete sends one message and concatenates the text blocks of the reply.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.cfg.Model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(float64(req.Temperature)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	c.log.Info("llm.complete.start", "req_id", rid, "provider", c.Name(), "model", c.cfg.Model, "prompt_len", len(req.Prompt))

	message, err := c.messages.New(ctx, params)
	if err != nil {
		c.log.Error("llm.complete.error", "req_id", rid, "provider", c.Name(), "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}

	var b strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", errors.New("no text content in anthropic response")
	}

	c.log.Info("llm.complete.ok", "req_id", rid, "provider", c.Name(),
		"stop_reason", message.StopReason,
		"content_len", b.Len(),
		"elapsed_ms", time.Since(start).Milliseconds())
	return b.String(), nil
}
