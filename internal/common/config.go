package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/invoice2order/constants"
)

// Config holds all application configuration. It is built once at startup
// and passed by value to the components that need it.
type Config struct {
	Database      DatabaseConfig
	Server        ServerConfig
	Preprocess    PreprocessConfig
	OCR           OCRConfig
	Consolidation ConsolidationConfig
	LLM           LLMConfig
	Validation    ValidationConfig
	Order         OrderConfig
	Queue         QueueConfig
	Ingest        IngestConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // postgres | sqlite
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr       string
	MaxUploadBytes int
}

// PreprocessConfig tunes the image normalization pass.
type PreprocessConfig struct {
	DenoiseSigma         float64
	SharpenSigma         float64
	Contrast             float64
	MaxSkewDegrees       float64
	SkewStepDegrees      float64
	SkewThresholdDegrees float64
	MaxDimension         int
	MinDimension         int
}

// EngineConfig names one recognizer and its static priority weight.
type EngineConfig struct {
	Name    string        `yaml:"name"`
	Weight  float64       `yaml:"weight"`
	Timeout time.Duration `yaml:"timeout"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engines       []EngineConfig
	Workers       int
	EngineTimeout time.Duration
	Tesseract     string
	TessdataDir   string
	Language      string
	PSM           int
	Pdftoppm      string
	Pdftotext     string
	PDFDPI        int
	TempDir       string
	AzureEndpoint string
	AzureKey      string
	// AzureConfidence is assigned to Azure lines; the printed-text OCR API reports none.
	AzureConfidence float64
}

// ConsolidationConfig holds the line alignment and vote thresholds.
type ConsolidationConfig struct {
	IoUThreshold float64
	// TextSimilarity is the minimum fuzzy match for aligning lines without regions.
	TextSimilarity float64
	// MinVoteScore drops aligned groups whose winning normalized score is below it.
	MinVoteScore float64
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider        string
	BaseURL         string
	Model           string
	APIKey          string
	Temperature     float32
	MaxTokens       int
	Timeout         time.Duration
	RateLimit       float64 // requests per second; 0 disables
	FallbackEnabled bool
	// FallbackConfidence is the confidence assigned to fields produced by the fallback extractor.
	FallbackConfidence float64
	MaxPromptChars     int
}

// ValidationConfig holds locale and tolerance settings for the validator.
type ValidationConfig struct {
	Locale    string // ISO 3166 region, e.g. IN, US, GB
	Tolerance decimal.Decimal
	// LowConfidenceThreshold marks extracted fields below it as low confidence.
	LowConfidenceThreshold float64
}

// OrderConfig holds order-mapper defaults.
type OrderConfig struct {
	PickupLocation    string  `yaml:"pickup_location"`
	ChannelID         string  `yaml:"channel_id"`
	Country           string  `yaml:"country"`
	Currency          string  `yaml:"currency"`
	MinWeight         float64 `yaml:"min_weight"`
	DefaultItemWeight float64 `yaml:"default_item_weight"`
	Length            float64 `yaml:"length"`
	Breadth           float64 `yaml:"breadth"`
	Height            float64 `yaml:"height"`
	OrderIDPrefix     string  `yaml:"order_id_prefix"`
}

// QueueConfig sizes the async processing queue used by the daemon.
type QueueConfig struct {
	Workers        int
	Size           int
	ProcessTimeout time.Duration
}

// IngestConfig controls file loading and the daemon's directory watcher.
type IngestConfig struct {
	WatchDirs  []string
	Debounce   time.Duration
	SkipHidden bool
	// MaxPages caps the pages loaded from one PDF; 0 means no limit.
	MaxPages int
	// MinTextChars is the smallest PDF text layer per page used instead of OCR.
	MinTextChars int
}

// fileOverlay is the optional YAML file named by PIPELINE_CONFIG.
type fileOverlay struct {
	Engines    []EngineConfig `yaml:"engines"`
	Order      *OrderConfig   `yaml:"order"`
	Locale     string         `yaml:"locale"`
	Tolerance  string         `yaml:"tolerance"`
	IoU        float64        `yaml:"iou_threshold"`
	Provider   string         `yaml:"llm_provider"`
	Model      string         `yaml:"llm_model"`
	NoFallback bool           `yaml:"disable_fallback"`
}

// LoadConfig loads configuration from environment variables. A .env file in
// the working directory is read first when present, and PIPELINE_CONFIG may
// point to a YAML file whose values take precedence.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "sqlite"),
			DSN:              getEnv("DB_URL", "file:invoice2order.db?_pragma=foreign_keys(1)"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr:       getEnv("GRPC_ADDR", ":8080"),
			MaxUploadBytes: getEnvAsInt("MAX_UPLOAD_BYTES", 16<<20),
		},
		Preprocess: PreprocessConfig{
			DenoiseSigma:         getEnvAsFloat64("PREPROCESS_DENOISE_SIGMA", 0.6),
			SharpenSigma:         getEnvAsFloat64("PREPROCESS_SHARPEN_SIGMA", 1.0),
			Contrast:             getEnvAsFloat64("PREPROCESS_CONTRAST", 20),
			MaxSkewDegrees:       getEnvAsFloat64("PREPROCESS_MAX_SKEW", 10),
			SkewStepDegrees:      getEnvAsFloat64("PREPROCESS_SKEW_STEP", 0.25),
			SkewThresholdDegrees: getEnvAsFloat64("PREPROCESS_SKEW_THRESHOLD", 0.5),
			MaxDimension:         getEnvAsInt("PREPROCESS_MAX_DIMENSION", 3000),
			MinDimension:         getEnvAsInt("PREPROCESS_MIN_DIMENSION", 300),
		},
		OCR: OCRConfig{
			Engines:         parseEngines(getEnv("OCR_ENGINES", constants.EngineTesseract)),
			Workers:         getEnvAsInt("OCR_WORKERS", 4),
			EngineTimeout:   getEnvAsDuration("OCR_ENGINE_TIMEOUT", 60*time.Second),
			Tesseract:       getEnv("TESSERACT_BIN", "tesseract"),
			TessdataDir:     getEnv("TESSDATA_PREFIX", ""),
			Language:        getEnv("OCR_LANGUAGE", "eng"),
			PSM:             getEnvAsInt("TESSERACT_PSM", 6),
			Pdftoppm:        getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Pdftotext:       getEnv("PDFTOTEXT_BIN", "pdftotext"),
			PDFDPI:          getEnvAsInt("PDF_DPI", 300),
			TempDir:         getEnv("ARTIFACT_CACHE_DIR", os.TempDir()),
			AzureEndpoint:   getEnv("AZURE_VISION_ENDPOINT", ""),
			AzureKey:        getEnv("AZURE_VISION_KEY", ""),
			AzureConfidence: getEnvAsFloat64("AZURE_VISION_CONFIDENCE", 0.9),
		},
		Consolidation: ConsolidationConfig{
			IoUThreshold:   getEnvAsFloat64("CONSOLIDATE_IOU_THRESHOLD", 0.5),
			TextSimilarity: getEnvAsFloat64("CONSOLIDATE_TEXT_SIMILARITY", 0.6),
			MinVoteScore:   getEnvAsFloat64("CONSOLIDATE_MIN_VOTE_SCORE", 0),
		},
		LLM: LLMConfig{
			Provider:           strings.ToLower(getEnv("LLM_PROVIDER", constants.ProviderOpenAI)),
			BaseURL:            getEnv("LLM_BASE_URL", ""),
			Model:              getEnv("LLM_MODEL", "gpt-4o-mini"),
			APIKey:             getEnv("LLM_API_KEY", os.Getenv("OPENAI_API_KEY")),
			Temperature:        getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			MaxTokens:          getEnvAsInt("LLM_MAX_TOKENS", 2048),
			Timeout:            getEnvAsDuration("LLM_TIMEOUT", 45*time.Second),
			RateLimit:          getEnvAsFloat64("LLM_RATE_LIMIT", 0),
			FallbackEnabled:    getEnvAsBool("LLM_FALLBACK_ENABLED", true),
			FallbackConfidence: getEnvAsFloat64("LLM_FALLBACK_CONFIDENCE", 0.5),
			MaxPromptChars:     getEnvAsInt("LLM_MAX_PROMPT_CHARS", 6000),
		},
		Validation: ValidationConfig{
			Locale:                 strings.ToUpper(getEnv("VALIDATION_LOCALE", "IN")),
			Tolerance:              getEnvAsDecimal("VALIDATION_TOLERANCE", decimal.RequireFromString("1.00")),
			LowConfidenceThreshold: getEnvAsFloat64("VALIDATION_LOW_CONFIDENCE", 0.6),
		},
		Order: OrderConfig{
			PickupLocation:    getEnv("ORDER_PICKUP_LOCATION", "Primary"),
			ChannelID:         getEnv("ORDER_CHANNEL_ID", ""),
			Country:           getEnv("ORDER_COUNTRY", "India"),
			Currency:          getEnv("ORDER_CURRENCY", "INR"),
			MinWeight:         getEnvAsFloat64("ORDER_MIN_WEIGHT", 0.5),
			DefaultItemWeight: getEnvAsFloat64("ORDER_DEFAULT_ITEM_WEIGHT", 0.5),
			Length:            getEnvAsFloat64("ORDER_LENGTH", 10),
			Breadth:           getEnvAsFloat64("ORDER_BREADTH", 10),
			Height:            getEnvAsFloat64("ORDER_HEIGHT", 10),
			OrderIDPrefix:     getEnv("ORDER_ID_PREFIX", "INV-"),
		},
		Queue: QueueConfig{
			Workers:        getEnvAsInt("QUEUE_WORKERS", 4),
			Size:           getEnvAsInt("QUEUE_SIZE", 256),
			ProcessTimeout: getEnvAsDuration("QUEUE_PROCESS_TIMEOUT", 3*time.Minute),
		},
		Ingest: IngestConfig{
			WatchDirs:    splitList(getEnv("WATCH_DIRS", "")),
			Debounce:     getEnvAsDuration("WATCH_DEBOUNCE", 500*time.Millisecond),
			SkipHidden:   getEnvAsBool("INGEST_SKIP_HIDDEN", true),
			MaxPages:     getEnvAsInt("PDF_MAX_PAGES", 0),
			MinTextChars: getEnvAsInt("PDF_MIN_TEXT_CHARS", 40),
		},
	}

	if path := getEnv("PIPELINE_CONFIG", ""); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, NewAppError("CONFIG_ERROR", "load "+path, err)
		}
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var ov fileOverlay
	if err := yaml.Unmarshal(raw, &ov); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if len(ov.Engines) > 0 {
		c.OCR.Engines = ov.Engines
		for i := range c.OCR.Engines {
			c.OCR.Engines[i].Name = strings.ToLower(strings.TrimSpace(c.OCR.Engines[i].Name))
			if c.OCR.Engines[i].Weight <= 0 {
				c.OCR.Engines[i].Weight = constants.DefaultEngineWeights[c.OCR.Engines[i].Name]
			}
		}
	}
	if ov.Order != nil {
		mergeOrder(&c.Order, *ov.Order)
	}
	if ov.Locale != "" {
		c.Validation.Locale = strings.ToUpper(ov.Locale)
	}
	if ov.Tolerance != "" {
		t, err := decimal.NewFromString(ov.Tolerance)
		if err != nil {
			return fmt.Errorf("tolerance: %w", err)
		}
		c.Validation.Tolerance = t
	}
	if ov.IoU > 0 {
		c.Consolidation.IoUThreshold = ov.IoU
	}
	if ov.Provider != "" {
		c.LLM.Provider = strings.ToLower(ov.Provider)
	}
	if ov.Model != "" {
		c.LLM.Model = ov.Model
	}
	if ov.NoFallback {
		c.LLM.FallbackEnabled = false
	}
	return nil
}

func mergeOrder(dst *OrderConfig, src OrderConfig) {
	if src.PickupLocation != "" {
		dst.PickupLocation = src.PickupLocation
	}
	if src.ChannelID != "" {
		dst.ChannelID = src.ChannelID
	}
	if src.Country != "" {
		dst.Country = src.Country
	}
	if src.Currency != "" {
		dst.Currency = src.Currency
	}
	if src.MinWeight > 0 {
		dst.MinWeight = src.MinWeight
	}
	if src.DefaultItemWeight > 0 {
		dst.DefaultItemWeight = src.DefaultItemWeight
	}
	if src.Length > 0 {
		dst.Length = src.Length
	}
	if src.Breadth > 0 {
		dst.Breadth = src.Breadth
	}
	if src.Height > 0 {
		dst.Height = src.Height
	}
	if src.OrderIDPrefix != "" {
		dst.OrderIDPrefix = src.OrderIDPrefix
	}
}

// parseEngines reads "name[:weight],..." e.g. "azure-vision:1.0,tesseract:0.8".
func parseEngines(s string) []EngineConfig {
	var out []EngineConfig
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, weightStr, _ := strings.Cut(part, ":")
		name = strings.ToLower(strings.TrimSpace(name))
		w := constants.DefaultEngineWeights[name]
		if weightStr != "" {
			if f, err := strconv.ParseFloat(strings.TrimSpace(weightStr), 64); err == nil {
				w = f
			}
		}
		if w <= 0 {
			w = 0.5
		}
		out = append(out, EngineConfig{Name: name, Weight: w})
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if len(c.OCR.Engines) == 0 {
		return NewAppError("CONFIG_ERROR", "OCR_ENGINES must name at least one engine", ErrInvalidInput)
	}
	for _, e := range c.OCR.Engines {
		if _, ok := constants.DefaultEngineWeights[e.Name]; !ok {
			return NewAppError("CONFIG_ERROR", "unknown OCR engine "+e.Name, ErrInvalidInput)
		}
		if e.Name == constants.EngineAzureVision && (c.OCR.AzureEndpoint == "" || c.OCR.AzureKey == "") {
			return NewAppError("CONFIG_ERROR", "AZURE_VISION_ENDPOINT and AZURE_VISION_KEY are required for azure-vision", ErrInvalidInput)
		}
	}
	switch c.LLM.Provider {
	case constants.ProviderOpenAI, constants.ProviderAnthropic:
		// Without a key every document goes to the fallback extractor.
		if c.LLM.APIKey == "" && !c.LLM.FallbackEnabled {
			return NewAppError("CONFIG_ERROR", "LLM_API_KEY is required for provider "+c.LLM.Provider+" when the fallback is disabled", ErrInvalidInput)
		}
	case constants.ProviderOllama:
	default:
		return NewAppError("CONFIG_ERROR", "unknown LLM_PROVIDER "+c.LLM.Provider, ErrInvalidInput)
	}
	if c.Consolidation.IoUThreshold <= 0 || c.Consolidation.IoUThreshold > 1 {
		return NewAppError("CONFIG_ERROR", "CONSOLIDATE_IOU_THRESHOLD must be in (0,1]", ErrInvalidInput)
	}
	if c.Validation.Tolerance.IsNegative() {
		return NewAppError("CONFIG_ERROR", "VALIDATION_TOLERANCE must not be negative", ErrInvalidInput)
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be postgres or sqlite", ErrInvalidInput)
	}
	return nil
}
