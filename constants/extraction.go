package constants

// ExtractionMethod records which path produced an InvoiceRecord.
type ExtractionMethod string

const (
	MethodLLM      ExtractionMethod = "llm"
	MethodFallback ExtractionMethod = "fallback"
	MethodNone     ExtractionMethod = "none"
)

// Severity of a validation finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// LLM providers; exactly one is active per process.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Canonical payment methods in order payloads.
const (
	PaymentPrepaid = "prepaid"
	PaymentCOD     = "cod"
)
