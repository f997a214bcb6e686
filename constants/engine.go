package constants

// Recognizer engine names. Used as config keys and as provenance labels.
const (
	EngineTesseract       = "tesseract"
	EngineTesseractNative = "tesseract-native"
	EngineAzureVision     = "azure-vision"
	EngineText            = "text"
)

// DefaultEngineWeights are the static priorities used when config names an engine without a weight.
var DefaultEngineWeights = map[string]float64{
	EngineAzureVision:     1.0,
	EngineTesseract:       0.8,
	EngineTesseractNative: 0.7,
	EngineText:            1.0,
}
