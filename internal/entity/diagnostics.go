package entity

import "github.com/joseph-ayodele/invoice2order/constants"

// EngineDiagnostic records the outcome of one recognizer run.
type EngineDiagnostic struct {
	Engine    string `json:"engine"`
	OK        bool   `json:"ok"`
	Lines     int    `json:"lines"`
	Error     string `json:"error,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// PreprocessDiagnostic records what the preprocessor did to the page.
type PreprocessDiagnostic struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	SkewDegrees float64 `json:"skew_degrees"`
	Rotated     bool    `json:"rotated"`
	Resized     bool    `json:"resized"`
}

// Diagnostics accumulates observability data for one pipeline run.
type Diagnostics struct {
	DocumentID              string                     `json:"document_id"`
	Stage                   string                     `json:"stage"` // last stage reached
	Preprocess              PreprocessDiagnostic       `json:"preprocess"`
	Engines                 []EngineDiagnostic         `json:"engines"`
	ConsolidationConfidence float64                    `json:"consolidation_confidence"`
	ExtractionMethod        constants.ExtractionMethod `json:"extraction_method"`
	ExtractionError         string                     `json:"extraction_error,omitempty"`
	Errors                  int                        `json:"errors"`
	Warnings                int                        `json:"warnings"`
	ElapsedMS               int64                      `json:"elapsed_ms"`
}

// SucceededEngines returns the names of engines that produced output.
func (d Diagnostics) SucceededEngines() []string {
	var out []string
	for _, e := range d.Engines {
		if e.OK {
			out = append(out, e.Engine)
		}
	}
	return out
}
