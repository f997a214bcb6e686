package entity

import "strings"

// Region is an axis-aligned box in page pixel coordinates.
type Region struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Empty reports whether the region carries no geometry.
func (r Region) Empty() bool { return r.W <= 0 || r.H <= 0 }

// IoU returns the intersection-over-union of two regions in [0,1].
func (r Region) IoU(o Region) float64 {
	if r.Empty() || o.Empty() {
		return 0
	}
	x0, y0 := max(r.X, o.X), max(r.Y, o.Y)
	x1, y1 := min(r.X+r.W, o.X+o.W), min(r.Y+r.H, o.Y+o.H)
	if x1 <= x0 || y1 <= y0 {
		return 0
	}
	inter := float64((x1 - x0) * (y1 - y0))
	union := float64(r.W*r.H+o.W*o.H) - inter
	return inter / union
}

// Union returns the smallest region covering both.
func (r Region) Union(o Region) Region {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	x0, y0 := min(r.X, o.X), min(r.Y, o.Y)
	x1, y1 := max(r.X+r.W, o.X+o.W), max(r.Y+r.H, o.Y+o.H)
	return Region{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Span is one recognized line of text.
type Span struct {
	Text       string  `json:"text"`
	Region     Region  `json:"region"`
	Confidence float64 `json:"confidence"`
}

// EngineResult is the output of one recognizer for one Document.
type EngineResult struct {
	Engine string  `json:"engine"`
	Weight float64 `json:"weight"`
	Lines  []Span  `json:"lines"`
}

// Text joins the engine's lines in reading order.
func (r EngineResult) Text() string {
	parts := make([]string, 0, len(r.Lines))
	for _, l := range r.Lines {
		parts = append(parts, l.Text)
	}
	return strings.Join(parts, "\n")
}

// ConsolidatedLine is the winning text of one aligned line group.
type ConsolidatedLine struct {
	Text      string   `json:"text"`
	Region    Region   `json:"region"`
	Score     float64  `json:"score"`
	Engines   []string `json:"engines"` // engines whose line agreed with the winner
	Corrected bool     `json:"corrected,omitempty"`
}

// ConsolidatedText is the canonical text of a Document.
type ConsolidatedText struct {
	Text       string             `json:"text"`
	Confidence float64            `json:"confidence"`
	Lines      []ConsolidatedLine `json:"lines"`
}
