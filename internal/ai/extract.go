package ai

import (
	"encoding/json"
	"regexp"
)

// ExtractOutcome tags the result of trying to pull structured organ data out
// of a free-text model reply. Callers decide what to do with NoMatch and
// Malformed; the extraction itself never fails the request.
type ExtractOutcome int

const (
	// ExtractParsed: a JSON block was found and decoded.
	ExtractParsed ExtractOutcome = iota
	// ExtractNoMatch: the reply contains no JSON object at all.
	ExtractNoMatch
	// ExtractMalformed: a JSON-looking block was found but did not decode.
	ExtractMalformed
)

// String returns the outcome name for logging.
func (o ExtractOutcome) String() string {
	switch o {
	case ExtractParsed:
		return "parsed"
	case ExtractNoMatch:
		return "no_match"
	case ExtractMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// MetricReading is one entry of an organ's metrics array in the analysis
// JSON shape the prompt asks for.
type MetricReading struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Status string `json:"status"`
	Trend  string `json:"trend"`
}

// OrganReport is the per-organ value of the "organs" map.
type OrganReport struct {
	Metrics []MetricReading `json:"metrics"`
	Health  *float64        `json:"health"`
}

// AnalysisPayload is the structured shape the analysis prompt requests.
type AnalysisPayload struct {
	Organs          map[string]OrganReport `json:"organs"`
	Findings        string                 `json:"findings"`
	Recommendations string                 `json:"recommendations"`
}

// Models rarely reply with bare JSON; the object is usually wrapped in prose
// or a code fence. Greedy match from the first '{' to the last '}'.
var jsonBlockRE = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractAnalysis locates a JSON object inside raw model text and decodes it
// into an AnalysisPayload. The payload is non-nil only for ExtractParsed.
func ExtractAnalysis(text string) (*AnalysisPayload, ExtractOutcome) {
	block := jsonBlockRE.FindString(text)
	if block == "" {
		return nil, ExtractNoMatch
	}
	var payload AnalysisPayload
	if err := json.Unmarshal([]byte(block), &payload); err != nil {
		return nil, ExtractMalformed
	}
	return &payload, ExtractParsed
}

// MetricCount returns the total number of metric readings across all organs.
func (p *AnalysisPayload) MetricCount() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, organ := range p.Organs {
		n += len(organ.Metrics)
	}
	return n
}
