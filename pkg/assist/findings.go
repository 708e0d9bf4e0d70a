package assist

import (
	"encoding/json"
	"strings"
)

// Finding is one questionable claim.
type Finding struct {
	Claim      string `json:"claim"`
	Issue      string `json:"issue"`
	Confidence string `json:"confidence"`
}

// FactCheck is the parsed answer of a fact-check call. Raw is kept when the
// answer could not be parsed.
type FactCheck struct {
	Findings []Finding `json:"findings"`
	Raw      string    `json:"raw,omitempty"`
}

// ParseFindings reads a JSON array of findings out of a model answer. Code
// fences and prose around the array are tolerated; anything unparseable
// yields no findings and the raw text.
func ParseFindings(raw string) FactCheck {
	body := strings.TrimSpace(raw)
	if i := strings.Index(body, "```"); i >= 0 {
		rest := body[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		body = rest
	}
	start, end := strings.IndexByte(body, '['), strings.LastIndexByte(body, ']')
	if start < 0 || end < start {
		return FactCheck{Findings: []Finding{}, Raw: raw}
	}
	var findings []Finding
	if err := json.Unmarshal([]byte(body[start:end+1]), &findings); err != nil {
		return FactCheck{Findings: []Finding{}, Raw: raw}
	}
	if findings == nil {
		findings = []Finding{}
	}
	return FactCheck{Findings: findings}
}
