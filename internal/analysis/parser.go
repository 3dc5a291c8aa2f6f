package analysis

import (
	"encoding/json"
	"strings"

	"github.com/jmerrifield20/CyberSentinel/internal/threat"
)

// Defaults applied per field when the model omits it or sends the wrong type.
const (
	DefaultThreatType = "Unknown"
	DefaultSeverity   = threat.SeverityMedium
	DefaultAnalysis   = "Analysis unavailable"
)

// FallbackRecommendations is used when no JSON object can be extracted.
var FallbackRecommendations = []string{
	"Review the scenario manually",
	"Implement standard security protocols",
}

// Assessment holds the model-derived fields of a threat record.
type Assessment struct {
	ThreatType      string   `json:"threat_type"`
	Severity        string   `json:"severity"`
	Analysis        string   `json:"analysis"`
	Recommendations []string `json:"recommendations"`
}

// ParseResponse extracts an Assessment from raw model output. It never
// fails: text without a parseable object yields the fallback assessment.
//
// The object is taken from the first '{' to the last '}', which tolerates
// prose before and after it.
func ParseResponse(raw string) Assessment {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || start >= end {
		return fallback(raw)
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &fields); err != nil {
		return fallback(raw)
	}

	return Assessment{
		ThreatType:      stringField(fields, "threat_type", DefaultThreatType),
		Severity:        stringField(fields, "severity", DefaultSeverity),
		Analysis:        stringField(fields, "analysis", DefaultAnalysis),
		Recommendations: stringList(fields["recommendations"]),
	}
}

func fallback(raw string) Assessment {
	return Assessment{
		ThreatType:      DefaultThreatType,
		Severity:        DefaultSeverity,
		Analysis:        raw,
		Recommendations: append([]string(nil), FallbackRecommendations...),
	}
}

func stringField(fields map[string]any, key, def string) string {
	if s, ok := fields[key].(string); ok {
		return s
	}
	return def
}

// stringList keeps the string elements of a JSON array, in order.
func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
