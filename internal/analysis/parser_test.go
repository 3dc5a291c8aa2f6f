package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseResponse_wellFormed(t *testing.T) {
	raw := `{"threat_type":"Ransomware","severity":"High","analysis":"Files are encrypted.","recommendations":["Isolate hosts","Restore from backup"]}`

	got := ParseResponse(raw)
	assert.Equal(t, Assessment{
		ThreatType:      "Ransomware",
		Severity:        "High",
		Analysis:        "Files are encrypted.",
		Recommendations: []string{"Isolate hosts", "Restore from backup"},
	}, got)
}

func TestParseResponse_surroundingProse(t *testing.T) {
	raw := "Sure, here is the result: {\"threat_type\":\"Phishing\",\"severity\":\"Low\",\"analysis\":\"a\",\"recommendations\":[\"b\"]} Hope this helps."

	got := ParseResponse(raw)
	assert.Equal(t, "Phishing", got.ThreatType)
	assert.Equal(t, "Low", got.Severity)
	assert.Equal(t, []string{"b"}, got.Recommendations)
}

func TestParseResponse_markdownFence(t *testing.T) {
	raw := "```json\n{\"threat_type\":\"DDoS\",\"severity\":\"Medium\",\"analysis\":\"x\",\"recommendations\":[]}\n```"
	got := ParseResponse(raw)
	assert.Equal(t, "DDoS", got.ThreatType)
	assert.Empty(t, got.Recommendations)
	assert.NotNil(t, got.Recommendations)
}

func TestParseResponse_fallback(t *testing.T) {
	tests := map[string]string{
		"no braces":       "I cannot determine the threat.",
		"malformed json":  `{"threat_type": "Phishing", "severity": }`,
		"reversed braces": "} nothing here {",
		"only open brace": "{ unterminated",
		"empty":           "",
		"two objects":     `{"a":1} and then {"b":2}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			got := ParseResponse(raw)
			assert.Equal(t, "Unknown", got.ThreatType)
			assert.Equal(t, "Medium", got.Severity)
			assert.Equal(t, raw, got.Analysis)
			assert.Equal(t, []string{"Review the scenario manually", "Implement standard security protocols"}, got.Recommendations)
		})
	}
}

func TestParseResponse_fieldDefaults(t *testing.T) {
	got := ParseResponse(`{"severity": 3, "analysis": null, "recommendations": "patch"}`)
	assert.Equal(t, "Unknown", got.ThreatType)
	assert.Equal(t, "Medium", got.Severity)
	assert.Equal(t, "Analysis unavailable", got.Analysis)
	assert.Equal(t, []string{}, got.Recommendations)
}

func TestParseResponse_keepsOnlyStringRecommendations(t *testing.T) {
	got := ParseResponse(`{"threat_type":"Malware","recommendations":["a", 2, null, "b", {"c":1}]}`)
	assert.Equal(t, []string{"a", "b"}, got.Recommendations)
}

func TestParseResponse_fallbackListIsACopy(t *testing.T) {
	got := ParseResponse("no json")
	got.Recommendations[0] = "mutated"
	assert.Equal(t, "Review the scenario manually", FallbackRecommendations[0])
}
