// Package threat defines the structured threat assessment produced for a
// submitted scenario and the helpers that stamp its bookkeeping fields.
package threat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Severity labels the model is instructed to choose from.
const (
	SeverityLow     = "Low"
	SeverityMedium  = "Medium"
	SeverityHigh    = "High"
	SeverityUnknown = "Unknown"
)

// TimestampLayout is the fixed format of Record.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// caseIDLength is the number of leading UUID characters kept as a case id.
const caseIDLength = 8

// ErrInvalidCaseID is returned when a case id is empty or could escape the
// reports directory when used as a filename component.
var ErrInvalidCaseID = errors.New("invalid case id")

// Scenario is the free-text incident description submitted for analysis.
type Scenario struct {
	Text string `json:"scenario"`
}

// Record is the immutable result of one analysis.
type Record struct {
	CaseID          string   `json:"case_id"`
	Scenario        string   `json:"scenario"`
	ThreatType      string   `json:"threat_type"`
	Severity        string   `json:"severity"`
	Analysis        string   `json:"analysis"`
	Recommendations []string `json:"recommendations"`
	ContextSources  []string `json:"context_sources"`
	Timestamp       string   `json:"timestamp"`
	TokenUsage      int      `json:"token_usage"`
}

// NewCaseID returns a short random identifier. Uniqueness is probabilistic.
func NewCaseID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate case id: %w", err)
	}
	return id.String()[:caseIDLength], nil
}

// FormatTimestamp renders t in the local zone using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.Local().Format(TimestampLayout)
}

// ValidateCaseID rejects ids that are empty or contain path elements.
func ValidateCaseID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidCaseID)
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidCaseID, id)
	}
	return nil
}
