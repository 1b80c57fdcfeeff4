// Package diagnosis turns a crop description or photo into a structured
// Diagnosis through a single provider call.
//
// The flow is: ValidateInput (no network) → BuildRequest (fixed system
// instruction and response schema) → one provider call → ParseDiagnosis
// (JSON + schema validation).
package diagnosis

import "time"

// Diagnosis is the structured result returned to the user.
type Diagnosis struct {
	Crop             string   `json:"crop"`
	IssueName        string   `json:"issueName"`
	Cause            string   `json:"cause"`
	OrganicTreatment []string `json:"organicTreatment"`
	PreventionTips   []string `json:"preventionTips"`
	ExpertHelp       string   `json:"expertHelp"`
}

// InputMode is how the user described the problem.
type InputMode string

const (
	ModeText  InputMode = "text"
	ModeImage InputMode = "image"
)

// Valid reports whether m is a known mode.
func (m InputMode) Valid() bool {
	return m == ModeText || m == ModeImage
}

// Input is one analysis request. Text is used in text mode; Image and
// MIMEType in image mode.
type Input struct {
	Mode     InputMode
	Text     string
	Image    []byte
	MIMEType string
}

// Limits bounds user input before any provider call.
type Limits struct {
	MaxImageBytes int64
	MaxTextRunes  int
}

// DefaultLimits matches the upload rules of the web form.
func DefaultLimits() Limits {
	return Limits{
		MaxImageBytes: 4 * 1024 * 1024,
		MaxTextRunes:  8000,
	}
}

// CompletedEvent is published on TopicCompleted after every successful analysis.
type CompletedEvent struct {
	Mode        InputMode
	Text        string
	MIMEType    string
	ImageBytes  int
	InputDigest string
	Diagnosis   Diagnosis
	Provider    string
	Model       string
	Cached      bool
	Duration    time.Duration
	At          time.Time
}

// TopicCompleted is the event bus topic for CompletedEvent.
const TopicCompleted = "diagnosis.completed"
