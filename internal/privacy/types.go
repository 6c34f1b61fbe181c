package privacy

import "regexp"

// Action decides what happens to a request carrying direct identifiers
type Action string

const (
	// ActionWarn logs and reports findings but runs the job
	ActionWarn Action = "warn"
	// ActionReject fails the request with a validation error
	ActionReject Action = "reject"
)

// DetectionRule recognizes one kind of direct identifier. A value matches
// when Pattern matches the whole trimmed value and Check, if set, agrees.
type DetectionRule struct {
	Name    string
	Pattern *regexp.Regexp
	Check   func(string) bool
}

// Finding reports how many values of one attribute look like one kind of
// direct identifier
type Finding struct {
	Attribute  string `json:"attribute"`
	EntityType string `json:"entity_type"`
	Count      int    `json:"count"`
}

// Config contains screening configuration
type Config struct {
	Enabled   bool
	Detectors []string
	Action    Action
}
