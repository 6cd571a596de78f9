package domain

import "strings"

// FeedbackKind selects how the host presents a Feedback request.
type FeedbackKind int

const (
	// FeedbackMessage is informational; any answer resumes the flow.
	FeedbackMessage FeedbackKind = iota
	// FeedbackYesNo asks a question with two outcomes.
	FeedbackYesNo
	// FeedbackYesNoCancel asks a question with three outcomes.
	FeedbackYesNoCancel
	// FeedbackChoice asks the host to fill in Values (dialog result).
	FeedbackChoice
)

// Feedback is a request for the host to show something and send back an Answer.
type Feedback struct {
	Kind    FeedbackKind   `json:"kind"`
	Title   string         `json:"title,omitempty"`
	Message string         `json:"message"`
	Options map[string]any `json:"options,omitempty"`
}

// Answer is the host's response to a Feedback request.
type Answer struct {
	Choice AnswerChoice   `json:"choice"`
	Values map[string]any `json:"values,omitempty"`
}

// AnswerChoice is the button the user pressed.
type AnswerChoice int

const (
	AnswerOK AnswerChoice = iota
	AnswerYes
	AnswerNo
	AnswerCancel
)

// Declined reports whether the answer abandons the operation.
func (a Answer) Declined() bool {
	return a.Choice == AnswerNo || a.Choice == AnswerCancel
}

func (c AnswerChoice) String() string {
	switch c {
	case AnswerOK:
		return "ok"
	case AnswerYes:
		return "yes"
	case AnswerNo:
		return "no"
	case AnswerCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// ParseAnswer reads a choice name. Unknown names map to cancel.
func ParseAnswer(s string) AnswerChoice {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ok", "":
		return AnswerOK
	case "yes", "y":
		return AnswerYes
	case "no", "n":
		return AnswerNo
	default:
		return AnswerCancel
	}
}
