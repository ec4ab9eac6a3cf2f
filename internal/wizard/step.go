package wizard

import (
	"encoding/json"
	"fmt"
)

// Step is the active wizard step. Exactly one of the Step* types is active.
type Step interface {
	Name() string
}

type (
	StepDescription struct{}
	StepGenerating  struct{}
	StepQuestions   struct{}
	StepPatching    struct{}
	StepReview      struct{}
	StepFeedback    struct{}
	StepSaving      struct{}
	StepSuccess     struct{ EpicID int64 }
	StepError       struct{ Message string }
)

func (StepDescription) Name() string { return "description" }
func (StepGenerating) Name() string  { return "generating" }
func (StepQuestions) Name() string   { return "questions" }
func (StepPatching) Name() string    { return "patching" }
func (StepReview) Name() string      { return "review" }
func (StepFeedback) Name() string    { return "feedback" }
func (StepSaving) Name() string      { return "saving" }
func (StepSuccess) Name() string     { return "success" }
func (StepError) Name() string       { return "error" }

// IsTransient reports whether s only exists while work is in flight.
// Transient steps are never persisted as drafts.
func IsTransient(s Step) bool {
	switch s.(type) {
	case StepGenerating, StepPatching, StepSaving, StepSuccess:
		return true
	}
	return false
}

// stepRecord is the JSON form of a Step.
type stepRecord struct {
	Type    string `json:"type"`
	EpicID  int64  `json:"epicId,omitempty"`
	Message string `json:"message,omitempty"`
}

// EncodeStep serializes s as {"type": ..., "epicId"?: ..., "message"?: ...}.
func EncodeStep(s Step) ([]byte, error) {
	if s == nil {
		s = StepDescription{}
	}
	rec := stepRecord{Type: s.Name()}
	switch v := s.(type) {
	case StepSuccess:
		rec.EpicID = v.EpicID
	case StepError:
		rec.Message = v.Message
	}
	return json.Marshal(rec)
}

// DecodeStep parses the output of EncodeStep.
func DecodeStep(data []byte) (Step, error) {
	var rec stepRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding wizard step: %w", err)
	}
	switch rec.Type {
	case "description":
		return StepDescription{}, nil
	case "generating":
		return StepGenerating{}, nil
	case "questions":
		return StepQuestions{}, nil
	case "patching":
		return StepPatching{}, nil
	case "review":
		return StepReview{}, nil
	case "feedback":
		return StepFeedback{}, nil
	case "saving":
		return StepSaving{}, nil
	case "success":
		return StepSuccess{EpicID: rec.EpicID}, nil
	case "error":
		return StepError{Message: rec.Message}, nil
	}
	return nil, fmt.Errorf("decoding wizard step: unknown type %q", rec.Type)
}
