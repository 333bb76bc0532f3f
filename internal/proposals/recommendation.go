package proposals

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Action is the wire tag of a recommendation variant.
type Action string

const (
	ActionSet    Action = "set"
	ActionAppend Action = "append"
	ActionRemove Action = "remove"
)

// Recommendation is a proposed change to one setting. Its Action selects the
// variant returned by Change.
type Recommendation struct {
	Setting    string  `json:"setting" validate:"required,max=200"`
	Action     Action  `json:"action" validate:"required,oneof=set append remove"`
	From       *string `json:"from,omitempty"`
	To         *string `json:"to,omitempty"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
	Rationale  string  `json:"rationale,omitempty" validate:"max=4000"`
}

// Change is the closed set of recommendation variants.
type Change interface {
	change()
}

// SetChange overwrites the setting with Value.
type SetChange struct{ Value string }

// AppendChange adds Suffix on a new line after the current value.
type AppendChange struct{ Suffix string }

// RemoveChange clears the setting.
type RemoveChange struct{}

func (SetChange) change()    {}
func (AppendChange) change() {}
func (RemoveChange) change() {}

// Change decodes the recommendation into its variant.
func (r Recommendation) Change() (Change, error) {
	switch r.Action {
	case ActionSet:
		if r.To == nil {
			return nil, fmt.Errorf("%w: set requires to", ErrInvalidRecommendation)
		}
		return SetChange{Value: *r.To}, nil
	case ActionAppend:
		if r.To == nil {
			return nil, fmt.Errorf("%w: append requires to", ErrInvalidRecommendation)
		}
		return AppendChange{Suffix: *r.To}, nil
	case ActionRemove:
		return RemoveChange{}, nil
	}
	return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidRecommendation, r.Action)
}

// NextValue computes the value a change produces from current.
func NextValue(current *string, ch Change) (*string, error) {
	switch c := ch.(type) {
	case SetChange:
		v := c.Value
		return &v, nil
	case AppendChange:
		if current == nil || *current == "" {
			v := c.Suffix
			return &v, nil
		}
		v := *current + "\n" + c.Suffix
		return &v, nil
	case RemoveChange:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: unhandled change %T", ErrInvalidRecommendation, ch)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(recommendationRules, Recommendation{})
	return v
}

// recommendationRules rejects set/append recommendations that would not change anything.
func recommendationRules(sl validator.StructLevel) {
	r := sl.Current().Interface().(Recommendation)
	if r.Action != ActionSet && r.Action != ActionAppend {
		return
	}
	if r.To == nil || strings.TrimSpace(*r.To) == "" {
		sl.ReportError(r.To, "to", "To", "required_for_action", string(r.Action))
		return
	}
	if r.From != nil && *r.From == *r.To {
		sl.ReportError(r.To, "to", "To", "differs_from_from", "")
	}
}

// Validate checks a single recommendation.
func (r Recommendation) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRecommendation, describeValidation(err))
	}
	return nil
}

func validateProposal(p Proposal) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRecommendation, describeValidation(err))
	}
	return nil
}

func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
