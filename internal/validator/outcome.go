package validator

import "fmt"

// Outcome is the result of validating one invoice. Errors make it invalid,
// warnings are advisory.
type Outcome struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// NewOutcome creates a valid outcome with no findings
func NewOutcome() *Outcome {
	return &Outcome{
		Valid:    true,
		Errors:   make([]string, 0),
		Warnings: make([]string, 0),
	}
}

// AddError adds an error message and sets Valid to false
func (o *Outcome) AddError(msg string) {
	o.Errors = append(o.Errors, msg)
	o.Valid = false
}

// AddErrorf is AddError with formatting
func (o *Outcome) AddErrorf(format string, args ...any) {
	o.AddError(fmt.Sprintf(format, args...))
}

// AddWarning adds a warning message to the outcome
func (o *Outcome) AddWarning(msg string) {
	o.Warnings = append(o.Warnings, msg)
}

// AddWarningf is AddWarning with formatting
func (o *Outcome) AddWarningf(format string, args ...any) {
	o.AddWarning(fmt.Sprintf(format, args...))
}

// Merge appends the findings of other in order
func (o *Outcome) Merge(other *Outcome) {
	if other == nil {
		return
	}
	for _, e := range other.Errors {
		o.AddError(e)
	}
	o.Warnings = append(o.Warnings, other.Warnings...)
}
