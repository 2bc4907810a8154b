package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Settings are the per-user trading parameters, resolved with fallback to
// the global defaults.
type Settings struct {
	RSIPeriod      int     `json:"rsi_period" yaml:"rsi_period" validate:"gte=2,lte=100"`
	UpperThreshold float64 `json:"upper_threshold" yaml:"upper_threshold" validate:"gt=0,lt=100,gtfield=LowerThreshold"`
	LowerThreshold float64 `json:"lower_threshold" yaml:"lower_threshold" validate:"gt=0,lt=100"`
	TSLFraction    float64 `json:"tsl_fraction" yaml:"tsl_fraction" validate:"gt=0,lt=1"`
}

// DefaultSettings mirrors the seeded global_settings rows.
func DefaultSettings() Settings {
	return Settings{
		RSIPeriod:      14,
		UpperThreshold: 70,
		LowerThreshold: 30,
		TSLFraction:    DefaultTSLFraction,
	}
}

// settingsValidate is safe for concurrent use.
var settingsValidate = validator.New()

// Validate checks the settings at the boundary. Failures are reported as
// ErrInvalidSettings naming each offending field.
func (s Settings) Validate() error {
	err := settingsValidate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewError(CodeInvalidSettings, "", "%v", err)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, describe(fe))
	}
	return NewError(CodeInvalidSettings, "", "%s", strings.Join(parts, "; "))
}

var comparisons = map[string]string{"gte": ">=", "gt": ">", "lte": "<=", "lt": "<"}

func describe(fe validator.FieldError) string {
	if fe.Tag() == "gtfield" {
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	}
	if op, ok := comparisons[fe.Tag()]; ok {
		return fmt.Sprintf("%s must be %s %s", fe.Field(), op, fe.Param())
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}
