// Package settings resolves a user's trading settings: user overrides, then
// global defaults, then built-in defaults, validated before use.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/BibekSapkota1/Share-Project/internal/model"
)

// Setting keys. Global rows carry the "default_" prefix.
const (
	KeyRSIPeriod      = "rsi_period"
	KeyUpperThreshold = "upper_threshold"
	KeyLowerThreshold = "lower_threshold"
	KeyTSLPercent     = "tsl_percent"

	GlobalPrefix = "default_"
)

// Keys lists every recognised setting key.
var Keys = []string{KeyRSIPeriod, KeyUpperThreshold, KeyLowerThreshold, KeyTSLPercent}

// Source reads raw key/value settings rows.
type Source interface {
	GlobalSettings(ctx context.Context) (map[string]string, error)
	UserSettings(ctx context.Context, userID int64) (map[string]string, error)
}

// Resolver implements model.SettingsProvider over a Source.
type Resolver struct {
	src Source
}

// NewResolver creates a Resolver reading from src.
func NewResolver(src Source) *Resolver {
	return &Resolver{src: src}
}

var _ model.SettingsProvider = (*Resolver)(nil)

// GetSettings merges user rows over global rows over DefaultSettings.
func (r *Resolver) GetSettings(ctx context.Context, userID int64) (model.Settings, error) {
	s := model.DefaultSettings()

	global, err := r.src.GlobalSettings(ctx)
	if err != nil {
		return model.Settings{}, fmt.Errorf("global settings: %w", err)
	}
	if err := Apply(&s, global, GlobalPrefix); err != nil {
		return model.Settings{}, err
	}

	user, err := r.src.UserSettings(ctx, userID)
	if err != nil {
		return model.Settings{}, fmt.Errorf("user %d settings: %w", userID, err)
	}
	if err := Apply(&s, user, ""); err != nil {
		return model.Settings{}, err
	}

	if err := s.Validate(); err != nil {
		return model.Settings{}, err
	}
	return s, nil
}

// Apply overwrites fields of s from rows whose keys are prefix+Key*.
// Unknown keys are ignored.
func Apply(s *model.Settings, rows map[string]string, prefix string) error {
	for key, raw := range rows {
		name, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}
		raw = strings.TrimSpace(raw)
		switch name {
		case KeyRSIPeriod:
			v, err := strconv.Atoi(raw)
			if err != nil {
				return invalid(key, raw)
			}
			s.RSIPeriod = v
		case KeyUpperThreshold, KeyLowerThreshold, KeyTSLPercent:
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return invalid(key, raw)
			}
			switch name {
			case KeyUpperThreshold:
				s.UpperThreshold = v
			case KeyLowerThreshold:
				s.LowerThreshold = v
			default:
				s.TSLFraction = v / 100
			}
		}
	}
	return nil
}

func invalid(key, raw string) error {
	return model.NewError(model.CodeInvalidSettings, "", "setting %s: cannot parse %q", key, raw)
}

// Encode renders s as unprefixed setting rows.
func Encode(s model.Settings) map[string]string {
	return map[string]string{
		KeyRSIPeriod:      strconv.Itoa(s.RSIPeriod),
		KeyUpperThreshold: strconv.FormatFloat(s.UpperThreshold, 'f', -1, 64),
		KeyLowerThreshold: strconv.FormatFloat(s.LowerThreshold, 'f', -1, 64),
		KeyTSLPercent:     strconv.FormatFloat(s.TSLFraction*100, 'f', -1, 64),
	}
}

// ValidKey reports whether key is a recognised unprefixed setting.
func ValidKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}

// Overrides are optional per-request replacements, e.g. an analysis run with
// a custom period.
type Overrides struct {
	RSIPeriod      *int     `json:"rsi_period,omitempty"`
	UpperThreshold *float64 `json:"upper_threshold,omitempty"`
	LowerThreshold *float64 `json:"lower_threshold,omitempty"`
}

// With returns base with o applied, validated.
func (o Overrides) With(base model.Settings) (model.Settings, error) {
	s := base
	if o.RSIPeriod != nil {
		s.RSIPeriod = *o.RSIPeriod
	}
	if o.UpperThreshold != nil {
		s.UpperThreshold = *o.UpperThreshold
	}
	if o.LowerThreshold != nil {
		s.LowerThreshold = *o.LowerThreshold
	}
	if err := s.Validate(); err != nil {
		return model.Settings{}, err
	}
	return s, nil
}

// Static serves one fixed settings value to every user.
type Static struct {
	Settings model.Settings
}

// GetSettings returns the fixed settings.
func (s Static) GetSettings(ctx context.Context, userID int64) (model.Settings, error) {
	if err := s.Settings.Validate(); err != nil {
		return model.Settings{}, err
	}
	return s.Settings, nil
}
