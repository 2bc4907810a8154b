package settings

import (
	"context"
	"fmt"
	"strconv"

	"github.com/BibekSapkota1/Share-Project/internal/model"
)

// Writer persists a user's setting rows.
type Writer interface {
	SetUserSetting(ctx context.Context, userID int64, key, value string) error
	DeleteUserSetting(ctx context.Context, userID int64, key string) error
}

// Patch is a partial settings update; nil fields are left as they are.
// TSLPercent is in percent, as stored.
type Patch struct {
	RSIPeriod      *int     `json:"rsi_period,omitempty"`
	UpperThreshold *float64 `json:"upper_threshold,omitempty"`
	LowerThreshold *float64 `json:"lower_threshold,omitempty"`
	TSLPercent     *float64 `json:"tsl_percent,omitempty"`
}

// rows renders the set fields as unprefixed setting rows.
func (p Patch) rows() map[string]string {
	rows := make(map[string]string, len(Keys))
	if p.RSIPeriod != nil {
		rows[KeyRSIPeriod] = strconv.Itoa(*p.RSIPeriod)
	}
	if p.UpperThreshold != nil {
		rows[KeyUpperThreshold] = strconv.FormatFloat(*p.UpperThreshold, 'f', -1, 64)
	}
	if p.LowerThreshold != nil {
		rows[KeyLowerThreshold] = strconv.FormatFloat(*p.LowerThreshold, 'f', -1, 64)
	}
	if p.TSLPercent != nil {
		rows[KeyTSLPercent] = strconv.FormatFloat(*p.TSLPercent, 'f', -1, 64)
	}
	return rows
}

// Update validates current with p applied and, when valid, writes the
// patched keys for userID. Nothing is written on a validation failure.
func Update(ctx context.Context, w Writer, userID int64, current model.Settings, p Patch) (model.Settings, error) {
	rows := p.rows()
	if len(rows) == 0 {
		return current, nil
	}
	next := current
	if err := Apply(&next, rows, ""); err != nil {
		return model.Settings{}, err
	}
	if err := next.Validate(); err != nil {
		return model.Settings{}, err
	}
	for _, key := range Keys {
		v, ok := rows[key]
		if !ok {
			continue
		}
		if err := w.SetUserSetting(ctx, userID, key, v); err != nil {
			return model.Settings{}, fmt.Errorf("save %s: %w", key, err)
		}
	}
	return next, nil
}

// Reset removes a user's override so the global default applies again.
func Reset(ctx context.Context, w Writer, userID int64, key string) error {
	if !ValidKey(key) {
		return model.NewError(model.CodeInvalidSettings, "", "unknown setting %q", key)
	}
	return w.DeleteUserSetting(ctx, userID, key)
}
