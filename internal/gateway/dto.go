package gateway

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/BibekSapkota1/Share-Project/internal/engine"
	"github.com/BibekSapkota1/Share-Project/internal/model"
	"github.com/BibekSapkota1/Share-Project/internal/settings"
)

// requestValidate is safe for concurrent use.
var requestValidate = validator.New()

// validate checks v's struct tags and reports failures as InvalidRequest.
func validate(v any) error {
	err := requestValidate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return model.NewError(model.CodeInvalidRequest, "", "%v", err)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return model.NewError(model.CodeInvalidRequest, "", "%s", strings.Join(parts, "; "))
}

// AnalyzeRequest is the body of POST /api/analyze. Threshold fields
// override the user's settings for this run only.
type AnalyzeRequest struct {
	Symbol         string   `json:"symbol" validate:"required"`
	RSIPeriod      *int     `json:"rsi_period,omitempty" validate:"omitempty,gte=2,lte=100"`
	UpperThreshold *float64 `json:"upper_threshold,omitempty" validate:"omitempty,gt=0,lt=100"`
	LowerThreshold *float64 `json:"lower_threshold,omitempty" validate:"omitempty,gt=0,lt=100"`
}

func (r AnalyzeRequest) overrides() settings.Overrides {
	return settings.Overrides{
		RSIPeriod:      r.RSIPeriod,
		UpperThreshold: r.UpperThreshold,
		LowerThreshold: r.LowerThreshold,
	}
}

// TradeRequestBody is the body of POST /api/trade. Date and price default
// to the latest bar. A SELL without a reason is recorded as AUTOMATIC.
type TradeRequestBody struct {
	Symbol string  `json:"symbol" validate:"required"`
	Action string  `json:"action" validate:"required,oneof=BUY SELL"`
	Date   string  `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Price  float64 `json:"price,omitempty" validate:"gte=0"`
	RSI    float64 `json:"rsi,omitempty" validate:"gte=0,lte=100"`
	Reason string  `json:"reason,omitempty" validate:"omitempty,oneof=AUTOMATIC RSI TSL"`
}

// ManualSellBody is the body of POST /api/trade/manual-sell.
type ManualSellBody struct {
	Symbol string  `json:"symbol" validate:"required"`
	Date   string  `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Price  float64 `json:"price,omitempty" validate:"gte=0"`
	RSI    float64 `json:"rsi,omitempty" validate:"gte=0,lte=100"`
	Reason string  `json:"reason"`
}

func tradeRequest(userID int64, symbol, date string, price, rsi float64, reason string) (engine.TradeRequest, error) {
	req := engine.TradeRequest{
		UserID: userID,
		Symbol: symbol,
		Price:  price,
		RSI:    rsi,
		Reason: reason,
	}
	if date != "" {
		d, err := model.ParseDay(date)
		if err != nil {
			return req, model.NewError(model.CodeInvalidDate, symbol, "date %q", date)
		}
		req.Date = d
	}
	return req, nil
}

// SettingsResponse is the body of GET/PUT /api/settings. TSL is reported as
// a percent, matching how it is stored and updated.
type SettingsResponse struct {
	RSIPeriod      int     `json:"rsi_period"`
	UpperThreshold float64 `json:"upper_threshold"`
	LowerThreshold float64 `json:"lower_threshold"`
	TSLPercent     float64 `json:"tsl_percent"`
}

func settingsResponse(s model.Settings) SettingsResponse {
	return SettingsResponse{
		RSIPeriod:      s.RSIPeriod,
		UpperThreshold: s.UpperThreshold,
		LowerThreshold: s.LowerThreshold,
		TSLPercent:     s.TSLFraction * 100,
	}
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status       string    `json:"status"`
	Time         time.Time `json:"time"`
	MarketOpen   bool      `json:"market_open"`
	MarketStatus string    `json:"market_status"`
	WSClients    int       `json:"ws_clients"`
}
