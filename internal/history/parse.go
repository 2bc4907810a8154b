package history

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/BibekSapkota1/Share-Project/internal/model"
)

// Accepted date layouts, tried in order.
var dateLayouts = []string{"02/01/2006", model.DateLayout, "2006/01/02"}

// Header aliases, matched case-insensitively after trimming.
var columnAliases = map[string][]string{
	"symbol":   {"symbol", "ticker", "scrip"},
	"date":     {"date", "business date", "businessdate"},
	"open":     {"open", "open price"},
	"high":     {"high", "high price"},
	"low":      {"low", "low price"},
	"close":    {"close", "close price", "ltp"},
	"volume":   {"volume", "vol", "total traded quantity"},
	"turnover": {"turnover", "amount", "total traded value"},
}

var requiredColumns = []string{"symbol", "date", "open", "high", "low", "close"}

// ParseCSV reads daily bars from r. The first record is the header.
//
// A row whose date cannot be parsed is dropped and counted. A row whose
// numbers cannot be parsed is kept with NaN in the bad field, which marks
// its symbol malformed. A structurally broken file is an error.
func ParseCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, model.NewError(model.CodeNoData, "", "price file is empty")
	}
	if err != nil {
		return nil, model.NewError(model.CodeMalformedData, "", "read header: %v", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var bars []model.PriceBar
	dropped := 0
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, model.NewError(model.CodeMalformedData, "", "line %d: %v", line, err)
		}
		if blank(rec) {
			continue
		}

		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		symbol := strings.ToUpper(field("symbol"))
		if symbol == "" {
			dropped++
			continue
		}
		date, ok := parseDate(field("date"))
		if !ok {
			dropped++
			continue
		}

		bars = append(bars, model.PriceBar{
			Symbol:   symbol,
			Date:     date,
			Open:     parseNumber(field("open"), false),
			High:     parseNumber(field("high"), false),
			Low:      parseNumber(field("low"), false),
			Close:    parseNumber(field("close"), false),
			Volume:   parseNumber(field("volume"), true),
			Turnover: parseNumber(field("turnover"), true),
		})
	}

	ds := NewDataset(bars)
	ds.DroppedRows = dropped
	return ds, nil
}

func mapColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int)
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for name, aliases := range columnAliases {
			if _, done := cols[name]; done {
				continue
			}
			for _, a := range aliases {
				if h == a {
					cols[name] = i
				}
			}
		}
	}
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, model.NewError(model.CodeMalformedData, "", "missing columns: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.Day(t), true
		}
	}
	return time.Time{}, false
}

// parseNumber accepts thousands separators ("1,234.50"). Empty optional
// fields are 0; anything unparseable is NaN.
func parseNumber(s string, optional bool) float64 {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "-" {
		if optional {
			return 0
		}
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
