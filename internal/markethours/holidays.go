package markethours

import (
	"fmt"
	"strings"
	"time"
)

// ParseHolidays parses a comma-separated list of YYYY-MM-DD dates, as
// published in the NEPSE holiday notice.
func ParseHolidays(list string) ([]time.Time, error) {
	var out []time.Time
	for _, p := range strings.Split(list, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		d, err := time.ParseInLocation("2006-01-02", p, NPT)
		if err != nil {
			return nil, fmt.Errorf("holiday %q: %w", p, err)
		}
		out = append(out, d)
	}
	return out, nil
}
