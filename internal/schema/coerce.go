package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Datetime layouts are tried in order; parsing fails only after all of them.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"01/02/2006",
	"1/2/2006",
}

// currency symbols and thousands separators that show up in exported amounts
var moneyStripper = strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "")

// Coerce converts one raw cell to the typed value for its declared data
// type. An empty cell returns (nil, nil); the caller decides whether that is
// a plain null or a synthesis trigger.
func Coerce(raw string, dt DataType) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	switch dt {
	case TypeString:
		return raw, nil

	case TypeFloat:
		f, err := strconv.ParseFloat(moneyStripper.Replace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("parse float %q: %w", raw, err)
		}
		return f, nil

	case TypeInt:
		cleaned := moneyStripper.Replace(raw)
		if strings.Contains(cleaned, ".") {
			f, err := strconv.ParseFloat(cleaned, 64)
			if err != nil {
				return nil, fmt.Errorf("parse int %q: %w", raw, err)
			}
			return int64(math.Round(f)), nil
		}
		n, err := strconv.ParseInt(cleaned, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse int %q: %w", raw, err)
		}
		return n, nil

	case TypeDatetime:
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, raw); err == nil {
				return ts, nil
			}
		}
		// exports sometimes glue extra tokens after the date; retry on the
		// first whitespace-separated token before giving up
		if first, _, found := strings.Cut(raw, " "); found {
			for _, layout := range dateLayouts {
				if ts, err := time.Parse(layout, first); err == nil {
					return ts, nil
				}
			}
		}
		return nil, fmt.Errorf("parse datetime %q: no known layout matched", raw)

	default:
		return nil, fmt.Errorf("unknown data type %q", dt)
	}
}
