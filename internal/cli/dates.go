package cli

import (
	"errors"
	"fmt"

	"link-watcher/internal/report"
)

var errUnpairedDates = errors.New("--date-begin and --date-end must be given together")

// parseDateRange validates the paired date flags. Both empty yields nil dates.
func parseDateRange(begin, end string) (*report.Date, *report.Date, error) {
	if begin == "" && end == "" {
		return nil, nil, nil
	}
	if begin == "" || end == "" {
		return nil, nil, errUnpairedDates
	}

	b, err := report.ParseDate(begin)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid --date-begin value: %w", err)
	}
	e, err := report.ParseDate(end)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid --date-end value: %w", err)
	}
	if e.Before(b) {
		return nil, nil, fmt.Errorf("--date-begin %s must not be after --date-end %s", b, e)
	}
	return &b, &e, nil
}
