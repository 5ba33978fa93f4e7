// -- internal/workflow/flights/input.go --
package flights

import (
	"fmt"
	"strings"
	"time"

	"github.com/Mukuloli/browser-automation-1/api/schemas"
)

const dateLayout = "2006-01-02"

var validCabins = map[string]bool{
	"economy":  true,
	"premium":  true,
	"business": true,
	"first":    true,
}

// ParseDate parses a YYYY-MM-DD travel date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}

// ValidateDetails checks a booking request before any browser work starts.
func ValidateDetails(d *schemas.BookingDetails) error {
	d.Origin = strings.TrimSpace(d.Origin)
	d.Destination = strings.TrimSpace(d.Destination)
	d.Cabin = strings.ToLower(strings.TrimSpace(d.Cabin))
	if d.Cabin == "" {
		d.Cabin = "economy"
	}

	if d.Origin == "" {
		return fmt.Errorf("origin is required")
	}
	if d.Destination == "" {
		return fmt.Errorf("destination is required")
	}
	if strings.EqualFold(d.Origin, d.Destination) {
		return fmt.Errorf("origin and destination must differ")
	}
	if d.Departure.IsZero() {
		return fmt.Errorf("departure date is required")
	}
	if d.Departure.Before(time.Now().Truncate(24 * time.Hour)) {
		return fmt.Errorf("departure date %s is in the past", d.Departure.Format(dateLayout))
	}
	if d.RoundTrip {
		if d.Return.IsZero() {
			return fmt.Errorf("return date is required for a round trip")
		}
		if d.Return.Before(d.Departure) {
			return fmt.Errorf("return date must not be before departure")
		}
	}
	if d.Passengers < 1 || d.Passengers > 9 {
		return fmt.Errorf("passengers must be between 1 and 9, got %d", d.Passengers)
	}
	if !validCabins[d.Cabin] {
		return fmt.Errorf("cabin must be one of economy, premium, business, first; got %q", d.Cabin)
	}
	return nil
}

// FormatSummary renders the booking request for confirmation.
func FormatSummary(d schemas.BookingDetails) string {
	var b strings.Builder
	b.WriteString("Flight booking request:\n")
	fmt.Fprintf(&b, "  From:       %s\n", d.Origin)
	fmt.Fprintf(&b, "  To:         %s\n", d.Destination)
	fmt.Fprintf(&b, "  Departure:  %s\n", d.Departure.Format(dateLayout))
	if d.RoundTrip {
		fmt.Fprintf(&b, "  Return:     %s\n", d.Return.Format(dateLayout))
	} else {
		b.WriteString("  Trip:       one-way\n")
	}
	fmt.Fprintf(&b, "  Passengers: %d\n", d.Passengers)
	fmt.Fprintf(&b, "  Cabin:      %s\n", d.Cabin)
	return b.String()
}
