package bankwest

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"bankwest-session/internal/components/chrono"

	"github.com/go-playground/validator/v10"
)

// DateLayout is how the bank writes and reads dates.
const DateLayout = "02/01/2006"

// ErrDateRange is returned by CheckDateRange.
var ErrDateRange = errors.New("bankwest: date outside of the searchable range")

var accountPattern = regexp.MustCompile(`^\d{3}-\d{3} \d{7}$`)

// Location is the timezone dates are interpreted in, Perth does not observe
// daylight saving so the fixed offset is only a fallback for systems without
// tzdata.
var Location = loadLocation()

func loadLocation() *time.Location {
	loc, err := time.LoadLocation(chrono.BankLocation)
	if err != nil {
		return time.FixedZone("AWST", 8*60*60)
	}
	return loc
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.RegisterValidation("bsb_account", func(fl validator.FieldLevel) bool {
		return accountPattern.MatchString(fl.Field().String())
	})
	if err != nil {
		panic(err)
	}
	return v
}

// ExportQuery is what ExportTransactions submits. A zero To leaves the
// range open up to today.
type ExportQuery struct {
	Account string    `validate:"required,bsb_account"`
	From    time.Time `validate:"required"`
	To      time.Time
}

// Validate only checks the format of the query, the bank decides whether
// the account exists and whether the dates are acceptable.
func (q ExportQuery) Validate() error {
	err := validate.Struct(q)
	if err != nil {
		return fmt.Errorf("bankwest: invalid export query: %w", err)
	}
	return nil
}

// ValidateAccount checks that `account` looks like `BBB-BBB AAAAAAA`.
func ValidateAccount(account string) error {
	err := validate.Var(account, "required,bsb_account")
	if err != nil {
		return fmt.Errorf("bankwest: account '%s' is not of the form BBB-BBB AAAAAAA", account)
	}
	return nil
}

// FormatDate writes the calendar date of `t` in its own location the way the
// bank expects it. The zero time is written as an empty string which the bank
// reads as "no bound".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// ParseDate reads a dd/mm/yyyy date in the bank's timezone, an empty string
// is the zero time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(DateLayout, s, Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("bankwest: date '%s' is not dd/mm/yyyy: %w", s, err)
	}
	return t, nil
}

// startOfDay keeps the calendar date of `t` as read in its own location.
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, Location)
}

// DateWindow is the range of dates the bank will search relative to `now`:
// from the 1st of January of the year before last up to the 31st of
// December of next year.
func DateWindow(now time.Time) (earliest, latest time.Time) {
	year := now.In(Location).Year()
	earliest = time.Date(year-2, time.January, 1, 0, 0, 0, 0, Location)
	latest = time.Date(year+1, time.December, 31, 0, 0, 0, 0, Location)
	return earliest, latest
}

// CheckDateRange applies the bank's own date rules locally so callers can
// fail before making any requests. Session does not call this, the bank
// stays the authority.
func CheckDateRange(now, from, to time.Time) error {
	if from.IsZero() {
		return fmt.Errorf("%w: a from date is required", ErrDateRange)
	}
	earliest, latest := DateWindow(now)
	from = startOfDay(from)

	if from.After(startOfDay(now.In(Location))) {
		return fmt.Errorf("%w: from date %s is in the future", ErrDateRange, FormatDate(from))
	}
	if from.Before(earliest) {
		return fmt.Errorf(
			"%w: from date %s is before %s",
			ErrDateRange, FormatDate(from), FormatDate(earliest),
		)
	}
	if to.IsZero() {
		return nil
	}

	to = startOfDay(to)
	if to.Before(from) {
		return fmt.Errorf(
			"%w: to date %s is before from date %s",
			ErrDateRange, FormatDate(to), FormatDate(from),
		)
	}
	if to.After(latest) {
		return fmt.Errorf(
			"%w: to date %s is after %s",
			ErrDateRange, FormatDate(to), FormatDate(latest),
		)
	}
	return nil
}
