package insights

import (
	"errors"
	"fmt"
	"time"

	pkgstrings "adbridge/pkg/strings"
)

const (
	// DefaultWindowDays is the trailing window used for reports.
	DefaultWindowDays = 7

	maxLabelLen = 40
)

// Account is an ad account visible to a token.
type Account struct {
	ID   string
	Name string
}

// Label is the text shown for the account in a selection list.
func (a Account) Label() string {
	if name := pkgstrings.Truncate(a.Name, maxLabelLen); name != "" {
		return name
	}
	return a.ID
}

// InsightRow holds one campaign's metrics over the requested window.
type InsightRow struct {
	CampaignName string
	Impressions  int64
	Clicks       int64
	Spend        float64
}

// Window is an inclusive range of calendar days.
type Window struct {
	Since time.Time
	Until time.Time
}

// TrailingWindow returns the days-long window ending on now's date.
func TrailingWindow(now time.Time, days int) Window {
	if days <= 0 {
		days = DefaultWindowDays
	}
	until := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return Window{
		Since: until.AddDate(0, 0, -(days - 1)),
		Until: until,
	}
}

// timeRange renders the window as the provider's time_range parameter.
func (w Window) timeRange() string {
	return fmt.Sprintf(`{"since":"%s","until":"%s"}`, w.Since.Format(time.DateOnly), w.Until.Format(time.DateOnly))
}

// String implements fmt.Stringer.
func (w Window) String() string {
	return w.Since.Format(time.DateOnly) + " .. " + w.Until.Format(time.DateOnly)
}

// FetchErrorKind classifies provider data failures.
type FetchErrorKind int

const (
	// Unauthorized means the token was rejected; the chat must reconnect.
	Unauthorized FetchErrorKind = iota
	// Transient means the call may succeed if reissued.
	Transient
)

func (k FetchErrorKind) String() string {
	switch k {
	case Unauthorized:
		return "unauthorized"
	case Transient:
		return "transient"
	default:
		return "unknown"
	}
}

// FetchError is returned by every Fetcher operation.
type FetchError struct {
	Kind       FetchErrorKind
	Operation  string
	StatusCode int
	// Message is the provider's error message, if any.
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s failed (%s)", e.Operation, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" status=%d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err is a FetchError of kind Unauthorized.
func IsUnauthorized(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == Unauthorized
}
