package daterange

import (
	"fmt"
	"strings"
)

// Code identifies which validation check failed.
type Code string

const (
	// CodeMissing means start or end was not supplied.
	CodeMissing Code = "missing"

	// CodeFormat means a parameter does not look like YYYY-MM-DD.
	CodeFormat Code = "format"

	// CodeInvalidDate means a parameter is shaped correctly but is not a real date.
	CodeInvalidDate Code = "invalid_date"

	// CodeOrder means start is after end.
	CodeOrder Code = "order"

	// CodeSpan means the range is wider than the allowed maximum.
	CodeSpan Code = "span"
)

// ValidationError is returned for malformed or out-of-policy caller input.
// It is reported before any upstream call and never triggers fallback data.
type ValidationError struct {
	Code    Code
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// Messages is a catalogue of caller-facing messages.
type Messages struct {
	Missing     string
	Format      string
	InvalidDate string
	Order       string

	// Span is a format with one %d verb for the maximum number of days.
	Span string

	// UpstreamTimeout and Unexpected are used by the HTTP layer.
	UpstreamTimeout string
	Unexpected      string
}

// For returns the message for a validation code.
func (m Messages) For(code Code) string {
	switch code {
	case CodeMissing:
		return m.Missing
	case CodeFormat:
		return m.Format
	case CodeInvalidDate:
		return m.InvalidDate
	case CodeOrder:
		return m.Order
	case CodeSpan:
		return m.SpanFor(DefaultMaxSpanDays)
	default:
		return m.Unexpected
	}
}

// SpanFor renders the span message for a maximum of days.
func (m Messages) SpanFor(days int) string {
	return fmt.Sprintf(m.Span, days)
}

// JapaneseMessages are the default caller-facing messages.
var JapaneseMessages = Messages{
	Missing:         "start and end parameters are required",
	Format:          "start and end parameters must be in YYYY-MM-DD format",
	InvalidDate:     "有効な日付を入力してください",
	Order:           "開始日は終了日より前である必要があります",
	Span:            "日付範囲は%d日以内である必要があります",
	UpstreamTimeout: "connpass APIがタイムアウトしました。しばらくしてから再度お試しください",
	Unexpected:      "connpass APIへの問い合わせ時にエラーが発生しました",
}

// EnglishMessages mirror JapaneseMessages.
var EnglishMessages = Messages{
	Missing:         "start and end parameters are required",
	Format:          "start and end parameters must be in YYYY-MM-DD format",
	InvalidDate:     "please enter a valid date",
	Order:           "start date must precede end date",
	Span:            "date range must be at most %d days",
	UpstreamTimeout: "the events directory timed out, please try again later",
	Unexpected:      "an error occurred while querying the events directory",
}

// MessagesFor returns the catalogue for a language tag ("ja", "en").
// Unknown tags fall back to Japanese.
func MessagesFor(lang string) Messages {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "en", "en-us", "en-gb":
		return EnglishMessages
	default:
		return JapaneseMessages
	}
}
