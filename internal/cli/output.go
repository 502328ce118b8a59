package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Sternrassler/lunch-meetups/pkg/event"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// ExcerptLength is the rune budget for description excerpts in text output.
const ExcerptLength = 120

// ParseFormat validates a --format value.
func ParseFormat(s string) (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	if format != FormatText && format != FormatJSON {
		return "", fmt.Errorf("invalid format: %s (must be 'text' or 'json')", s)
	}
	return format, nil
}

// WriteOutput writes the envelope in the specified format
func WriteOutput(w io.Writer, env *event.ResultEnvelope, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, env)
	case FormatText:
		return writeText(w, env)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteError writes a caller-facing error in the specified format.
func WriteError(w io.Writer, message string, format OutputFormat) error {
	if format == FormatJSON {
		return writeJSON(w, event.ErrorResult{Error: message})
	}
	_, err := fmt.Fprintln(w, message)
	return err
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(v)
}

// writeText prints one line per event followed by an indented excerpt.
func writeText(w io.Writer, env *event.ResultEnvelope) error {
	if len(env.Events) == 0 {
		_, err := fmt.Fprintln(w, "No lunch events found.")
		return err
	}

	for i := range env.Events {
		e := &env.Events[i]
		if _, err := fmt.Fprintf(w, "%s  %s (%d/%d)\n", timeSpan(e), e.Title, e.Accepted, e.Limit); err != nil {
			return err
		}
		if e.URL != "" {
			fmt.Fprintf(w, "    %s\n", e.URL)
		}
		if excerpt := Excerpt(e.Description, ExcerptLength); excerpt != "" {
			fmt.Fprintf(w, "    %s\n", excerpt)
		}
	}

	_, err := fmt.Fprintf(w, "\n%d event(s)\n", env.ResultsReturned)
	return err
}

func timeSpan(e *event.Event) string {
	start, err := e.Start()
	if err != nil {
		return e.StartedAt
	}
	end, err := e.End()
	if err != nil {
		return start.Format("2006-01-02 15:04")
	}
	return start.Format("2006-01-02 15:04") + "-" + end.Format("15:04")
}

// Excerpt returns the plain text of an HTML description with whitespace
// collapsed, cut to at most limit runes.
func Excerpt(html string, limit int) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}

	text := html
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		text = doc.Text()
	}
	text = strings.Join(strings.Fields(text), " ")

	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}
