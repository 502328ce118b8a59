package cli

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/Sternrassler/lunch-meetups/pkg/event"
)

func TestExcerpt(t *testing.T) {
	tests := []struct {
		name  string
		html  string
		limit int
		want  string
	}{
		{"empty", "", 120, ""},
		{"plain text", "Bring lunch", 120, "Bring lunch"},
		{"strips tags", "<h1>Lunch LT</h1><p>Talk <b>one</b></p>", 120, "Lunch LTTalk one"},
		{"collapses whitespace", "<p>a\n\n   b\tc</p>", 120, "a b c"},
		{"truncates", "<p>abcdefghij</p>", 4, "abcd…"},
		{"counts runes", "ランチタイム勉強会", 3, "ランチ…"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Excerpt(tt.html, tt.limit); got != tt.want {
				t.Errorf("Excerpt() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExcerpt_DefaultLength(t *testing.T) {
	long := "<p>" + strings.Repeat("勉強会 ", 100) + "</p>"
	got := Excerpt(long, ExcerptLength)
	if n := utf8.RuneCountInString(got); n > ExcerptLength+1 {
		t.Errorf("excerpt has %d runes, want <= %d", n, ExcerptLength+1)
	}
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"text", "JSON", " json "} {
		if _, err := ParseFormat(s); err != nil {
			t.Errorf("ParseFormat(%q) error = %v", s, err)
		}
	}
	if _, err := ParseFormat("yaml"); err == nil {
		t.Error("ParseFormat(yaml) should fail")
	}
}

func TestWriteOutput_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteOutput(&buf, event.NewEnvelope(nil), FormatText); err != nil {
		t.Fatalf("WriteOutput() error = %v", err)
	}
	if !strings.Contains(buf.String(), "No lunch events found.") {
		t.Errorf("output = %q", buf.String())
	}

	buf.Reset()
	if err := WriteOutput(&buf, event.NewEnvelope(nil), FormatJSON); err != nil {
		t.Fatalf("WriteOutput() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"events": []`) {
		t.Errorf("json output = %s", buf.String())
	}
}
