// Package event defines the events directory data model: a single meetup
// occurrence, the result envelope returned by the directory, and the error
// payload returned to callers.
package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event represents one meetup occurrence as returned by the events directory.
// Timestamps are kept in the exact string form the directory sent so that
// filtering never reinterprets them in another timezone.
type Event struct {
	ID               int64  `json:"id"`
	Title            string `json:"title"`
	Catch            string `json:"catch"`
	Description      string `json:"description"`
	URL              string `json:"url"`
	ImageURL         string `json:"image_url,omitempty"`
	HashTag          string `json:"hash_tag"`
	StartedAt        string `json:"started_at"`
	EndedAt          string `json:"ended_at"`
	Limit            int    `json:"limit"`
	EventType        string `json:"event_type,omitempty"`
	OpenStatus       string `json:"open_status,omitempty"`
	Group            *Group `json:"group,omitempty"`
	Address          string `json:"address"`
	Place            string `json:"place"`
	Lat              string `json:"lat"`
	Lon              string `json:"lon"`
	OwnerID          int64  `json:"owner_id"`
	OwnerNickname    string `json:"owner_nickname"`
	OwnerDisplayName string `json:"owner_display_name"`
	Accepted         int    `json:"accepted"`
	Waiting          int    `json:"waiting"`
	UpdatedAt        string `json:"updated_at"`
}

// Timestamp layouts accepted for started_at / ended_at, most specific first.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses a directory timestamp. The returned time keeps the
// offset encoded in the string (or UTC when the string carries none), so
// Hour() and Minute() report the wall clock the directory published.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// Start returns the parsed start timestamp.
func (e *Event) Start() (time.Time, error) {
	return ParseTimestamp(e.StartedAt)
}

// End returns the parsed end timestamp.
func (e *Event) End() (time.Time, error) {
	return ParseTimestamp(e.EndedAt)
}

// Group is the organizing group attached to an event. Known fields are
// decoded into struct fields; anything else the directory sends is kept
// verbatim in Extra and written back out on encode.
type Group struct {
	ID        int64  `json:"id"`
	Subdomain string `json:"subdomain"`
	Title     string `json:"title"`
	URL       string `json:"url"`

	Extra map[string]json.RawMessage `json:"-"`
}

var groupKnownFields = map[string]struct{}{
	"id":        {},
	"subdomain": {},
	"title":     {},
	"url":       {},
}

// UnmarshalJSON decodes the known group fields and collects the rest in Extra.
func (g *Group) UnmarshalJSON(data []byte) error {
	type known Group
	var k known
	if err := json.Unmarshal(data, &k); err != nil {
		return fmt.Errorf("decode group: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode group fields: %w", err)
	}

	*g = Group(k)
	g.Extra = nil
	for name, value := range raw {
		if _, ok := groupKnownFields[name]; ok {
			continue
		}
		if g.Extra == nil {
			g.Extra = make(map[string]json.RawMessage)
		}
		g.Extra[name] = value
	}
	return nil
}

// MarshalJSON encodes the known fields followed by the preserved extras.
// Extras never override a known field.
func (g Group) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(groupKnownFields)+len(g.Extra))
	for name, value := range g.Extra {
		out[name] = value
	}
	out["id"] = g.ID
	out["subdomain"] = g.Subdomain
	out["title"] = g.Title
	out["url"] = g.URL
	return json.Marshal(out)
}
