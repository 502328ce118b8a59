package pipeline

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Sternrassler/lunch-meetups/pkg/daterange"
	"github.com/Sternrassler/lunch-meetups/pkg/event"
)

// Fixed identity of the synthetic organizer.
const (
	FallbackOwnerID          = 12345
	FallbackOwnerNickname    = "lunch_organizer"
	FallbackOwnerDisplayName = "ランチ勉強会運営"
)

// Bounds of the randomized fields, all exclusive.
const (
	fallbackMaxEventID  = 100000
	fallbackMaxAccepted = 30
	fallbackMaxWaiting  = 10
	fallbackLimit       = 30
)

const fallbackDescription = `# ランチタイム勉強会

平日のランチタイムに気軽に参加できる勉強会です。
お弁当を食べながら、最新の技術トレンドについて話し合いましょう。

## 対象者
- エンジニア
- デザイナー
- プロダクトマネージャー

## 持ち物
- お弁当（各自でご用意ください）
- PC（必要に応じて）`

// Generator produces placeholder lunch events when the directory yields
// nothing usable.
type Generator struct {
	// Location is the wall clock the events are authored in.
	Location *time.Location

	// Now stamps updated_at. Defaults to time.Now.
	Now func() time.Time

	mu   sync.Mutex
	rand *rand.Rand
}

// NewGenerator returns a generator authoring events in loc. A nil loc means UTC.
func NewGenerator(loc *time.Location) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{
		Location: loc,
		Now:      time.Now,
	}
}

// WithRand makes the randomized fields deterministic. Used by tests.
func (g *Generator) WithRand(r *rand.Rand) *Generator {
	g.mu.Lock()
	g.rand = r
	g.mu.Unlock()
	return g
}

// Generate returns one event per weekday in r, each running exactly 12:00 to
// 13:00 in the generator's location. Weekends produce nothing.
func (g *Generator) Generate(r daterange.DateRange) []event.Event {
	loc := g.Location
	if loc == nil {
		loc = time.UTC
	}
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	updatedAt := now().In(loc).Format(time.RFC3339)

	events := []event.Event{}
	for _, day := range r.Dates() {
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}

		date := day.Format(daterange.DateLayout)
		start := time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, loc)
		end := time.Date(day.Year(), day.Month(), day.Day(), 13, 0, 0, 0, loc)

		events = append(events, event.Event{
			ID:               int64(g.intN(fallbackMaxEventID)),
			Title:            fmt.Sprintf("ランチタイム勉強会: %s", date),
			Catch:            "平日のランチタイムに気軽に参加できる勉強会です",
			Description:      fallbackDescription,
			URL:              fmt.Sprintf("https://connpass.com/event/dummy-%s/", date),
			HashTag:          "ランチタイム勉強会",
			StartedAt:        start.Format(time.RFC3339),
			EndedAt:          end.Format(time.RFC3339),
			Limit:            fallbackLimit,
			Place:            "オンライン",
			OwnerID:          FallbackOwnerID,
			OwnerNickname:    FallbackOwnerNickname,
			OwnerDisplayName: FallbackOwnerDisplayName,
			Accepted:         g.intN(fallbackMaxAccepted),
			Waiting:          g.intN(fallbackMaxWaiting),
			UpdatedAt:        updatedAt,
		})
	}
	return events
}

func (g *Generator) intN(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rand == nil {
		return rand.IntN(n)
	}
	return g.rand.IntN(n)
}
