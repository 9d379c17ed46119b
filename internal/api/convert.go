package api

import (
	"strings"
	"time"

	"github.com/rickgao/odds-history/internal/model"
)

// ParseCommenceTime parses an ISO 8601 commence time.
// Returns the zero time for empty or invalid input.
func ParseCommenceTime(iso string) time.Time {
	iso = strings.TrimSpace(iso)
	if iso == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		// Try without timezone
		t, err = time.Parse("2006-01-02T15:04:05", iso)
		if err != nil {
			return time.Time{}
		}
	}

	return t.UTC()
}

// ToProviderEvent converts an API event to the domain model.
func ToProviderEvent(ev APIEvent) model.ProviderEvent {
	out := model.ProviderEvent{
		EventID:      ev.ID,
		HomeTeam:     ev.HomeTeam,
		AwayTeam:     ev.AwayTeam,
		CommenceTime: ParseCommenceTime(ev.CommenceTime),
		Bookmakers:   make([]model.Bookmaker, 0, len(ev.Bookmakers)),
	}

	for _, bm := range ev.Bookmakers {
		b := model.Bookmaker{
			Key:     bm.Key,
			Markets: make([]model.Market, 0, len(bm.Markets)),
		}
		for _, m := range bm.Markets {
			mk := model.Market{
				Key:      m.Key,
				Outcomes: make([]model.Outcome, 0, len(m.Outcomes)),
			}
			for _, o := range m.Outcomes {
				mk.Outcomes = append(mk.Outcomes, model.Outcome{
					Name:  o.Name,
					Price: o.Price,
					Point: o.Point,
				})
			}
			b.Markets = append(b.Markets, mk)
		}
		out.Bookmakers = append(out.Bookmakers, b)
	}

	return out
}
