package api

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rickgao/odds-history/internal/model"
)

// GetOdds fetches the current odds for every upcoming event of a sport.
func (c *Client) GetOdds(ctx context.Context, sportKey string, opts OddsOptions) ([]model.ProviderEvent, error) {
	if sportKey == "" {
		return nil, fmt.Errorf("get odds: sport key is required")
	}

	query := url.Values{}
	if len(opts.Regions) > 0 {
		query.Set("regions", strings.Join(opts.Regions, ","))
	}
	if len(opts.Markets) > 0 {
		query.Set("markets", strings.Join(opts.Markets, ","))
	}
	if len(opts.Bookmakers) > 0 {
		query.Set("bookmakers", strings.Join(opts.Bookmakers, ","))
	}
	format := opts.OddsFormat
	if format == "" {
		format = "decimal"
	}
	query.Set("oddsFormat", format)
	query.Set("dateFormat", "iso")

	var resp []APIEvent
	if err := c.get(ctx, "/sports/"+url.PathEscape(sportKey)+"/odds", query, &resp); err != nil {
		return nil, fmt.Errorf("get odds %s: %w", sportKey, err)
	}

	events := make([]model.ProviderEvent, 0, len(resp))
	for _, ev := range resp {
		events = append(events, ToProviderEvent(ev))
	}

	c.logger.Debug("fetched odds", "sport", sportKey, "events", len(events))

	return events, nil
}
