package api

// APIEvent is one event from GET /sports/{sport}/odds.
type APIEvent struct {
	ID           string         `json:"id"`
	SportKey     string         `json:"sport_key"`
	SportTitle   string         `json:"sport_title"`
	CommenceTime string         `json:"commence_time"`
	HomeTeam     string         `json:"home_team"`
	AwayTeam     string         `json:"away_team"`
	Bookmakers   []APIBookmaker `json:"bookmakers"`
}

// APIBookmaker is one bookmaker's prices for an event.
type APIBookmaker struct {
	Key        string      `json:"key"`
	Title      string      `json:"title"`
	LastUpdate string      `json:"last_update"`
	Markets    []APIMarket `json:"markets"`
}

// APIMarket holds the outcomes of one market (h2h, totals, spreads).
type APIMarket struct {
	Key        string       `json:"key"`
	LastUpdate string       `json:"last_update"`
	Outcomes   []APIOutcome `json:"outcomes"`
}

// APIOutcome is a single priced outcome. Point is present for line markets.
type APIOutcome struct {
	Name  string   `json:"name"`
	Price float64  `json:"price"`
	Point *float64 `json:"point,omitempty"`
}

// OddsOptions are the query parameters for GetOdds.
type OddsOptions struct {
	Regions    []string
	Markets    []string
	Bookmakers []string
	OddsFormat string // defaults to "decimal"
}
