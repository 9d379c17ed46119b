// Package api provides the odds provider client (the-odds-api v4 compatible).
//
// Endpoint:
//   - GET {base}/sports/{sport_key}/odds?apiKey&regions&markets&bookmakers&oddsFormat&dateFormat=iso
//
// Every response carries quota headers (x-requests-remaining, x-requests-used)
// which are reported through the client's quota hook.
package api
