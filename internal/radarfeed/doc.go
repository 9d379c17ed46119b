// Package radarfeed subscribes to a radar server's websocket and delivers
// each radar version, reconnecting with exponential backoff when the
// connection drops.
package radarfeed
