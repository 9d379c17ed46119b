// Package server exposes the radar and canonical records over HTTP and
// pushes radar updates to websocket subscribers. It only reads the storage
// root; the collector is the single writer.
package server
