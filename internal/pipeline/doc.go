// Package pipeline runs one end-to-end collection pass: load fixtures,
// poll odds, rebuild canonical records, scan for deviations, write and
// publish the radar.
package pipeline
