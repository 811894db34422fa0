// Package platform holds the catalog of execution platforms and their live
// telemetry. The registry owns no timers: telemetry refreshes arrive from an
// external poller through UpdateTelemetry, and routing code only ever reads
// immutable snapshots.
package platform
