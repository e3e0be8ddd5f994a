// Package logging configures slog for the pipeline: console and JSON
// handlers, standardized field helpers, context-derived attributes
// (run, phase, step, tenant), and a capture hook the log-pattern
// middleware uses to observe messages emitted during a step.
package logging
