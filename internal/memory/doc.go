// Package memory persists pipeline outputs in SQLite: transcripts and
// analyses as the durable record, plus optional graph and continual memory
// projections derived from each run.
package memory
