// Package runlog defines the durable record of pipeline state transitions.
//
// Every transition a pipeline run goes through is appended as one Entry.
// The log is what an operator reads when an event was acknowledged despite
// failing: the latest entry for an order id says where and why it stopped,
// and its trace_id links it to the distributed trace.
package runlog

import "time"

// Entry is a single row in the pipeline_runs table.
type Entry struct {
	// RunID identifies one pipeline execution. A redelivered event gets a
	// new RunID but keeps its OrderID.
	RunID string

	OrderID    string
	CustomerID string

	// State is the pipeline state that was just entered.
	State string

	// Reason is the failure reason for FAILED entries, empty otherwise.
	Reason string

	// Payload is the JSON-serialised inbound event. Written on START only.
	Payload string

	TraceID string
	SpanID  string

	UpdatedAt time.Time
}
