package domain

import "time"

// QueryEvent is emitted once per query for the analytics collaborator.
type QueryEvent struct {
	Tenant      string
	Mode        SearchMode
	Latency     time.Duration
	ResultCount int
	Warnings    []string
	Err         error
	At          time.Time
}

// IngestEvent is emitted once per ingestion attempt.
type IngestEvent struct {
	Tenant     string
	Document   string
	ChunkCount int
	Success    bool
	Err        error
	Latency    time.Duration
	At         time.Time
}
