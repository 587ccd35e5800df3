package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// RunRecord is a persisted ingestion run header.
type RunRecord struct {
	ID              int64
	StartedAt       time.Time
	FinishedAt      time.Time
	TotalSymbols    int
	SuccessfulCount int
	FailedCount     int
	CreatedAt       time.Time
}

// OutcomeRecord is one symbol's persisted result within a run.
type OutcomeRecord struct {
	ID          int64
	RunID       int64
	Symbol      string
	Interval    string
	Success     bool
	RecordCount int
	Error       *string
}

// ClosePoint is a (bucket, close) pair used by the export command.
type ClosePoint struct {
	Bucket time.Time
	Close  decimal.Decimal
}
