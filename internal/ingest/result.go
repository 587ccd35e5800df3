package ingest

import (
	"fmt"
	"time"
)

// SymbolOutcome records how one symbol's pipeline ended.
type SymbolOutcome struct {
	Symbol       string
	Interval     string
	Success      bool
	RecordCount  int
	ErrorMessage string
}

// RunSummary is the terminal artifact of one ingestion run.
type RunSummary struct {
	TotalSymbols    int
	SuccessfulCount int
	FailedCount     int
	Outcomes        []SymbolOutcome
	StartTime       time.Time
	EndTime         time.Time
}

// String renders a one-line operator summary.
func (s RunSummary) String() string {
	return fmt.Sprintf("run complete: %d/%d symbols succeeded, %d failed, took %s",
		s.SuccessfulCount, s.TotalSymbols, s.FailedCount, s.EndTime.Sub(s.StartTime).Round(time.Millisecond))
}
