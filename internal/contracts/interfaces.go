package contracts

import "context"

// RecordSource fetches raw per-symbol data. Missing fragments are reported
// inside the record, never as an error.
// ⭐ SSOT: DataClient interface
type RecordSource interface {
	FetchRecord(ctx context.Context, symbol string, types ...DataType) *RawFinancialRecord
}

// MetricsComputer derives metrics from a record. Implementations are pure.
// ⭐ SSOT: MetricsEngine interface
type MetricsComputer interface {
	Compute(record *RawFinancialRecord, benchmark []PricePoint) DerivedMetrics
}

// Strategy scores one symbol's metrics
// ⭐ SSOT: ScoringEngine interface
type Strategy interface {
	Name() string
	Score(m *DerivedMetrics) Outcome
}

// UniverseSource lists candidate symbols
type UniverseSource interface {
	Symbols(ctx context.Context) ([]string, error)
}
