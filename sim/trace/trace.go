package trace

// TraceLevel controls the verbosity of rescale tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelRescales captures every step-size rescale.
	TraceLevelRescales TraceLevel = "rescales"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:     true,
	TraceLevelRescales: true,
	"":                 true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
	// MaxRecords bounds memory on long runs; 0 keeps everything.
	MaxRecords int
}

// SimulationTrace collects rescale records during a run.
type SimulationTrace struct {
	Config   TraceConfig
	Rescales []RescaleRecord
	// Dropped counts records discarded once MaxRecords was reached.
	Dropped int
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:   config,
		Rescales: make([]RescaleRecord, 0),
	}
}

// Enabled reports whether records should be collected. Safe on nil.
func (st *SimulationTrace) Enabled() bool {
	return st != nil && st.Config.Level == TraceLevelRescales
}

// RecordRescale appends a rescale record.
func (st *SimulationTrace) RecordRescale(record RescaleRecord) {
	if !st.Enabled() {
		return
	}
	if st.Config.MaxRecords > 0 && len(st.Rescales) >= st.Config.MaxRecords {
		st.Dropped++
		return
	}
	st.Rescales = append(st.Rescales, record)
}
