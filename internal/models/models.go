// Package models defines the core data structures shared across the
// behavioral-state discovery engine.
package models

// Protocol numbers as they appear in NetFlow/IPFIX exports.
const (
	ProtoICMP uint8 = 1
	ProtoTCP  uint8 = 6
	ProtoUDP  uint8 = 17
)

// Port category boundaries (IANA).
const (
	PortWellKnownMax  = 1023
	PortRegisteredMax = 49151
)

// Flow represents a single NetFlow-style flow record. Field names follow the
// NetFlow v9 export schema the ingest layer reads.
type Flow struct {
	SrcIP      string `json:"src_ip,omitempty"`
	DstIP      string `json:"dst_ip,omitempty"`
	InBytes    uint64 `json:"in_bytes"`
	OutBytes   uint64 `json:"out_bytes"`
	InPkts     uint64 `json:"in_pkts"`
	OutPkts    uint64 `json:"out_pkts"`
	DurationMs int64  `json:"duration_ms"`
	StartMs    int64  `json:"start_ms"`
	Protocol   uint8  `json:"protocol"`
	SrcPort    uint16 `json:"src_port"`
	DstPort    uint16 `json:"dst_port"`

	// ConnState is the zeek-style connection state ("SF", "S0", "REJ", ...).
	// Empty when the exporter did not record it; profile aggregation skips
	// the connection-outcome statistics in that case.
	ConnState string `json:"conn_state,omitempty"`
}

// TotalBytes returns the combined byte count of both directions.
func (f *Flow) TotalBytes() uint64 { return f.InBytes + f.OutBytes }

// TotalPkts returns the combined packet count of both directions.
func (f *Flow) TotalPkts() uint64 { return f.InPkts + f.OutPkts }

// TrainingResult holds the outcome of fitting the sequence model.
// States carries one state id per input row, each in [0, NStates).
type TrainingResult struct {
	States        []int   `json:"states"`
	NStates       int     `json:"nStates"`
	Converged     bool    `json:"converged"`
	Iterations    int     `json:"iterations"`
	LogLikelihood float64 `json:"logLikelihood"`
}

// ProtocolDist is the fraction of flows per protocol within a state.
// Fractions sum to at most 1; all zero means the protocol is unknown.
type ProtocolDist struct {
	TCP  float64 `json:"tcp"`
	UDP  float64 `json:"udp"`
	ICMP float64 `json:"icmp"`
}

// PortCategoryDist is the fraction of flows per destination-port category.
type PortCategoryDist struct {
	WellKnown  float64 `json:"wellKnown"`
	Registered float64 `json:"registered"`
	Ephemeral  float64 `json:"ephemeral"`
}

// StateProfile is the aggregate statistical signature of one discovered
// behavioral state. The optional pointer fields are nil when the upstream
// flow data did not allow computing them; the narrative generator omits the
// corresponding clause.
type StateProfile struct {
	StateID       int              `json:"stateId"`
	FlowCount     int              `json:"flowCount"`
	AvgInBytes    float64          `json:"avgInBytes"`
	AvgOutBytes   float64          `json:"avgOutBytes"`
	AvgDurationMs float64          `json:"avgDurationMs"`
	AvgPktsPerSec float64          `json:"avgPktsPerSec"`
	BytesRatio    float64          `json:"bytesRatio"`
	ProtocolDist  ProtocolDist     `json:"protocolDist"`
	PortCategory  PortCategoryDist `json:"portCategoryDist"`

	ConnCompletePct   *float64 `json:"connCompletePct,omitempty"`
	NoReplyPct        *float64 `json:"noReplyPct,omitempty"`
	RejectedPct       *float64 `json:"rejectedPct,omitempty"`
	AvgBytesPerPkt    *float64 `json:"avgBytesPerPkt,omitempty"`
	AvgInterFlowGapMs *float64 `json:"avgInterFlowGapMs,omitempty"`
}

// StateSummary couples a state's profile with its derived interpretations.
type StateSummary struct {
	Profile     StateProfile `json:"profile"`
	Narrative   string       `json:"narrative"`
	Tactic      string       `json:"tactic"`
	TacticScore float64      `json:"tacticScore"`
}

// Report is the JSON document the analyze command writes.
type Report struct {
	GeneratedAt string          `json:"generated_at"`
	Input       string          `json:"input"`
	Fingerprint string          `json:"fingerprint"`
	FlowCount   int             `json:"flow_count"`
	Result      *TrainingResult `json:"result"`
	States      []StateSummary  `json:"states"`
}
