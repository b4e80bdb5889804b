package interpret

import (
	"math"
	"testing"

	"github.com/SecurityRonin/nfchat-sub001/internal/models"
)

func TestProfile_Aggregation(t *testing.T) {
	flows := []models.Flow{
		{InBytes: 100, OutBytes: 200, InPkts: 2, OutPkts: 2, DurationMs: 1000, StartMs: 1000, Protocol: models.ProtoTCP, DstPort: 443},
		{InBytes: 300, OutBytes: 400, InPkts: 4, OutPkts: 4, DurationMs: 2000, StartMs: 2000, Protocol: models.ProtoTCP, DstPort: 80},
		{InBytes: 10, OutBytes: 20, InPkts: 1, OutPkts: 1, DurationMs: 100, StartMs: 3000, Protocol: models.ProtoUDP, DstPort: 53000},
	}
	states := []int{0, 0, 1}

	profiles, err := Profile(flows, states, 2)
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("Expected 2 profiles, got %d", len(profiles))
	}

	p0 := profiles[0]
	if p0.StateID != 0 || p0.FlowCount != 2 {
		t.Errorf("Expected state 0 with 2 flows, got state %d with %d", p0.StateID, p0.FlowCount)
	}
	if p0.AvgInBytes != 200 {
		t.Errorf("Expected avgInBytes 200, got %f", p0.AvgInBytes)
	}
	if p0.AvgOutBytes != 300 {
		t.Errorf("Expected avgOutBytes 300, got %f", p0.AvgOutBytes)
	}
	if want := 200.0 / 301.0; math.Abs(p0.BytesRatio-want) > 1e-12 {
		t.Errorf("Expected bytesRatio %f, got %f", want, p0.BytesRatio)
	}
	if p0.AvgDurationMs != 1500 {
		t.Errorf("Expected avgDurationMs 1500, got %f", p0.AvgDurationMs)
	}
	// (4 pkts / 1s + 8 pkts / 2s) / 2 = 4 pkts/sec.
	if math.Abs(p0.AvgPktsPerSec-4) > 1e-12 {
		t.Errorf("Expected avgPktsPerSec 4, got %f", p0.AvgPktsPerSec)
	}
	if p0.ProtocolDist.TCP != 1 || p0.ProtocolDist.UDP != 0 {
		t.Errorf("Expected all-TCP distribution, got %+v", p0.ProtocolDist)
	}
	if p0.PortCategory.WellKnown != 1 {
		t.Errorf("Expected all well-known ports, got %+v", p0.PortCategory)
	}

	p1 := profiles[1]
	if p1.StateID != 1 || p1.FlowCount != 1 {
		t.Errorf("Expected state 1 with 1 flow, got state %d with %d", p1.StateID, p1.FlowCount)
	}
	if p1.PortCategory.Ephemeral != 1 {
		t.Errorf("Expected ephemeral port category, got %+v", p1.PortCategory)
	}
}

func TestProfile_DistributionsSumToAtMostOne(t *testing.T) {
	flows := []models.Flow{
		{Protocol: models.ProtoTCP, DstPort: 22, DurationMs: 10},
		{Protocol: models.ProtoUDP, DstPort: 5000, DurationMs: 10},
		{Protocol: 47, DstPort: 60000, DurationMs: 10}, // GRE: outside the tracked set
	}
	profiles, err := Profile(flows, []int{0, 0, 0}, 1)
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}

	d := profiles[0].ProtocolDist
	sum := d.TCP + d.UDP + d.ICMP
	if sum > 1+1e-12 {
		t.Errorf("Protocol distribution sums to %f", sum)
	}
	pc := profiles[0].PortCategory
	if got := pc.WellKnown + pc.Registered + pc.Ephemeral; math.Abs(got-1) > 1e-12 {
		t.Errorf("Port category distribution sums to %f", got)
	}
}

func TestProfile_OptionalFieldsNilWithoutConnState(t *testing.T) {
	flows := []models.Flow{
		{InBytes: 100, OutBytes: 100, DurationMs: 10, Protocol: models.ProtoTCP, DstPort: 80},
	}
	profiles, err := Profile(flows, []int{0}, 1)
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}

	p := profiles[0]
	if p.ConnCompletePct != nil || p.NoReplyPct != nil || p.RejectedPct != nil {
		t.Error("Expected nil connection-outcome fields without ConnState data")
	}
	// No packets recorded either.
	if p.AvgBytesPerPkt != nil {
		t.Error("Expected nil avgBytesPerPkt without packet counts")
	}
	// A single flow has no inter-flow gap.
	if p.AvgInterFlowGapMs != nil {
		t.Error("Expected nil avgInterFlowGapMs for a single flow")
	}
}

func TestProfile_ConnStateFractions(t *testing.T) {
	flows := []models.Flow{
		{DurationMs: 10, Protocol: models.ProtoTCP, DstPort: 80, ConnState: "SF"},
		{DurationMs: 10, Protocol: models.ProtoTCP, DstPort: 80, ConnState: "SF"},
		{DurationMs: 10, Protocol: models.ProtoTCP, DstPort: 80, ConnState: "S0"},
		{DurationMs: 10, Protocol: models.ProtoTCP, DstPort: 80, ConnState: "REJ"},
	}
	profiles, err := Profile(flows, []int{0, 0, 0, 0}, 1)
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}

	p := profiles[0]
	if p.ConnCompletePct == nil || *p.ConnCompletePct != 0.5 {
		t.Errorf("Expected connCompletePct 0.5, got %v", p.ConnCompletePct)
	}
	if p.NoReplyPct == nil || *p.NoReplyPct != 0.25 {
		t.Errorf("Expected noReplyPct 0.25, got %v", p.NoReplyPct)
	}
	if p.RejectedPct == nil || *p.RejectedPct != 0.25 {
		t.Errorf("Expected rejectedPct 0.25, got %v", p.RejectedPct)
	}
}

func TestProfile_InterFlowGap(t *testing.T) {
	flows := []models.Flow{
		{DurationMs: 10, StartMs: 1000, Protocol: models.ProtoTCP, DstPort: 80},
		{DurationMs: 10, StartMs: 1100, Protocol: models.ProtoTCP, DstPort: 80},
		{DurationMs: 10, StartMs: 1400, Protocol: models.ProtoTCP, DstPort: 80},
	}
	profiles, err := Profile(flows, []int{0, 0, 0}, 1)
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}

	p := profiles[0]
	if p.AvgInterFlowGapMs == nil || *p.AvgInterFlowGapMs != 200 {
		t.Errorf("Expected avgInterFlowGapMs 200, got %v", p.AvgInterFlowGapMs)
	}
}

func TestProfile_Validation(t *testing.T) {
	flows := []models.Flow{{Protocol: models.ProtoTCP}}

	if _, err := Profile(flows, []int{0, 1}, 2); err == nil {
		t.Error("Expected an error for mismatched lengths")
	}
	if _, err := Profile(flows, []int{5}, 2); err == nil {
		t.Error("Expected an error for an out-of-range state")
	}
}

func TestProfile_ZeroDurationFloor(t *testing.T) {
	flows := []models.Flow{
		{InPkts: 5, OutPkts: 5, DurationMs: 0, Protocol: models.ProtoTCP, DstPort: 80},
	}
	profiles, err := Profile(flows, []int{0}, 1)
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	// Zero duration floors to 1ms: 10 pkts / 0.001s.
	if got := profiles[0].AvgPktsPerSec; got != 10000 {
		t.Errorf("Expected 10000 pkts/sec with floored duration, got %f", got)
	}
}
