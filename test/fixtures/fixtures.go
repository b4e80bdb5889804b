// Package fixtures provides flow and matrix generators shared by the
// integration and benchmark suites.
package fixtures

import (
	"fmt"
	"strings"

	"github.com/SecurityRonin/nfchat-sub001/internal/models"
)

// FlowFixture generates deterministic flow records.
type FlowFixture struct {
	baseMs  int64
	counter int
}

// NewFlowFixture creates a generator with a fixed epoch so runs are
// reproducible.
func NewFlowFixture() *FlowFixture {
	return &FlowFixture{baseMs: 1700000000000}
}

// next advances the clock by stepMs and returns the new timestamp.
func (f *FlowFixture) next(stepMs int64) int64 {
	f.counter++
	f.baseMs += stepMs
	return f.baseMs
}

// WebFlow returns an HTTPS-like flow: medium volume, bidirectional, TCP 443.
func (f *FlowFixture) WebFlow(src string) models.Flow {
	jitter := uint64(f.counter % 7)
	return models.Flow{
		SrcIP:      src,
		DstIP:      "10.0.0.1",
		InBytes:    4000 + jitter*100,
		OutBytes:   3500 + jitter*80,
		InPkts:     12 + jitter,
		OutPkts:    10 + jitter,
		DurationMs: 1500,
		StartMs:    f.next(2000),
		Protocol:   models.ProtoTCP,
		SrcPort:    uint16(40000 + f.counter),
		DstPort:    443,
		ConnState:  "SF",
	}
}

// ScanFlow returns a probe-like flow: tiny, instant, unanswered SYN.
func (f *FlowFixture) ScanFlow(src string) models.Flow {
	return models.Flow{
		SrcIP:      src,
		DstIP:      "10.0.0.2",
		InBytes:    60,
		OutBytes:   0,
		InPkts:     1,
		OutPkts:    0,
		DurationMs: 1,
		StartMs:    f.next(50),
		Protocol:   models.ProtoTCP,
		SrcPort:    uint16(50000 + f.counter),
		DstPort:    uint16(f.counter%1024 + 1),
		ConnState:  "S0",
	}
}

// BulkFlow returns an exfiltration-like flow: heavy outbound on a high port.
func (f *FlowFixture) BulkFlow(src string) models.Flow {
	jitter := uint64(f.counter % 5)
	return models.Flow{
		SrcIP:      src,
		DstIP:      "203.0.113.9",
		InBytes:    900 + jitter*10,
		OutBytes:   250000 + jitter*1000,
		InPkts:     20,
		OutPkts:    200 + jitter,
		DurationMs: 45000,
		StartMs:    f.next(60000),
		Protocol:   models.ProtoTCP,
		SrcPort:    uint16(50000 + f.counter),
		DstPort:    52000,
		ConnState:  "SF",
	}
}

// MixedDataset returns n flows alternating between the three behavior
// archetypes, ordered by start time within each archetype run.
func (f *FlowFixture) MixedDataset(n int) []models.Flow {
	flows := make([]models.Flow, 0, n)
	for len(flows) < n {
		switch (len(flows) / 5) % 3 {
		case 0:
			flows = append(flows, f.WebFlow("192.168.1.10"))
		case 1:
			flows = append(flows, f.ScanFlow("192.168.1.10"))
		default:
			flows = append(flows, f.BulkFlow("192.168.1.10"))
		}
	}
	return flows
}

// CSV renders flows as a NetFlow-style export suitable for the ingest
// loader.
func CSV(flows []models.Flow) string {
	var b strings.Builder
	b.WriteString("IPV4_SRC_ADDR,IPV4_DST_ADDR,IN_BYTES,OUT_BYTES,IN_PKTS,OUT_PKTS,FLOW_DURATION_MILLISECONDS,FLOW_START_MILLISECONDS,PROTOCOL,L4_SRC_PORT,L4_DST_PORT,CONN_STATE\n")
	for _, f := range flows {
		fmt.Fprintf(&b, "%s,%s,%d,%d,%d,%d,%d,%d,%d,%d,%d,%s\n",
			f.SrcIP, f.DstIP,
			f.InBytes, f.OutBytes, f.InPkts, f.OutPkts,
			f.DurationMs, f.StartMs,
			f.Protocol, f.SrcPort, f.DstPort, f.ConnState)
	}
	return b.String()
}
