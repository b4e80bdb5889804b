package ingest

import (
	"testing"

	"github.com/SecurityRonin/nfchat-sub001/internal/models"
)

func TestFlowKeyReverse(t *testing.T) {
	key := flowKey{
		srcIP:    "10.0.0.1",
		dstIP:    "10.0.0.2",
		srcPort:  49152,
		dstPort:  443,
		protocol: models.ProtoTCP,
	}

	rev := key.reverse()
	if rev.srcIP != key.dstIP || rev.dstIP != key.srcIP {
		t.Errorf("Expected swapped addresses, got %s -> %s", rev.srcIP, rev.dstIP)
	}
	if rev.srcPort != key.dstPort || rev.dstPort != key.srcPort {
		t.Errorf("Expected swapped ports, got %d -> %d", rev.srcPort, rev.dstPort)
	}
	if rev.protocol != key.protocol {
		t.Errorf("Expected protocol %d, got %d", key.protocol, rev.protocol)
	}
	if rev.reverse() != key {
		t.Error("Expected double reverse to return the original key")
	}
}

func TestLookupMatchesBothDirections(t *testing.T) {
	r := NewPCAPReader()
	key := flowKey{srcIP: "10.0.0.1", dstIP: "10.0.0.2", srcPort: 50000, dstPort: 80, protocol: models.ProtoTCP}
	state := &flowState{key: key}
	r.flows[key] = state

	got, forward := r.lookup(key)
	if got != state || !forward {
		t.Errorf("Expected forward match, got state=%v forward=%v", got, forward)
	}

	got, forward = r.lookup(key.reverse())
	if got != state || forward {
		t.Errorf("Expected reverse match, got state=%v forward=%v", got, forward)
	}

	got, _ = r.lookup(flowKey{srcIP: "10.0.0.9", dstIP: "10.0.0.2", srcPort: 50000, dstPort: 80, protocol: models.ProtoTCP})
	if got != nil {
		t.Errorf("Expected no match for unrelated key, got %v", got)
	}
}

func TestConnStateDerivation(t *testing.T) {
	tcpKey := flowKey{protocol: models.ProtoTCP}
	tests := []struct {
		name  string
		state flowState
		want  string
	}{
		{"completed handshake", flowState{key: tcpKey, sawSYN: true, sawReply: true, sawFIN: true}, "SF"},
		{"no reply", flowState{key: tcpKey, sawSYN: true}, "S0"},
		{"rejected by responder", flowState{key: tcpKey, sawSYN: true, sawReply: true, sawRST: true, rstFromResp: true}, "REJ"},
		{"reset by originator", flowState{key: tcpKey, sawSYN: true, sawReply: true, sawRST: true}, "RSTO"},
		{"midstream capture", flowState{key: tcpKey, sawReply: true}, ""},
		{"udp has no state", flowState{key: flowKey{protocol: models.ProtoUDP}, sawSYN: true}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.connState(); got != tt.want {
				t.Errorf("Expected conn state %q, got %q", tt.want, got)
			}
		})
	}
}

func TestCollectOrdersByStartTime(t *testing.T) {
	r := NewPCAPReader()
	starts := []int64{3000, 1000, 2000}
	for i, startMs := range starts {
		key := flowKey{srcIP: "10.0.0.1", dstIP: "10.0.0.2", srcPort: uint16(50000 + i), dstPort: 443, protocol: models.ProtoTCP}
		r.flows[key] = &flowState{key: key, startMs: startMs, endMs: startMs + 500, inPkts: 1}
	}

	flows := r.collect()
	if len(flows) != 3 {
		t.Fatalf("Expected 3 flows, got %d", len(flows))
	}
	for i := 1; i < len(flows); i++ {
		if flows[i].StartMs < flows[i-1].StartMs {
			t.Errorf("Expected flows ordered by start time, got %d before %d", flows[i-1].StartMs, flows[i].StartMs)
		}
	}
	if flows[0].DurationMs != 500 {
		t.Errorf("Expected duration 500, got %d", flows[0].DurationMs)
	}
}
