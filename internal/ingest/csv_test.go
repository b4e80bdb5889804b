package ingest

import (
	"errors"
	"strings"
	"testing"

	"github.com/SecurityRonin/nfchat-sub001/internal/models"
)

const sampleCSV = `IPV4_SRC_ADDR,IPV4_DST_ADDR,IN_BYTES,OUT_BYTES,IN_PKTS,OUT_PKTS,FLOW_DURATION_MILLISECONDS,FLOW_START_MILLISECONDS,PROTOCOL,L4_SRC_PORT,L4_DST_PORT,CONN_STATE
192.168.1.10,10.0.0.1,1500,800,10,8,2500,1700000000000,6,45123,443,SF
192.168.1.10,10.0.0.2,64,0,1,0,0,1700000001000,6,45124,22,S0
192.168.1.11,10.0.0.1,128,256,2,2,150,1700000002000,17,53001,53,
`

func TestReadCSV(t *testing.T) {
	flows, err := ReadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if len(flows) != 3 {
		t.Fatalf("Expected 3 flows, got %d", len(flows))
	}

	f := flows[0]
	if f.SrcIP != "192.168.1.10" || f.DstIP != "10.0.0.1" {
		t.Errorf("Unexpected addresses: %s -> %s", f.SrcIP, f.DstIP)
	}
	if f.InBytes != 1500 || f.OutBytes != 800 {
		t.Errorf("Expected 1500/800 bytes, got %d/%d", f.InBytes, f.OutBytes)
	}
	if f.DurationMs != 2500 || f.StartMs != 1700000000000 {
		t.Errorf("Unexpected timing: duration %d, start %d", f.DurationMs, f.StartMs)
	}
	if f.Protocol != models.ProtoTCP || f.SrcPort != 45123 || f.DstPort != 443 {
		t.Errorf("Unexpected tuple: proto %d, %d -> %d", f.Protocol, f.SrcPort, f.DstPort)
	}
	if f.ConnState != "SF" {
		t.Errorf("Expected ConnState SF, got %q", f.ConnState)
	}

	if flows[1].ConnState != "S0" {
		t.Errorf("Expected ConnState S0, got %q", flows[1].ConnState)
	}
	if flows[2].Protocol != models.ProtoUDP {
		t.Errorf("Expected UDP, got %d", flows[2].Protocol)
	}
	if flows[2].ConnState != "" {
		t.Errorf("Expected empty ConnState, got %q", flows[2].ConnState)
	}
}

func TestReadCSV_ColumnOrderIndependent(t *testing.T) {
	csv := `L4_DST_PORT,PROTOCOL,IN_BYTES,OUT_BYTES,IN_PKTS,OUT_PKTS,FLOW_DURATION_MILLISECONDS,FLOW_START_MILLISECONDS,L4_SRC_PORT
80,6,100,200,1,2,500,1700000000000,40000
`
	flows, err := ReadCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if flows[0].DstPort != 80 || flows[0].InBytes != 100 {
		t.Errorf("Unexpected flow %+v", flows[0])
	}
	// Optional columns absent: no addresses or conn state.
	if flows[0].SrcIP != "" || flows[0].ConnState != "" {
		t.Errorf("Expected empty optional fields, got %+v", flows[0])
	}
}

func TestReadCSV_FloatCounts(t *testing.T) {
	csv := `IN_BYTES,OUT_BYTES,IN_PKTS,OUT_PKTS,FLOW_DURATION_MILLISECONDS,FLOW_START_MILLISECONDS,PROTOCOL,L4_SRC_PORT,L4_DST_PORT
1500.0,800.0,10.0,8.0,2500.0,1700000000000.0,6.0,45123,443
`
	flows, err := ReadCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if flows[0].InBytes != 1500 || flows[0].DurationMs != 2500 {
		t.Errorf("Unexpected flow %+v", flows[0])
	}
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"missing column", "IN_BYTES,OUT_BYTES\n1,2\n"},
		{"bad count", "IN_BYTES,OUT_BYTES,IN_PKTS,OUT_PKTS,FLOW_DURATION_MILLISECONDS,FLOW_START_MILLISECONDS,PROTOCOL,L4_SRC_PORT,L4_DST_PORT\nxyz,0,0,0,0,0,6,1,2\n"},
		{"protocol out of range", "IN_BYTES,OUT_BYTES,IN_PKTS,OUT_PKTS,FLOW_DURATION_MILLISECONDS,FLOW_START_MILLISECONDS,PROTOCOL,L4_SRC_PORT,L4_DST_PORT\n1,2,1,1,10,0,300,1,2\n"},
		{"port out of range", "IN_BYTES,OUT_BYTES,IN_PKTS,OUT_PKTS,FLOW_DURATION_MILLISECONDS,FLOW_START_MILLISECONDS,PROTOCOL,L4_SRC_PORT,L4_DST_PORT\n1,2,1,1,10,0,6,70000,2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadCSV(strings.NewReader(tt.csv)); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestReadCSV_NoRecords(t *testing.T) {
	csv := "IN_BYTES,OUT_BYTES,IN_PKTS,OUT_PKTS,FLOW_DURATION_MILLISECONDS,FLOW_START_MILLISECONDS,PROTOCOL,L4_SRC_PORT,L4_DST_PORT\n"
	if _, err := ReadCSV(strings.NewReader(csv)); !errors.Is(err, ErrNoFlows) {
		t.Errorf("Expected ErrNoFlows, got %v", err)
	}
}
