package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/SecurityRonin/nfchat-sub001/internal/logging"
	"github.com/SecurityRonin/nfchat-sub001/internal/models"
)

// Required CSV columns, matching the NetFlow v9 export schema.
var requiredColumns = []string{
	"IN_BYTES",
	"OUT_BYTES",
	"IN_PKTS",
	"OUT_PKTS",
	"FLOW_DURATION_MILLISECONDS",
	"FLOW_START_MILLISECONDS",
	"PROTOCOL",
	"L4_SRC_PORT",
	"L4_DST_PORT",
}

// ErrNoFlows is returned when the input contains a header but no records.
var ErrNoFlows = errors.New("ingest: input contains no flow records")

// LoadCSV reads a NetFlow-style CSV export from disk.
func LoadCSV(path string) ([]models.Flow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open %s: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses flow records from CSV data. The first row must be a header
// naming at least the required NetFlow columns; IPV4_SRC_ADDR,
// IPV4_DST_ADDR, and CONN_STATE are read when present. Column order does
// not matter.
func ReadCSV(r io.Reader) ([]models.Flow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("ingest: read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToUpper(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("ingest: missing required column %s", name)
		}
	}

	log := logging.IngestLogger()
	var flows []models.Flow
	row := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			return nil, fmt.Errorf("ingest: row %d: %w", row, err)
		}

		flow, err := parseRecord(record, cols)
		if err != nil {
			return nil, fmt.Errorf("ingest: row %d: %w", row, err)
		}
		flows = append(flows, flow)
	}

	if len(flows) == 0 {
		return nil, ErrNoFlows
	}
	log.Debug("loaded flow records", "count", len(flows))
	return flows, nil
}

func parseRecord(record []string, cols map[string]int) (models.Flow, error) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var flow models.Flow
	var err error

	if flow.InBytes, err = parseUint(get("IN_BYTES")); err != nil {
		return flow, fmt.Errorf("IN_BYTES: %w", err)
	}
	if flow.OutBytes, err = parseUint(get("OUT_BYTES")); err != nil {
		return flow, fmt.Errorf("OUT_BYTES: %w", err)
	}
	if flow.InPkts, err = parseUint(get("IN_PKTS")); err != nil {
		return flow, fmt.Errorf("IN_PKTS: %w", err)
	}
	if flow.OutPkts, err = parseUint(get("OUT_PKTS")); err != nil {
		return flow, fmt.Errorf("OUT_PKTS: %w", err)
	}
	if flow.DurationMs, err = parseInt(get("FLOW_DURATION_MILLISECONDS")); err != nil {
		return flow, fmt.Errorf("FLOW_DURATION_MILLISECONDS: %w", err)
	}
	if flow.StartMs, err = parseInt(get("FLOW_START_MILLISECONDS")); err != nil {
		return flow, fmt.Errorf("FLOW_START_MILLISECONDS: %w", err)
	}

	proto, err := parseUint(get("PROTOCOL"))
	if err != nil {
		return flow, fmt.Errorf("PROTOCOL: %w", err)
	}
	if proto > 255 {
		return flow, fmt.Errorf("PROTOCOL: value %d out of range", proto)
	}
	flow.Protocol = uint8(proto)

	srcPort, err := parseUint(get("L4_SRC_PORT"))
	if err != nil {
		return flow, fmt.Errorf("L4_SRC_PORT: %w", err)
	}
	dstPort, err := parseUint(get("L4_DST_PORT"))
	if err != nil {
		return flow, fmt.Errorf("L4_DST_PORT: %w", err)
	}
	if srcPort > 65535 || dstPort > 65535 {
		return flow, fmt.Errorf("port out of range (src %d, dst %d)", srcPort, dstPort)
	}
	flow.SrcPort = uint16(srcPort)
	flow.DstPort = uint16(dstPort)

	flow.SrcIP = get("IPV4_SRC_ADDR")
	flow.DstIP = get("IPV4_DST_ADDR")
	flow.ConnState = get("CONN_STATE")
	return flow, nil
}

// parseUint accepts integer values possibly written in float notation,
// which some exporters emit for count columns.
func parseUint(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid count %q", s)
	}
	return uint64(f), nil
}

func parseInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	return int64(f), nil
}
