package ingest

import (
	"context"
	"fmt"
	"sort"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcap"

	"github.com/SecurityRonin/nfchat-sub001/internal/logging"
	"github.com/SecurityRonin/nfchat-sub001/internal/models"
)

// flowKey identifies one direction of a 5-tuple.
type flowKey struct {
	srcIP, dstIP     string
	srcPort, dstPort uint16
	protocol         uint8
}

// reverse returns the key of the opposite direction.
func (k flowKey) reverse() flowKey {
	return flowKey{
		srcIP:    k.dstIP,
		dstIP:    k.srcIP,
		srcPort:  k.dstPort,
		dstPort:  k.srcPort,
		protocol: k.protocol,
	}
}

// flowState accumulates packets into a bidirectional flow. The first-seen
// direction is treated as the initiator: initiator packets count as
// in-bytes, responder packets as out-bytes.
type flowState struct {
	key         flowKey
	startMs     int64
	endMs       int64
	inBytes     uint64
	outBytes    uint64
	inPkts      uint64
	outPkts     uint64
	sawSYN      bool
	sawReply    bool
	sawFIN      bool
	sawRST      bool
	rstFromResp bool
}

// PCAPReader aggregates packets from an offline capture into bidirectional
// flows keyed by 5-tuple.
type PCAPReader struct {
	log *logging.Logger

	eth     layers.Ethernet
	ip4     layers.IPv4
	ip6     layers.IPv6
	tcp     layers.TCP
	udp     layers.UDP
	icmp4   layers.ICMPv4
	parser  *gopacket.DecodingLayerParser
	decoded []gopacket.LayerType

	flows map[flowKey]*flowState
}

// NewPCAPReader creates a reader for offline capture files.
func NewPCAPReader() *PCAPReader {
	r := &PCAPReader{
		log:   logging.IngestLogger(),
		flows: make(map[flowKey]*flowState),
	}
	r.parser = gopacket.NewDecodingLayerParser(
		layers.LayerTypeEthernet,
		&r.eth, &r.ip4, &r.ip6, &r.tcp, &r.udp, &r.icmp4,
	)
	r.parser.IgnoreUnsupported = true
	r.decoded = make([]gopacket.LayerType, 0, 8)
	return r
}

// LoadPCAP reads a capture file and returns its flows ordered by start time.
func LoadPCAP(ctx context.Context, path string) ([]models.Flow, error) {
	return NewPCAPReader().Read(ctx, path)
}

// Read processes every packet in the file and returns the aggregated flows
// ordered by start time. The context is checked while reading so huge
// captures can be abandoned.
func (r *PCAPReader) Read(ctx context.Context, path string) ([]models.Flow, error) {
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open capture %s: %w", path, err)
	}
	defer handle.Close()

	source := gopacket.NewPacketSource(handle, handle.LinkType())
	source.DecodeOptions.Lazy = true
	source.DecodeOptions.NoCopy = true

	var packets, parseErrors uint64
	for packet := range source.Packets() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		packets++
		if !r.processPacket(packet) {
			parseErrors++
		}
	}

	flows := r.collect()
	if len(flows) == 0 {
		return nil, ErrNoFlows
	}
	r.log.Debug("aggregated capture into flows",
		"packets", packets,
		"parseErrors", parseErrors,
		"flows", len(flows))
	return flows, nil
}

// processPacket folds one packet into its flow. Returns false when the
// packet could not be decoded down to an IP layer.
func (r *PCAPReader) processPacket(packet gopacket.Packet) bool {
	if err := r.parser.DecodeLayers(packet.Data(), &r.decoded); err != nil && len(r.decoded) == 0 {
		return false
	}

	var key flowKey
	var haveIP, haveTCP bool
	for _, layerType := range r.decoded {
		switch layerType {
		case layers.LayerTypeIPv4:
			key.srcIP = r.ip4.SrcIP.String()
			key.dstIP = r.ip4.DstIP.String()
			key.protocol = uint8(r.ip4.Protocol)
			haveIP = true
		case layers.LayerTypeIPv6:
			key.srcIP = r.ip6.SrcIP.String()
			key.dstIP = r.ip6.DstIP.String()
			key.protocol = uint8(r.ip6.NextHeader)
			haveIP = true
		case layers.LayerTypeTCP:
			key.srcPort = uint16(r.tcp.SrcPort)
			key.dstPort = uint16(r.tcp.DstPort)
			haveTCP = true
		case layers.LayerTypeUDP:
			key.srcPort = uint16(r.udp.SrcPort)
			key.dstPort = uint16(r.udp.DstPort)
		}
	}
	if !haveIP {
		return false
	}

	tsMs := packet.Metadata().Timestamp.UnixMilli()
	length := uint64(packet.Metadata().Length)

	state, forward := r.lookup(key)
	if state == nil {
		state = &flowState{key: key, startMs: tsMs}
		r.flows[key] = state
		forward = true
	}
	if tsMs > state.endMs {
		state.endMs = tsMs
	}

	if forward {
		state.inBytes += length
		state.inPkts++
	} else {
		state.outBytes += length
		state.outPkts++
		state.sawReply = true
	}

	if haveTCP {
		if r.tcp.SYN {
			state.sawSYN = true
		}
		if r.tcp.FIN {
			state.sawFIN = true
		}
		if r.tcp.RST {
			state.sawRST = true
			if !forward {
				state.rstFromResp = true
			}
		}
	}
	return true
}

// lookup finds the flow for a key in either direction. forward reports
// whether the key matches the initiator direction.
func (r *PCAPReader) lookup(key flowKey) (state *flowState, forward bool) {
	if s, ok := r.flows[key]; ok {
		return s, true
	}
	if s, ok := r.flows[key.reverse()]; ok {
		return s, false
	}
	return nil, false
}

// collect converts accumulated flow state into Flow records ordered by
// start time.
func (r *PCAPReader) collect() []models.Flow {
	flows := make([]models.Flow, 0, len(r.flows))
	for _, s := range r.flows {
		f := models.Flow{
			SrcIP:      s.key.srcIP,
			DstIP:      s.key.dstIP,
			InBytes:    s.inBytes,
			OutBytes:   s.outBytes,
			InPkts:     s.inPkts,
			OutPkts:    s.outPkts,
			DurationMs: s.endMs - s.startMs,
			StartMs:    s.startMs,
			Protocol:   s.key.protocol,
			SrcPort:    s.key.srcPort,
			DstPort:    s.key.dstPort,
			ConnState:  s.connState(),
		}
		flows = append(flows, f)
	}
	sort.SliceStable(flows, func(i, j int) bool {
		return flows[i].StartMs < flows[j].StartMs
	})
	return flows
}

// connState derives a zeek-style connection state from the observed TCP
// handshake signals. Non-TCP flows carry no state.
func (s *flowState) connState() string {
	if s.key.protocol != models.ProtoTCP {
		return ""
	}
	switch {
	case s.sawSYN && s.rstFromResp:
		return "REJ"
	case s.sawSYN && !s.sawReply:
		return "S0"
	case s.sawRST:
		return "RSTO"
	case s.sawSYN && s.sawFIN:
		return "SF"
	default:
		return ""
	}
}
