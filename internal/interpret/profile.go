// Package interpret turns raw state assignments into human-facing output:
// per-state statistical profiles, rule-based narratives, and ATT&CK tactic
// suggestions.
package interpret

import (
	"fmt"
	"sort"

	"github.com/SecurityRonin/nfchat-sub001/internal/models"
)

// Profile aggregates per-state statistical signatures from flows and their
// state assignments. flows and states must be parallel slices; states with
// no assigned flows are omitted from the result, which is ordered by state
// id.
func Profile(flows []models.Flow, states []int, nStates int) ([]models.StateProfile, error) {
	if len(flows) != len(states) {
		return nil, fmt.Errorf("interpret: %d flows but %d state assignments", len(flows), len(states))
	}

	byState := make(map[int][]models.Flow)
	for i, s := range states {
		if s < 0 || s >= nStates {
			return nil, fmt.Errorf("interpret: state %d out of range [0, %d)", s, nStates)
		}
		byState[s] = append(byState[s], flows[i])
	}

	ids := make([]int, 0, len(byState))
	for id := range byState {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	profiles := make([]models.StateProfile, 0, len(ids))
	for _, id := range ids {
		profiles = append(profiles, computeProfile(id, byState[id]))
	}
	return profiles, nil
}

func computeProfile(stateID int, flows []models.Flow) models.StateProfile {
	n := float64(len(flows))

	var (
		inBytes, outBytes  float64
		durationMs         float64
		pktsPerSec         float64
		tcp, udp, icmp     float64
		wellKnown, reg, ep float64
	)
	for _, f := range flows {
		inBytes += float64(f.InBytes)
		outBytes += float64(f.OutBytes)
		durationMs += float64(f.DurationMs)

		// Duration floored at 1ms so zero-length flows don't blow up the rate.
		durS := float64(f.DurationMs)
		if durS < 1 {
			durS = 1
		}
		durS /= 1000
		pktsPerSec += float64(f.TotalPkts()) / durS

		switch f.Protocol {
		case models.ProtoTCP:
			tcp++
		case models.ProtoUDP:
			udp++
		case models.ProtoICMP:
			icmp++
		}

		switch {
		case f.DstPort <= models.PortWellKnownMax:
			wellKnown++
		case f.DstPort <= models.PortRegisteredMax:
			reg++
		default:
			ep++
		}
	}

	avgIn := inBytes / n
	avgOut := outBytes / n

	p := models.StateProfile{
		StateID:       stateID,
		FlowCount:     len(flows),
		AvgInBytes:    avgIn,
		AvgOutBytes:   avgOut,
		AvgDurationMs: durationMs / n,
		AvgPktsPerSec: pktsPerSec / n,
		BytesRatio:    avgIn / (avgOut + 1),
		ProtocolDist:  models.ProtocolDist{TCP: tcp / n, UDP: udp / n, ICMP: icmp / n},
		PortCategory:  models.PortCategoryDist{WellKnown: wellKnown / n, Registered: reg / n, Ephemeral: ep / n},
	}

	addConnStats(&p, flows)
	addPacketStats(&p, flows)
	addGapStats(&p, flows)
	return p
}

// addConnStats fills the connection-outcome fields when the exporter
// recorded zeek-style connection states. SF counts as completed, S0 as
// unanswered, REJ/RSTO/RSTR as rejected.
func addConnStats(p *models.StateProfile, flows []models.Flow) {
	var withState, complete, noReply, rejected float64
	for _, f := range flows {
		if f.ConnState == "" {
			continue
		}
		withState++
		switch f.ConnState {
		case "SF":
			complete++
		case "S0":
			noReply++
		case "REJ", "RSTO", "RSTR":
			rejected++
		}
	}
	if withState == 0 {
		return
	}
	p.ConnCompletePct = ptr(complete / withState)
	p.NoReplyPct = ptr(noReply / withState)
	p.RejectedPct = ptr(rejected / withState)
}

func addPacketStats(p *models.StateProfile, flows []models.Flow) {
	var bytes, pkts float64
	for _, f := range flows {
		bytes += float64(f.TotalBytes())
		pkts += float64(f.TotalPkts())
	}
	if pkts == 0 {
		return
	}
	p.AvgBytesPerPkt = ptr(bytes / pkts)
}

// addGapStats computes the average gap between consecutive flow starts
// within the state. Needs at least two flows with start timestamps.
func addGapStats(p *models.StateProfile, flows []models.Flow) {
	starts := make([]int64, 0, len(flows))
	for _, f := range flows {
		if f.StartMs > 0 {
			starts = append(starts, f.StartMs)
		}
	}
	if len(starts) < 2 {
		return
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	var total float64
	for i := 1; i < len(starts); i++ {
		total += float64(starts[i] - starts[i-1])
	}
	p.AvgInterFlowGapMs = ptr(total / float64(len(starts)-1))
}

func ptr(v float64) *float64 { return &v }
