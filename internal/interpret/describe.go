package interpret

import (
	"strings"

	"github.com/SecurityRonin/nfchat-sub001/internal/models"
)

// Describe renders a short deterministic narrative for one state profile.
// An ordered pipeline of classifiers each contributes at most one phrase;
// the phrases are joined with single spaces and terminated with a period.
// The duration, volume, and protocol classifiers always contribute, so the
// result is never empty.
func Describe(p models.StateProfile) string {
	phrases := []string{
		durationPhrase(p.AvgDurationMs) + " " + volumePhrase(p.AvgInBytes+p.AvgOutBytes),
		protocolPhrase(p.ProtocolDist),
	}

	if s := directionPhrase(p.AvgInBytes, p.AvgOutBytes); s != "" {
		phrases = append(phrases, s)
	}
	if s := portPhrase(p.PortCategory); s != "" {
		phrases = append(phrases, s)
	}
	phrases = append(phrases, optionalPhrases(p)...)

	return strings.Join(phrases, " ") + "."
}

func durationPhrase(avgMs float64) string {
	switch {
	case avgMs < 100:
		return "short-duration"
	case avgMs < 10000:
		return "medium-duration"
	default:
		return "long-duration"
	}
}

func volumePhrase(totalBytes float64) string {
	switch {
	case totalBytes < 1000:
		return "low-volume"
	case totalBytes < 50000:
		return "medium-volume"
	default:
		return "high-volume"
	}
}

func protocolPhrase(d models.ProtocolDist) string {
	type share struct {
		name  string
		value float64
	}
	shares := []share{
		{"TCP", d.TCP},
		{"UDP", d.UDP},
		{"ICMP", d.ICMP},
	}
	// Stable plurality: later entries win only on a strictly larger share.
	top, second := 0, 1
	if shares[second].value > shares[top].value {
		top, second = second, top
	}
	if shares[2].value > shares[top].value {
		second, top = top, 2
	} else if shares[2].value > shares[second].value {
		second = 2
	}

	switch {
	case shares[top].value == 0:
		return "flows with unknown protocol"
	case shares[top].value > 0.8:
		return shares[top].name + " flows"
	case shares[top].value > 0.4 && shares[second].value > 0.2:
		return "mixed protocol (" + shares[top].name + "/" + shares[second].name + ") flows"
	default:
		return "predominantly " + shares[top].name + " flows"
	}
}

func directionPhrase(avgIn, avgOut float64) string {
	total := avgIn + avgOut
	if total == 0 {
		return ""
	}
	inShare := avgIn / total
	switch {
	case inShare > 0.4 && inShare < 0.6:
		return "bidirectional flows"
	case inShare > 0.7:
		return "inbound-heavy flows"
	case (1 - inShare) > 0.7:
		return "outbound-heavy flows"
	default:
		return ""
	}
}

func portPhrase(d models.PortCategoryDist) string {
	var label string
	switch {
	case d.WellKnown == 0 && d.Registered == 0 && d.Ephemeral == 0:
		return ""
	case d.WellKnown > 0.6:
		label = "well-known ports"
	case d.Registered > 0.6:
		label = "registered ports"
	case d.Ephemeral > 0.6:
		label = "ephemeral ports"
	default:
		label = "mixed port ranges"
	}
	return "targeting " + label
}

func optionalPhrases(p models.StateProfile) []string {
	var out []string

	if p.ConnCompletePct != nil {
		if *p.ConnCompletePct > 0.8 {
			out = append(out, "with mostly completed connections")
		} else if *p.ConnCompletePct < 0.3 {
			out = append(out, "with predominantly failed connections")
		}
	}
	if p.NoReplyPct != nil && *p.NoReplyPct > 0.1 {
		out = append(out, "with significant unanswered connection attempts")
	}
	if p.RejectedPct != nil && *p.RejectedPct > 0.05 {
		out = append(out, "with notable connection rejections")
	}
	if p.AvgBytesPerPkt != nil {
		if *p.AvgBytesPerPkt < 200 {
			out = append(out, "with small packets consistent with signaling")
		} else if *p.AvgBytesPerPkt > 1000 {
			out = append(out, "with large packets suggesting bulk transfer")
		}
	}
	if p.AvgInterFlowGapMs != nil {
		if *p.AvgInterFlowGapMs < 500 {
			out = append(out, "in rapid bursts")
		} else if *p.AvgInterFlowGapMs > 30000 {
			out = append(out, "with long pauses between flows")
		}
	}
	return out
}
