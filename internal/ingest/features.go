// Package ingest loads flow records from NetFlow-style CSV exports or PCAP
// captures and turns them into the feature matrix the trainer consumes.
package ingest

import (
	"math"

	"github.com/SecurityRonin/nfchat-sub001/internal/models"
)

// FeatureCount is the dimensionality of the extracted feature vectors.
const FeatureCount = 12

// FeatureNames labels the columns of the extracted matrix, in order.
var FeatureNames = []string{
	"log1p_in_bytes",
	"log1p_out_bytes",
	"log1p_in_pkts",
	"log1p_out_pkts",
	"log1p_duration_ms",
	"log1p_iat_avg",
	"bytes_ratio",
	"pkts_per_second",
	"is_tcp",
	"is_udp",
	"is_icmp",
	"port_category",
}

// maxIATMs caps inter-arrival times so a single huge gap cannot dominate
// the log-scaled feature.
const maxIATMs = 1e10

// Extract builds the raw (unscaled) feature matrix from an ordered flow
// sequence. One row per flow, FeatureCount columns. Inter-arrival time is
// taken against the previous flow in the given order; the first flow gets 0.
func Extract(flows []models.Flow) [][]float64 {
	matrix := make([][]float64, len(flows))
	for i, f := range flows {
		row := make([]float64, FeatureCount)

		row[0] = math.Log1p(float64(f.InBytes))
		row[1] = math.Log1p(float64(f.OutBytes))
		row[2] = math.Log1p(float64(f.InPkts))
		row[3] = math.Log1p(float64(f.OutPkts))
		row[4] = math.Log1p(float64(f.DurationMs))

		var iat float64
		if i > 0 {
			iat = float64(f.StartMs - flows[i-1].StartMs)
		}
		if iat < 0 {
			iat = 0
		}
		if iat > maxIATMs {
			iat = maxIATMs
		}
		row[5] = math.Log1p(iat)

		row[6] = float64(f.InBytes) / (float64(f.OutBytes) + 1)

		durS := float64(f.DurationMs)
		if durS < 1 {
			durS = 1
		}
		durS /= 1000
		row[7] = float64(f.TotalPkts()) / durS

		switch f.Protocol {
		case models.ProtoTCP:
			row[8] = 1
		case models.ProtoUDP:
			row[9] = 1
		case models.ProtoICMP:
			row[10] = 1
		}

		row[11] = portCategory(f.DstPort)
		matrix[i] = row
	}
	return matrix
}

func portCategory(port uint16) float64 {
	switch {
	case port <= models.PortWellKnownMax:
		return 0
	case port <= models.PortRegisteredMax:
		return 1
	default:
		return 2
	}
}
