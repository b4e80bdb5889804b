package interpret

import "github.com/SecurityRonin/nfchat-sub001/internal/models"

// MITRE ATT&CK tactic names produced by MapTactic.
const (
	TacticReconnaissance   = "Reconnaissance"
	TacticDiscovery        = "Discovery"
	TacticCredentialAccess = "Credential Access"
	TacticLateralMovement  = "Lateral Movement"
	TacticCommandControl   = "Command and Control"
	TacticExfiltration     = "Exfiltration"
	TacticBenign           = "Benign"
	TacticUnknown          = "Unknown"
)

// tacticProfile pairs a tactic with the rule set scoring how well a state
// profile matches that tactic's expected behavior.
type tacticProfile struct {
	tactic string
	score  func(models.StateProfile) float64
}

// Evaluation order matters for ties: the first highest-scoring tactic wins.
var tacticProfiles = []tacticProfile{
	{TacticReconnaissance, reconnaissanceScore},
	{TacticDiscovery, reconnaissanceScore}, // discovery traffic looks like recon
	{TacticCredentialAccess, credentialAccessScore},
	{TacticLateralMovement, lateralMovementScore},
	{TacticCommandControl, c2Score},
	{TacticExfiltration, exfiltrationScore},
	{TacticBenign, benignScore},
}

// MapTactic scores the profile against every known tactic pattern and
// returns the best match with its confidence in [0, 1]. Profiles matching
// nothing map to Unknown with confidence 0.
func MapTactic(p models.StateProfile) (string, float64) {
	bestTactic := TacticUnknown
	bestScore := 0.0
	for _, tp := range tacticProfiles {
		if s := tp.score(p); s > bestScore {
			bestScore = s
			bestTactic = tp.tactic
		}
	}
	return bestTactic, bestScore
}

// MapAll maps each profile to its best tactic, keyed by state id.
func MapAll(profiles []models.StateProfile) map[int]models.StateSummary {
	out := make(map[int]models.StateSummary, len(profiles))
	for _, p := range profiles {
		tactic, score := MapTactic(p)
		out[p.StateID] = models.StateSummary{
			Profile:     p,
			Narrative:   Describe(p),
			Tactic:      tactic,
			TacticScore: score,
		}
	}
	return out
}

// Probing traffic: little data, quick flows, high packet rate, well-known
// service ports.
func reconnaissanceScore(p models.StateProfile) float64 {
	score := 0.0
	if p.AvgInBytes < 500 && p.AvgOutBytes < 500 {
		score += 0.3
	}
	if p.AvgDurationMs < 1000 {
		score += 0.2
	}
	if p.AvgPktsPerSec > 10 {
		score += 0.2
	}
	if p.PortCategory.WellKnown > 0.5 {
		score += 0.3
	}
	return clamp(score)
}

// Data leaving the network: heavy outbound, long transfers, high ports.
func exfiltrationScore(p models.StateProfile) float64 {
	score := 0.0
	if p.AvgOutBytes > 10000 {
		score += 0.3
	}
	if p.BytesRatio < 0.1 {
		score += 0.3
	}
	if p.AvgDurationMs > 10000 {
		score += 0.2
	}
	if p.PortCategory.Ephemeral > 0.5 {
		score += 0.2
	}
	return clamp(score)
}

// Beaconing: persistent low-rate TCP connections on high ports.
func c2Score(p models.StateProfile) float64 {
	score := 0.0
	if p.AvgDurationMs > 30000 {
		score += 0.3
	}
	if p.AvgPktsPerSec < 2 {
		score += 0.2
	}
	if p.BytesRatio > 0.5 && p.BytesRatio < 2.0 {
		score += 0.1
	}
	if p.PortCategory.Ephemeral > 0.5 {
		score += 0.2
	}
	if p.ProtocolDist.TCP > 0.8 {
		score += 0.2
	}
	return clamp(score)
}

// Admin-protocol traffic moving tools between hosts.
func lateralMovementScore(p models.StateProfile) float64 {
	score := 0.0
	if p.AvgInBytes > 1000 && p.AvgInBytes < 100000 {
		score += 0.2
	}
	if p.PortCategory.WellKnown > 0.2 && p.PortCategory.Registered > 0.2 {
		score += 0.3
	}
	if p.AvgDurationMs > 1000 && p.AvgDurationMs < 30000 {
		score += 0.2
	}
	if p.ProtocolDist.TCP > 0.7 {
		score += 0.3
	}
	return clamp(score)
}

// Repeated small authentication attempts against well-known service ports.
func credentialAccessScore(p models.StateProfile) float64 {
	score := 0.0
	if p.AvgInBytes < 1000 && p.AvgOutBytes < 1000 {
		score += 0.3
	}
	if p.PortCategory.WellKnown > 0.6 {
		score += 0.3
	}
	if p.AvgDurationMs < 5000 {
		score += 0.2
	}
	if p.ProtocolDist.TCP > 0.9 {
		score += 0.2
	}
	return clamp(score)
}

// Ordinary traffic: balanced direction, mixed protocols and ports, volume.
func benignScore(p models.StateProfile) float64 {
	score := 0.0
	if p.BytesRatio > 0.5 && p.BytesRatio < 2.0 {
		score += 0.3
	}
	if p.ProtocolDist.TCP < 0.9 && p.ProtocolDist.UDP > 0.1 {
		score += 0.2
	}
	if p.FlowCount > 1000 {
		score += 0.2
	}
	if p.PortCategory.WellKnown > 0.2 && p.PortCategory.Registered > 0.2 {
		score += 0.3
	}
	return clamp(score)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
