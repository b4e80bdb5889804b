package interpret

import (
	"testing"

	"github.com/SecurityRonin/nfchat-sub001/internal/models"
)

func TestMapTactic_Reconnaissance(t *testing.T) {
	// Probing: tiny flows, sub-second, fast packet rate, service ports.
	p := models.StateProfile{
		AvgInBytes:    100,
		AvgOutBytes:   80,
		AvgDurationMs: 200,
		AvgPktsPerSec: 50,
		PortCategory:  models.PortCategoryDist{WellKnown: 0.9, Registered: 0.1},
		ProtocolDist:  models.ProtocolDist{TCP: 0.6, ICMP: 0.4},
	}

	tactic, score := MapTactic(p)
	if tactic != TacticReconnaissance {
		t.Errorf("Expected %s, got %s (score %f)", TacticReconnaissance, tactic, score)
	}
	if score != 1.0 {
		t.Errorf("Expected score 1.0, got %f", score)
	}
}

func TestMapTactic_Exfiltration(t *testing.T) {
	// Heavy outbound transfer over ephemeral ports.
	p := models.StateProfile{
		AvgInBytes:    500,
		AvgOutBytes:   50000,
		BytesRatio:    500.0 / 50001.0,
		AvgDurationMs: 20000,
		AvgPktsPerSec: 1,
		PortCategory:  models.PortCategoryDist{Ephemeral: 0.8, Registered: 0.2},
		ProtocolDist:  models.ProtocolDist{TCP: 1},
	}

	tactic, score := MapTactic(p)
	if tactic != TacticExfiltration {
		t.Errorf("Expected %s, got %s (score %f)", TacticExfiltration, tactic, score)
	}
	if score != 1.0 {
		t.Errorf("Expected score 1.0, got %f", score)
	}
}

func TestMapTactic_CommandAndControl(t *testing.T) {
	// Persistent low-rate TCP beacon on a high port.
	p := models.StateProfile{
		AvgInBytes:    2000,
		AvgOutBytes:   1800,
		BytesRatio:    1.1,
		AvgDurationMs: 120000,
		AvgPktsPerSec: 0.5,
		PortCategory:  models.PortCategoryDist{Ephemeral: 0.9, Registered: 0.1},
		ProtocolDist:  models.ProtocolDist{TCP: 0.95, UDP: 0.05},
	}

	tactic, score := MapTactic(p)
	if tactic != TacticCommandControl {
		t.Errorf("Expected %s, got %s (score %f)", TacticCommandControl, tactic, score)
	}
	if score != 1.0 {
		t.Errorf("Expected score 1.0, got %f", score)
	}
}

func TestMapTactic_Deterministic(t *testing.T) {
	p := models.StateProfile{
		AvgInBytes:    100,
		AvgOutBytes:   100,
		AvgDurationMs: 500,
		AvgPktsPerSec: 20,
		PortCategory:  models.PortCategoryDist{WellKnown: 0.8, Registered: 0.2},
		ProtocolDist:  models.ProtocolDist{TCP: 1},
	}

	tacticA, scoreA := MapTactic(p)
	tacticB, scoreB := MapTactic(p)
	if tacticA != tacticB || scoreA != scoreB {
		t.Errorf("Expected identical mappings, got (%s, %f) and (%s, %f)", tacticA, scoreA, tacticB, scoreB)
	}

	// Reconnaissance and Discovery share a scorer; the first-listed tactic
	// must win the tie every time.
	if tacticA == TacticDiscovery {
		t.Error("Expected Reconnaissance to win the shared-scorer tie over Discovery")
	}
}

func TestMapTactic_ScoreClamped(t *testing.T) {
	p := models.StateProfile{
		ProtocolDist: models.ProtocolDist{TCP: 1},
		PortCategory: models.PortCategoryDist{WellKnown: 1},
	}
	_, score := MapTactic(p)
	if score < 0 || score > 1 {
		t.Errorf("Expected score in [0, 1], got %f", score)
	}
}

func TestMapAll(t *testing.T) {
	profiles := []models.StateProfile{
		{StateID: 0, AvgDurationMs: 200, AvgPktsPerSec: 50, PortCategory: models.PortCategoryDist{WellKnown: 0.9}, ProtocolDist: models.ProtocolDist{TCP: 1}},
		{StateID: 2, AvgInBytes: 500, AvgOutBytes: 50000, BytesRatio: 0.01, AvgDurationMs: 20000, PortCategory: models.PortCategoryDist{Ephemeral: 0.8}, ProtocolDist: models.ProtocolDist{TCP: 1}},
	}

	summaries := MapAll(profiles)
	if len(summaries) != 2 {
		t.Fatalf("Expected 2 summaries, got %d", len(summaries))
	}
	for id, s := range summaries {
		if s.Profile.StateID != id {
			t.Errorf("Summary keyed by %d holds profile for state %d", id, s.Profile.StateID)
		}
		if s.Narrative == "" {
			t.Errorf("State %d: expected a non-empty narrative", id)
		}
		if s.Tactic == "" {
			t.Errorf("State %d: expected a tactic", id)
		}
	}
}
