package ingest

import (
	"fmt"
	"sort"

	"github.com/SecurityRonin/nfchat-sub001/internal/models"
)

// Session grouping defaults: flows from the same source more than 30
// minutes apart start a new session, and sessions shorter than 3 flows
// carry too little sequence structure to train on.
const (
	DefaultSessionGapMs     = 30 * 60 * 1000
	DefaultMinSessionLength = 3
)

// Session is a time-ordered run of flows from one source address.
type Session struct {
	ID    string
	SrcIP string
	Flows []models.Flow
}

// SessionBuilder groups flows into per-source sessions with gap detection.
type SessionBuilder struct {
	// GapMs is the largest start-time gap kept within one session. A gap
	// of exactly GapMs stays together.
	GapMs int64
	// MinLength drops sessions with fewer flows.
	MinLength int
}

// NewSessionBuilder returns a builder with the default gap and length.
func NewSessionBuilder() *SessionBuilder {
	return &SessionBuilder{
		GapMs:     DefaultSessionGapMs,
		MinLength: DefaultMinSessionLength,
	}
}

// Build groups flows by source address, orders each group by start time,
// splits on gaps larger than GapMs, and drops groups shorter than
// MinLength. Sessions are returned ordered by source address then start
// time, so output is deterministic for a given input.
func (b *SessionBuilder) Build(flows []models.Flow) []Session {
	if len(flows) == 0 {
		return nil
	}

	bySrc := make(map[string][]models.Flow)
	for _, f := range flows {
		bySrc[f.SrcIP] = append(bySrc[f.SrcIP], f)
	}

	srcs := make([]string, 0, len(bySrc))
	for src := range bySrc {
		srcs = append(srcs, src)
	}
	sort.Strings(srcs)

	var sessions []Session
	for _, src := range srcs {
		group := bySrc[src]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].StartMs < group[j].StartMs
		})

		start := 0
		for i := 1; i < len(group); i++ {
			if group[i].StartMs-group[i-1].StartMs > b.GapMs {
				if s, ok := b.newSession(src, group[start:i]); ok {
					sessions = append(sessions, s)
				}
				start = i
			}
		}
		if s, ok := b.newSession(src, group[start:]); ok {
			sessions = append(sessions, s)
		}
	}
	return sessions
}

func (b *SessionBuilder) newSession(src string, flows []models.Flow) (Session, bool) {
	if len(flows) < b.MinLength {
		return Session{}, false
	}
	return Session{
		ID:    fmt.Sprintf("%s_%d", src, flows[0].StartMs),
		SrcIP: src,
		Flows: flows,
	}, true
}

// Flatten concatenates session flows back into a single ordered slice,
// preserving session order. The trainer consumes one matrix, so sessions
// are stitched end to end.
func Flatten(sessions []Session) []models.Flow {
	var n int
	for _, s := range sessions {
		n += len(s.Flows)
	}
	out := make([]models.Flow, 0, n)
	for _, s := range sessions {
		out = append(out, s.Flows...)
	}
	return out
}
