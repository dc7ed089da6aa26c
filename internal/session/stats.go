package session

import (
	"math"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Stats are the timing and tool signals derived from a transcript.
type Stats struct {
	SpanMS     float64
	LLMTimeMS  float64
	ToolTimeMS float64
	// Turns counts user turns, which includes tool result deliveries.
	Turns   int
	Entries int

	ToolCalls     int
	ToolErrors    int
	MCPCalls      int
	MCPErrors     int
	ExecuteCalls  int
	ExecuteErrors int

	InputTokens  int
	OutputTokens int
	Model        string
}

func (s Stats) Tokens() int { return s.InputTokens + s.OutputTokens }

// IsMCPTool reports whether a tool name has the connector form server__tool.
func IsMCPTool(name string) bool {
	return strings.Contains(name, "__")
}

// Stats derives timing, turn and tool signals from the transcript.
func (t *Transcript) Stats() Stats {
	s := Stats{Entries: len(t.Turns)}

	stamps := lo.FilterMap(t.Turns, func(turn Turn, _ int) (time.Time, bool) {
		return turn.Timestamp, !turn.Timestamp.IsZero()
	})
	if len(stamps) > 1 {
		first := lo.MinBy(stamps, func(a, b time.Time) bool { return a.Before(b) })
		last := lo.MaxBy(stamps, func(a, b time.Time) bool { return a.After(b) })
		s.SpanMS = float64(last.Sub(first).Microseconds()) / 1000
	}

	callNames := map[string]string{}
	for _, turn := range t.Turns {
		switch turn.Role {
		case "user":
			s.Turns++
		case "assistant":
			s.LLMTimeMS += turn.ElapsedMS
			if s.Model == "" && turn.Model != "" {
				s.Model = turn.Model
			}
		}
		if turn.Usage != nil {
			s.InputTokens += turn.Usage.InputTokens
			s.OutputTokens += turn.Usage.OutputTokens
		}
		for _, c := range turn.ToolCalls {
			callNames[c.ID] = c.Name
			s.ToolCalls++
			if IsMCPTool(c.Name) {
				s.MCPCalls++
			} else {
				s.ExecuteCalls++
			}
		}
		for _, r := range turn.ToolResults {
			if !r.IsError {
				continue
			}
			name := r.Name
			if name == "" {
				name = callNames[r.ToolUseID]
			}
			s.ToolErrors++
			if IsMCPTool(name) {
				s.MCPErrors++
			} else {
				s.ExecuteErrors++
			}
		}
	}

	s.LLMTimeMS = round2(s.LLMTimeMS)
	s.ToolTimeMS = round2(math.Max(s.SpanMS-s.LLMTimeMS, 0))
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
