package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LegacyFile is the conversation log older runs kept in the run root.
const LegacyFile = "conversation.json"

type legacyLog struct {
	Messages []legacyMessage `json:"messages"`
}

type legacyMessage struct {
	Role      string          `json:"role"`
	Content   json.RawMessage `json:"content"`
	CreatedAt string          `json:"created_at"`
	Model     string          `json:"model,omitempty"`
	Usage     *Usage          `json:"usage,omitempty"`
}

type legacyBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
}

func locateLegacy(runDir string) (string, bool) {
	path := filepath.Join(runDir, LegacyFile)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return "", false
	}
	return path, true
}

func readLegacy(path string) (*Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var conv legacyLog
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, err
	}
	if conv.Messages == nil {
		return nil, fmt.Errorf("missing messages array")
	}

	toolNames := map[string]string{}
	turns := make([]Turn, 0, len(conv.Messages))
	for i, m := range conv.Messages {
		ts, err := parseTimestamp(m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		turn := Turn{Role: m.Role, Timestamp: ts, Model: m.Model, Usage: m.Usage}
		if err := decodeContent(m.Content, &turn, toolNames); err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		turns = append(turns, turn)
	}
	return &Transcript{Turns: turns}, nil
}

// decodeContent fills turn from a content field that is either a plain
// string or an array of text, tool_use and tool_result blocks.
func decodeContent(raw json.RawMessage, turn *Turn, toolNames map[string]string) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		turn.Content = text
		return nil
	}
	var blocks []legacyBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return fmt.Errorf("content is neither a string nor a block list: %w", err)
	}
	var texts []string
	for _, b := range blocks {
		switch b.Type {
		case "text":
			texts = append(texts, b.Text)
		case "tool_use":
			toolNames[b.ID] = b.Name
			turn.ToolCalls = append(turn.ToolCalls, ToolCall{ID: b.ID, Name: b.Name})
		case "tool_result":
			turn.ToolResults = append(turn.ToolResults, ToolResult{
				ToolUseID: b.ToolUseID,
				Name:      toolNames[b.ToolUseID],
				IsError:   b.IsError,
			})
		}
	}
	turn.Content = strings.Join(texts, "\n")
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
