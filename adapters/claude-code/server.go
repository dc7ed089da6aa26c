package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"nhooyr.io/websocket"

	"github.com/signalnine/skillbench/internal/session"
)

// State represents the server's protocol state.
type State int

const (
	StateWaiting State = iota // Listening, no connection yet
	StateInit                 // Connected, awaiting system/init from CLI
	StateRunning              // Task prompt sent, agent is working
	StateDone                 // Result received, ready to exit
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "WAITING"
	case StateInit:
		return "INIT"
	case StateRunning:
		return "RUNNING"
	case StateDone:
		return "DONE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// Envelope is the top-level NDJSON message read from the wire. Different
// message types use different subsets of fields.
type Envelope struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`

	// system/init
	SessionID         string   `json:"session_id,omitempty"`
	UUID              string   `json:"uuid,omitempty"`
	Cwd               string   `json:"cwd,omitempty"`
	Tools             []string `json:"tools,omitempty"`
	Model             string   `json:"model,omitempty"`
	PermissionMode    string   `json:"permissionMode,omitempty"`
	ClaudeCodeVersion string   `json:"claude_code_version,omitempty"`

	// control_request
	RequestID string          `json:"request_id,omitempty"`
	Request   json.RawMessage `json:"request,omitempty"`

	// assistant and user
	Message         json.RawMessage `json:"message,omitempty"`
	ParentToolUseID *string         `json:"parent_tool_use_id"`

	// result
	IsError      *bool        `json:"is_error,omitempty"`
	Result       string       `json:"result,omitempty"`
	Errors       []string     `json:"errors,omitempty"`
	DurationMs   int          `json:"duration_ms,omitempty"`
	NumTurns     int          `json:"num_turns,omitempty"`
	TotalCostUSD float64      `json:"total_cost_usd,omitempty"`
	Usage        *ResultUsage `json:"usage,omitempty"`
}

// ControlRequestBody is the nested "request" inside a control_request envelope.
type ControlRequestBody struct {
	Subtype   string          `json:"subtype"`
	ToolName  string          `json:"tool_name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
}

// Message is the nested "message" inside assistant and user envelopes.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Role    string          `json:"role"`
	Model   string          `json:"model,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
	Usage   *ResultUsage    `json:"usage,omitempty"`
}

// ContentBlock covers text, tool_use and tool_result blocks.
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
}

type ResultUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
}

// Outcome is what the final result message reported.
type Outcome struct {
	IsError      bool
	Subtype      string
	NumTurns     int
	DurationMs   int
	TotalCostUSD float64
	Usage        ResultUsage
}

type Server struct {
	state       State
	sessionID   string
	model       string
	taskPrompt  string
	idleTimeout time.Duration
	rec         *session.Recorder
	toolNames   map[string]string
	toolsSeen   map[string]bool
	toolsUsed   []string
	lastTurn    time.Time
	now         func() time.Time
	outcome     Outcome
}

func NewServer(taskPrompt string, rec *session.Recorder, idleTimeout time.Duration) *Server {
	return &Server{
		state:       StateWaiting,
		taskPrompt:  taskPrompt,
		idleTimeout: idleTimeout,
		rec:         rec,
		toolNames:   make(map[string]string),
		toolsSeen:   make(map[string]bool),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Server) HandleConnection(ctx context.Context, conn *websocket.Conn) error {
	s.setState(StateInit)

	for s.state != StateDone {
		readCtx, cancel := context.WithTimeout(ctx, s.idleTimeout)
		_, data, err := conn.Read(readCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("read in state %s: %w", s.state, err)
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Debugf("[RECV] malformed JSON: %s", string(data))
			continue
		}
		log.Debugf("[RECV] type=%s subtype=%s state=%s", env.Type, env.Subtype, s.state)

		responses, err := s.handleMessage(&env)
		if err != nil {
			return fmt.Errorf("handle message in state %s: %w", s.state, err)
		}

		for _, resp := range responses {
			log.Debugf("[SEND] %s", string(resp))
			if err := conn.Write(ctx, websocket.MessageText, resp); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
		}
	}
	return s.finish()
}

func (s *Server) setState(st State) {
	s.state = st
	log.Debugf("[STATE] → %s", st)
}

func (s *Server) handleMessage(env *Envelope) ([]json.RawMessage, error) {
	switch s.state {
	case StateInit:
		return s.handleInit(env)
	case StateRunning:
		return s.handleRunning(env)
	default:
		return nil, fmt.Errorf("unexpected message in state %s", s.state)
	}
}

// handleInit answers system/init with the task prompt.
func (s *Server) handleInit(env *Envelope) ([]json.RawMessage, error) {
	if env.Type != "system" || env.Subtype != "init" {
		return nil, fmt.Errorf("expected system/init, got type=%s subtype=%s", env.Type, env.Subtype)
	}

	s.sessionID = env.SessionID
	s.model = env.Model
	log.Debugf("[INIT] session=%s model=%s version=%s tools=%v",
		env.SessionID, env.Model, env.ClaudeCodeVersion, env.Tools)

	userMsg := map[string]any{
		"type": "user",
		"message": map[string]any{
			"role":    "user",
			"content": s.taskPrompt,
		},
		"parent_tool_use_id": nil,
		"session_id":         s.sessionID,
	}
	data, err := json.Marshal(userMsg)
	if err != nil {
		return nil, fmt.Errorf("marshal user message: %w", err)
	}

	s.record(session.Turn{Role: "user", Content: s.taskPrompt})
	s.setState(StateRunning)
	return []json.RawMessage{data}, nil
}

func (s *Server) handleRunning(env *Envelope) ([]json.RawMessage, error) {
	switch env.Type {
	case "control_request":
		return s.handleControlRequest(env)
	case "assistant":
		s.handleAssistant(env)
		return nil, nil
	case "user":
		s.handleToolResults(env)
		return nil, nil
	case "result":
		s.handleResult(env)
		return nil, nil
	case "keep_alive", "stream_event", "tool_progress", "tool_use_summary", "system", "auth_status":
		return nil, nil
	default:
		log.Warnf("unknown message type: %s", env.Type)
		return nil, nil
	}
}

// handleControlRequest approves every tool with its original input.
func (s *Server) handleControlRequest(env *Envelope) ([]json.RawMessage, error) {
	var req ControlRequestBody
	if err := json.Unmarshal(env.Request, &req); err != nil {
		return nil, fmt.Errorf("unmarshal control request body: %w", err)
	}

	switch req.Subtype {
	case "can_use_tool":
		if req.ToolName != "" && !s.toolsSeen[req.ToolName] {
			s.toolsSeen[req.ToolName] = true
			s.toolsUsed = append(s.toolsUsed, req.ToolName)
		}
		if req.ToolUseID != "" && req.ToolName != "" {
			s.toolNames[req.ToolUseID] = req.ToolName
		}
		resp := map[string]any{
			"type": "control_response",
			"response": map[string]any{
				"subtype":    "success",
				"request_id": env.RequestID,
				"response": map[string]any{
					"behavior":     "allow",
					"updatedInput": json.RawMessage(req.Input),
				},
			},
		}
		data, err := json.Marshal(resp)
		if err != nil {
			return nil, fmt.Errorf("marshal control response: %w", err)
		}
		return []json.RawMessage{data}, nil
	default:
		log.Warnf("unknown control_request subtype: %s", req.Subtype)
		return nil, nil
	}
}

func (s *Server) handleAssistant(env *Envelope) {
	var msg Message
	if err := json.Unmarshal(env.Message, &msg); err != nil {
		log.WithError(err).Warn("unreadable assistant message")
		return
	}
	text, blocks := decodeContent(msg.Content)
	turn := session.Turn{
		Role:    "assistant",
		Content: text,
		Model:   msg.Model,
	}
	if turn.Model == "" {
		turn.Model = s.model
	}
	for _, b := range blocks {
		if b.Type == "tool_use" {
			turn.ToolCalls = append(turn.ToolCalls, session.ToolCall{ID: b.ID, Name: b.Name})
			s.toolNames[b.ID] = b.Name
		}
	}
	if msg.Usage != nil {
		turn.Usage = &session.Usage{InputTokens: msg.Usage.InputTokens, OutputTokens: msg.Usage.OutputTokens}
	}
	now := s.now()
	if !s.lastTurn.IsZero() {
		turn.ElapsedMS = float64(now.Sub(s.lastTurn).Microseconds()) / 1000
	}
	turn.Timestamp = now
	s.record(turn)
}

// handleToolResults records the tool results the CLI feeds back to the model.
func (s *Server) handleToolResults(env *Envelope) {
	var msg Message
	if err := json.Unmarshal(env.Message, &msg); err != nil {
		log.WithError(err).Warn("unreadable user message")
		return
	}
	text, blocks := decodeContent(msg.Content)
	turn := session.Turn{Role: "user", Content: text}
	var parts []string
	for _, b := range blocks {
		if b.Type != "tool_result" {
			continue
		}
		turn.ToolResults = append(turn.ToolResults, session.ToolResult{
			ToolUseID: b.ToolUseID,
			Name:      s.toolNames[b.ToolUseID],
			IsError:   b.IsError,
		})
		if out, _ := decodeContent(b.Content); out != "" {
			parts = append(parts, out)
		}
	}
	if turn.Content == "" {
		turn.Content = strings.Join(parts, "\n")
	}
	s.record(turn)
}

func (s *Server) handleResult(env *Envelope) {
	s.outcome = Outcome{
		IsError:      env.IsError != nil && *env.IsError,
		Subtype:      env.Subtype,
		NumTurns:     env.NumTurns,
		DurationMs:   env.DurationMs,
		TotalCostUSD: env.TotalCostUSD,
	}
	if env.Usage != nil {
		s.outcome.Usage = *env.Usage
	}
	if s.outcome.IsError {
		log.Warnf("[RESULT] error subtype=%s errors=%v", env.Subtype, env.Errors)
	} else {
		log.Debugf("[RESULT] success, cost=$%.4f, turns=%d", env.TotalCostUSD, env.NumTurns)
	}
	s.setState(StateDone)
}

func (s *Server) record(turn session.Turn) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now()
	}
	s.lastTurn = turn.Timestamp
	if s.rec == nil {
		return
	}
	if err := s.rec.Append(turn); err != nil {
		log.WithError(err).Error("recording turn")
	}
}

// finish stores the result summary in session.json.
func (s *Server) finish() error {
	if s.rec == nil {
		return nil
	}
	o := s.outcome
	md := map[string]string{
		"result":         o.Subtype,
		"is_error":       strconv.FormatBool(o.IsError),
		"num_turns":      strconv.Itoa(o.NumTurns),
		"duration_ms":    strconv.Itoa(o.DurationMs),
		"total_cost_usd": strconv.FormatFloat(o.TotalCostUSD, 'f', 4, 64),
		"input_tokens":   strconv.Itoa(o.Usage.InputTokens),
		"output_tokens":  strconv.Itoa(o.Usage.OutputTokens),
		"tools_used":     strings.Join(s.toolsUsed, ","),
	}
	if s.sessionID != "" {
		md["agent_session_id"] = s.sessionID
	}
	if s.model != "" {
		md["model"] = s.model
	}
	return s.rec.SetMetadata(md)
}

// decodeContent accepts a plain string or a list of content blocks and
// returns the joined text alongside the blocks.
func decodeContent(raw json.RawMessage) (string, []ContentBlock) {
	if len(raw) == 0 {
		return "", nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", nil
	}
	var texts []string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			texts = append(texts, b.Text)
		}
	}
	return strings.Join(texts, "\n"), blocks
}
