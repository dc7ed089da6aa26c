// Command claude-code bridges the agent CLI's SDK WebSocket protocol to a
// session history on disk. It serves one connection, hands the agent the
// task prompt, approves every tool call and records each turn.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"nhooyr.io/websocket"

	"github.com/signalnine/skillbench/internal/session"
)

// Exit codes understood by the harness.
const (
	exitCompleted = 0
	exitCrashed   = 1
	exitGaveUp    = 2
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	port := flag.Int("port", 9876, "WebSocket server port")
	taskFile := flag.String("task-file", envOr("TASK_DESCRIPTION", ""), "Path to task description file")
	sessionDir := flag.String("session-dir", envOr("SESSION_DIR", ""), "Session directory to record history into")
	agent := flag.String("agent", envOr("AGENT_NAME", "claude-code"), "Agent name used for the history file")
	idleTimeout := flag.Int("idle-timeout", 10, "Minutes of silence before assuming stuck")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debug {
		log.SetLevel(log.DebugLevel)
	}
	if *taskFile == "" {
		log.Fatal("--task-file is required")
	}
	if *sessionDir == "" {
		log.Fatal("--session-dir is required")
	}

	taskData, err := os.ReadFile(*taskFile)
	if err != nil {
		log.Fatalf("reading task file: %v", err)
	}

	rec, err := session.NewRecorder(*sessionDir, session.Info{
		ID:    envOr("SESSION_ID", ""),
		Agent: *agent,
	})
	if err != nil {
		log.Fatalf("opening session: %v", err)
	}

	srv := NewServer(string(taskData), rec, time.Duration(*idleTimeout)*time.Minute)
	os.Exit(serve(context.Background(), srv, *port))
}

func serve(ctx context.Context, srv *Server, port int) int {
	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		log.Errorf("listen: %v", err)
		return exitCrashed
	}
	log.Infof("adapter listening on localhost:%d", port)

	connCh := make(chan *websocket.Conn, 1)
	errCh := make(chan error, 1)

	httpServer := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
				InsecureSkipVerify: true,
			})
			if err != nil {
				log.Warnf("accept error: %v", err)
				return
			}
			select {
			case connCh <- conn:
			default:
				conn.Close(websocket.StatusPolicyViolation, "only one connection allowed")
			}
		}),
	}

	go func() {
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	defer httpServer.Close()

	var conn *websocket.Conn
	select {
	case conn = <-connCh:
	case err := <-errCh:
		log.Errorf("http server failed: %v", err)
		return exitCrashed
	}

	if err := srv.HandleConnection(ctx, conn); err != nil {
		log.Errorf("connection error: %v", err)
		conn.Close(websocket.StatusInternalError, err.Error())
		return exitCrashed
	}
	conn.Close(websocket.StatusNormalClosure, "done")

	if srv.outcome.IsError {
		return exitGaveUp
	}
	return exitCompleted
}
