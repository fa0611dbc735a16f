package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tailedflox9-maker/studychat/internal/engine"
	"github.com/tailedflox9-maker/studychat/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // same-origin in prod, proxy in dev
	},
}

// updateQueueSize bounds how far a slow client can lag behind the engine
// before updates are dropped.
const updateQueueSize = 256

// command is one client message on the session socket.
type command struct {
	Op             string `json:"op"`
	Content        string `json:"content,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	NoteID         string `json:"note_id,omitempty"`
	AssignmentID   string `json:"assignment_id,omitempty"`
	Title          string `json:"title,omitempty"`
	Model          string `json:"model,omitempty"`
	Option         int    `json:"option"`
	Folded         bool   `json:"folded"`
}

// event is one server message: either a forwarded engine update or a state
// snapshot in response to a list command.
type event struct {
	engine.Update
	Conversations []models.Conversation `json:"conversations,omitempty"`
	Messages      []models.Message      `json:"messages,omitempty"`
	Notes         []models.Note         `json:"notes,omitempty"`
	Assignments   []models.Assignment   `json:"assignments,omitempty"`
	Models        []string              `json:"models,omitempty"`
	Model         string                `json:"model,omitempty"`
	SidebarFolded *bool                 `json:"sidebar_folded,omitempty"`
	Error         string                `json:"error,omitempty"`
}

// session binds one websocket connection to one engine. Engine updates are
// queued and written from a dedicated goroutine so a stalled socket never
// blocks the engine's state lock.
type session struct {
	conn   *websocket.Conn
	engine *engine.Engine
	deps   Dependencies
	logger *slog.Logger

	updates chan engine.Update
	done    chan struct{}
	writeMu sync.Mutex
}

// handleWS upgrades the connection and runs the session command loop.
// Identity comes from the X-User-ID and X-User-Role headers; a missing
// identity is rejected before the upgrade.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		http.Error(w, "missing X-User-ID", http.StatusUnauthorized)
		return
	}
	role := r.Header.Get("X-User-Role")
	if role == "" {
		role = engine.RoleStudent
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.deps.Logger.Error("websocket upgrade failed", "error", err)
		return
	}

	sess := &session{
		conn:    conn,
		deps:    s.deps,
		logger:  s.deps.Logger.With("user_id", userID),
		updates: make(chan engine.Update, updateQueueSize),
		done:    make(chan struct{}),
	}
	sess.engine = engine.New(userID, role, s.deps.Store, s.deps.Generator, s.deps.Settings, s.deps.Logger)
	sess.engine.SetSink(sess.forward)

	sess.run(r.Context())
}

// forward queues one engine update for the writer goroutine. The engine calls
// this under its state lock, so it never blocks: when the client cannot keep
// up the update is dropped.
func (s *session) forward(u engine.Update) {
	select {
	case s.updates <- u:
	default:
		s.logger.Warn("dropping update for slow client", "kind", u.Kind)
	}
}

// writeLoop drains queued updates onto the socket until the session ends.
func (s *session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case u := <-s.updates:
			s.send(event{Update: u})
		}
	}
}

func (s *session) send(ev event) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(ev); err != nil {
		s.logger.Debug("session write failed", "error", err)
	}
}

func (s *session) sendError(err error) {
	s.send(event{Update: engine.Update{Kind: engine.UpdateNotice}, Error: err.Error()})
}

func (s *session) run(ctx context.Context) {
	defer s.conn.Close()
	defer close(s.done)
	go s.writeLoop()
	s.logger.Info("session opened")

	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err := s.engine.LoadConversations(loadCtx)
	cancel()
	if err != nil {
		// Initial-load failure blocks the view; the client offers a retry
		// by reconnecting.
		s.logger.Error("initial load failed", "error", err)
		s.sendError(err)
		return
	}
	s.sendState()

	for {
		var cmd command
		if err := s.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("session closed unexpectedly", "error", err)
			} else {
				s.logger.Info("session closed")
			}
			return
		}
		s.dispatch(ctx, cmd)
	}
}

// sendState pushes a full snapshot of the session's lists.
func (s *session) sendState() {
	folded := s.deps.Settings.SidebarFolded()
	s.send(event{
		Update:        engine.Update{Kind: engine.UpdateConversations},
		Conversations: s.engine.Conversations(),
		Notes:         s.engine.Notes(),
		Assignments:   s.engine.Assignments(),
		Models:        s.deps.Generator.Models(),
		Model:         s.deps.Settings.CurrentModel(),
		SidebarFolded: &folded,
	})
}

func (s *session) dispatch(ctx context.Context, cmd command) {
	start := time.Now()
	var err error

	switch cmd.Op {
	case "send":
		// Streaming may outlive several other commands; run it off the loop.
		go func() {
			if sendErr := s.engine.SendMessage(ctx, cmd.Content); sendErr != nil {
				if errors.Is(sendErr, engine.ErrBusy) {
					s.sendError(sendErr)
				}
				// Other generation failures already surface as a synthetic
				// assistant message.
			}
		}()
	case "stop":
		s.engine.StopGenerating()
	case "select_conversation":
		err = s.engine.SelectConversation(ctx, cmd.ConversationID)
		if err == nil {
			s.send(event{
				Update:   engine.Update{Kind: engine.UpdateSelection, ConversationID: cmd.ConversationID},
				Messages: s.engine.Messages(cmd.ConversationID),
			})
		}
	case "select_note":
		s.engine.SelectNote(cmd.NoteID)
	case "delete":
		err = s.engine.DeleteConversation(ctx, cmd.ConversationID)
	case "rename":
		err = s.engine.RenameConversation(ctx, cmd.ConversationID, cmd.Title)
	case "pin":
		err = s.engine.TogglePin(ctx, cmd.ConversationID)
	case "save_note":
		_, err = s.engine.SaveNote(ctx, cmd.Title, cmd.Content)
	case "delete_note":
		err = s.engine.DeleteNote(ctx, cmd.NoteID)
	case "generate_quiz":
		_, err = s.engine.GenerateQuiz(ctx)
	case "start_assignment":
		_, err = s.engine.StartAssignment(cmd.AssignmentID)
	case "answer":
		_, err = s.engine.AnswerQuestion(cmd.Option)
	case "finish_quiz":
		err = s.engine.FinishQuiz(ctx)
	case "set_model":
		if !s.deps.Generator.Knows(cmd.Model) {
			err = errors.New("unknown model: " + cmd.Model)
			break
		}
		err = s.deps.Settings.SetModel(ctx, cmd.Model)
	case "set_sidebar":
		s.deps.Settings.SetSidebarFolded(ctx, cmd.Folded)
	case "list":
		if err = s.engine.LoadNotes(ctx); err == nil {
			err = s.engine.LoadAssignments(ctx)
		}
		if err == nil {
			s.sendState()
		}
	default:
		err = errors.New("unknown op: " + cmd.Op)
	}

	duration := time.Since(start)
	attrs := []any{"op", cmd.Op, "duration_ms", duration.Milliseconds()}
	if err != nil {
		s.logger.Error("command failed", append(attrs, "error", err)...)
		s.sendError(err)
	} else if duration > slowRequestThreshold {
		s.logger.Warn("slow command", attrs...)
	} else {
		s.logger.Debug("command completed", attrs...)
	}
}

// handleModels lists the registered model identifiers and the selection.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"models":   s.deps.Generator.Models(),
		"selected": s.deps.Settings.CurrentModel(),
	})
}

// handleStats reports the collector's aggregated operation statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.deps.Metrics.Snapshot())
}
