package net

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/Prayush09/ZiDraw/internal/auth"
	"github.com/Prayush09/ZiDraw/internal/store"
)

const (
	invalidTokenMessage  = "Invalid token"
	persistFailedMessage = "failed to persist operation"
)

type subjectKey struct{}

// Server authenticates websocket clients, routes their frames through the
// registry and serves the room log over HTTP.
type Server struct {
	auth     auth.Authenticator
	store    store.Store
	registry *Registry
	settings *TransportSettings
	upgrader websocket.Upgrader

	sessions atomic.Int64
}

func NewServer(authenticator auth.Authenticator, st store.Store, settings *TransportSettings) *Server {
	if settings == nil {
		settings = DefaultTransportSettings()
	}
	return &Server{
		auth:     authenticator,
		store:    st,
		registry: NewRegistry(),
		settings: settings,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// browsers on any origin may connect; the token is the gate
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) Registry() *Registry {
	return s.registry
}

// Sessions is the number of open websocket sessions.
func (s *Server) Sessions() int64 {
	return s.sessions.Load()
}

func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(accessLog)

	r.Methods(http.MethodGet).Path("/healthz").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Methods(http.MethodGet).Path("/").HandlerFunc(s.serveWS)
	r.Methods(http.MethodGet).Path("/ws").HandlerFunc(s.serveWS)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.requireBearer)
	api.Methods(http.MethodGet).Path("/chats/{roomId}").HandlerFunc(s.listChats)
	api.Methods(http.MethodPost).Path("/chat/delete").HandlerFunc(s.deleteChats)
	return r
}

func accessLog(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(handler, w, r)
		glog.V(1).Infof("[http] %s %s %d %s", r.Method, r.URL.Path, m.Code, m.Duration)
	})
}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, err := s.auth.Verify(auth.TokenFromRequest(r))
		if err != nil {
			writeJSON(w, http.StatusForbidden, map[string]string{"message": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey{}, subject)))
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		glog.Warningf("[http] write response: %v", err)
	}
}

type chatsResponse struct {
	Messages []store.Record `json:"messages"`
}

func (s *Server) listChats(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	records, err := s.store.List(r.Context(), roomID)
	if err != nil {
		glog.Errorf("[http] list room %s: %v", roomID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "failed to load room"})
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	writeJSON(w, http.StatusOK, chatsResponse{Messages: records})
}

func (s *Server) deleteChats(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RoomID RoomID `json:"roomId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RoomID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "roomId is required"})
		return
	}
	// purged under the room's publish lock but not broadcast; members learn
	// about it from the next clearCanvas or their next log fetch
	roomID := string(body.RoomID)
	err := s.registry.Exclusive(roomID, func() error {
		return s.store.Purge(r.Context(), roomID)
	})
	if err != nil {
		glog.Errorf("[http] purge room %s: %v", body.RoomID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "failed to clear room"})
		return
	}
	subject, _ := r.Context().Value(subjectKey{}).(string)
	glog.Infof("[http] %s cleared room %s", subject, body.RoomID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "cleared"})
}

// serveWS runs one connection through connecting, authenticated, active and
// closed.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromRequest(r)

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Infof("[ws] upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}

	subject, err := s.auth.Verify(token)
	if err != nil {
		glog.Infof("[ws] rejecting %s: %v", r.RemoteAddr, err)
		deadline := time.Now().Add(s.settings.WriteTimeout)
		ws.SetWriteDeadline(deadline)
		ws.WriteMessage(websocket.TextMessage, errorFrame("", invalidTokenMessage).Encode())
		ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, invalidTokenMessage), deadline)
		ws.Close()
		return
	}

	sess := NewSession(subject, s.settings.SendBuffer)
	s.sessions.Add(1)
	glog.Infof("[ws] %s connected as %s from %s", sess.ID, subject, r.RemoteAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		s.registry.Drop(sess)
		sess.Close()
		s.sessions.Add(-1)
		glog.Infof("[ws] %s closed (%d frames dropped)", sess.ID, sess.Dropped())
	}()

	go writeLoop(ws, sess, s.settings)
	sess.setState(StateActive)
	readLoop(ws, sess, s.settings, func(data []byte) {
		s.handleFrame(ctx, sess, data)
	})
}

func (s *Server) handleFrame(ctx context.Context, sess *Session, data []byte) {
	frame, err := ParseFrame(data)
	if err != nil {
		glog.V(2).Infof("[ws] %s dropped frame: %v", sess.ID, err)
		return
	}
	roomID := string(frame.RoomID)

	switch frame.Type {
	case FrameJoinRoom:
		s.registry.Join(sess, roomID)
	case FrameLeaveRoom:
		s.registry.Leave(sess, roomID)
	case FrameChat:
		out := Frame{Type: FrameChat, RoomID: frame.RoomID, Message: frame.Message}
		s.publish(sess, out, func() error {
			return s.store.Append(ctx, roomID, sess.Subject, frame.Message)
		})
	case FrameClearCanvas:
		out := Frame{Type: FrameClearCanvas, RoomID: frame.RoomID}
		s.publish(sess, out, func() error {
			return s.store.Purge(ctx, roomID)
		})
	}
}

func (s *Server) publish(sess *Session, frame Frame, persist func() error) {
	n, err := s.registry.Publish(sess, string(frame.RoomID), frame.Encode(), persist)
	if err != nil {
		glog.Errorf("[ws] %s %s in room %s not persisted: %v", sess.ID, frame.Type, frame.RoomID, err)
		sess.Enqueue(errorFrame(frame.RoomID, persistFailedMessage).Encode())
		return
	}
	glog.V(2).Infof("[ws] %s %s in room %s to %d peers", sess.ID, frame.Type, frame.RoomID, n)
}
