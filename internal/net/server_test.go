package net

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/gorilla/websocket"

	"github.com/Prayush09/ZiDraw/internal/auth"
	"github.com/Prayush09/ZiDraw/internal/store"
)

type failingStore struct {
	*store.MemoryStore
}

func (failingStore) Append(context.Context, string, string, string) error {
	return errors.New("database unavailable")
}

type testServer struct {
	*httptest.Server
	server *Server
	auth   *auth.JWTAuthenticator
	store  store.Store
}

func newTestServer(t *testing.T, st store.Store) *testServer {
	a := auth.NewJWTAuthenticator("test-secret")
	settings := DefaultTransportSettings()
	settings.PingInterval = 500 * time.Millisecond
	settings.PongWait = 2 * time.Second
	srv := NewServer(a, st, settings)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, server: srv, auth: a, store: st}
}

func (ts *testServer) token(t *testing.T, subject string) string {
	token, err := ts.auth.Mint(subject, time.Hour)
	assert.Equal(t, err, nil)
	return token
}

func (ts *testServer) dial(t *testing.T, token string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=" + token
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.Equal(t, err, nil)
	t.Cleanup(func() { c.Close() })
	return c
}

func (ts *testServer) join(t *testing.T, roomID string, subjects ...string) []*websocket.Conn {
	conns := []*websocket.Conn{}
	for _, subject := range subjects {
		c := ts.dial(t, ts.token(t, subject))
		send(t, c, Frame{Type: FrameJoinRoom, RoomID: RoomID(roomID)})
		conns = append(conns, c)
	}
	ts.waitMembers(t, roomID, len(subjects))
	return conns
}

func (ts *testServer) waitMembers(t *testing.T, roomID string, n int) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ts.server.Registry().Members(roomID) == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("room %s has %d members, want %d", roomID, ts.server.Registry().Members(roomID), n)
}

func send(t *testing.T, c *websocket.Conn, f Frame) {
	assert.Equal(t, c.WriteMessage(websocket.TextMessage, f.Encode()), nil)
}

func receive(t *testing.T, c *websocket.Conn) Frame {
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := c.ReadMessage()
	assert.Equal(t, err, nil)
	var f Frame
	assert.Equal(t, json.Unmarshal(data, &f), nil)
	return f
}

// expectQuiet fails if a frame arrives within d. The connection is not
// usable for reads afterwards.
func expectQuiet(t *testing.T, c *websocket.Conn, d time.Duration) {
	c.SetReadDeadline(time.Now().Add(d))
	_, data, err := c.ReadMessage()
	if err == nil {
		t.Fatalf("unexpected frame %s", data)
	}
}

func TestAuthFailureClosesConnection(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore())

	for _, token := range []string{"", "not-a-jwt"} {
		c := ts.dial(t, token)
		f := receive(t, c)
		assert.Equal(t, f.Type, FrameError)
		assert.Equal(t, f.Message, "Invalid token")

		c.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, err := c.ReadMessage()
		assert.Equal(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), true)
	}
	assert.Equal(t, ts.server.Sessions(), int64(0))
	assert.Equal(t, ts.server.Registry().Stats().Rooms, 0)
}

func TestBroadcastExcludesSender(t *testing.T) {
	st := store.NewMemoryStore()
	ts := newTestServer(t, st)
	conns := ts.join(t, "1", "alice", "bob", "carol")
	alice, bob, carol := conns[0], conns[1], conns[2]

	op := `{"op":"create-rect","shape":{"type":"rect","id":"r1","x":10,"y":10,"width":50,"height":40}}`
	send(t, alice, Frame{Type: FrameChat, RoomID: "1", Message: op})

	for _, c := range []*websocket.Conn{bob, carol} {
		f := receive(t, c)
		assert.Equal(t, f.Type, FrameChat)
		assert.Equal(t, f.RoomID, RoomID("1"))
		assert.Equal(t, f.Message, op)
	}
	expectQuiet(t, alice, 200*time.Millisecond)

	// persisted before it was broadcast
	records, err := st.List(context.Background(), "1")
	assert.Equal(t, err, nil)
	assert.Equal(t, len(records), 1)
	assert.Equal(t, records[0].UserID, "alice")
	assert.Equal(t, records[0].Message, op)
}

func TestNumericRoomIdMatchesString(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore())
	a := ts.dial(t, ts.token(t, "a"))
	b := ts.dial(t, ts.token(t, "b"))
	assert.Equal(t, a.WriteMessage(websocket.TextMessage, []byte(`{"type":"join_room","roomId":7}`)), nil)
	assert.Equal(t, b.WriteMessage(websocket.TextMessage, []byte(`{"type":"join_room","roomId":"7"}`)), nil)
	ts.waitMembers(t, "7", 2)

	send(t, a, Frame{Type: FrameChat, RoomID: "7", Message: "m"})
	assert.Equal(t, receive(t, b).Message, "m")
}

func TestPersistFailureNotifiesSenderOnly(t *testing.T) {
	ts := newTestServer(t, failingStore{store.NewMemoryStore()})
	conns := ts.join(t, "1", "alice", "bob")

	send(t, conns[0], Frame{Type: FrameChat, RoomID: "1", Message: "m"})

	f := receive(t, conns[0])
	assert.Equal(t, f.Type, FrameError)
	assert.Equal(t, f.RoomID, RoomID("1"))
	expectQuiet(t, conns[1], 200*time.Millisecond)
}

func TestMalformedFramesAreDropped(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore())
	conns := ts.join(t, "1", "alice", "bob")
	alice, bob := conns[0], conns[1]

	for _, bad := range []string{`garbage`, `{"type":"chat"}`, `{"type":"chat","roomId":"1"}`, `{"type":"nope","roomId":"1"}`} {
		assert.Equal(t, alice.WriteMessage(websocket.TextMessage, []byte(bad)), nil)
	}
	send(t, alice, Frame{Type: FrameChat, RoomID: "1", Message: "ok"})

	// the connection survived and only the valid frame was relayed
	assert.Equal(t, receive(t, bob).Message, "ok")
	assert.Equal(t, ts.server.Sessions(), int64(2))
}

func TestClearCanvasPurgesAndBroadcasts(t *testing.T) {
	st := store.NewMemoryStore()
	ts := newTestServer(t, st)
	conns := ts.join(t, "1", "alice", "bob")
	alice, bob := conns[0], conns[1]

	send(t, alice, Frame{Type: FrameChat, RoomID: "1", Message: "m1"})
	assert.Equal(t, receive(t, bob).Message, "m1")

	send(t, alice, Frame{Type: FrameClearCanvas, RoomID: "1"})
	f := receive(t, bob)
	assert.Equal(t, f.Type, FrameClearCanvas)
	assert.Equal(t, f.RoomID, RoomID("1"))

	records, _ := st.List(context.Background(), "1")
	assert.Equal(t, len(records), 0)
}

func TestLeaveRoomStopsDelivery(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore())
	conns := ts.join(t, "1", "alice", "bob")

	send(t, conns[1], Frame{Type: FrameLeaveRoom, RoomID: "1"})
	ts.waitMembers(t, "1", 1)

	send(t, conns[0], Frame{Type: FrameChat, RoomID: "1", Message: "m"})
	expectQuiet(t, conns[1], 200*time.Millisecond)
}

func TestCloseDropsMemberships(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore())
	c := ts.dial(t, ts.token(t, "alice"))
	for _, room := range []string{"1", "2", "3"} {
		send(t, c, Frame{Type: FrameJoinRoom, RoomID: RoomID(room)})
	}
	ts.waitMembers(t, "3", 1)

	c.Close()
	for _, room := range []string{"1", "2", "3"} {
		ts.waitMembers(t, room, 0)
	}
	assert.Equal(t, ts.server.Registry().Stats().Rooms, 0)
}

func TestChatsEndpoint(t *testing.T) {
	st := store.NewMemoryStore()
	ts := newTestServer(t, st)
	st.Append(context.Background(), "5", "alice", "first")
	st.Append(context.Background(), "5", "bob", "second")

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/chats/5", nil)
	res, err := http.DefaultClient.Do(req)
	assert.Equal(t, err, nil)
	res.Body.Close()
	assert.Equal(t, res.StatusCode, http.StatusForbidden)

	req.Header.Set("Authorization", "Bearer "+ts.token(t, "alice"))
	res, err = http.DefaultClient.Do(req)
	assert.Equal(t, err, nil)
	defer res.Body.Close()
	assert.Equal(t, res.StatusCode, http.StatusOK)

	var body struct {
		Messages []store.Record `json:"messages"`
	}
	assert.Equal(t, json.NewDecoder(res.Body).Decode(&body), nil)
	assert.Equal(t, len(body.Messages), 2)
	assert.Equal(t, body.Messages[0].Message, "first")
	assert.Equal(t, body.Messages[1].UserID, "bob")
}

func TestDeleteEndpoint(t *testing.T) {
	st := store.NewMemoryStore()
	ts := newTestServer(t, st)
	st.Append(context.Background(), "5", "alice", "first")

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/chat/delete", bytes.NewBufferString(`{"roomId":5}`))
	req.Header.Set("Authorization", "Bearer "+ts.token(t, "alice"))
	res, err := http.DefaultClient.Do(req)
	assert.Equal(t, err, nil)
	res.Body.Close()
	assert.Equal(t, res.StatusCode, http.StatusOK)

	records, _ := st.List(context.Background(), "5")
	assert.Equal(t, len(records), 0)
}
