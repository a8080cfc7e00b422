package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	zinet "github.com/Prayush09/ZiDraw/internal/net"
)

var ErrClosed = errors.New("connection closed")

// outbound is a queued text frame, or a ping when ping is set.
type outbound struct {
	data []byte
	ping bool
}

// Conn is the client end of a room server websocket. Frames are queued by
// Send and written by a single writer goroutine; inbound frames are handed
// to the handler from a single reader goroutine.
type Conn struct {
	ws       *websocket.Conn
	settings *zinet.TransportSettings
	send     chan outbound
	done     chan struct{}
	closed   chan struct{}
	once     sync.Once

	syncSeq atomic.Uint64
	syncMu  sync.Mutex
	waiters map[string]chan struct{}
}

// wsURL turns an http(s) server base into its websocket endpoint.
func wsURL(server, token string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("bad server url %q: %w", server, err)
	}
	switch u.Scheme {
	case "http", "":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("bad server url %q: unsupported scheme %q", server, u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Dial opens a websocket to the server and starts the read and write loops.
// handle is called for every well formed inbound frame.
func Dial(ctx context.Context, server, token string, settings *zinet.TransportSettings, handle func(zinet.Frame)) (*Conn, error) {
	if settings == nil {
		settings = zinet.DefaultTransportSettings()
	}
	target, err := wsURL(server, token)
	if err != nil {
		return nil, err
	}
	ws, res, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		if res != nil && res.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("dial %s: %w", server, ErrForbidden)
		}
		return nil, fmt.Errorf("dial %s: %w", server, err)
	}
	c := &Conn{
		ws:       ws,
		settings: settings,
		send:     make(chan outbound, settings.SendBuffer),
		done:     make(chan struct{}),
		closed:   make(chan struct{}),
		waiters:  make(map[string]chan struct{}),
	}
	ws.SetPongHandler(c.pong)
	go c.writeLoop()
	go c.readLoop(handle)
	glog.Infof("[client] connected to %s", server)
	return c, nil
}

// Send queues f without blocking. It reports false when the connection is
// closed or the queue is full.
func (c *Conn) Send(f zinet.Frame) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- outbound{data: f.Encode()}:
		return true
	default:
		glog.Warningf("[client] send queue full, dropping %s frame", f.Type)
		return false
	}
}

// Sync returns once the server has read every frame queued before the call.
// It pings behind the queued frames and waits for the matching pong, which
// the server sends from its read loop after handling what came before.
func (c *Conn) Sync(ctx context.Context) error {
	token := "sync-" + strconv.FormatUint(c.syncSeq.Add(1), 10)
	ack := make(chan struct{})
	c.syncMu.Lock()
	c.waiters[token] = ack
	c.syncMu.Unlock()
	defer func() {
		c.syncMu.Lock()
		delete(c.waiters, token)
		c.syncMu.Unlock()
	}()

	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case <-c.done:
		return ErrClosed
	case c.send <- outbound{data: []byte(token), ping: true}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Conn) pong(appData string) error {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()
	if ack, ok := c.waiters[appData]; ok {
		close(ack)
		delete(c.waiters, appData)
	}
	return nil
}

// Close stops both loops after sending a close message. It is safe to call
// more than once.
func (c *Conn) Close() {
	c.once.Do(func() { close(c.done) })
}

// Closed is closed once the read loop has ended.
func (c *Conn) Closed() <-chan struct{} {
	return c.closed
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(c.settings.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			// leave_room is usually still queued
			c.flush()
			c.ws.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
			c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case out := <-c.send:
			if err := c.write(out); err != nil {
				glog.Infof("[client] write failed: %v", err)
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.settings.WriteTimeout)); err != nil {
				glog.Infof("[client] ping failed: %v", err)
				return
			}
		}
	}
}

func (c *Conn) write(out outbound) error {
	deadline := time.Now().Add(c.settings.WriteTimeout)
	if out.ping {
		return c.ws.WriteControl(websocket.PingMessage, out.data, deadline)
	}
	c.ws.SetWriteDeadline(deadline)
	return c.ws.WriteMessage(websocket.TextMessage, out.data)
}

func (c *Conn) flush() {
	for {
		select {
		case out := <-c.send:
			if err := c.write(out); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Conn) readLoop(handle func(zinet.Frame)) {
	defer func() {
		c.Close()
		close(c.closed)
	}()
	c.ws.SetReadLimit(c.settings.MaxMessageBytes)

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				glog.Infof("[client] read failed: %v", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		f, err := zinet.ParseServerFrame(data)
		if err != nil {
			glog.Warningf("[client] dropping frame: %v", err)
			continue
		}
		handle(f)
	}
}
