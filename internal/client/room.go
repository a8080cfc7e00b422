package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang/glog"

	zinet "github.com/Prayush09/ZiDraw/internal/net"
	"github.com/Prayush09/ZiDraw/internal/state"
)

// Sink receives the room's state. board.Machine is one.
type Sink interface {
	Load(ops []state.Op)
	Apply(op state.Op)
}

type RoomOptions struct {
	Server string
	Token  string
	RoomID string

	// Dispatch runs f on the goroutine that owns the sink. Calls must run
	// in the order they were dispatched. Nil runs f inline.
	Dispatch func(f func())
	// OnError is told about error frames from the server.
	OnError func(message string)

	Transport *zinet.TransportSettings
}

// Room is a client membership in one room: a websocket carrying live ops
// plus the log fetched when it joined.
type Room struct {
	opts RoomOptions
	sink Sink
	conn *Conn

	mu       sync.Mutex
	loaded   bool
	buffered []state.Op
}

// JoinRoom connects, joins the room, waits until the server has registered
// the join, then fetches its log. Ops that arrive while the log is in flight
// are applied after it, so nothing published after the join is missed.
func JoinRoom(ctx context.Context, opts RoomOptions, sink Sink) (*Room, error) {
	if opts.Dispatch == nil {
		opts.Dispatch = func(f func()) { f() }
	}
	if opts.OnError == nil {
		opts.OnError = func(message string) {
			glog.Warningf("[client] server error: %s", message)
		}
	}
	r := &Room{opts: opts, sink: sink}

	conn, err := Dial(ctx, opts.Server, opts.Token, opts.Transport, r.handle)
	if err != nil {
		return nil, err
	}
	r.conn = conn
	if !conn.Send(zinet.Frame{Type: zinet.FrameJoinRoom, RoomID: zinet.RoomID(opts.RoomID)}) {
		conn.Close()
		return nil, fmt.Errorf("join room %s: %w", opts.RoomID, ErrClosed)
	}
	if err := conn.Sync(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("join room %s: %w", opts.RoomID, err)
	}

	ops, err := FetchLog(ctx, opts.Server, opts.Token, opts.RoomID)
	if err != nil {
		conn.Close()
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	pending := r.buffered
	r.buffered = nil
	r.loaded = true
	r.opts.Dispatch(func() {
		r.sink.Load(ops)
		for _, op := range pending {
			r.sink.Apply(op)
		}
	})
	glog.Infof("[client] joined room %s with %d logged and %d live ops", opts.RoomID, len(ops), len(pending))
	return r, nil
}

func (r *Room) handle(f zinet.Frame) {
	var op state.Op
	switch f.Type {
	case zinet.FrameError:
		r.opts.Dispatch(func() { r.opts.OnError(f.Message) })
		return
	case zinet.FrameChat:
		if string(f.RoomID) != r.opts.RoomID {
			return
		}
		decoded, err := state.DecodeOp(f.Message)
		if err != nil {
			glog.Warningf("[client] dropping op in room %s: %v", f.RoomID, err)
			return
		}
		op = decoded
	case zinet.FrameClearCanvas:
		if string(f.RoomID) != r.opts.RoomID {
			return
		}
		op = state.NewClear("")
	default:
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded {
		r.buffered = append(r.buffered, op)
		return
	}
	r.opts.Dispatch(func() { r.sink.Apply(op) })
}

// Publish sends op to the room's other members. It never blocks and reports
// whether the op was queued.
func (r *Room) Publish(op state.Op) bool {
	if op.Kind == state.OpClearRoom {
		return r.conn.Send(zinet.Frame{Type: zinet.FrameClearCanvas, RoomID: zinet.RoomID(r.opts.RoomID)})
	}
	message, err := state.EncodeOp(op)
	if err != nil {
		glog.Errorf("[client] not sending %s: %v", op.Kind, err)
		return false
	}
	return r.conn.Send(zinet.Frame{Type: zinet.FrameChat, RoomID: zinet.RoomID(r.opts.RoomID), Message: message})
}

// Done is closed when the connection to the server is gone.
func (r *Room) Done() <-chan struct{} {
	return r.conn.Closed()
}

// Leave sends leave_room and closes the connection.
func (r *Room) Leave() {
	r.conn.Send(zinet.Frame{Type: zinet.FrameLeaveRoom, RoomID: zinet.RoomID(r.opts.RoomID)})
	r.conn.Close()
}
