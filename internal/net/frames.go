package net

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var ErrMalformedFrame = errors.New("malformed frame")

type FrameType string

const (
	FrameJoinRoom    FrameType = "join_room"
	FrameLeaveRoom   FrameType = "leave_room"
	FrameChat        FrameType = "chat"
	FrameClearCanvas FrameType = "clearCanvas"
	FrameError       FrameType = "error"
)

// RoomID is a room identifier. Clients send it as a string or a number; both
// normalize to the same string. Numbers are written in their shortest decimal
// form, so 7, 7.0 and 7e0 are one room.
type RoomID string

func (id *RoomID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RoomID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("room id: %w", err)
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return fmt.Errorf("room id: %w", err)
	}
	*id = RoomID(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

// Frame is one JSON text message on the websocket. Message carries an
// encoded operation for chat frames and a human readable reason for error
// frames.
type Frame struct {
	Type    FrameType `json:"type"`
	RoomID  RoomID    `json:"roomId,omitempty"`
	Message string    `json:"message,omitempty"`
}

// ParseFrame decodes an inbound frame and checks it carries the fields its
// type needs.
func ParseFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	switch f.Type {
	case FrameJoinRoom, FrameLeaveRoom, FrameClearCanvas:
		if f.RoomID == "" {
			return Frame{}, fmt.Errorf("%w: %s without roomId", ErrMalformedFrame, f.Type)
		}
	case FrameChat:
		if f.RoomID == "" || f.Message == "" {
			return Frame{}, fmt.Errorf("%w: chat needs roomId and message", ErrMalformedFrame)
		}
	default:
		return Frame{}, fmt.Errorf("%w: unknown type %q", ErrMalformedFrame, f.Type)
	}
	return f, nil
}

// ParseServerFrame decodes a frame sent by the server, which may also be an
// error frame.
func ParseServerFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if f.Type == FrameError {
		return f, nil
	}
	return ParseFrame(data)
}

func (f Frame) Encode() []byte {
	data, err := json.Marshal(f)
	if err != nil {
		// Frame holds only strings
		panic(err)
	}
	return data
}

func errorFrame(roomID RoomID, message string) Frame {
	return Frame{Type: FrameError, RoomID: roomID, Message: message}
}
