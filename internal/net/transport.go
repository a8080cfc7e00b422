package net

import (
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/Prayush09/ZiDraw/internal/config"
)

type TransportSettings struct {
	SendBuffer      int
	WriteTimeout    time.Duration
	PingInterval    time.Duration
	PongWait        time.Duration
	MaxMessageBytes int64
}

func DefaultTransportSettings() *TransportSettings {
	return &TransportSettings{
		SendBuffer:      256,
		WriteTimeout:    5 * time.Second,
		PingInterval:    30 * time.Second,
		PongWait:        60 * time.Second,
		MaxMessageBytes: 1 << 20,
	}
}

func TransportSettingsFromConfig(cfg config.TransportConfig) *TransportSettings {
	settings := DefaultTransportSettings()
	if cfg.SendBuffer > 0 {
		settings.SendBuffer = cfg.SendBuffer
	}
	if cfg.WriteTimeout > 0 {
		settings.WriteTimeout = cfg.WriteTimeout.Std()
	}
	if cfg.PingInterval > 0 {
		settings.PingInterval = cfg.PingInterval.Std()
	}
	if cfg.PongWait > 0 {
		settings.PongWait = cfg.PongWait.Std()
	}
	if cfg.MaxMessageBytes > 0 {
		settings.MaxMessageBytes = cfg.MaxMessageBytes
	}
	return settings
}

// writeLoop drains the session queue onto the socket and keeps the peer alive
// with pings. Any write failure closes the socket, which ends the read loop.
func writeLoop(ws *websocket.Conn, sess *Session, settings *TransportSettings) {
	ticker := time.NewTicker(settings.PingInterval)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case <-sess.Done():
			ws.SetWriteDeadline(time.Now().Add(settings.WriteTimeout))
			ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-sess.send:
			ws.SetWriteDeadline(time.Now().Add(settings.WriteTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				glog.Infof("[ws] %s write failed: %v", sess.ID, err)
				return
			}
			glog.V(2).Infof("[ws] %s <- %s", sess.ID, data)
		case <-ticker.C:
			deadline := time.Now().Add(settings.WriteTimeout)
			if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				glog.Infof("[ws] %s ping failed: %v", sess.ID, err)
				return
			}
		}
	}
}

// readLoop hands each text message to handle until the socket fails or the
// peer goes quiet for longer than PongWait.
func readLoop(ws *websocket.Conn, sess *Session, settings *TransportSettings, handle func([]byte)) {
	ws.SetReadLimit(settings.MaxMessageBytes)
	ws.SetReadDeadline(time.Now().Add(settings.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(settings.PongWait))
	})

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				glog.Infof("[ws] %s read failed: %v", sess.ID, err)
			}
			return
		}
		ws.SetReadDeadline(time.Now().Add(settings.PongWait))
		if messageType != websocket.TextMessage {
			continue
		}
		glog.V(2).Infof("[ws] %s -> %s", sess.ID, data)
		handle(data)
	}
}
