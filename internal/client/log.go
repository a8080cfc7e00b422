package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/Prayush09/ZiDraw/internal/state"
	"github.com/Prayush09/ZiDraw/internal/store"
)

var ErrForbidden = errors.New("server rejected token")

var httpClient = &http.Client{Timeout: 15 * time.Second}

func endpoint(server string, parts ...string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("bad server url %q: %w", server, err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	path := strings.TrimSuffix(u.Path, "/")
	raw := strings.TrimSuffix(u.EscapedPath(), "/")
	for _, p := range parts {
		path += "/" + p
		raw += "/" + url.PathEscape(p)
	}
	u.Path = path
	u.RawPath = raw
	u.RawQuery = ""
	return u.String(), nil
}

func do(ctx context.Context, method, target, token string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	switch {
	case res.StatusCode == http.StatusForbidden || res.StatusCode == http.StatusUnauthorized:
		res.Body.Close()
		return nil, fmt.Errorf("%s %s: %w", method, target, ErrForbidden)
	case res.StatusCode != http.StatusOK:
		res.Body.Close()
		return nil, fmt.Errorf("%s %s: status %d", method, target, res.StatusCode)
	}
	return res, nil
}

// FetchLog downloads a room's operation log in order. Entries that do not
// decode as operations are skipped.
func FetchLog(ctx context.Context, server, token, roomID string) ([]state.Op, error) {
	target, err := endpoint(server, "api", "chats", roomID)
	if err != nil {
		return nil, err
	}
	res, err := do(ctx, http.MethodGet, target, token, nil)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var body struct {
		Messages []store.Record `json:"messages"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode room %s log: %w", roomID, err)
	}

	ops := make([]state.Op, 0, len(body.Messages))
	for _, rec := range body.Messages {
		op, err := state.DecodeOp(rec.Message)
		if err != nil {
			glog.Warningf("[client] skipping log entry %d of room %s: %v", rec.ID, roomID, err)
			continue
		}
		if op.Author == "" {
			op.Author = rec.UserID
		}
		ops = append(ops, op)
	}
	glog.V(1).Infof("[client] fetched %d ops for room %s", len(ops), roomID)
	return ops, nil
}

// PurgeLog empties a room's log without notifying connected peers.
func PurgeLog(ctx context.Context, server, token, roomID string) error {
	target, err := endpoint(server, "api", "chat", "delete")
	if err != nil {
		return err
	}
	body, err := json.Marshal(map[string]string{"roomId": roomID})
	if err != nil {
		return err
	}
	res, err := do(ctx, http.MethodPost, target, token, body)
	if err != nil {
		return err
	}
	return res.Body.Close()
}
