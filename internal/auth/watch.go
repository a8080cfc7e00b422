package auth

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/golang/glog"
)

// ReadSecretFile returns the trimmed contents of path.
func ReadSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", path)
	}
	return secret, nil
}

// WatchSecretFile loads path into a and reloads it whenever the file is
// written or replaced, until ctx is done. The parent directory is watched so
// editors and secret mounts that swap the file are seen.
func WatchSecretFile(ctx context.Context, a *JWTAuthenticator, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	secret, err := ReadSecretFile(absPath)
	if err != nil {
		return err
	}
	a.SetSecret(secret)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(absPath), err)
	}

	go func() {
		defer watcher.Close()
		var reload *time.Timer
		for {
			select {
			case <-ctx.Done():
				if reload != nil {
					reload.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if name, _ := filepath.Abs(event.Name); name != absPath {
					continue
				}
				// writes often arrive in bursts
				if reload != nil {
					reload.Stop()
				}
				reload = time.AfterFunc(100*time.Millisecond, func() {
					secret, err := ReadSecretFile(absPath)
					if err != nil {
						glog.Warningf("[auth] secret reload failed: %v", err)
						return
					}
					a.SetSecret(secret)
					glog.Infof("[auth] secret reloaded from %s", absPath)
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				glog.Warningf("[auth] watcher error: %v", err)
			}
		}
	}()

	glog.Infof("[auth] watching secret file %s", absPath)
	return nil
}
