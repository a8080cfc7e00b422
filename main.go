package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"fyne.io/fyne/v2"
	"github.com/docopt/docopt-go"
	"github.com/golang/glog"

	"github.com/Prayush09/ZiDraw/internal/auth"
	"github.com/Prayush09/ZiDraw/internal/client"
	"github.com/Prayush09/ZiDraw/internal/config"
	"github.com/Prayush09/ZiDraw/internal/export"
	zinet "github.com/Prayush09/ZiDraw/internal/net"
	"github.com/Prayush09/ZiDraw/internal/state"
	"github.com/Prayush09/ZiDraw/internal/store"
	"github.com/Prayush09/ZiDraw/internal/ui"
)

const ZiDrawVersion = "0.1.0"

const usage = `ZiDraw collaborative whiteboard.

Without --server the draw, export and clear commands use the first server
found on the local network.

Usage:
    zidraw serve [--config=<path>] [--listen=<addr>] [--verbosity=<level>]
    zidraw draw --room=<room> --token=<jwt> [--server=<url>] [--verbosity=<level>]
    zidraw export --room=<room> --token=<jwt> --out=<file> [--server=<url>] [--verbosity=<level>]
    zidraw clear --room=<room> --token=<jwt> [--server=<url>] [--verbosity=<level>]
    zidraw discover [--timeout=<seconds>]
    zidraw token --subject=<id> [--ttl=<duration>] [--config=<path>]
    zidraw -h | --help
    zidraw --version

Options:
    -h --help              Show this screen.
    --version              Show version.
    --config=<path>        Yaml config file. Defaults to $ZIDRAW_CONFIG.
    --listen=<addr>        Address to serve on, overriding the config.
    --room=<room>          Room id.
    --token=<jwt>          Bearer token for the server.
    --server=<url>         Server base url, e.g. http://10.0.0.2:8080
    --out=<file>           PDF file to write.
    --timeout=<seconds>    How long to browse for servers [default: 3].
    --subject=<id>         User id to put in the token.
    --ttl=<duration>       Token lifetime, 0 for none [default: 24h].
    --verbosity=<level>    Log verbosity.`

func main() {
	if err := mainInner(); err != nil {
		glog.Errorf("%v", err)
		glog.Flush()
		os.Exit(1)
	}
	glog.Flush()
}

func mainInner() error {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], ZiDrawVersion)
	if err != nil {
		return err
	}

	flag.Set("logtostderr", "true")
	flag.CommandLine.Parse(nil)
	if level, _ := opts.String("--verbosity"); level != "" {
		flag.Set("v", level)
	}

	if serve_, _ := opts.Bool("serve"); serve_ {
		return serve(opts)
	} else if draw_, _ := opts.Bool("draw"); draw_ {
		return draw(opts)
	} else if export_, _ := opts.Bool("export"); export_ {
		return exportRoom(opts)
	} else if clear_, _ := opts.Bool("clear"); clear_ {
		return clearRoom(opts)
	} else if discover_, _ := opts.Bool("discover"); discover_ {
		return discover(opts)
	} else if token_, _ := opts.Bool("token"); token_ {
		return mintToken(opts)
	}
	return nil
}

func loadConfig(opts docopt.Opts) (*config.Config, error) {
	if path, _ := opts.String("--config"); path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// secret resolves the signing key, preferring the secret file.
func secret(cfg *config.Config) (string, error) {
	if cfg.Auth.SecretFile != "" {
		return auth.ReadSecretFile(cfg.Auth.SecretFile)
	}
	if cfg.Auth.Secret == "" {
		return "", fmt.Errorf("no signing secret: set auth.secret, auth.secret_file or %s", config.EnvSecret)
	}
	return cfg.Auth.Secret, nil
}

func serve(opts docopt.Opts) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if listen, _ := opts.String("--listen"); listen != "" {
		cfg.Listen = listen
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if level, _ := opts.String("--verbosity"); level == "" && cfg.Log.Verbosity > 0 {
		flag.Set("v", strconv.Itoa(cfg.Log.Verbosity))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	authenticator := auth.NewJWTAuthenticator(cfg.Auth.Secret)
	if cfg.Auth.SecretFile != "" {
		if err := auth.WatchSecretFile(ctx, authenticator, cfg.Auth.SecretFile); err != nil {
			return err
		}
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	server := zinet.NewServer(authenticator, st, zinet.TransportSettingsFromConfig(cfg.Transport))

	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Listen, err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	stopStats, err := zinet.StartStats(server, cfg.Stats.Schedule)
	if err != nil {
		listener.Close()
		return err
	}
	defer stopStats()

	if cfg.Discovery.MDNS {
		advertiser, err := zinet.Advertise(cfg.Discovery.Instance, port)
		if err != nil {
			glog.Warningf("[mdns] not advertising: %v", err)
		} else {
			defer advertiser.Shutdown()
		}
	}

	httpServer := &http.Server{
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(listener)
	}()
	glog.Infof("[http] listening on %s, peers can reach http://%s:%d", listener.Addr(), zinet.GetOutgoingIP(), port)

	select {
	case <-ctx.Done():
		glog.Infof("[http] shutting down")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// serverURL returns --server, or browses the local network for one.
func serverURL(opts docopt.Opts) (string, error) {
	if server, _ := opts.String("--server"); server != "" {
		return server, nil
	}
	var found string
	err := zinet.Browse(2*time.Second, func(name, addr string) {
		if found == "" {
			glog.Infof("[mdns] using %s at %s", name, addr)
			found = "http://" + addr
		}
	})
	if err != nil {
		return "", fmt.Errorf("browse for servers: %w", err)
	}
	if found == "" {
		return "", errors.New("no server found on the local network, pass --server")
	}
	return found, nil
}

func draw(opts docopt.Opts) error {
	roomID, _ := opts.String("--room")
	token, _ := opts.String("--token")
	server, err := serverURL(opts)
	if err != nil {
		return err
	}
	author, err := auth.UnverifiedSubject(token)
	if err != nil {
		return err
	}

	var room atomic.Pointer[client.Room]
	board := ui.NewBoardWidget(author, func(op state.Op) {
		if r := room.Load(); r != nil && !r.Publish(op) {
			glog.Warningf("[client] %s not sent", op.Kind)
		}
	})
	app := ui.NewApp(fmt.Sprintf("ZiDraw - room %s", roomID), board)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.Run(func() error {
		r, err := client.JoinRoom(ctx, client.RoomOptions{
			Server:   server,
			Token:    token,
			RoomID:   roomID,
			Dispatch: fyne.Do,
			OnError:  app.SetStatus,
		}, board.Machine())
		if err != nil {
			return err
		}
		room.Store(r)
		go func() {
			<-r.Done()
			app.SetStatus("Disconnected from server")
		}()
		return nil
	}, func() {
		cancel()
		if r := room.Load(); r != nil {
			r.Leave()
		}
	})
	return nil
}

func exportRoom(opts docopt.Opts) error {
	roomID, _ := opts.String("--room")
	token, _ := opts.String("--token")
	out, _ := opts.String("--out")
	server, err := serverURL(opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ops, err := client.FetchLog(ctx, server, token, roomID)
	if err != nil {
		return err
	}
	shapes := state.Fold(ops).Shapes()
	if err := export.WriteFile(out, fmt.Sprintf("room %s", roomID), shapes); err != nil {
		return err
	}
	fmt.Printf("wrote %d shapes to %s\n", len(shapes), out)
	return nil
}

func clearRoom(opts docopt.Opts) error {
	roomID, _ := opts.String("--room")
	token, _ := opts.String("--token")
	server, err := serverURL(opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return client.PurgeLog(ctx, server, token, roomID)
}

func discover(opts docopt.Opts) error {
	seconds, err := opts.Int("--timeout")
	if err != nil {
		return fmt.Errorf("--timeout: %w", err)
	}
	count := 0
	err = zinet.Browse(time.Duration(seconds)*time.Second, func(name, addr string) {
		count++
		fmt.Printf("%s\thttp://%s\n", name, addr)
	})
	if err != nil {
		return err
	}
	if count == 0 {
		fmt.Println("no servers found")
	}
	return nil
}

func mintToken(opts docopt.Opts) error {
	subject, _ := opts.String("--subject")
	ttlStr, _ := opts.String("--ttl")
	ttl, err := time.ParseDuration(ttlStr)
	if err != nil {
		return fmt.Errorf("--ttl: %w", err)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	key, err := secret(cfg)
	if err != nil {
		return err
	}
	token, err := auth.NewJWTAuthenticator(key).Mint(subject, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
