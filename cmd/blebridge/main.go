// Command blebridge serves the BLE bridge console on a serial port.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/blebridge/internal/bridge"
	"github.com/banshee-data/blebridge/internal/config"
	"github.com/banshee-data/blebridge/internal/console"
	"github.com/banshee-data/blebridge/internal/db"
	"github.com/banshee-data/blebridge/internal/monitoring"
	"github.com/banshee-data/blebridge/internal/radio"
	"github.com/banshee-data/blebridge/internal/radio/ble"
	"github.com/banshee-data/blebridge/internal/radio/stub"
	"github.com/banshee-data/blebridge/internal/serialport"
	"github.com/banshee-data/blebridge/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a JSON bridge config file")
	port        = flag.String("port", config.DefaultSerialPort, "Serial port carrying the console")
	baud        = flag.Int("baud", serialport.DefaultBaudRate, "Serial baud rate")
	devMode     = flag.Bool("dev", false, "Use the in-memory radio with a peer already connected")
	loopback    = flag.Bool("loopback", false, "In dev mode, echo written frames back as received frames")
	dbPath      = flag.String("db", "", "Record the console transcript to this sqlite file")
	listen      = flag.String("listen", "", "Debug HTTP listen address (e.g. localhost:8080)")
	trace       = flag.Bool("trace", false, "Log every command and reply")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

// loadConfig reads -config, if given, and applies the flags that were set
// explicitly on the command line on top of it.
func loadConfig(fs *flag.FlagSet) (*config.BridgeConfig, error) {
	cfg := &config.BridgeConfig{}
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadBridgeConfig(*configPath); err != nil {
			return nil, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.SetSerialPort(*port)
		case "baud":
			cfg.SetBaudRate(*baud)
		case "loopback":
			cfg.SetLoopback(*loopback)
		case "db":
			cfg.SetTranscriptPath(*dbPath)
		case "listen":
			cfg.SetDebugListen(*listen)
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// adminRouter is implemented by every component that publishes debug pages.
type adminRouter interface {
	AttachAdminRoutes(mux *http.ServeMux)
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *trace {
		monitoring.SetTracer(log.Printf)
	}

	cfg, err := loadConfig(flag.CommandLine)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	serialPort, err := serialport.Open(cfg.GetSerialPort(), cfg.PortOptions())
	if err != nil {
		log.Fatalf("failed to open serial port: %v", err)
	}
	defer serialPort.Close()
	log.Printf("opened %s at %s", cfg.GetSerialPort(), cfg.PortOptions())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	var routers []adminRouter

	var adapter radio.Adapter
	adapterName := "ble"
	if *devMode {
		s := stub.New(stub.Options{Connected: true, Loopback: cfg.GetLoopback()})
		routers = append(routers, s)
		adapter = s
		adapterName = "stub"
	} else {
		b := ble.New(nil)
		adapter = b
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("BLE notification pump stopped: %v", err)
			}
		}()
	}

	opts := []bridge.Option{bridge.WithTimeouts(cfg.Timeouts())}

	var transcript *db.DB
	if path := cfg.GetTranscriptPath(); path != "" {
		transcript, err = db.Open(path)
		if err != nil {
			log.Fatalf("failed to open transcript database: %v", err)
		}
		defer transcript.Close()

		sessionID, err := transcript.StartSession(ctx, db.Session{
			Version:    version.Version,
			SerialPort: cfg.GetSerialPort(),
			Adapter:    adapterName,
		})
		if err != nil {
			log.Fatalf("failed to start transcript session: %v", err)
		}
		log.Printf("recording transcript session %s to %s", sessionID, path)
		opts = append(opts, bridge.WithRecorder(transcript, sessionID))
	}

	b := bridge.New(console.New(serialPort, nil), adapter, opts...)
	routers = append(routers, b)

	if addr := cfg.GetDebugListen(); addr != "" {
		mux := http.NewServeMux()
		debug := tsweb.Debugger(mux)
		debug.KV("Version", version.String())
		debug.KV("Serial port", fmt.Sprintf("%s (%s)", cfg.GetSerialPort(), cfg.PortOptions()))
		debug.KV("Radio", adapterName)
		for _, r := range routers {
			r.AttachAdminRoutes(mux)
		}
		if transcript != nil {
			if err := transcript.AttachAdminRoutes(mux); err != nil {
				log.Fatalf("failed to attach transcript routes: %v", err)
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			serveDebug(ctx, addr, mux)
		}()
	}

	if err := b.Announce(); err != nil {
		log.Fatalf("failed to write banner: %v", err)
	}

	if err := b.Run(ctx, cfg.GetPollInterval()); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("bridge stopped: %v", err)
		stop()
	}

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

// serveDebug runs the debug HTTP server until ctx is done.
func serveDebug(ctx context.Context, addr string, handler http.Handler) {
	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("debug server failed: %v", err)
		}
	}()
	log.Printf("debug server listening on %s", addr)

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	log.Printf("HTTP server routine stopped")
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\nServes the BLE bridge console on a serial port.\n\n", os.Args[0])
		flag.PrintDefaults()
	}
}
