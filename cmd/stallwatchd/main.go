// stallwatchd runs a watchdog around a demo task loop and serves the
// detected stall events over HTTP and WebSocket. It exists to exercise
// and demonstrate the library; real deployments embed the watchdog
// package around their own event loop instead.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stallwatch/stallwatch/config"
	"github.com/stallwatch/stallwatch/exempt"
	"github.com/stallwatch/stallwatch/watchdog"
	"github.com/stallwatch/stallwatch/wsfeed"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("No config file at %s, using defaults", *configPath)
			cfg = config.Default()
		} else {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	if *port > 0 {
		cfg.Server.Port = *port
	}

	// The monitored context: a single goroutine draining a task queue,
	// standing in for an embedding application's event loop.
	tasks := make(chan func(), 64)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		for task := range tasks {
			task()
		}
	}()
	poster := watchdog.PosterFunc(func(task func()) {
		select {
		case tasks <- task:
		default:
			// A full queue means the loop is hopelessly behind; the
			// pending probe already measures that.
		}
	})

	history := wsfeed.NewHistory(cfg.Feed.HistorySize)
	broadcaster := wsfeed.NewBroadcaster(history, cfg.Feed.BroadcastThrottle)

	// Fan events out to both the log and the WebSocket feed.
	feedListener := wsfeed.NewListener(broadcaster)
	logListener := watchdog.NewLogListener(nil)
	opts := []watchdog.Option{
		watchdog.WithThreshold(cfg.Watchdog.Threshold),
		watchdog.WithListener(watchdog.ListenerFunc(func(d *watchdog.Detector, ev *watchdog.StallEvent) {
			logListener.OnStall(d, ev)
			feedListener.OnStall(d, ev)
		})),
	}
	if cfg.Watchdog.InspectionInterval > 0 {
		opts = append(opts, watchdog.WithInspectionInterval(cfg.Watchdog.InspectionInterval))
	}
	if cfg.Watchdog.SuppressWhileTraced {
		opts = append(opts, watchdog.WithExemption(exempt.NewTracedExemption()))
	}
	if cfg.Watchdog.CPULoadLimit > 0 {
		opts = append(opts, watchdog.WithExemption(exempt.NewSystemLoadExemption(cfg.Watchdog.CPULoadLimit)))
	}

	detector, err := watchdog.New(poster, opts...)
	if err != nil {
		log.Fatalf("Failed to build detector: %v", err)
	}

	if err := detector.Start(cfg.Watchdog.StartDelay); err != nil {
		log.Fatalf("Failed to start detection: %v", err)
	}
	log.Printf("Watchdog started (threshold=%v, interval=%v)",
		detector.Threshold(), detector.InspectionInterval())

	mux := http.NewServeMux()
	feedServer := wsfeed.NewServer(broadcaster, history, nil)
	feedServer.SetupRoutes(mux)
	mux.HandleFunc("/api/stall", handleStall(tasks))

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: mux,
	}
	go func() {
		log.Printf("Feed server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("Shutting down")

	detector.Close()
	srv.Close()
	close(tasks)
	<-loopDone
}

// handleStall lets operators provoke a detectable stall for end-to-end
// verification: POST /api/stall?for=2s posts a sleep onto the monitored
// loop.
func handleStall(tasks chan<- func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		d := 2 * time.Second
		if v := r.URL.Query().Get("for"); v != "" {
			parsed, err := time.ParseDuration(v)
			if err != nil || parsed <= 0 {
				http.Error(w, "invalid duration", http.StatusBadRequest)
				return
			}
			d = parsed
		}

		select {
		case tasks <- func() { time.Sleep(d) }:
			log.Printf("Stalling monitored loop for %v", d)
			w.WriteHeader(http.StatusAccepted)
		default:
			http.Error(w, "monitored loop queue full", http.StatusServiceUnavailable)
		}
	}
}
