// Command socksrotate runs the rotating SOCKS5 forward-proxy gateway:
// it loads and probes a candidate proxy list, binds a seed listener,
// and rotates each listener's upstream proxy on a timer until it
// receives SIGINT or SIGTERM.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"socksrotate/internal/banner"
	"socksrotate/internal/catalog"
	"socksrotate/internal/config"
	"socksrotate/internal/gateway"
	"socksrotate/internal/probe"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("socksrotate: failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	target := probe.Target{
		Host:        cfg.ProbeTargetHost,
		Port:        cfg.ProbeTargetPort,
		DialTimeout: cfg.DialTimeout,
	}

	loader := catalog.Loader{
		CandidatesPath: cfg.ProxiesPath,
		CachePath:      cfg.CachePath,
		Target:         target,
	}

	cat, err := loader.Load()
	if err != nil {
		slog.Error("socksrotate: failed to load proxy catalog", "error", err)
		os.Exit(1)
	}

	banner.Print(cfg.Port, cfg.RotateInterval, cat.Len())

	manager := gateway.NewManager(cat, cfg.Port, cfg.RotateInterval, target, cfg.DialTimeout)

	stopCh := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- manager.Start(stopCh) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("socksrotate: received signal, shutting down", "signal", sig.String())
		close(stopCh)
		<-done
	case err := <-done:
		if err != nil {
			slog.Error("socksrotate: manager exited", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("socksrotate: stopped")
}
