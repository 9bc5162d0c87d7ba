// Command radiod is the receiver daemon: it reads a startup configuration,
// joins the configured multicast groups, and runs the channelizer/
// demodulator core until interrupted.
//
// Grounded on direwolf/main.go's flag set (github.com/spf13/pflag, one
// StringP/BoolP per option, a --config-file-style default) and on
// cmd/rspwav's signal-to-context-cancellation pattern from the wider
// example pack (signal.Notify feeding a context.Cancel, rather than
// direwolf's C signal handler, which has no Go equivalent to port) --
// extended to also catch SIGTERM via golang.org/x/sys/unix, since a
// daemon is more often stopped by a supervisor's SIGTERM than Ctrl-C.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/skywave-radio/radiod/internal/config"
	"github.com/skywave-radio/radiod/internal/discovery"
	"github.com/skywave-radio/radiod/internal/logging"
	"github.com/skywave-radio/radiod/internal/receiver"
)

func main() {
	var (
		configFile   = pflag.StringP("config-file", "c", "", "Configuration file name (searched in the default locations if omitted).")
		logLevel     = pflag.StringP("log-level", "l", "", "Log level: debug, info, warn, error. Overrides the config file's log_level.")
		listenData   = pflag.String("listen-data", "", "Override the data multicast group (host:port), e.g. for a one-off test run.")
		listenStatus = pflag.String("listen-status", "", "Override the status multicast group (host:port).")
		advertise    = pflag.Bool("advertise", true, "Advertise the status and audio streams via DNS-SD/mDNS.")
		instanceName = pflag.String("name", "radiod", "Instance name used in DNS-SD advertisements.")
	)
	pflag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *listenData != "" {
		cfg.Network.Data = *listenData
	}
	if *listenStatus != "" {
		cfg.Network.Status = *listenStatus
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger := logging.New(logging.Options{
		Level:  parseLevel(cfg.LogLevel),
		Prefix: "radiod",
	})

	rx, err := receiver.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, unix.SIGTERM)
		v, ok := <-sig
		if ok {
			logger.Info("signal received, shutting down", "signal", v)
			cancel()
		}
	}()

	if *advertise {
		adv, err := discovery.New(logger)
		if err != nil {
			logger.Warn("dns-sd advertiser unavailable", "err", err)
		} else {
			advertiseChannels(adv, *instanceName, cfg)
			go func() {
				if err := adv.Run(ctx); err != nil {
					logger.Warn("dns-sd responder stopped", "err", err)
				}
			}()
		}
	}

	logger.Info("radiod starting",
		"data", cfg.Network.Data,
		"status", cfg.Network.Status,
		"channels", len(cfg.Channels))

	if err := rx.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("receiver exited with error", "err", err)
		os.Exit(1)
	}
}

// advertiseChannels registers one DNS-SD entry for the shared status
// stream plus one per channel with its own output audio group.
func advertiseChannels(adv *discovery.Advertiser, name string, cfg config.Config) {
	if port, ok := portOf(cfg.Network.Status); ok {
		if err := adv.Add(discovery.Advertisement{
			Name: name + " status",
			Type: discovery.ServiceTypeStatus,
			Port: port,
		}); err != nil {
			return
		}
	}
	for _, ch := range cfg.Channels {
		addr := ch.OutputAudio
		if addr == "" {
			addr = cfg.Network.Audio
		}
		port, ok := portOf(addr)
		if !ok {
			continue
		}
		_ = adv.Add(discovery.Advertisement{
			Name: name + " " + ch.Name,
			Type: discovery.ServiceTypeAudio,
			Port: port,
		})
	}
}

func portOf(addr string) (int, bool) {
	if addr == "" {
		return 0, false
	}
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, false
	}
	return port, true
}

func parseLevel(s string) log.Level {
	switch s {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
