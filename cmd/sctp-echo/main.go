// Command sctp-echo is a demonstration endpoint: it listens on a UDP
// socket, demultiplexes datagrams onto per-peer associations, and echoes
// back every message it receives on whatever stream it arrived on. It
// exists to exercise pkg/sctp/association end to end, not as a production
// service.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/datawire/dlib/derror"
	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dhttp"
	"github.com/datawire/dlib/dlog"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var configPath string
	c := &cobra.Command{
		Use:   "sctp-echo",
		Short: "Run the demonstration SCTP echo endpoint",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	c.Flags().StringVarP(&configPath, "config", "c", "sctp-echo.yaml", "path to the endpoint's YAML config file")
	return c
}

// run loads config, opens the socket, supervises the goroutines that keep
// it moving under a dgroup.Group, and waits for them all to finish.
func run(ctx context.Context, configPath string) error {
	cfg, err := LoadEndpointConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ep, err := NewEndpoint(cfg)
	if err != nil {
		return fmt.Errorf("failed to open listener: %w", err)
	}
	defer func() {
		if err := ep.Shutdown(ctx); err != nil {
			dlog.Errorf(ctx, "shutdown: %v", err)
		}
	}()

	prometheus.MustRegister(ep.Collector())

	dlog.Infof(ctx, "sctp-echo listening on %s", cfg.Listen.Address)

	g := dgroup.NewGroup(ctx, dgroup.GroupConfig{
		SoftShutdownTimeout: 2 * time.Second,
		EnableSignalHandling: true,
		ShutdownOnNonError:   true,
	})

	g.Go("udp-read", func(c context.Context) (err error) {
		defer func() {
			if perr := derror.PanicToError(recover()); perr != nil {
				dlog.Error(c, perr)
				err = perr
			}
		}()
		return ep.ReadLoop(c)
	})

	g.Go("timer-pump", func(c context.Context) (err error) {
		defer func() {
			if perr := derror.PanicToError(recover()); perr != nil {
				dlog.Error(c, perr)
				err = perr
			}
		}()
		return ep.TimerLoop(c)
	})

	metricsListener, err := net.Listen("tcp", cfg.Metrics.Address)
	if err != nil {
		return fmt.Errorf("failed to open metrics listener: %w", err)
	}
	g.Go("metrics-http", func(c context.Context) error {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		sc := &dhttp.ServerConfig{Handler: mux}
		dlog.Infof(c, "metrics listening on %s", cfg.Metrics.Address)
		err := sc.Serve(c, metricsListener)
		if err != nil && c.Err() != nil {
			return nil // normal shutdown
		}
		return err
	})

	return g.Wait()
}
