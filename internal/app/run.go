package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"

	"overseer/internal/api"
	"overseer/internal/metrics"
	"overseer/internal/servertype"
	"overseer/pkg/logging"
)

const (
	// shutdownTimeout bounds the graceful stop of all servers on exit.
	shutdownTimeout = 90 * time.Second

	metricsShutdownTimeout = 5 * time.Second
)

// Run starts the metrics endpoint and the autostart servers, reports readiness to
// systemd and blocks until ctx ends or SIGINT/SIGTERM is received. All servers are
// stopped before Run returns.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsSrv, err := a.serveMetrics()
	if err != nil {
		return err
	}

	if err := a.autoStart(ctx); err != nil {
		logging.Warn("App", "Some servers failed to start: %v", err)
	}
	a.notify(daemon.SdNotifyReady)
	logging.Info("App", "overseer is running. Press Ctrl+C to stop all servers and exit.")

	<-ctx.Done()

	logging.Info("App", "Shutting down servers")
	a.notify(daemon.SdNotifyStopping)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	var errs []error
	if err := a.servers.ShutdownAll(shutdownCtx); err != nil {
		logging.Error("App", err, "Failed to stop all servers")
		errs = append(errs, err)
	}
	if metricsSrv != nil {
		mctx, mcancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer mcancel()
		if err := metricsSrv.Shutdown(mctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *Application) serveMetrics() (*http.Server, error) {
	addr := a.config.MetricsAddress
	if addr == "" {
		addr = a.config.OverseerConfig.Metrics.Address
	}
	if addr == "" {
		return nil, nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for metrics on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Metrics", err, "Metrics endpoint stopped")
		}
	}()
	logging.Info("Metrics", "Serving metrics on http://%s/metrics", ln.Addr())
	return srv, nil
}

// autoStart publishes and starts every server with autoStart set, then waits for
// each of them to settle. Servers with autoPublish get their source watcher.
func (a *Application) autoStart(ctx context.Context) error {
	var s *spinner.Spinner
	if !a.config.Quiet {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = " Starting servers..."
		s.Start()
	}

	var g errgroup.Group
	for _, srv := range a.servers.All() {
		cfg := srv.Config()
		if cfg.AutoPublish {
			if err := srv.StartAutoPublish(ctx); err != nil {
				logging.Warn("App", "Auto publish of server %s disabled: %v", srv.Name(), err)
			}
		}
		if !cfg.AutoStart {
			continue
		}
		g.Go(func() error {
			return startServer(ctx, srv, cfg.Mode)
		})
	}
	err := g.Wait()

	if s != nil {
		s.Stop()
	}
	return err
}

func startServer(ctx context.Context, srv servertype.Server, mode string) error {
	if len(srv.Deployables()) > 0 {
		if st := srv.CanPublish(); st.IsOK() {
			if err := srv.Publish(ctx, api.PublishFull); err != nil {
				logging.Warn("App", "Initial publish of server %s failed: %v", srv.Name(), err)
			}
		} else {
			logging.Warn("App", "Skipping initial publish of server %s: %s", srv.Name(), st.Message)
		}
	}

	res := srv.Start(ctx, mode)
	if !res.Status.IsOK() {
		return fmt.Errorf("server %s: %s", srv.Name(), res.Status.Message)
	}
	if err := srv.WaitForState(ctx, api.StateStarted, api.StateStopped); err != nil {
		return err
	}
	if snap := srv.Snapshot(); snap.State != api.StateStarted {
		return fmt.Errorf("server %s: %s", srv.Name(), snap.LastError)
	}
	logging.Info("App", "Server %s started in %s mode", srv.Name(), mode)
	return nil
}

func (a *Application) notify(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		logging.Warn("App", "Failed to notify systemd: %v", err)
		return
	}
	if sent {
		logging.Debug("App", "Notified systemd: %s", state)
	}
}
