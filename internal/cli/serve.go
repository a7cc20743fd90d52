package cli

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/geoviewer/internal/httpapi"
	"github.com/matzehuels/geoviewer/pkg/metrics"
	"github.com/matzehuels/geoviewer/pkg/viewer"
)

const shutdownTimeout = 5 * time.Second

// serveFlags holds flags for the serve command.
type serveFlags struct {
	sessionFlags
	addr string
	out  string
}

// serveCommand creates the serve command running the HTTP control API.
func (c *CLI) serveCommand() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a viewer behind the HTTP control API",
		Long: `Serve ingests a graph file and keeps the viewer running behind a JSON
control API. Every toggle re-renders the configured outputs after the
layer update delay.

Routes:
  GET  /api/v1/layers
  PUT  /api/v1/layers/{kind}/{name}/{subtype}   {"active": true}
  DEL  /api/v1/layers/{kind}/{name}
  POST /api/v1/layers/hide
  PUT  /api/v1/style/graph                      {"radius": 3, "color": "#f00"}
  GET  /api/v1/graphs/{name}
  GET  /api/v1/state
  PUT  /api/v1/state/map                        {"name": "OpenStreetMap"}
  PUT  /api/v1/state/graph                      {"name": "Valley"}
  GET  /metrics
  GET  /healthz`,
		Example: `  geoviewer serve -g landscape.json --addr :8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.parsed(cmd)
			return c.runServe(cmd.Context(), flags)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&flags.addr, "addr", "", "listen address (default: config http.addr)")
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "GeoJSON output file (default: config output)")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, flags serveFlags) error {
	cfg, err := c.loadConfig(flags.config)
	if err != nil {
		return err
	}
	if flags.addr == "" {
		flags.addr = cfg.HTTP.Addr
	}
	if flags.out == "" {
		flags.out = cfg.Output
	}
	opts, err := c.viewerOptions(cfg)
	if err != nil {
		return err
	}
	w, cleanup, err := c.widgets(ctx, cfg, flags.out, "")
	if err != nil {
		return err
	}
	defer cleanup()

	m := metrics.New()
	m.Register()

	spinner := newSpinnerWithContext(ctx, "Reading "+flags.graph)
	opts.Progress = spinner.Stage

	v, err := viewer.New(w, opts)
	if err != nil {
		return err
	}
	defer v.Close()

	spinner.Start()
	if _, err := c.openGraph(ctx, v, flags.sessionFlags, flags.withComponents(cfg)); err != nil {
		spinner.StopWithError("Adding graph failed")
		return err
	}
	spinner.Stop()

	api := httpapi.NewHandler(httpapi.Options{
		Logger:  c.Logger,
		Metrics: m,
		Timeout: cfg.HTTP.Timeout.Duration,
	})
	if err := v.EnableGraphControls(api); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              flags.addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	printSuccess("Control API listening on %s", StyleLink.Render("http://"+displayAddr(flags.addr)))
	printNextStep("Show components", "curl -X PUT -d '{\"active\":true}' http://"+displayAddr(flags.addr)+"/api/v1/layers/graphs/"+v.CurrentGraph()+"/components")

	select {
	case err := <-errCh:
		if !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	c.Logger.Info("Shutting down control API")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// displayAddr turns a listen address like ":8080" into a dialable host.
func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
