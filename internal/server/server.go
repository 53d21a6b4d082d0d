// Package server hosts the compiled webassembly client and, in dev mode,
// an in-process game backend under /api.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/maxence-charriere/go-app/v10/pkg/app"
	"github.com/simonduel/SimonDuel/internal/backend"
	"github.com/simonduel/SimonDuel/internal/frontend"
	"k8s.io/klog/v2"
)

// Config is filled by the command-line layer in cmd/server.
type Config struct {
	Bind   string
	Port   int
	APIURL string // base URL handed to the browser client
	Dev    bool   // mount the in-process backend under /api
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

// Run starts the server and blocks until the context is canceled.
func Run(ctx context.Context, cfg Config) error {
	// Initialize global client state so server-side prerendering does not panic.
	frontend.InitState()

	// Register go-app routes so the server knows how to prerender them.
	app.Route("/", func() app.Composer { return &frontend.Home{} })
	app.Route("/partidas", func() app.Composer { return &frontend.Matches{} })
	app.RouteWithRegexp("^/sala-espera/.*", func() app.Composer { return &frontend.SalaEspera{} })
	app.RouteWithRegexp("^/juego/.*", func() app.Composer { return &frontend.Juego{} })

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = "/api"
	}

	// The web assets and the compiled webassembly are served natively by the
	// go-app framework.
	h := &app.Handler{
		Name:        "SimonDuel",
		Description: "A turn-based color-sequence duel",
		Env: map[string]string{
			"API_URL": apiURL,
		},
		Styles: []string{
			"/web/css/pico.min.css",
			"/web/css/main.css",
		},
	}

	mux := http.NewServeMux()

	if cfg.Dev {
		klog.Infof("Dev mode: serving in-process backend under /api")
		mux.Handle("/api/", http.StripPrefix("/api", backend.NewServer()))
	}

	mux.Handle("/web/", http.StripPrefix("/web/", http.FileServer(http.Dir("web/"))))
	mux.Handle("/", h)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		klog.Infof("Server started on %s", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Graceful shutdown with 5 second timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	klog.Infof("Shutting down server...")
	return srv.Shutdown(shutdownCtx)
}
