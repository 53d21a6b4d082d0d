package main

import (
	"flag"
	"os"

	"github.com/maxence-charriere/go-app/v10/pkg/app"
	"github.com/simonduel/SimonDuel/internal/frontend"
	"k8s.io/klog/v2"
)

func main() {
	// Initialize klog for WASM, forcing logs to stderr (console)
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	fs.Set("logtostderr", "true")
	klog.SetOutput(os.Stderr)
	klog.Infof("WASM started!")

	// Home page: stats and the create-match form
	app.Route("/", func() app.Composer { return &frontend.Home{} })

	// Index of open matches
	app.Route("/partidas", func() app.Composer { return &frontend.Matches{} })

	// Waiting room for a freshly created match
	app.RouteWithRegexp("^/sala-espera/.*", func() app.Composer { return &frontend.SalaEspera{} })

	// Board for a running match
	app.RouteWithRegexp("^/juego/.*", func() app.Composer { return &frontend.Juego{} })

	// Initialize the global app state manager
	frontend.InitState()

	// When building for WEB (GOOS=js GOARCH=wasm), app.Run() executes the frontend logic
	app.RunWhenOnBrowser()
}
