package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/simonduel/SimonDuel/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
)

type config struct {
	bind    string
	port    int
	apiURL  string
	dev     bool
	verbose bool
}

func (c *config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	return nil
}

func newCmd(cfg *config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SIMONDUEL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "simonduel",
		Short:         "A turn-based color-sequence duel, served as a webassembly app.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			if cfg.verbose {
				_ = flag.Set("v", "1")
			}
			return server.Run(cmd.Context(), server.Config{
				Bind:   cfg.bind,
				Port:   cfg.port,
				APIURL: cfg.apiURL,
				Dev:    cfg.dev,
			})
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: SIMONDUEL_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: SIMONDUEL_PORT)")
	fs.StringVar(&cfg.apiURL, "api-url", "/api", "base URL of the game backend handed to the browser (env: SIMONDUEL_API_URL)")
	fs.BoolVar(&cfg.dev, "dev", false, "serve an in-process backend under /api (env: SIMONDUEL_DEV)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: SIMONDUEL_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	return cmd
}

func main() {
	// Local overrides; absence of a .env file is not an error.
	_ = godotenv.Load()

	klog.InitFlags(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &config{}
	if err := newCmd(cfg).ExecuteContext(ctx); err != nil {
		klog.Errorf("simonduel: %v", err)
		os.Exit(1)
	}
}
