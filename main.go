package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/datarhei/ffstats/app"
	"github.com/datarhei/ffstats/app/api"
	"github.com/datarhei/ffstats/config/store"
	"github.com/datarhei/ffstats/log"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/pflag"
)

func main() {
	logger := log.New("Core").WithOutput(log.NewConsoleWriter(os.Stderr, log.Lwarn, true))

	var configfile string
	var showVersion bool

	flags := pflag.NewFlagSet(app.Name, pflag.ExitOnError)
	flags.StringVarP(&configfile, "config", "c", os.Getenv("FFSTATS_CONFIGFILE"), "Path to the config file (env FFSTATS_CONFIGFILE)")
	flags.BoolVarP(&showVersion, "version", "v", false, "Print the version and exit")
	flags.Parse(os.Args[1:])

	if showVersion {
		fmt.Printf("%s %s (%s, %s)\n", app.Name, app.Version.String(), app.Arch, app.Compiler)
		os.Exit(0)
	}

	configfile = store.Location(configfile)

	a, err := api.New(configfile, os.Stderr)
	if err != nil {
		logger.Error().WithError(err).Log("Failed to create new API")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		defer cancel()

		for {
			if err := a.Start(ctx); err != api.ErrConfigReload {
				if err != nil {
					logger.Error().WithError(err).Log("Failed to start API")
				}

				break
			} else {
				logger.Warn().WithError(err).Log("Config reload requested")
			}

			a.Stop()

			if err := a.Reload(); err != nil {
				logger.Error().WithError(err).Log("Failed to reload config")
				break
			}
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the app
	<-ctx.Done()

	// Stop the app
	a.Destroy()
}
