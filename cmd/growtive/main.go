package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"growtive/internal/app"
	"growtive/internal/config"
	"growtive/internal/logging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "growtive: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configFile string
	dotEnv     string
	checkOnly  bool
}

func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("growtive", flag.ContinueOnError)
	opts := &options{}
	fs.StringVar(&opts.configFile, "config", "", "path to a JSON or YAML config file (default $"+config.EnvConfigFile+")")
	fs.StringVar(&opts.dotEnv, "env-file", ".env", "dotenv file to load if present")
	fs.BoolVar(&opts.checkOnly, "check", false, "validate the configuration and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(config.LoadOptions{File: opts.configFile, DotEnv: opts.dotEnv})
	if err != nil {
		return err
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format, nil); err != nil {
		return err
	}
	if opts.checkOnly {
		logrus.Info("configuration is valid")
		return nil
	}

	application, err := app.NewApplication(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		_ = application.Stop(context.Background())
		return err
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- application.Serve() }()
	logrus.WithField("address", application.Addr()).Info("growtive started")

	select {
	case err := <-serveErr:
		_ = application.Stop(context.Background())
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
		logrus.Info("signal received, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return application.Stop(shutdownCtx)
}
