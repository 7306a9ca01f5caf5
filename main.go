package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-vision/config"
	"github.com/nijaru/yt-vision/db"
	apperrors "github.com/nijaru/yt-vision/errors"
	"github.com/nijaru/yt-vision/handlers"
	"github.com/nijaru/yt-vision/logger"
	"github.com/nijaru/yt-vision/tracing"
	"github.com/nijaru/yt-vision/utils"
	"github.com/nijaru/yt-vision/validation"
)

const serviceName = "yt-vision"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout))
}

// run returns the process exit code so deferred log and trace flushing
// finishes before the process exits.
func run(args []string, in io.Reader, out io.Writer) int {
	flags := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	var (
		sourceURL = flags.String("url", "", "video URL to analyze")
		interval  = flags.String("interval", "", "seconds between sampled frames")
		asJSON    = flags.Bool("json", false, "print the report as JSON")
		serve     = flags.Bool("serve", false, "run the HTTP API instead of a single analysis")
	)
	if err := flags.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Error("Failed to load configuration")
		return 1
	}

	closer, err := logger.Setup(cfg.Log)
	if err != nil {
		logrus.WithError(err).Error("Failed to set up logging")
		return 1
	}
	defer closer.Close()

	if err := config.ValidateConfig(cfg); err != nil {
		logrus.WithError(err).Error("Invalid configuration")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.TracingURL, serviceName)
	if err != nil {
		logrus.WithError(err).Warn("Tracing disabled")
	} else {
		defer func() {
			tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(tctx); err != nil {
				logrus.WithError(err).Warn("Failed to flush traces")
			}
		}()
	}

	if *serve {
		if err := runServer(ctx, cfg); err != nil {
			logrus.WithError(err).Error("Server stopped with error")
			return 1
		}
		return 0
	}

	return runCLI(ctx, cfg, *sourceURL, *interval, *asJSON, in, out)
}

// runCLI analyzes one video and prints the report or a single error line.
func runCLI(ctx context.Context, cfg *config.Config, sourceURL, rawInterval string, asJSON bool, in io.Reader, out io.Writer) int {
	reader := bufio.NewReader(in)
	if strings.TrimSpace(sourceURL) == "" {
		sourceURL = prompt(reader, out, "Enter video URL: ")
	}
	if strings.TrimSpace(rawInterval) == "" {
		rawInterval = prompt(reader, out, "Enter interval between frames (seconds): ")
	}

	if err := validation.ValidateURL(sourceURL); err != nil {
		fmt.Fprintln(out, err)
		return 2
	}
	interval, err := validation.ParseInterval(rawInterval)
	if err != nil {
		fmt.Fprintln(out, err)
		return 2
	}

	if err := validation.CheckDependencies(requiredTools(cfg)...); err != nil {
		fmt.Fprintln(out, err)
		return 2
	}

	tracker, err := db.Open(cfg.TrackerDSN)
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return 1
	}
	defer tracker.Close()

	notifier, notifierCloser := newNotifier(cfg)
	defer notifierCloser.Close()

	orchestrator, err := newOrchestrator(ctx, cfg, tracker, notifier)
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return 1
	}

	result, err := orchestrator.Run(ctx, strings.TrimSpace(sourceURL), interval)
	if err != nil {
		printError(out, err, asJSON)
		return 1
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			logrus.WithError(err).Error("Failed to encode report")
			return 1
		}
		return 0
	}
	fmt.Fprint(out, utils.FormatReport(result))
	return 0
}

func prompt(r *bufio.Reader, out io.Writer, label string) string {
	fmt.Fprint(out, label)
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}

func printError(out io.Writer, err error, asJSON bool) {
	pe, ok := apperrors.As(err)
	if !asJSON || !ok {
		fmt.Fprintf(out, "error: %v\n", err)
		return
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(pe); err != nil {
		logrus.WithError(err).Error("Failed to encode error report")
	}
}

func runServer(ctx context.Context, cfg *config.Config) error {
	if err := config.ValidateServer(cfg.Server); err != nil {
		return err
	}
	if err := validation.CheckDependencies(requiredTools(cfg)...); err != nil {
		return err
	}

	tracker, err := db.Open(cfg.TrackerDSN)
	if err != nil {
		return err
	}
	defer func() {
		if err := tracker.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close task tracker")
		}
	}()

	notifier, notifierCloser := newNotifier(cfg)
	defer notifierCloser.Close()

	orchestrator, err := newOrchestrator(ctx, cfg, tracker, notifier)
	if err != nil {
		return err
	}

	h := handlers.New(orchestrator, tracker, cfg.Server)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      h.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("port", cfg.Server.Port).Info("Listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logrus.Info("Shutting down the server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return h.Shutdown(shutdownCtx)
}
