package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pressops/wpdeploy/pkg/conftools"
	"github.com/pressops/wpdeploy/pkg/credentials"
	"github.com/pressops/wpdeploy/pkg/deployclient"
	"github.com/pressops/wpdeploy/pkg/logging"
	"github.com/pressops/wpdeploy/pkg/metrics"
	"github.com/pressops/wpdeploy/pkg/output"
	"github.com/pressops/wpdeploy/pkg/pipeline"
	"github.com/pressops/wpdeploy/pkg/telemetry"
	"github.com/pressops/wpdeploy/pkg/transfer"
	"github.com/pressops/wpdeploy/pkg/uapi"
	"github.com/pressops/wpdeploy/pkg/version"
	"github.com/pressops/wpdeploy/pkg/wpcli"
	"github.com/pressops/wpdeploy/pkg/wpconfig"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"
)

func main() {
	err := run()
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return
	}
	log.Errorf("fatal: %s", err)
	os.Exit(int(deployclient.ErrorExitCode(err)))
}

func run() error {
	// Configuration
	cfg, v, err := deployclient.LoadConfig(os.Args[1:])
	if err != nil {
		return err
	}

	// Logging
	redactor := logging.NewRedactor()
	err = logging.Setup(log.StandardLogger(), os.Stderr, cfg.LogLevel, cfg.LogFormat, cfg.Quiet)
	if err != nil {
		return deployclient.ErrorWrap(deployclient.ExitInvocationFailure, err)
	}
	log.AddHook(redactor)

	// Welcome
	log.Infof("wpdeploy %s", version.Version())
	ts, err := version.BuildTime()
	if err == nil {
		log.Infof("This version was built %s", ts.Local())
	}
	for _, line := range conftools.Format(v, deployclient.SecretKeys) {
		log.Debug(line)
	}

	// Result file helpers
	if cfg.GenerateResultKey {
		return deployclient.PrintResultKey(os.Stdout)
	}
	if len(cfg.Unseal) > 0 {
		redactor.Add(cfg.ResultKey)
		return deployclient.OpenResultFile(os.Stdout, cfg, term.IsTerminal(int(os.Stdout.Fd())))
	}

	// Prepare requests
	requests, err := deployclient.Prepare(cfg)
	if err != nil {
		return err
	}
	for _, request := range requests {
		redactor.Add(request.Secrets()...)
	}

	if cfg.PrintRequest {
		err = deployclient.PrintRequests(os.Stdout, requests)
		if err != nil {
			return deployclient.ErrorWrap(deployclient.ExitInternalError, err)
		}
	}

	if cfg.DryRun {
		return nil
	}

	// Control panel credentials
	if len(cfg.Secret()) == 0 && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintf(os.Stderr, "cPanel %s for %s: ", cfg.AuthType, cfg)
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return deployclient.Errorf(deployclient.ExitInvocationFailure, "read %s: %s", cfg.AuthType, err)
		}
		cfg.SetSecret(string(secret))
	}
	redactor.Add(cfg.Password, cfg.Token, cfg.ResultKey)

	err = cfg.ValidateConnection()
	if err != nil {
		return deployclient.ErrorWrap(deployclient.ExitInvocationFailure, err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Tracing
	tracerProvider, err := telemetry.New(ctx, "wpdeploy", cfg.OpenTelemetryURL)
	if err != nil {
		return deployclient.Errorf(deployclient.ExitInternalError, "set up tracing: %s", err)
	}
	defer func() {
		err := tracerProvider.Shutdown(context.Background())
		if err != nil {
			log.Warnf("Flush traces: %s", err)
		}
	}()

	m := metrics.New()

	client, err := uapi.New(cfg.UAPI())
	if err != nil {
		return deployclient.ErrorWrap(deployclient.ExitInvocationFailure, err)
	}
	client.Metrics = m
	client.Tracer = telemetry.Tracer()

	var salts pipeline.SaltSource
	if len(cfg.SaltURL) > 0 {
		saltClient := &http.Client{Timeout: cfg.CallTimeout}
		salts = func(ctx context.Context) (wpconfig.Salts, error) {
			return wpconfig.FetchSalts(ctx, saltClient, cfg.SaltURL)
		}
	}

	d := deployclient.Deployer{
		Orchestrator: &pipeline.Orchestrator{
			Hosting:     client,
			Sites:       wpcli.New(client),
			Transfer:    transfer.New(client),
			Credentials: credentials.New(),
			Salts:       salts,
			Redactor:    redactor,
			Metrics:     m,
			Tracer:      telemetry.Tracer(),
			Log:         log.WithField("account", cfg.String()),
		},
	}

	log.Infof("Deploying %d site(s) to %s", len(requests), cfg)
	results, deployErr := d.Deploy(ctx, cfg, requests)

	sealed := false
	if len(cfg.ResultFile) > 0 {
		key, err := output.ParseKey(cfg.ResultKey)
		if err != nil {
			return deployclient.ErrorWrap(deployclient.ExitInvocationFailure, err)
		}
		err = output.WriteSealed(cfg.ResultFile, results, key)
		if err != nil {
			return deployclient.Errorf(deployclient.ExitInternalError, "write result file: %s", err)
		}
		log.Infof("Sealed deployment results written to %s", cfg.ResultFile)
		sealed = true
	}

	err = output.Render(os.Stdout, results, output.Options{
		Format:          cfg.Output,
		Color:           term.IsTerminal(int(os.Stdout.Fd())),
		HideCredentials: sealed,
	})
	if err != nil {
		return deployclient.ErrorWrap(deployclient.ExitInternalError, err)
	}

	if len(cfg.PushgatewayURL) > 0 {
		err = m.Push(cfg.PushgatewayURL, cfg.Host)
		if err != nil {
			log.Warnf("Push metrics: %s", err)
		}
	}

	return deployErr
}
