package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/fjod/cartsync/internal/cartclient"
	"github.com/fjod/cartsync/internal/config"
	"github.com/fjod/cartsync/internal/storefront"
	"github.com/fjod/cartsync/pkg/logger"
	"github.com/fjod/cartsync/pkg/telemetry"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// app holds the clients shared by every subcommand.
type app struct {
	cfg  *config.ClientConfig
	log  *logrus.Logger
	out  io.Writer
	svc  *cartclient.HTTPService
	cart *cartclient.Client
	flow *storefront.Flow
	tp   *sdktrace.TracerProvider
}

type rootFlags struct {
	apiURL   string
	token    string
	loginURL string
	timeout  time.Duration
	logLevel string
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out}
	var flags rootFlags

	root := &cobra.Command{
		Use:           "cartctl",
		Short:         "Work with a storefront cart from the terminal",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd, flags, errOut)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.close(cmd.Context())
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.apiURL, "api", "", "cart API base URL (env CART_API_URL)")
	pf.StringVar(&flags.token, "token", "", "bearer token (env CART_TOKEN)")
	pf.StringVar(&flags.loginURL, "login-url", "", "where to log in when the session is missing (env CART_LOGIN_URL)")
	pf.DurationVar(&flags.timeout, "timeout", 0, "per-request timeout (env CART_REQUEST_TIMEOUT)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (env LOG_LEVEL)")

	root.AddCommand(
		newShowCmd(a),
		newAddCmd(a),
		newRemoveCmd(a),
		newUpdateCmd(a),
		newClearCmd(a),
		newStatusCmd(a),
		newLoginCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command, flags rootFlags, errOut io.Writer) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("api") {
		cfg.APIURL = flags.apiURL
	}
	if cmd.Flags().Changed("token") {
		cfg.Token = flags.token
	}
	if cmd.Flags().Changed("login-url") {
		cfg.LoginURL = flags.loginURL
	}
	if cmd.Flags().Changed("timeout") {
		cfg.RequestTimeout = flags.timeout
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	a.cfg = cfg
	a.log = logger.NewWithOutput("cartctl", cfg.LogLevel, errOut)

	if cfg.OTLPEndpoint != "" {
		tp, err := telemetry.InitTracerProvider(cmd.Context(), "cartctl", version, cfg.OTLPEndpoint)
		if err != nil {
			return err
		}
		a.tp = tp
	}

	var opts []cartclient.HTTPOption
	if cfg.Token != "" {
		opts = append(opts, cartclient.WithBearerToken(cfg.Token))
	}
	httpClient := cartclient.NewHTTPClient(cfg.RequestTimeout, cfg.Breaker, a.log)
	a.svc = cartclient.NewHTTPService(cfg.APIURL, httpClient, opts...)

	redirect := cartclient.RedirectFunc(func(_ context.Context, target string) {
		fmt.Fprintf(a.out, "login required: %s\n", target)
	})
	a.cart = cartclient.New(a.svc,
		cartclient.WithLogger(a.log),
		cartclient.WithRedirector(redirect, cfg.LoginURL),
	)
	a.cart.OnChange(func(count int) {
		a.log.WithField("count", count).Debug("cart badge updated")
	})
	a.flow = storefront.NewFlow(a.cart, a.svc, &storefront.WriterNotifier{Out: a.out}, redirect, cfg.LoginURL, a.log)
	return nil
}

func (a *app) close(ctx context.Context) error {
	if a.tp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return a.tp.Shutdown(ctx)
}
