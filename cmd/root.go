// Package cmd wires the CLI surface. Reports go to stdout, logs and
// prompts to stderr, so table output stays pipeable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/term"

	"github.com/clickaudit/clickaudit/internal/clickhouse"
	"github.com/clickaudit/clickaudit/internal/config"
	"github.com/clickaudit/clickaudit/internal/output"
	"github.com/clickaudit/clickaudit/internal/runner"
	"github.com/clickaudit/clickaudit/internal/telemetry"
	"github.com/clickaudit/clickaudit/internal/tracing"
)

var (
	configPath  string
	contextName string
	outFormat   string
	logLevel    string

	connURLs            []string
	connUser            string
	connPassword        string
	interactivePassword bool
	connSecure          bool
	acceptInvalidCert   bool

	tracerProvider *sdktrace.TracerProvider
)

var rootCmd = &cobra.Command{
	Use:   "clickaudit",
	Short: "Find the heaviest queries and loudest errors across a ClickHouse cluster",
	Long: `clickaudit queries the telemetry tables of every node in a ClickHouse
cluster concurrently, merges the streams and ranks what it found. Use it
to answer "what is hurting this cluster right now" without leaving the
terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := setupLogging(); err != nil {
			return err
		}
		path, err := resolvedConfigPath()
		if err != nil {
			return err
		}
		if err := config.LoadConfig(path); err != nil {
			return err
		}
		if config.DefaultConfig.IsTracingEnabled() {
			tp, err := tracing.WithTracing(cmd.Context(), slog.Default())
			if err != nil {
				return fmt.Errorf("failed to set up tracing: %w", err)
			}
			tracerProvider = tp
		}
		return nil
	},
}

// Execute runs the CLI. Interrupts exit 130, any other failure prints a
// single error line and exits 1.
func Execute() {
	err := rootCmd.ExecuteContext(context.Background())
	shutdownTracing()
	if err != nil {
		if errors.As(err, &run.SignalError{}) {
			fmt.Fprintln(os.Stderr, "interrupted")
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: the user config dir)")
	rootCmd.PersistentFlags().StringVar(&contextName, "context", "", "connection profile to use for this run")
	rootCmd.PersistentFlags().StringVar(&outFormat, "out", "text", "output format: text, json or yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func setupLogging() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

func shutdownTracing() {
	if tracerProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracerProvider.Shutdown(ctx); err != nil {
		slog.Warn("tracing.shutdown_failed", "err", err)
	}
}

func resolvedConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}

func registerConnectionFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&connURLs, "url", "U", nil, "node address, host[:port] or clickhouse[s]://host[:port] (repeatable)")
	cmd.Flags().StringVarP(&connUser, "user", "u", "", "user to connect with")
	cmd.Flags().StringVarP(&connPassword, "password", "p", "", "password to connect with")
	cmd.Flags().BoolVarP(&interactivePassword, "interactive-password", "i", false, "prompt for the password without echo")
	cmd.Flags().BoolVar(&connSecure, "secure", false, "connect over TLS")
	cmd.Flags().BoolVar(&acceptInvalidCert, "accept-invalid-certificate", false, "skip TLS certificate verification")
	cmd.MarkFlagsMutuallyExclusive("password", "interactive-password")
}

// connectionFlags folds the connection flags into one value, prompting
// for the password when -i was given. The prompt goes to stderr so it
// never corrupts piped output.
func connectionFlags() (config.ConnectionFlags, error) {
	password := connPassword
	if interactivePassword {
		prompted, err := promptPassword()
		if err != nil {
			return config.ConnectionFlags{}, err
		}
		password = prompted
	}
	return config.ConnectionFlags{
		URLs:              connURLs,
		User:              connUser,
		Password:          password,
		Secure:            connSecure,
		AcceptInvalidCert: acceptInvalidCert,
	}, nil
}

func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(raw), nil
}

// newRunner resolves the connection, dials every node and verifies the
// credentials with a ping before any pipeline starts.
func newRunner(ctx context.Context) (*runner.Runner, func(), error) {
	flags, err := connectionFlags()
	if err != nil {
		return nil, nil, err
	}
	cc, err := config.Resolve(config.DefaultConfig, contextName, flags)
	if err != nil {
		return nil, nil, err
	}

	client, err := clickhouse.NewClient(cc, clickhouse.WithLogger(slog.Default()))
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := client.Close(); err != nil {
			slog.Warn("clickhouse.close_failed", "err", err)
		}
	}
	return runner.New(client, slog.Default()), cleanup, nil
}

func newRenderer() (*output.Renderer, error) {
	format, err := output.ParseFormat(outFormat)
	if err != nil {
		return nil, err
	}
	return output.NewRenderer(os.Stdout, format), nil
}

func pushTelemetry() {
	telemetry.Push(config.DefaultConfig.Telemetry, slog.Default())
}
