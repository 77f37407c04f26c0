// Command irslackd runs the IRC-to-Slack gateway daemon. IRC clients connect
// with their Slack token as the server password; the daemon bridges each
// connection to a Slack session.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/irslackd/irslackd"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:           "irslackd",
		Short:         "IRC-to-Slack gateway daemon",
		Long:          "irslackd lets an ordinary IRC client connect to a Slack workspace. Clients authenticate with PASS <slack-token>; IRC commands become Slack Web API calls and Slack events come back as IRC lines.",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), v)
		},
	}

	flags := rootCmd.Flags()
	flags.String("listen", "127.0.0.1:6697", "listen address")
	flags.String("tls-cert", "", "path to TLS certificate")
	flags.String("tls-key", "", "path to TLS private key")
	flags.Bool("insecure", false, "listen without TLS (plain TCP)")
	flags.Bool("debug", false, "enable debug logging")

	_ = v.BindPFlags(flags)
	v.SetEnvPrefix("IRSLACKD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("irslackd")
	v.AddConfigPath("/etc/irslackd")
	v.AddConfigPath("$HOME/.config/irslackd")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
	}

	return rootCmd
}

func run(ctx context.Context, v *viper.Viper) error {
	level := slog.LevelInfo
	if v.GetBool("debug") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ln, err := listen(v)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	daemon := &irslackd.Daemon{Logger: logger}
	if err := daemon.Run(ctx, ln); err != nil {
		return fmt.Errorf("daemon: %w", err)
	}
	logger.Info("shut down cleanly")
	return nil
}

func listen(v *viper.Viper) (net.Listener, error) {
	addr := v.GetString("listen")

	if v.GetBool("insecure") {
		return net.Listen("tcp", addr)
	}

	certFile := v.GetString("tls-cert")
	keyFile := v.GetString("tls-key")
	if certFile == "" || keyFile == "" {
		return nil, fmt.Errorf("TLS requires --tls-cert and --tls-key (or --insecure for plain TCP)")
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load TLS keypair: %w", err)
	}
	return tls.Listen("tcp", addr, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	})
}
