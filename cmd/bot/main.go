package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hwbot/internal/app"
	"hwbot/internal/config"
)

var (
	cfgPath string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "bot",
	Short: "Homework review status bot",
	Long: `Polls the Practicum homework API and forwards review status
changes to a Telegram chat.

Credentials come from PRACTICUM_TOKEN, TELEGRAM_TOKEN and TELEGRAM_CHAT_ID
(a .env file is loaded when present). Run without a subcommand to start the loop.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runLoop,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the polling loop (default)",
	Args:  cobra.NoArgs,
	RunE:  runLoop,
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single poll cycle and exit",
	Args:  cobra.NoArgs,
	RunE:  runOnce,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate environment and config file without network calls",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to tuning file (json or yaml); defaults when empty")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", config.DefaultEnvFile, "dotenv file to load before reading the environment")
	rootCmd.AddCommand(runCmd, onceCmd, checkCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func newApp(ctx context.Context) (*app.App, error) {
	return app.New(ctx, app.Options{ConfigPath: cfgPath, EnvFile: envFile})
}

func runLoop(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runOnce(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Once(ctx)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	if _, err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	creds := config.CredentialsFromEnv(nil)
	if !creds.CheckTokens() {
		return app.ErrMissingCredentials
	}

	m := config.NewConfigManager(cfgPath)
	m.SetValidator(app.ValidateConfig)
	cfg, err := m.Load(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, name := range creds.Missing() {
		fmt.Fprintf(out, "warning: %s is empty\n", name)
	}
	if _, err := creds.ChatID(); err != nil && creds.TelegramChatID != "" {
		fmt.Fprintf(out, "warning: %v\n", err)
	}
	fmt.Fprintf(out, "endpoint:      %s\n", cfg.Practicum.Endpoint)
	fmt.Fprintf(out, "retry period:  %s\n", cfg.Poller.RetryPeriod)
	fmt.Fprintf(out, "notify errors: %t\n", cfg.NotifyOnFailure())
	fmt.Fprintln(out, "ok")
	return nil
}
