package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gopm2/gopm2/pkg/pm2"
)

var (
	binaryPath string
	noValidate bool
	timeoutSec int
)

var rootCmd = &cobra.Command{
	Use:   "gopm2",
	Short: "gopm2 - Typed PM2 client for process lifecycle management",
	Long: `gopm2 wraps the PM2 process manager binary with typed commands.

It talks to the PM2 daemon by shelling out to the pm2 binary and parsing
its JSON output, so anything started here shows up in plain pm2 and vice
versa. Process supervision itself stays with the PM2 daemon.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&binaryPath, "binary", getEnvOrDefault("GOPM2_BINARY", "pm2"), "Path to the pm2 binary")
	rootCmd.PersistentFlags().BoolVar(&noValidate, "no-validate", false, "Skip the pm2 installation probe")
	rootCmd.PersistentFlags().IntVar(&timeoutSec, "timeout", 30, "Per-command timeout in seconds")
}

func getEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func newManager() (*pm2.Manager, error) {
	return pm2.NewManager(binaryPath, !noValidate)
}

func commandTimeout() time.Duration {
	if timeoutSec <= 0 {
		return pm2.DefaultTimeout
	}
	return time.Duration(timeoutSec) * time.Second
}
