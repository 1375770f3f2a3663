package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wolvever/httpx-transport-go/pkg/transport"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "httpxgo",
	Short: "HTTP transport core for httpx-style clients",
	Long: `httpxgo is the standalone face of the httpx transport core:
a pooled, pipelined HTTP engine with timeout, retry, tracing and
metrics stages.

Get started:
  httpxgo request <url>   Issue one request through the transport
  httpxgo bench <url>     Run a fixed-count concurrent benchmark`,
	Version: fmt.Sprintf("%s (built %s)", version, buildTime),
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// SetVersion sets the version info
func SetVersion(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
	transport.Version = v
}
