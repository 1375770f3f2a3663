package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolvever/httpx-transport-go/internal/config"
	"github.com/wolvever/httpx-transport-go/pkg/httpcore"
	"github.com/wolvever/httpx-transport-go/pkg/transport"
)

var (
	reqConfigPath string
	reqMethod     string
	reqHeaders    []string
	reqData       string
	reqStream     bool
	reqTimeout    time.Duration
	reqInsecure   bool
	reqVerbose    bool
)

var requestCmd = &cobra.Command{
	Use:   "request <url>",
	Short: "Issue one request through the transport",
	Long: `Issue a single HTTP request through the full pipeline and print
the response.

Example:
  httpxgo request https://example.com
  httpxgo request -X POST -d '{"a":1}' -H 'Content-Type: application/json' https://example.com
  httpxgo request --stream https://example.com/big-file`,
	Args: cobra.ExactArgs(1),
	RunE: runRequest,
}

func init() {
	requestCmd.Flags().StringVarP(&reqConfigPath, "config", "c", "", "Path to configuration file")
	requestCmd.Flags().StringVarP(&reqMethod, "method", "X", "GET", "HTTP method")
	requestCmd.Flags().StringArrayVarP(&reqHeaders, "header", "H", nil, "Header 'Name: value' (repeatable)")
	requestCmd.Flags().StringVarP(&reqData, "data", "d", "", "Request body")
	requestCmd.Flags().BoolVar(&reqStream, "stream", false, "Stream the response body chunk by chunk")
	requestCmd.Flags().DurationVarP(&reqTimeout, "timeout", "t", 0, "Total timeout override")
	requestCmd.Flags().BoolVarP(&reqInsecure, "insecure", "k", false, "Skip TLS certificate verification")
	requestCmd.Flags().BoolVarP(&reqVerbose, "verbose", "v", false, "Print status and headers to stderr")
	rootCmd.AddCommand(requestCmd)
}

func runRequest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(reqConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if reqInsecure {
		cfg.Pool.TLSInsecure = true
	}

	t, err := transport.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize transport: %w", err)
	}
	defer t.Close()

	req := &httpcore.Request{
		Method:  reqMethod,
		URL:     args[0],
		Timeout: reqTimeout,
	}
	if reqData != "" {
		req.Body = []byte(reqData)
	}
	for _, h := range reqHeaders {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return fmt.Errorf("invalid header %q, want 'Name: value'", h)
		}
		req.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	if reqStream {
		req.Extensions = map[string]any{httpcore.ExtStream: true}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resp, err := t.Do(ctx, req)
	if err != nil {
		return err
	}

	if reqVerbose {
		ver, _ := resp.Extensions[httpcore.ExtHTTPVersion].(string)
		fmt.Fprintf(os.Stderr, "%s %d\n", ver, resp.StatusCode)
		for _, e := range resp.Header {
			fmt.Fprintf(os.Stderr, "%s: %s\n", e.Name, e.Value)
		}
		fmt.Fprintln(os.Stderr)
	}

	if resp.Stream != nil {
		defer resp.Stream.Close()
		for {
			chunk, err := resp.Stream.Next(ctx)
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			os.Stdout.Write(chunk)
		}
		return nil
	}

	os.Stdout.Write(resp.Content)
	return nil
}
