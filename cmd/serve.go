package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stevehiehn/deskagent/internal/mcp"
	"github.com/stevehiehn/deskagent/internal/observability"
)

var (
	serveTransport   string
	serveHost        string
	servePort        int
	servePassword    string
	serveWorkflowDir string
	serveBaseURL     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer func() { _ = a.logger.Sync() }()

		if cmd.Flags().Changed("host") {
			a.cfg.Server.Host = serveHost
		}
		if cmd.Flags().Changed("port") {
			a.cfg.Server.Port = servePort
		}
		if servePassword != "" {
			a.cfg.Server.Password = servePassword
			a.cfg.Server.PasswordHash = ""
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := observability.InitMetrics(reg)

		srv := mcp.New(a.registry,
			mcp.WithLogger(a.logger),
			mcp.WithMetrics(metrics),
			mcp.WithVersion(version),
			mcp.WithWorkflowDir(serveWorkflowDir),
		)

		switch serveTransport {
		case "stdio":
			return srv.ServeStdio()
		case "http":
			if !a.cfg.HasPassword() {
				a.logger.Warn("no password configured; MCP endpoints will reject every request",
					zap.String("hint", "run `deskagent init --password ...` or pass --password"))
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx, a.cfg.Addr(), mcp.HTTPOptions{
				BaseURL:  serveBaseURL,
				Auth:     a.cfg,
				Gatherer: reg,
			})
		default:
			return fmt.Errorf("unknown transport %q (expected stdio or http)", serveTransport)
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveTransport, "transport", "stdio", "Transport: stdio or http")
	serveCmd.Flags().StringVar(&serveHost, "host", "0.0.0.0", "HTTP listen host")
	serveCmd.Flags().IntVar(&servePort, "port", 8765, "HTTP listen port")
	serveCmd.Flags().StringVar(&servePassword, "password", "", "Bearer token for HTTP clients (overrides config)")
	serveCmd.Flags().StringVar(&serveWorkflowDir, "workflows", "", "Directory of workflow files to expose as tools")
	serveCmd.Flags().StringVar(&serveBaseURL, "base-url", "", "Public base URL advertised to SSE clients")
	rootCmd.AddCommand(serveCmd)
}
