package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/stevehiehn/deskagent/internal/config"
	"github.com/stevehiehn/deskagent/internal/desktop"
	"github.com/stevehiehn/deskagent/internal/logger"
	"github.com/stevehiehn/deskagent/internal/tools"
)

// parseInputs converts ["key=value", ...] to a map.
func parseInputs(raw []string) (map[string]string, error) {
	m := map[string]string{}
	for _, kv := range raw {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid input %q, expected key=value", kv)
		}
		m[k] = v
	}
	return m, nil
}

// app is the configuration, logger and tool set shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *tools.Registry
}

func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return newApp(cfg)
}

func newApp(cfg *config.Config) (*app, error) {
	l, err := logger.New(cfg.LoggerConfig(debug))
	if err != nil {
		return nil, err
	}
	if cfg.File != "" {
		l.Debug("loaded config", zap.String("file", cfg.File))
	}
	driver := desktop.New(l)
	return &app{
		cfg:      cfg,
		logger:   l,
		registry: tools.Builtin(driver, cfg.ToolPolicy(),
			tools.WithLogger(l),
			tools.WithVision(cfg.VisionSettings(), nil),
		),
	}, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
