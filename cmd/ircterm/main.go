// Command ircterm is a terminal IRC client.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/Travis-Britz/ircterm/client"
	"github.com/Travis-Britz/ircterm/config"
	"github.com/Travis-Britz/ircterm/logstore"
	"github.com/Travis-Britz/ircterm/session"
	"github.com/Travis-Britz/ircterm/ui"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configPath string
	debug      bool
	wireLog    string
)

var rootCmd = &cobra.Command{
	Use:   "ircterm",
	Short: "A terminal IRC client",
	Long: `ircterm connects to every server in its configuration file and joins
the configured channels. Type /help in the client for the list of commands.

The configuration is TOML or YAML, chosen by file extension, and is watched
for changes: servers added while the client runs are connected right away.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration file and list its servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, s := range cfg.Servers {
			fmt.Fprintf(out, "%s\t%s:%d\t%s\t%v\n", s.Name, s.Address, s.Port, s.Nick, s.Autojoin)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "configuration file (.toml, .yaml)")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "log at debug level")
	rootCmd.Flags().StringVar(&wireLog, "wire-log", "", "copy all IRC traffic to this file")
	rootCmd.AddCommand(checkCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ircterm:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w\ncreate a configuration file or pass --config", err)
		}
		return err
	}

	logger, err := newLogger(cfg.LogFile, debug || cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	opts := []client.Option{
		client.WithLogger(logger),
		client.WithVersion(version),
	}

	if cfg.Database != "" {
		store, err := logstore.Open(cfg.Database)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, client.WithStore(store))
	}

	if wireLog == "" {
		wireLog = cfg.WireLog
	}
	if wireLog != "" {
		f, err := openAppend(wireLog)
		if err != nil {
			return fmt.Errorf("wire log: %w", err)
		}
		defer f.Close()
		opts = append(opts, client.WithWireLog(f))
	}

	servers, err := sessionConfigs(cfg)
	if err != nil {
		return err
	}

	var c *client.Client
	p := tea.NewProgram(ui.New(func(line string) { c.Input(line) }), tea.WithAltScreen())
	c = client.New(ui.Sink{Program: p}, servers, opts...)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer p.Quit()
		return c.Run(ctx)
	})
	g.Go(func() error {
		defer cancel()
		_, err := p.Run()
		return err
	})
	g.Go(func() error {
		err := config.Watch(ctx, configPath, func(cfg *config.Config, err error) {
			if err != nil {
				logger.Warn("reload configuration", zap.Error(err))
				return
			}
			servers, err := sessionConfigs(cfg)
			if err != nil {
				logger.Warn("reload configuration", zap.Error(err))
				return
			}
			logger.Info("configuration reloaded", zap.Int("servers", len(servers)))
			c.AddServers(servers)
		})
		if err != nil {
			// the client runs fine without reloads
			logger.Warn("watch configuration", zap.Error(err))
		}
		return nil
	})
	return g.Wait()
}

func sessionConfigs(cfg *config.Config) ([]session.Config, error) {
	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, err
	}
	servers := make([]session.Config, len(cfg.Servers))
	for i, s := range cfg.Servers {
		servers[i] = s.Session(timeout)
	}
	return servers, nil
}

// newLogger logs to path, never to the terminal, which belongs to the UI.
// Without a path nothing is logged.
func newLogger(path string, debug bool) (*zap.Logger, error) {
	if path == "" {
		return zap.NewNop(), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{path}
	config.ErrorOutputPaths = []string{path}
	if debug {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}

func openAppend(path string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}
