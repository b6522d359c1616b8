package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/livemark/internal/bridge"
	"github.com/dshills/livemark/internal/config"
	"github.com/dshills/livemark/internal/document"
	"github.com/dshills/livemark/internal/engine"
	"github.com/dshills/livemark/internal/event"
	"github.com/dshills/livemark/internal/logging"
	"github.com/dshills/livemark/internal/render"
	"github.com/dshills/livemark/internal/resolve"
	"github.com/dshills/livemark/internal/vault"
)

// session holds what every command needs: configuration, logger, event bus
// and the collaborators answering widget data.
type session struct {
	cfg    *config.Config
	log    *logging.Logger
	bus    *event.Bus
	collab resolve.Collaborators

	client  *bridge.Client
	vault   *vault.Vault
	logFile *os.File
}

// openSession loads the configuration, applies flag overrides and connects
// the configured collaborators. quiet sends logs nowhere unless --log-file
// is set; the interactive viewer owns the terminal.
func openSession(cmd *cobra.Command, quiet bool) (*session, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	for flag, dst := range map[string]*string{
		"vault":     &cfg.Vault.Root,
		"bridge":    &cfg.Bridge.URL,
		"theme":     &cfg.Render.Theme,
		"glyphs":    &cfg.Render.Glyphs,
		"log-level": &cfg.Log.Level,
	} {
		if flags.Changed(flag) {
			*dst, _ = flags.GetString(flag)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &session{cfg: cfg}
	logCfg := cfg.Log.Logging()
	if quiet {
		logCfg.Output = io.Discard
	}
	if logPath, _ := flags.GetString("log-file"); logPath != "" {
		s.logFile, err = os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		logCfg.Output = s.logFile
	}
	s.log = logging.New(logCfg)
	s.bus = event.NewBus(event.WithLogger(s.log))

	if err := s.connect(cmd.Context()); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// connect builds the collaborators. The bridge answers everything it can;
// a vault, when configured, answers embeds from disk.
func (s *session) connect(ctx context.Context) error {
	if url := s.cfg.Bridge.URL; url != "" {
		s.client = bridge.New(bridge.Config{
			URL:         url,
			DialTimeout: s.cfg.Bridge.DialTimeout.Std(),
			CallTimeout: s.cfg.Bridge.CallTimeout.Std(),
			MaxFailures: s.cfg.Bridge.MaxFailures,
			OpenTimeout: s.cfg.Bridge.OpenTimeout.Std(),
		}, bridge.WithPublisher(s.bus), bridge.WithLogger(s.log))
		if err := s.client.Connect(ctx); err != nil {
			// Calls reconnect on demand; widgets show the failure meanwhile.
			s.log.Warn("bridge %s: %v", url, err)
		}
		s.collab = s.client.Collaborators()
	}
	if root := s.cfg.Vault.Root; root != "" {
		v, err := vault.Open(ctx, root, vault.WithLogger(s.log))
		if err != nil {
			return fmt.Errorf("opening vault: %w", err)
		}
		s.vault = v
		s.collab.Embeds = v
		s.log.Info("vault %s: %d notes", v.Root(), v.Len())
	}
	return nil
}

// engine creates an engine on the session's bus.
func (s *session) engine(opts ...engine.Option) (*engine.Engine, error) {
	opts = append([]engine.Option{engine.WithLogger(s.log), engine.WithBus(s.bus)}, opts...)
	return engine.New(s.cfg, s.collab, opts...)
}

// theme returns the configured color theme.
func (s *session) theme() (*render.Theme, error) {
	return render.ThemeByName(s.cfg.Render.Theme)
}

// Close releases the collaborators and flushes the log.
func (s *session) Close() error {
	var errs []error
	if s.client != nil {
		errs = append(errs, s.client.Close())
	}
	if s.vault != nil {
		errs = append(errs, s.vault.Close())
	}
	if s.bus != nil {
		s.bus.Close()
	}
	if s.log != nil {
		// Syncing stderr fails on some platforms; nothing useful to report.
		_ = s.log.Sync()
	}
	if s.logFile != nil {
		errs = append(errs, s.logFile.Close())
	}
	return errors.Join(errs...)
}

// readDocument reads a markdown file, or standard input for "-".
func readDocument(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// selectionAt places the cursor at the start of a source line. A negative
// or out of range line leaves nothing active.
func selectionAt(doc *document.Document, line int) document.Selection {
	if line < 0 || line >= doc.LineCount() {
		return document.NewSelection()
	}
	return document.Cursor(doc.Line(line).From)
}

// printerOptions maps --color onto the printer.
func printerOptions(cmd *cobra.Command, width int) ([]render.PrinterOption, error) {
	opts := []render.PrinterOption{render.WithWidth(width)}
	mode, _ := cmd.Flags().GetString("color")
	switch mode {
	case "auto":
	case "on":
		opts = append(opts, render.WithColor(true))
	case "off":
		opts = append(opts, render.WithColor(false))
	default:
		return nil, fmt.Errorf("invalid --color %q (must be auto, on or off)", mode)
	}
	return opts, nil
}
