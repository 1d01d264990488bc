package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugKitten/KRelay/pkg/builder"
	"github.com/HugKitten/KRelay/pkg/capture"
	"github.com/HugKitten/KRelay/pkg/config"
	"github.com/HugKitten/KRelay/pkg/hook"
	"github.com/HugKitten/KRelay/pkg/logging"
	"github.com/HugKitten/KRelay/pkg/messages"
	"github.com/HugKitten/KRelay/pkg/plugins"
	"github.com/HugKitten/KRelay/pkg/protocol"
	"github.com/HugKitten/KRelay/pkg/relay"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const defaultConfigPath = "~/.krelay/config.toml"

// state is shared by the commands once Before has loaded the config
type state struct {
	configPath string
	logLevel   string
	config     config.TOMLConfig
}

func newApp() *cli.App {
	st := &state{configPath: defaultConfigPath}

	return &cli.App{
		Name:    "krelay",
		Usage:   "Intercepting relay for the game's binary protocol",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Usage:       "Path to config file",
				EnvVars:     []string{"KRELAY_CONFIG"},
				Destination: &st.configPath,
				Value:       st.configPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "Verbosity of log, valid values are: trace, debug, info, warn, error (overrides config)",
				Destination: &st.logLevel,
			},
		},
		Before: st.before,
		Commands: []*cli.Command{
			runCmd(st),
			decodeCmd(st),
			variantsCmd(st),
			buildCmd(st),
			capturesCmd(st),
		},
	}
}

func (st *state) before(ctx *cli.Context) error {
	cfg, err := config.LoadConfig(st.configPath)
	if err != nil {
		return err
	}
	st.config = cfg

	opts := cfg.LoggingOptions()
	if st.logLevel != "" {
		lvl, ok := logging.ParseLevel(st.logLevel)
		if !ok {
			return fmt.Errorf("invalid log level %q", st.logLevel)
		}
		opts.Level = lvl
	}
	if opts.Output == nil {
		opts.Output = ctx.App.ErrWriter
	}
	logging.Configure(opts)
	return nil
}

// registry builds the message registry from the configured id table
func (st *state) registry() (*protocol.Registry, error) {
	table, err := st.config.OpenTable()
	if err != nil {
		return nil, err
	}
	defer table.Close()

	reg, err := messages.NewRegistry(table)
	if err != nil {
		var cerr *protocol.ConfigurationError
		if errors.As(err, &cerr) {
			return nil, fmt.Errorf("message table %q: %w", st.config.Messages.TablePath, err)
		}
		return nil, err
	}
	return reg, nil
}

func (st *state) openCapture() (*capture.Store, error) {
	path, err := st.config.GetDatabasePath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	return capture.OpenWithOptions(path, st.config.CaptureOptions())
}

func runCmd(st *state) *cli.Command {
	var listen, upstream, websocket string
	return &cli.Command{
		Name:  "run",
		Usage: "Start the relay",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "TCP address for game clients (overrides config)", Destination: &listen},
			&cli.StringFlag{Name: "upstream", Usage: "Game server address (overrides config)", Destination: &upstream},
			&cli.StringFlag{Name: "websocket", Usage: "WebSocket listen address (overrides config)", Destination: &websocket},
		},
		Action: func(ctx *cli.Context) error {
			reg, err := st.registry()
			if err != nil {
				return err
			}

			hooks := hook.NewTable()
			installed, err := plugins.FromConfig(st.config.ToPluginsConfig(), reg)
			if err != nil {
				return err
			}
			plugins.InstallAll(hooks, installed)

			relayConfig := st.config.ToRelayConfig()
			if listen != "" {
				relayConfig.ListenAddr = listen
			}
			if upstream != "" {
				relayConfig.UpstreamAddr = upstream
			}
			if websocket != "" {
				relayConfig.WebSocketAddr = websocket
			}

			var opts []relay.Option
			if st.config.Capture.Enabled {
				store, err := st.openCapture()
				if err != nil {
					return err
				}
				defer store.Close()
				opts = append(opts, relay.WithRecorder(store))
				log.Info().Str("path", st.config.Capture.DatabasePath).Msg("Capturing frames")
			}

			srv, err := relay.NewServer(relayConfig, reg, hooks, opts...)
			if err != nil {
				return err
			}
			if err := srv.Start(); err != nil {
				return err
			}

			log.Info().
				Str("version", Version).
				Str("listen", srv.Addr().String()).
				Str("upstream", relayConfig.UpstreamAddr).
				Int("variants", len(reg.Entries())).
				Msg("KRelay started")

			<-ctx.Done()
			log.Info().Msg("Shutting down")
			return srv.Stop()
		},
	}
}

func decodeCmd(st *state) *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "Decode a hex encoded frame and print it",
		ArgsUsage: "<hex>",
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() == 0 {
				return errors.New("decode: missing frame")
			}
			raw := strings.Join(ctx.Args().Slice(), "")
			raw = strings.NewReplacer(" ", "", ":", "").Replace(raw)
			frame, err := hex.DecodeString(raw)
			if err != nil {
				return fmt.Errorf("decode: %w", err)
			}

			reg, err := st.registry()
			if err != nil {
				return err
			}
			msg, err := reg.DecodeFrame(frame)
			if err != nil {
				return err
			}
			fmt.Fprintln(ctx.App.Writer, protocol.Describe(msg))
			return nil
		},
	}
}

func variantsCmd(st *state) *cli.Command {
	return &cli.Command{
		Name:  "variants",
		Usage: "List the registered message variants",
		Action: func(ctx *cli.Context) error {
			reg, err := st.registry()
			if err != nil {
				return err
			}
			for _, e := range reg.Entries() {
				fmt.Fprintf(ctx.App.Writer, "%3d  %s\n", e.ID, e.Name)
			}
			return nil
		},
	}
}

func buildCmd(st *state) *cli.Command {
	return &cli.Command{
		Name:      "build",
		Usage:     "Fill in a message interactively and print its frame",
		ArgsUsage: "<Variant>",
		Action: func(ctx *cli.Context) error {
			name := ctx.Args().First()
			if name == "" {
				return errors.New("build: missing variant name")
			}

			reg, err := st.registry()
			if err != nil {
				return err
			}
			ctor, _, ok := reg.Lookup(name)
			if !ok {
				return fmt.Errorf("build: %w: %s", protocol.ErrUnknownVariant, name)
			}

			msg, err := builder.Run(name, ctor())
			if err != nil {
				return err
			}
			frame, err := reg.EncodeFrame(msg)
			if err != nil {
				return err
			}
			fmt.Fprintln(ctx.App.Writer, protocol.Describe(msg))
			fmt.Fprintln(ctx.App.Writer, hex.EncodeToString(frame))
			return nil
		},
	}
}

func capturesCmd(st *state) *cli.Command {
	var limit int
	return &cli.Command{
		Name:  "captures",
		Usage: "Show recently captured frames",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Usage: "Number of frames to show", Value: 20, Destination: &limit},
		},
		Action: func(ctx *cli.Context) error {
			store, err := st.openCapture()
			if err != nil {
				return err
			}
			defer store.Close()

			counts, err := store.CountByVariant()
			if err != nil {
				return err
			}
			for _, c := range counts {
				fmt.Fprintf(ctx.App.Writer, "%-16s %d\n", c.Variant, c.Count)
			}

			records, err := store.Recent(limit)
			if err != nil {
				return err
			}
			if len(records) > 0 {
				fmt.Fprintln(ctx.App.Writer)
			}
			for _, r := range records {
				status := "forwarded"
				if !r.Forwarded {
					status = "blocked"
				}
				fmt.Fprintf(ctx.App.Writer, "%s  session=%d  %-6s %-16s %-9s %s\n",
					r.CapturedAt.Format("2006-01-02 15:04:05.000"),
					r.SessionID, r.Direction, r.Variant, status, hex.EncodeToString(r.Payload))
			}
			return nil
		},
	}
}
