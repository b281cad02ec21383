// Package cli contains the cobra commands for the hotqueue binary.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aura-studio/hotqueue"
	"github.com/aura-studio/hotqueue/internal/config"
)

type globalFlags struct {
	configPath string
	addr       string
	db         int
	password   string
	prefix     string
	logLevel   string
}

// NewRootCommand builds the hotqueue command tree. Logs go to errOut.
func NewRootCommand(errOut io.Writer) *cobra.Command {
	var g globalFlags

	root := &cobra.Command{
		Use:           "hotqueue",
		Short:         "Redis-backed FIFO message queue",
		Long:          "hotqueue pushes, pops and consumes JSON messages stored in Redis lists.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", os.Getenv("HOTQUEUE_CONFIG"), "Path to a YAML config file")
	root.PersistentFlags().StringVar(&g.addr, "addr", "", "Redis address (host:port)")
	root.PersistentFlags().IntVar(&g.db, "db", 0, "Redis database index")
	root.PersistentFlags().StringVar(&g.password, "password", "", "Redis password")
	root.PersistentFlags().StringVar(&g.prefix, "prefix", "", "Key prefix (default hotqueue)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug|info|warn|error")

	root.AddCommand(
		newPutCommand(&g, errOut),
		newGetCommand(&g, errOut),
		newLenCommand(&g, errOut),
		newClearCommand(&g, errOut),
		newConsumeCommand(&g, errOut),
	)
	return root
}

// loadConfig layers defaults, the config file, HOTQUEUE_* env and flags.
func loadConfig(cmd *cobra.Command, g *globalFlags) (config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return cfg, err
	}
	if err := config.FromEnv(&cfg); err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Redis.Addr = g.addr
		cfg.Redis.URL = ""
	}
	if flags.Changed("db") {
		cfg.Redis.DB = g.db
	}
	if flags.Changed("password") {
		cfg.Redis.Password = g.password
	}
	if flags.Changed("prefix") {
		cfg.Prefix = g.prefix
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = g.logLevel
	}
	return cfg, nil
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w}).Level(lvl).With().Timestamp().Logger()
}

type session struct {
	cfg   config.Config
	log   zerolog.Logger
	queue *hotqueue.Queue[any]
	reg   *prometheus.Registry
}

func openSession(cmd *cobra.Command, g *globalFlags, errOut io.Writer, name string) (*session, error) {
	cfg, err := loadConfig(cmd, g)
	if err != nil {
		return nil, err
	}
	ropt, err := cfg.RedisOptions()
	if err != nil {
		return nil, err
	}
	log := newLogger(errOut, cfg.LogLevel)
	reg := prometheus.NewRegistry()

	q, err := hotqueue.Open[any](ropt, name,
		hotqueue.WithPrefix(cfg.Prefix),
		hotqueue.WithLogger(log),
		hotqueue.WithMetrics(hotqueue.NewMetrics(reg)),
		hotqueue.WithBlockInterval(cfg.BlockInterval),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "open queue %q", name)
	}
	log.Debug().Str("key", q.Key()).Str("addr", ropt.Addr).Int("db", ropt.DB).Msg("queue opened")
	return &session{cfg: cfg, log: log, queue: q, reg: reg}, nil
}

func (s *session) Close() {
	if err := s.queue.Close(); err != nil {
		s.log.Warn().Err(err).Msg("close redis connection")
	}
}

// parseMessage treats arg as JSON when it is valid JSON and as a plain
// string otherwise.
func parseMessage(arg string) any {
	var v any
	if err := json.Unmarshal([]byte(arg), &v); err == nil {
		return v
	}
	return arg
}

func printMessage(w io.Writer, msg any) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encode message")
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
