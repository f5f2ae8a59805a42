// Package cli implements the blog command-line client.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/blogfront/internal/account"
	"github.com/me/blogfront/internal/apiclient"
	"github.com/me/blogfront/internal/blogapi"
	"github.com/me/blogfront/internal/config"
	"github.com/me/blogfront/internal/logging"
	"github.com/me/blogfront/internal/session"
	"github.com/me/blogfront/internal/storage"
	"github.com/me/blogfront/internal/telemetry"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

// app holds everything a command needs. It is populated by the root
// command's PersistentPreRunE.
type app struct {
	flagConfig    string
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string
	flagOutput    string
	flagBackend   string

	stdin  io.Reader
	in     *bufio.Reader
	stdout io.Writer
	stderr io.Writer

	cfg     config.ClientConfig
	logger  *slog.Logger
	session *session.Store
	tracing *telemetry.Tracing
	api     *apiclient.Client
	auth    *blogapi.AuthClient
	posts   *blogapi.PostsClient
	account *account.Service
}

// Execute runs the CLI with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	a.close()
	if err != nil {
		a.log().Debug("command failed", "error", err)
		fmt.Fprintln(stderr, "Error:", describe(err, a.cfg.APIURL))
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "blog",
		Short: "Command-line client for the blog",
		Long:  "blog reads, searches and publishes posts on a blog backend, keeping your login between runs.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flagConfig, "config", "", "Config file (default ~/.blog/config.yaml or BLOG_CONFIG)")
	pf.StringVar(&a.flagServer, "server", "", "Blog API URL (or BLOG_API_URL, default "+config.DefaultAPIURL+")")
	pf.BoolVar(&a.flagDebug, "debug", false, "Enable debug logging")
	pf.StringVar(&a.flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&a.flagLogFormat, "log-format", "", "Log format (text, json)")
	pf.StringVarP(&a.flagOutput, "output", "o", outputTable, "Output format (table, json, yaml)")
	pf.StringVar(&a.flagBackend, "session-backend", "", "Session storage (file, sqlite, memory)")

	root.AddCommand(
		newRegisterCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newPostsCmd(a),
		newVersionCmd(a),
	)
	return root
}

// setup loads configuration and wires the session, HTTP adapter and
// resource clients. Flags override the loaded configuration.
func (a *app) setup(cmd *cobra.Command) error {
	if err := checkOutput(a.flagOutput); err != nil {
		return err
	}

	cfg, err := config.Load(a.flagConfig)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.APIURL = a.flagServer
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.flagLogLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = a.flagLogFormat
	}
	if flags.Changed("session-backend") {
		cfg.SessionBackend = a.flagBackend
	}
	if a.flagDebug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Normalize(); err != nil {
		return err
	}
	a.cfg = cfg

	a.logger = logging.NewLoggerWithWriter(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, a.stderr)

	ctx := cmd.Context()
	st, err := storage.Open(ctx, cfg.SessionBackend, cfg.SessionPath(), a.logger)
	if err != nil {
		// Still usable, but the login will not survive this run.
		a.logger.Warn("session storage unavailable, keeping session in memory", "backend", cfg.SessionBackend, "error", err)
		st = nil
	}
	a.session = session.New(st, a.logger)

	a.tracing, err = telemetry.Init(ctx, cfg.TraceExporter, Version, a.stderr, a.logger)
	if err != nil {
		return err
	}

	a.api = apiclient.NewClient(cfg.APIURL, a.session, a.logger,
		apiclient.WithTimeout(cfg.HTTPTimeout),
		apiclient.WithTransport(a.tracing.Transport),
	)
	a.auth = blogapi.NewAuthClient(a.api)
	a.posts = blogapi.NewPostsClient(a.api)
	a.account = account.NewService(a.auth, a.session, a.logger)

	a.logger.Debug("client ready", "api_url", cfg.APIURL, "session_backend", cfg.SessionBackend, "persistent", a.session.Persistent())
	return nil
}

func (a *app) close() {
	if a.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracing.Shutdown(ctx); err != nil {
			a.log().Warn("flush traces", "error", err)
		}
	}
	if a.session != nil {
		if err := a.session.Close(); err != nil {
			a.log().Warn("close session storage", "error", err)
		}
	}
}

func (a *app) log() *slog.Logger {
	return logging.OrDiscard(a.logger)
}

// Main is the entry point used by cmd/blog.
func Main(ctx context.Context) int {
	return Execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}
