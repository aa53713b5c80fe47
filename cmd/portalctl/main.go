// Command portalctl drives the student portal API from a terminal. The
// session is kept between invocations in the configured backend (a file by
// default).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	goPortal "github.com/MrEthical07/goPortal"
	"github.com/MrEthical07/goPortal/authapi"
	"github.com/MrEthical07/goPortal/internal/logging"
	"github.com/MrEthical07/goPortal/pipeline"
	"github.com/rs/zerolog"
)

const exitUsage = 2

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"login":           {"login -email E -password P [-portal student|lecturer] [-role Admin|Lecturer]", runLogin},
	"logout":          {"logout", runLogout},
	"whoami":          {"whoami", runWhoami},
	"refresh":         {"refresh", runRefresh},
	"register":        {"register -name N -email E -password P [-confirm P] [-code SE123456]", runRegister},
	"verify-otp":      {"verify-otp -email E -otp 123456", runVerifyOTP},
	"resend-otp":      {"resend-otp -email E", runResendOTP},
	"forgot-password": {"forgot-password -email E", runForgotPassword},
	"reset-password":  {"reset-password -email E -otp 123456 -password P [-confirm P]", runResetPassword},
	"change-password": {"change-password -current P -new P [-confirm P]", runChangePassword},
	"users":           {"users list|get|update|role|delete [flags]", runUsers},
	"route":           {"route <path>", runRoute},
	"bench":           {"bench [-n 1000] [-concurrency 32]", runBench},
}

// app carries the built client and the output streams to every command.
type app struct {
	client *goPortal.Client
	out    io.Writer
	errOut io.Writer
	logger zerolog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("portalctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath = fs.String("config", "", "path to a YAML config file")
		envFile    = fs.String("env-file", ".env", "dotenv file loaded before the config")
		profile    = fs.String("profile", "", "session profile; overrides session.profile")
		logLevel   = fs.String("log-level", "", "debug|info|warn|error; overrides logging.level")
		events     = fs.Bool("events", false, "write lifecycle events to stderr as JSON lines")
	)
	fs.Usage = func() { usage(fs) }
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		usage(fs)
		return exitUsage
	}
	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", fs.Arg(0))
		usage(fs)
		return exitUsage
	}

	explicitEnv := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "env-file" {
			explicitEnv = true
		}
	})
	if err := loadEnvFile(*envFile, explicitEnv); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if *profile != "" {
		cfg.Portal.Session.Profile = *profile
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *events {
		cfg.Portal.Events.Enabled = true
		cfg.Portal.Events.DropIfFull = false
	}

	logger := logging.NewWriter(stderr, cfg.Environment, cfg.Logging.Level)
	client, err := goPortal.New().
		WithConfig(cfg.Portal).
		WithLogger(logger).
		WithEventSink(goPortal.NewJSONWriterSink(stderr)).
		WithResetter(func(_ context.Context, info pipeline.ResetInfo) {
			fmt.Fprintf(stderr, "session ended (%s); sign in again with: portalctl login\n", info.Reason)
		}).
		Build()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer client.Close()

	a := &app{client: client, out: stdout, errOut: stderr, logger: logger}
	if err := cmd.run(ctx, a, fs.Args()[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) || errors.Is(err, errUsage) {
			return exitUsage
		}
		fmt.Fprintln(stderr, describe(err))
		return 1
	}
	return 0
}

var errUsage = errors.New("usage")

func usage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintln(out, "usage: portalctl [global flags] <command> [flags]")
	fmt.Fprintln(out, "\ncommands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %s\n", commands[name].usage)
	}
	fmt.Fprintln(out, "\nglobal flags:")
	fs.PrintDefaults()
}

// describe renders err for a terminal user.
func describe(err error) string {
	var (
		verr *authapi.ValidationError
		cerr *authapi.CooldownError
		perr *pipeline.Error
	)
	switch {
	case errors.As(err, &verr):
		return "invalid " + verr.Field + ": " + verr.Message
	case errors.As(err, &cerr):
		return cerr.Error()
	case errors.As(err, &perr):
		if perr.IsTransport() {
			return "cannot reach the portal API: " + perr.Message
		}
		return fmt.Sprintf("error %d: %s", perr.StatusCode, perr.Message)
	default:
		return err.Error()
	}
}

// newFlags returns a flag set for a subcommand that reports errors on a's
// error stream.
func newFlags(a *app, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

func required(fs *flag.FlagSet, names ...string) error {
	var missing []string
	for _, name := range names {
		if f := fs.Lookup(name); f == nil || f.Value.String() == "" {
			missing = append(missing, "-"+name)
		}
	}
	if len(missing) > 0 {
		fmt.Fprintf(fs.Output(), "%s: missing %s\n", fs.Name(), strings.Join(missing, ", "))
		return errUsage
	}
	return nil
}
