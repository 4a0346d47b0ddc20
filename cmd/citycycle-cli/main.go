package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/sudheendra1210/Citycycle/config"
	"github.com/sudheendra1210/Citycycle/internal/bootstrap"
	"github.com/sudheendra1210/Citycycle/internal/ports"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Out    io.Writer
	// connect builds the service container; replaced in tests.
	connect func(*commandContext) (*bootstrap.ServiceContainer, error)
}

const defaultCommandTimeout = 30 * time.Second

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stderr); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmdCtx := &commandContext{
		Ctx:     ctx,
		Logger:  logger,
		Config:  cfg,
		Out:     os.Stdout,
		connect: connectServices,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		stop()
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"whoami": {
			name:        "whoami",
			description: "Resolve the current session and print the user",
			run:         runWhoami,
		},
		"send-otp": {
			name:        "send-otp",
			description: "Text a one-time code to a phone number",
			run:         runSendOTP,
		},
		"verify-otp": {
			name:        "verify-otp",
			description: "Verify a phone code and store the session token",
			run:         runVerifyOTP,
		},
		"signout": {
			name:        "signout",
			description: "Sign out of every provider and clear the stored token",
			run:         runSignOut,
		},
		"profile": {
			name:        "profile",
			description: "Update the display name or area of the current user",
			run:         runProfile,
		},
		"get": {
			name:        "get",
			description: "GET a backend API path with the session credential and print the JSON",
			run:         runGet,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: citycycle-cli <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-12s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// connectServices wires the bridge and restores persisted provider sessions.
// Commands run passes synchronously, so the bridge's Run loop is not started.
func connectServices(cmdCtx *commandContext) (*bootstrap.ServiceContainer, error) {
	svc, err := bootstrap.NewServices(&bootstrap.ServiceDeps{Config: &cmdCtx.Config, Logger: cmdCtx.Logger})
	if err != nil {
		return nil, err
	}
	if err := svc.Providers.Restore(cmdCtx.Ctx); err != nil {
		return nil, errors.Join(err, svc.Close())
	}
	return svc, nil
}

// withServices runs fn against a connected container with a bounded context.
func withServices(cmdCtx *commandContext, timeout time.Duration, fn func(context.Context, *bootstrap.ServiceContainer) error) error {
	svc, err := cmdCtx.connect(cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := svc.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("close services failed", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, timeout)
	defer cancel()
	return fn(ctx, svc)
}

type timeoutOptions struct {
	Timeout time.Duration
}

func addTimeout(fs *flag.FlagSet, opts *timeoutOptions) {
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Maximum time for the command")
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func runWhoami(cmdCtx *commandContext, args []string) error {
	fs := newFlagSet("whoami")
	var opts timeoutOptions
	addTimeout(fs, &opts)
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withServices(cmdCtx, opts.Timeout, func(ctx context.Context, svc *bootstrap.ServiceContainer) error {
		return printJSON(cmdCtx.Out, svc.Bridge.Resolve(ctx))
	})
}

type sendOTPOptions struct {
	timeoutOptions
	Phone string
	Name  string
}

func parseSendOTPFlags(args []string) (sendOTPOptions, error) {
	fs := newFlagSet("send-otp")
	var opts sendOTPOptions
	addTimeout(fs, &opts.timeoutOptions)
	fs.StringVar(&opts.Phone, "phone", "", "Phone number in E.164 form (required)")
	fs.StringVar(&opts.Name, "name", "", "Display name for a first sign-in")
	if err := fs.Parse(args); err != nil {
		return sendOTPOptions{}, err
	}
	opts.Phone = strings.TrimSpace(opts.Phone)
	if opts.Phone == "" {
		return sendOTPOptions{}, errors.New("--phone is required")
	}
	return opts, nil
}

func runSendOTP(cmdCtx *commandContext, args []string) error {
	opts, err := parseSendOTPFlags(args)
	if err != nil {
		return err
	}
	return withServices(cmdCtx, opts.Timeout, func(ctx context.Context, svc *bootstrap.ServiceContainer) error {
		if err := svc.Bridge.StartPhoneVerification(ctx, opts.Phone, opts.Name); err != nil {
			return err
		}
		return writef(cmdCtx.Out, "code sent to %s\n", opts.Phone)
	})
}

type verifyOTPOptions struct {
	timeoutOptions
	Phone string
	Code  string
}

func parseVerifyOTPFlags(args []string) (verifyOTPOptions, error) {
	fs := newFlagSet("verify-otp")
	var opts verifyOTPOptions
	addTimeout(fs, &opts.timeoutOptions)
	fs.StringVar(&opts.Phone, "phone", "", "Phone number the code was sent to (required)")
	fs.StringVar(&opts.Code, "code", "", "One-time code (required)")
	if err := fs.Parse(args); err != nil {
		return verifyOTPOptions{}, err
	}
	opts.Phone = strings.TrimSpace(opts.Phone)
	opts.Code = strings.TrimSpace(opts.Code)
	if opts.Phone == "" || opts.Code == "" {
		return verifyOTPOptions{}, errors.New("--phone and --code are required")
	}
	return opts, nil
}

func runVerifyOTP(cmdCtx *commandContext, args []string) error {
	opts, err := parseVerifyOTPFlags(args)
	if err != nil {
		return err
	}
	return withServices(cmdCtx, opts.Timeout, func(ctx context.Context, svc *bootstrap.ServiceContainer) error {
		user, err := svc.Bridge.CompletePhoneVerification(ctx, opts.Phone, opts.Code)
		if err != nil {
			return err
		}
		return printJSON(cmdCtx.Out, map[string]any{"user": user, "needs_profile": user.NeedsProfile()})
	})
}

func runSignOut(cmdCtx *commandContext, args []string) error {
	fs := newFlagSet("signout")
	var opts timeoutOptions
	addTimeout(fs, &opts)
	if err := fs.Parse(args); err != nil {
		return err
	}
	return withServices(cmdCtx, opts.Timeout, func(ctx context.Context, svc *bootstrap.ServiceContainer) error {
		if err := svc.Bridge.SignOut(ctx); err != nil {
			// Local state is already cleared; report the provider failure.
			cmdCtx.Logger.Warn("sign-out incomplete", "error", err)
		}
		return writef(cmdCtx.Out, "signed out\n")
	})
}

type profileOptions struct {
	timeoutOptions
	update ports.ProfileUpdate
}

func parseProfileFlags(args []string) (profileOptions, error) {
	fs := newFlagSet("profile")
	var opts profileOptions
	addTimeout(fs, &opts.timeoutOptions)
	var name, area string
	fs.StringVar(&name, "name", "", "New display name")
	fs.StringVar(&area, "area", "", "New area")
	if err := fs.Parse(args); err != nil {
		return profileOptions{}, err
	}
	// Only flags given on the command line are sent.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			opts.update.Name = &name
		case "area":
			opts.update.Area = &area
		}
	})
	if opts.update.Name == nil && opts.update.Area == nil {
		return profileOptions{}, errors.New("at least one of --name or --area is required")
	}
	return opts, nil
}

func runProfile(cmdCtx *commandContext, args []string) error {
	opts, err := parseProfileFlags(args)
	if err != nil {
		return err
	}
	return withServices(cmdCtx, opts.Timeout, func(ctx context.Context, svc *bootstrap.ServiceContainer) error {
		snap, err := svc.Bridge.UpdateProfile(ctx, opts.update)
		if err != nil {
			return err
		}
		return printJSON(cmdCtx.Out, snap)
	})
}

type getOptions struct {
	timeoutOptions
	Path  string
	Query url.Values
}

func parseGetFlags(args []string) (getOptions, error) {
	fs := newFlagSet("get")
	var opts getOptions
	addTimeout(fs, &opts.timeoutOptions)
	var rawQuery string
	fs.StringVar(&opts.Path, "path", "", "Backend path, e.g. /api/forecasting/bins (required)")
	fs.StringVar(&rawQuery, "query", "", "URL-encoded query string")
	if err := fs.Parse(args); err != nil {
		return getOptions{}, err
	}
	opts.Path = strings.TrimSpace(opts.Path)
	if opts.Path == "" {
		return getOptions{}, errors.New("--path is required")
	}
	if !strings.HasPrefix(opts.Path, "/") {
		opts.Path = "/" + opts.Path
	}
	q, err := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))
	if err != nil {
		return getOptions{}, fmt.Errorf("invalid --query: %w", err)
	}
	opts.Query = q
	return opts, nil
}

func runGet(cmdCtx *commandContext, args []string) error {
	opts, err := parseGetFlags(args)
	if err != nil {
		return err
	}
	return withServices(cmdCtx, opts.Timeout, func(ctx context.Context, svc *bootstrap.ServiceContainer) error {
		var out any
		if err := svc.API.GetJSON(ctx, opts.Path, opts.Query, &out); err != nil {
			return err
		}
		return printJSON(cmdCtx.Out, out)
	})
}
