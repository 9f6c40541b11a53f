package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/unkn0wn-root/zest/internal/config"
	"github.com/unkn0wn-root/zest/internal/errdef"
	"github.com/unkn0wn-root/zest/internal/filesvc"
	"github.com/unkn0wn-root/zest/internal/history"
	"github.com/unkn0wn-root/zest/internal/httpclient"
	"github.com/unkn0wn-root/zest/internal/logging"
	"github.com/unkn0wn-root/zest/internal/printer"
	"github.com/unkn0wn-root/zest/internal/runner"
	"github.com/unkn0wn-root/zest/internal/scripts"
	"github.com/unkn0wn-root/zest/internal/telemetry"
	"github.com/unkn0wn-root/zest/internal/webdriver/builtin"
	"github.com/unkn0wn-root/zest/internal/zest"
)

var (
	version = "dev"
	commit  = "unknown"
)

const usage = "Usage: -script <file> [-summary | -list] [-debug] [-timeout <timeout for requests in seconds>] [-prefix <http://prefix>] [-token <name>=<value>]...\n" +
	"    [-http-auth-site <site> -http-auth-realm <realm> -http-auth-user <user> -http-auth-password <password>]\n" +
	"    [-insecure <skip the SSL certificate check>] [-recursive]\n" +
	"       -history [-script <file>] | -history-delete <id> | -init-settings | -version\n"

const (
	exitOK      = 0
	exitUsage   = 1
	exitLoad    = 2
	exitRuntime = 3
)

type mode int

const (
	modeRun mode = iota
	modeSummary
	modeList
	modeHistory
	modeHistoryDelete
	modeInitSettings
	modeVersion
)

type options struct {
	script    string
	mode      mode
	debug     bool
	timeout   time.Duration
	prefix    string
	tokens    map[string]string
	auth      zest.HTTPAuthentication
	insecure  bool
	recursive bool
	deleteID  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args)
	if err != nil {
		fmt.Fprintln(stderr, errdef.Message(err))
		fmt.Fprint(stderr, usage)
		return exitUsage
	}

	settings, handle, err := config.LoadSettings()
	if err != nil {
		if opts.mode == modeInitSettings {
			fmt.Fprintln(stderr, err)
			return exitLoad
		}
		fmt.Fprintf(stderr, "Warning: settings ignored: %v\n", err)
		settings = config.NormaliseSettings(config.DefaultSettings())
	}
	logger, err := logging.New(settings.Log, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Warning: logging disabled: %v\n", err)
		logger = logging.Nop()
	}
	defer logger.Close()

	switch opts.mode {
	case modeHistory:
		return showHistory(opts, settings, stdout, stderr)
	case modeHistoryDelete:
		return deleteHistory(opts, settings, stdout, stderr)
	case modeInitSettings:
		return initSettings(handle, stdout, stderr)
	case modeVersion:
		return showVersion(settings, stdout)
	}

	fsys := afero.NewOsFs()
	paths, err := scriptPaths(fsys, opts)
	if err != nil {
		fmt.Fprintln(stderr, errdef.Message(err))
		return exitLoad
	}

	loaded := make([]*zest.Script, 0, len(paths))
	for _, path := range paths {
		s, err := prepare(fsys, path, opts, stderr)
		if err != nil {
			fmt.Fprintln(stderr, errdef.Message(err))
			return exitLoad
		}
		loaded = append(loaded, s)
	}

	switch opts.mode {
	case modeSummary:
		for _, s := range loaded {
			if err := printer.Summary(stdout, s); err != nil {
				return exitRuntime
			}
		}
		return exitOK
	case modeList:
		for _, s := range loaded {
			if err := printer.List(stdout, s); err != nil {
				return exitRuntime
			}
		}
		return exitOK
	}

	return execute(ctx, fsys, paths, loaded, opts, settings, logger, stdout, stderr)
}

func parseArgs(args []string) (options, error) {
	opts := options{tokens: make(map[string]string)}
	var summary, list, hist, initCfg, showVer bool

	fs := flag.NewFlagSet("zest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.script, "script", "", "script file or directory")
	fs.BoolVar(&summary, "summary", false, "print a summary of the script")
	fs.BoolVar(&list, "list", false, "list the statements of the script")
	fs.BoolVar(&opts.debug, "debug", false, "echo statements and requests")
	fs.Func("timeout", "request timeout in seconds", func(raw string) error {
		secs, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || secs < 0 {
			return errors.New("-timeout must be a number")
		}
		opts.timeout = time.Duration(secs) * time.Second
		return nil
	})
	fs.StringVar(&opts.prefix, "prefix", "", "replace the script prefix")
	fs.Func("token", "name=value, repeatable", func(raw string) error {
		name, value, ok := strings.Cut(raw, "=")
		if !ok || name == "" {
			return fmt.Errorf("Invalid token, expected name=value : %s", raw)
		}
		opts.tokens[name] = value
		return nil
	})
	fs.StringVar(&opts.auth.Site, "http-auth-site", "", "site for basic authentication")
	fs.StringVar(&opts.auth.Realm, "http-auth-realm", "", "realm for basic authentication")
	fs.StringVar(&opts.auth.Username, "http-auth-user", "", "user for basic authentication")
	fs.StringVar(&opts.auth.Password, "http-auth-password", "", "password for basic authentication")
	fs.BoolVar(&opts.insecure, "insecure", false, "skip the SSL certificate check")
	fs.BoolVar(&opts.recursive, "recursive", false, "include sub directories when -script is a directory")
	fs.BoolVar(&hist, "history", false, "list recorded runs, only those of -script when given")
	fs.StringVar(&opts.deleteID, "history-delete", "", "delete the recorded run with this id")
	fs.BoolVar(&initCfg, "init-settings", false, "write a default settings file")
	fs.BoolVar(&showVer, "version", false, "print the version, browsers and script engines")

	if err := fs.Parse(args); err != nil {
		msg := err.Error()
		if name, ok := strings.CutPrefix(msg, "flag provided but not defined: "); ok {
			msg = "Parameter not recognised: " + name
		} else if i := strings.LastIndex(msg, ": "); strings.HasPrefix(msg, "invalid value") && i >= 0 {
			msg = msg[i+2:]
		}
		return options{}, errdef.New(errdef.CodeUsage, "%s", msg)
	}
	if fs.NArg() > 0 {
		return options{}, errdef.New(errdef.CodeUsage, "Parameter not recognised: %s", fs.Arg(0))
	}
	modes := []struct {
		set  bool
		mode mode
	}{
		{summary, modeSummary},
		{list, modeList},
		{hist, modeHistory},
		{opts.deleteID != "", modeHistoryDelete},
		{initCfg, modeInitSettings},
		{showVer, modeVersion},
	}
	for _, m := range modes {
		if !m.set {
			continue
		}
		if opts.mode != modeRun {
			return options{}, errdef.New(errdef.CodeUsage, "only one of -summary, -list, -history, -history-delete, -init-settings and -version can be used")
		}
		opts.mode = m.mode
	}
	switch opts.mode {
	case modeRun, modeSummary, modeList:
		if strings.TrimSpace(opts.script) == "" {
			return options{}, errdef.New(errdef.CodeUsage, "No script specified")
		}
	}
	return opts, nil
}

// scriptPaths expands a directory argument into the scripts it holds.
func scriptPaths(fsys afero.Fs, opts options) ([]string, error) {
	info, err := fsys.Stat(opts.script)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errdef.New(errdef.CodeLoad, "Script %s does not exist", opts.script)
		}
		return nil, errdef.Wrap(errdef.CodeLoad, err, "stat %s", opts.script)
	}
	if !info.IsDir() {
		return []string{opts.script}, nil
	}
	entries, err := filesvc.ListScripts(fsys, opts.script, opts.recursive)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeLoad, err, "")
	}
	if len(entries) == 0 {
		return nil, errdef.New(errdef.CodeLoad, "No scripts found in %s", opts.script)
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	return paths, nil
}

func prepare(fsys afero.Fs, path string, opts options, stderr io.Writer) (*zest.Script, error) {
	s, err := filesvc.LoadScript(fsys, path)
	if err != nil {
		return nil, err
	}
	if s.ZestVersion != zest.Version {
		fmt.Fprintf(stderr,
			"Warning: Zest version %s is not the latest (%s) and so may not be supported\n",
			s.ZestVersion, zest.Version)
	}
	if opts.prefix != "" {
		if err := s.SetPrefix(s.Prefix, opts.prefix); err != nil {
			return nil, errdef.Wrap(errdef.CodeLoad, err, "")
		}
	}
	if opts.auth != (zest.HTTPAuthentication{}) {
		auth := opts.auth
		s.Authentication = []zest.Authentication{&auth}
	}
	return s, nil
}

func execute(
	ctx context.Context,
	fsys afero.Fs,
	paths []string,
	loaded []*zest.Script,
	opts options,
	settings config.Settings,
	logger *logging.Logger,
	stdout, stderr io.Writer,
) int {
	telemetryCfg := telemetry.ConfigFromEnv(os.Getenv)
	telemetryCfg.Version = version
	instr, err := telemetry.New(telemetryCfg)
	if err != nil {
		logger.Warn().Err(err).Msg("telemetry init")
		instr = telemetry.Noop()
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := instr.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown")
		}
	}()

	client := httpclient.NewClient(httpclient.Options{
		Timeout:            opts.timeout,
		FollowRedirects:    true,
		InsecureSkipVerify: opts.insecure,
	})
	client.SetTelemetry(instr)
	defer client.Close()

	var store *history.Store
	if settings.History.Enabled || settings.History.Path != "" {
		store, err = openHistory(settings)
		if err != nil {
			logger.Warn().Err(err).Msg("history disabled")
			store = nil
		} else {
			defer store.Close()
		}
	}

	driverTimeout := time.Duration(settings.WebDriver.TimeoutSeconds) * time.Second
	r := runner.New(runner.Options{
		HTTP:   client,
		Output: stdout,
		Drivers: builtin.Registry(builtin.Options{
			ChromePath: settings.WebDriver.ChromePath,
			Endpoints:  settings.WebDriver.Endpoints,
			Timeout:    driverTimeout,
		}),
		FS:                 fsys,
		Logger:             &logger.Logger,
		Debug:              opts.debug,
		StopOnAssertFail:   settings.Runner.StopOnAssertFail,
		Timeout:            opts.timeout,
		DriverTimeout:      driverTimeout,
		InsecureSkipVerify: opts.insecure,
	})

	code := exitOK
	for i, s := range loaded {
		logger.Info().Str("script", paths[i]).Str("version", version).Str("commit", commit).Msg("run")
		res, err := r.Run(ctx, s, opts.tokens)
		if store != nil {
			record(store, paths[i], s, opts.tokens, res, err, logger)
		}
		switch {
		case err != nil:
			fmt.Fprintf(stderr, "Error running script: %v\n", err)
			code = exitRuntime
		case res.Outcome == runner.OutcomeAssertionFailed:
			code = exitRuntime
		}
		if res.Outcome == runner.OutcomeCancelled {
			break
		}
	}
	return code
}

func record(
	store *history.Store,
	path string,
	s *zest.Script,
	tokens map[string]string,
	res runner.Result,
	runErr error,
	logger *logging.Logger,
) {
	entry := history.Entry{
		ExecutedAt:  time.Now().Add(-res.Duration),
		ScriptPath:  path,
		Title:       s.Title,
		Outcome:     string(res.Outcome),
		Requests:    res.Requests,
		Duration:    res.Duration,
		ReturnValue: res.ReturnValue,
		Tokens:      tokens,
	}
	if abs, err := filepath.Abs(path); err == nil {
		entry.ScriptPath = abs
	}
	if runErr != nil {
		entry.Error = runErr.Error()
	}
	for _, f := range res.Failures {
		entry.Failures = append(entry.Failures, f.Message)
	}
	if _, err := store.Append(entry); err != nil {
		logger.Warn().Err(err).Msg("record history")
	}
}

func openHistory(settings config.Settings) (*history.Store, error) {
	path := settings.History.Path
	if path == "" {
		path = filepath.Join(config.Dir(), "history.db")
	}
	return history.Open(path, settings.History.MaxEntries)
}

// showHistory prints recorded runs newest first, limited to one script
// when -script is set.
func showHistory(opts options, settings config.Settings, stdout, stderr io.Writer) int {
	store, err := openHistory(settings)
	if err != nil {
		fmt.Fprintln(stderr, errdef.Message(err))
		return exitLoad
	}
	defer store.Close()

	var entries []history.Entry
	if opts.script != "" {
		path := opts.script
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		entries, err = store.ByScript(path)
	} else {
		entries, err = store.Entries()
	}
	if err != nil {
		fmt.Fprintln(stderr, errdef.Message(err))
		return exitRuntime
	}
	if len(entries) == 0 {
		fmt.Fprintln(stdout, "No runs recorded")
		return exitOK
	}
	for _, e := range entries {
		fmt.Fprintf(stdout, "%s  %s  %-16s %3d requests  %8s  %s\n",
			e.ID,
			e.ExecutedAt.Local().Format(time.DateTime),
			e.Outcome,
			e.Requests,
			e.Duration.Round(time.Millisecond),
			e.ScriptPath,
		)
		for _, f := range e.Failures {
			fmt.Fprintf(stdout, "    %s\n", f)
		}
		if e.Error != "" {
			fmt.Fprintf(stdout, "    %s\n", e.Error)
		}
	}
	return exitOK
}

func deleteHistory(opts options, settings config.Settings, stdout, stderr io.Writer) int {
	store, err := openHistory(settings)
	if err != nil {
		fmt.Fprintln(stderr, errdef.Message(err))
		return exitLoad
	}
	defer store.Close()

	ok, err := store.Delete(strings.TrimSpace(opts.deleteID))
	if err != nil {
		fmt.Fprintln(stderr, errdef.Message(err))
		return exitRuntime
	}
	if !ok {
		fmt.Fprintf(stderr, "No recorded run with id %s\n", opts.deleteID)
		return exitRuntime
	}
	fmt.Fprintf(stdout, "Deleted %s\n", opts.deleteID)
	return exitOK
}

// initSettings writes the default settings where they would be loaded
// from. An existing file is left alone.
func initSettings(handle config.SettingsHandle, stdout, stderr io.Writer) int {
	if _, err := os.Stat(handle.Path); err == nil {
		fmt.Fprintf(stderr, "Settings file %s already exists\n", handle.Path)
		return exitUsage
	}
	if err := config.SaveSettings(config.DefaultSettings(), handle); err != nil {
		fmt.Fprintln(stderr, err)
		return exitRuntime
	}
	fmt.Fprintf(stdout, "Wrote %s\n", handle.Path)
	return exitOK
}

func showVersion(settings config.Settings, stdout io.Writer) int {
	drivers := builtin.Registry(builtin.Options{
		ChromePath: settings.WebDriver.ChromePath,
		Endpoints:  settings.WebDriver.Endpoints,
	})
	engines := scripts.DefaultRegistry(io.Discard)
	fmt.Fprintf(stdout, "zest %s (%s)\n", version, commit)
	fmt.Fprintf(stdout, "Zest version: %s\n", zest.Version)
	fmt.Fprintf(stdout, "Browsers:     %s\n", strings.Join(drivers.Names(), ", "))
	fmt.Fprintf(stdout, "Engines:      %s\n", strings.Join(engines.Extensions(), ", "))
	return exitOK
}
