// Package runner executes Zest scripts: it owns the runtime state of one
// execution (variables, last request and response, browser handles) and
// walks the statement tree in document order.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/unkn0wn-root/zest/internal/errdef"
	"github.com/unkn0wn-root/zest/internal/httpclient"
	"github.com/unkn0wn-root/zest/internal/printer"
	"github.com/unkn0wn-root/zest/internal/scripts"
	"github.com/unkn0wn-root/zest/internal/vars"
	"github.com/unkn0wn-root/zest/internal/webdriver"
	"github.com/unkn0wn-root/zest/internal/zest"
)

// Scanner performs the active scan requested by an action-scan statement.
// Runners without a scanner skip those statements.
type Scanner interface {
	Scan(ctx context.Context, target, scanName string, req *httpclient.Request, resp *httpclient.Response) (string, error)
}

type Options struct {
	HTTP    httpclient.Sender
	Output  io.Writer
	Globals *vars.GlobalStore
	Drivers *webdriver.Registry
	Engines *scripts.Registry
	Scanner Scanner
	FS      afero.Fs
	Logger  *zerolog.Logger

	Debug            bool
	StopOnAssertFail bool
	// Timeout bounds every request. Zero leaves the client default.
	Timeout time.Duration
	// DriverTimeout bounds every call on a launched browser. Zero means
	// calls wait as long as the run context allows.
	DriverTimeout      time.Duration
	InsecureSkipVerify bool
	// Proxy is host:port, applied to requests and launched browsers.
	Proxy string
}

// DefaultOptions stops on the first failed assertion and uses the process
// wide global store.
func DefaultOptions() Options {
	return Options{StopOnAssertFail: true}
}

type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeAssertionFailed Outcome = "assertion-failed"
	OutcomeFailed          Outcome = "failed"
	OutcomeCancelled       Outcome = "cancelled"
)

// Failure is an assertion that did not hold.
type Failure struct {
	Statement zest.Statement
	Message   string
}

type Result struct {
	ReturnValue string
	Outcome     Outcome
	Failures    []Failure
	Requests    int
	Duration    time.Duration
}

// StatementError annotates err with the statement that raised it.
type StatementError struct {
	Statement zest.Statement
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("%s %d: %v", e.Statement.ElementType(), e.Statement.Base().Index, e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

// FailError is raised by action-fail.
type FailError struct {
	Priority zest.Priority
	Message  string
}

func (e *FailError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Priority, e.Message)
}

type Runner struct {
	opts    Options
	out     io.Writer
	log     zerolog.Logger
	http    httpclient.Sender
	ownHTTP *httpclient.Client
	globals *vars.GlobalStore
	drivers *webdriver.Registry
	engines *scripts.Registry
	fs      afero.Fs

	stopped atomic.Bool

	script     *zest.Script
	local      *vars.Store
	standard   *vars.Store
	resolver   *vars.Resolver
	proxy      string
	sessions   map[string]*session
	files      map[afero.File]struct{}
	lastReq    *httpclient.Request
	lastResp   *httpclient.Response
	start      time.Time
	failures   []Failure
	requests   int
	returnVal  string
	regexCache map[string]*regexp2.Regexp
}

func New(opts Options) *Runner {
	r := &Runner{
		opts:    opts,
		out:     opts.Output,
		http:    opts.HTTP,
		globals: opts.Globals,
		drivers: opts.Drivers,
		engines: opts.Engines,
		fs:      opts.FS,
		proxy:   opts.Proxy,
	}
	if r.out == nil {
		r.out = io.Discard
	}
	if opts.Logger != nil {
		r.log = *opts.Logger
	} else {
		r.log = zerolog.Nop()
	}
	if r.http == nil {
		r.ownHTTP = httpclient.NewClient(httpclient.Options{
			Timeout:            opts.Timeout,
			InsecureSkipVerify: opts.InsecureSkipVerify,
			ProxyURL:           opts.Proxy,
		})
		r.http = r.ownHTTP
	}
	if r.globals == nil {
		r.globals = vars.Globals()
	}
	if r.drivers == nil {
		r.drivers = webdriver.NewRegistry()
	}
	if r.engines == nil {
		r.engines = scripts.DefaultRegistry(r.out)
	}
	if r.fs == nil {
		r.fs = afero.NewOsFs()
	}
	r.reset(zest.NewScript(), nil)
	return r
}

// Stop asks the running script to end at the next statement boundary.
func (r *Runner) Stop() {
	r.stopped.Store(true)
}

func (r *Runner) reset(script *zest.Script, tokens map[string]string) {
	params := make(map[string]string, len(script.Parameters.Tokens)+len(tokens))
	for name, value := range script.Parameters.Tokens {
		params[name] = value
	}
	for name, value := range tokens {
		params[name] = value
	}

	r.script = script
	if r.local == nil {
		r.local = vars.NewStore("local")
		r.standard = vars.NewStore("standard")
	} else {
		r.local.Reset()
		r.standard.Reset()
	}
	r.resolver = vars.NewResolver(
		r.local,
		r.standard,
		vars.NewMapProvider("parameters", params),
		r.globals,
	)
	r.resolver.SetDelimiters(script.Parameters.Delimiters())
	r.sessions = make(map[string]*session)
	r.files = make(map[afero.File]struct{})
	r.regexCache = make(map[string]*regexp2.Regexp)
	r.lastReq = nil
	r.lastResp = nil
	r.failures = nil
	r.requests = 0
	r.returnVal = ""
	r.start = time.Now()
	r.stopped.Store(false)
}

// Run executes script with tokens overriding the script parameter
// defaults. The returned error is nil only for a successful run, or for a
// run whose assertion failures were recorded without stopping.
func (r *Runner) Run(ctx context.Context, script *zest.Script, tokens map[string]string) (res Result, err error) {
	if script == nil {
		return Result{Outcome: OutcomeFailed}, errdef.New(errdef.CodeUsage, "no script to run")
	}
	r.reset(script, tokens)
	r.log.Debug().Str("title", script.Title).Int("statements", len(script.Statements)).Msg("script start")

	defer func() {
		r.cleanup()
		res.Duration = time.Since(r.start)
		res.Failures = r.failures
		res.Requests = r.requests
		res.ReturnValue = r.returnVal
		res.Outcome = outcomeOf(err, len(r.failures))
		r.log.Debug().
			Str("outcome", string(res.Outcome)).
			Dur("duration", res.Duration).
			Int("variables", r.local.Len()).
			Strs("globals", r.globals.Names()).
			Msg("script end")
	}()

	// break and next outside of a loop end the script normally
	_, err = r.runStatements(ctx, script.Statements)
	return res, err
}

func outcomeOf(err error, failures int) Outcome {
	switch {
	case err == nil && failures > 0:
		return OutcomeAssertionFailed
	case err == nil:
		return OutcomeSuccess
	case errdef.Is(err, errdef.CodeCancelled):
		return OutcomeCancelled
	case errdef.Is(err, errdef.CodeAssertion):
		return OutcomeAssertionFailed
	default:
		return OutcomeFailed
	}
}

func (r *Runner) checkStop(ctx context.Context) error {
	if r.stopped.Load() {
		return errdef.New(errdef.CodeCancelled, "script stopped")
	}
	if err := ctx.Err(); err != nil {
		return errdef.Wrap(errdef.CodeCancelled, err, "script cancelled")
	}
	return nil
}

func (r *Runner) runStatements(ctx context.Context, list []zest.Statement) (flow, error) {
	for _, stmt := range list {
		if err := r.checkStop(ctx); err != nil {
			return flowNone, err
		}
		if stmt == nil || !stmt.Base().Enabled() {
			continue
		}
		r.log.Debug().
			Int("index", stmt.Base().Index).
			Str("element", stmt.ElementType()).
			Msg("statement")
		if r.opts.Debug {
			fmt.Fprintf(r.out, "%d %s\n", stmt.Base().Index, printer.Describe(stmt))
		}
		f, err := r.runStatement(ctx, stmt)
		if err != nil {
			return flowNone, annotate(stmt, err)
		}
		if f != flowNone {
			return f, nil
		}
	}
	return flowNone, nil
}

func annotate(stmt zest.Statement, err error) error {
	var se *StatementError
	if errors.As(err, &se) {
		return err
	}
	return &StatementError{Statement: stmt, Err: err}
}

// cleanup releases everything the run acquired. It runs on every exit path.
func (r *Runner) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	quit := make(map[webdriver.Driver]bool)
	for handle, s := range r.sessions {
		if !quit[s.driver] {
			quit[s.driver] = true
			if err := s.driver.Quit(ctx); err != nil {
				r.log.Warn().Err(err).Str("handle", handle).Msg("quit driver")
			}
		}
		delete(r.sessions, handle)
	}
	for f := range r.files {
		if err := f.Close(); err != nil {
			r.log.Warn().Err(err).Str("file", f.Name()).Msg("close loop file")
		}
		delete(r.files, f)
	}
	if r.ownHTTP != nil {
		r.ownHTTP.Close()
	}
	if fl, ok := r.out.(interface{ Flush() error }); ok {
		if err := fl.Flush(); err != nil {
			r.log.Warn().Err(err).Msg("flush output")
		}
	}
}
