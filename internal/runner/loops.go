package runner

import (
	"bufio"
	"context"
	"strconv"

	"github.com/dlclark/regexp2"

	"github.com/unkn0wn-root/zest/internal/errdef"
	"github.com/unkn0wn-root/zest/internal/webdriver"
	"github.com/unkn0wn-root/zest/internal/zest"
)

// loopState yields successive loop values until ok is false.
type loopState func() (value string, ok bool, err error)

// iterate binds each value to the loop variable and runs the body. Break
// ends only this loop; return propagates to the script.
func (r *Runner) iterate(ctx context.Context, loop zest.Looper, next loopState) (flow, error) {
	base := loop.Loop()
	for {
		if err := r.checkStop(ctx); err != nil {
			return flowNone, err
		}
		value, ok, err := next()
		if err != nil {
			return flowNone, err
		}
		if !ok {
			return flowNone, nil
		}
		r.SetVariable(base.VariableName, value)
		f, err := r.runStatements(ctx, base.Statements)
		if err != nil {
			return flowNone, err
		}
		switch f {
		case flowBreak:
			return flowNone, nil
		case flowReturn:
			return flowReturn, nil
		}
	}
}

func sliceState(values []string) loopState {
	i := 0
	return func() (string, bool, error) {
		if i >= len(values) {
			return "", false, nil
		}
		i++
		return values[i-1], true, nil
	}
}

func (r *Runner) loopString(ctx context.Context, l *zest.LoopString) (flow, error) {
	return r.iterate(ctx, l, sliceState(l.Values))
}

// loopFile reads lines lazily. The handle is closed when the loop exits,
// however it exits.
func (r *Runner) loopFile(ctx context.Context, l *zest.LoopFile) (flow, error) {
	path := r.ReplaceVariables(l.PathToFile, false)
	f, err := r.fs.Open(path)
	if err != nil {
		return flowNone, errdef.Wrap(errdef.CodeIO, err, "open loop file %s", path)
	}
	r.files[f] = struct{}{}
	defer func() {
		delete(r.files, f)
		if err := f.Close(); err != nil {
			r.log.Warn().Err(err).Str("file", path).Msg("close loop file")
		}
	}()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return r.iterate(ctx, l, func() (string, bool, error) {
		if sc.Scan() {
			return sc.Text(), true, nil
		}
		if err := sc.Err(); err != nil {
			return "", false, errdef.Wrap(errdef.CodeIO, err, "read loop file %s", path)
		}
		return "", false, nil
	})
}

func (r *Runner) loopInteger(ctx context.Context, l *zest.LoopInteger) (flow, error) {
	if l.Step < 1 {
		return flowNone, errdef.New(errdef.CodeScript, "integer loop step %d, expected >= 1", l.Step)
	}
	i, done := l.Start, l.Start >= l.End
	return r.iterate(ctx, l, func() (string, bool, error) {
		if done {
			return "", false, nil
		}
		value := i
		// i < End here, so the unsigned distance is exact even when End-i
		// does not fit in an int
		if uint(l.End-i) <= uint(l.Step) {
			done = true
		} else {
			i += l.Step
		}
		return strconv.Itoa(value), true, nil
	})
}

// loopClientElements projects every matching element once at loop entry.
// Elements with an empty projection are skipped.
func (r *Runner) loopClientElements(ctx context.Context, l *zest.LoopClientElements) (flow, error) {
	d, err := r.driverFor(ctx, l.WindowHandle)
	if err != nil {
		return flowNone, err
	}
	loc, err := webdriver.ParseLocator(l.Type, r.ReplaceVariables(l.Element, false))
	if err != nil {
		return flowNone, err
	}
	found, err := d.FindElements(ctx, loc)
	if err != nil {
		return flowNone, err
	}
	values := make([]string, 0, len(found))
	for _, el := range found {
		value, err := webdriver.Project(ctx, el, l.Attribute)
		if err != nil {
			return flowNone, err
		}
		if value != "" {
			values = append(values, value)
		}
	}
	return r.iterate(ctx, l, sliceState(values))
}

func (r *Runner) loopRegex(ctx context.Context, l *zest.LoopRegex) (flow, error) {
	re, err := r.regex(l.Regex, l.CaseExact)
	if err != nil {
		return flowNone, err
	}
	input := r.Variable(l.InputVariableName)
	var m *regexp2.Match
	started := false
	return r.iterate(ctx, l, func() (string, bool, error) {
		var err error
		if !started {
			started = true
			m, err = re.FindStringMatch(input)
		} else if m != nil {
			m, err = re.FindNextMatch(m)
		}
		if err != nil {
			return "", false, errdef.Wrap(errdef.CodeScript, err, "match %q", l.Regex)
		}
		if m == nil {
			return "", false, nil
		}
		return m.String(), true, nil
	})
}
