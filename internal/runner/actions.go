package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/unkn0wn-root/zest/internal/errdef"
	"github.com/unkn0wn-root/zest/internal/zest"
)

func (r *Runner) actionPrint(a *zest.ActionPrint) error {
	if _, err := fmt.Fprintln(r.out, r.ReplaceVariables(a.Message, false)); err != nil {
		r.log.Warn().Err(err).Int("index", a.Index).Msg("print")
	}
	return nil
}

func (r *Runner) actionSleep(ctx context.Context, a *zest.ActionSleep) error {
	return sleep(ctx, time.Duration(a.Milliseconds)*time.Millisecond)
}

func (r *Runner) actionFail(a *zest.ActionFail) error {
	priority := a.Priority
	if !priority.Valid() {
		priority = zest.PriorityHigh
	}
	return errdef.Wrap(errdef.CodeAction, &FailError{
		Priority: priority,
		Message:  r.ReplaceVariables(a.Message, false),
	}, "")
}

// actionInvoke runs an external script file with the engine registered for
// its extension. Parameters are bound by name after token expansion.
func (r *Runner) actionInvoke(ctx context.Context, a *zest.ActionInvoke) error {
	path := r.ReplaceVariables(a.Script, false)
	engine, err := r.engines.EngineForPath(path)
	if err != nil {
		return errdef.Wrap(errdef.CodeAction, err, "invoke %s", path)
	}
	source, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return errdef.Wrap(errdef.CodeIO, err, "read script %s", path)
	}
	params := make(map[string]any, len(a.Parameters))
	for _, p := range a.Parameters {
		params[p.Name] = r.ReplaceVariables(p.Value, false)
	}
	res, err := engine.Eval(ctx, string(source), r.bindings(params))
	if err != nil {
		if errdef.Is(err, errdef.CodeCancelled) {
			return err
		}
		return errdef.Wrap(errdef.CodeAction, err, "invoke %s", path)
	}
	r.SetVariable(a.VariableName, res.Value)
	return nil
}

func (r *Runner) actionScan(ctx context.Context, a *zest.ActionScan) error {
	if r.opts.Scanner == nil {
		r.log.Debug().Int("index", a.Index).Msg("no scanner configured, scan skipped")
		return nil
	}
	target := r.Variable(a.TargetParameter)
	result, err := r.opts.Scanner.Scan(ctx, target, a.ScanName, r.lastReq, r.lastResp)
	if err != nil {
		return errdef.Wrap(errdef.CodeAction, err, "scan %s", a.ScanName)
	}
	if result != "" {
		fmt.Fprintln(r.out, result)
	}
	return nil
}
