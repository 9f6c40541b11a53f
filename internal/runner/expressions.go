package runner

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dlclark/regexp2"

	"github.com/unkn0wn-root/zest/internal/errdef"
	"github.com/unkn0wn-root/zest/internal/scripts"
	"github.com/unkn0wn-root/zest/internal/webdriver"
	"github.com/unkn0wn-root/zest/internal/zest"
)

const regexTimeout = 5 * time.Second

// regex compiles pattern once per run. Patterns use .NET/Java syntax so
// recorded scripts keep lookarounds and backreferences.
func (r *Runner) regex(pattern string, caseExact bool) (*regexp2.Regexp, error) {
	key := strconv.FormatBool(caseExact) + ":" + pattern
	if re, ok := r.regexCache[key]; ok {
		return re, nil
	}
	opts := regexp2.None
	if !caseExact {
		opts |= regexp2.IgnoreCase
	}
	re, err := regexp2.Compile(pattern, opts)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeScript, err, "invalid regex %q", pattern)
	}
	re.MatchTimeout = regexTimeout
	r.regexCache[key] = re
	return re, nil
}

func (r *Runner) matches(pattern string, caseExact bool, input string) (bool, error) {
	re, err := r.regex(pattern, caseExact)
	if err != nil {
		return false, err
	}
	ok, err := re.MatchString(input)
	if err != nil {
		return false, errdef.Wrap(errdef.CodeScript, err, "match %q", pattern)
	}
	return ok, nil
}

// evaluate applies the expression's own negation to its raw result.
func (r *Runner) evaluate(ctx context.Context, expr zest.Expression) (bool, error) {
	if expr == nil {
		return false, errdef.New(errdef.CodeScript, "missing expression")
	}
	ok, err := r.evaluateRaw(ctx, expr)
	if err != nil {
		return false, err
	}
	return ok != expr.Negated(), nil
}

func (r *Runner) evaluateRaw(ctx context.Context, expr zest.Expression) (bool, error) {
	switch e := expr.(type) {
	case *zest.ExpressionStatusCode:
		return r.lastResp != nil && r.lastResp.StatusCode == e.Code, nil

	case *zest.ExpressionLength:
		n := utf8.RuneCountInString(r.Variable(e.VariableName))
		return n >= e.MinLength && n <= e.MaxLength, nil

	case *zest.ExpressionRegex:
		return r.matches(e.Regex, e.CaseExact, r.Variable(e.VariableName))

	case *zest.ExpressionHeader:
		if r.lastResp == nil {
			return false, nil
		}
		subject := responseHeader(r.lastResp)
		if e.HeaderName != "" {
			values := r.lastResp.Headers.Values(e.HeaderName)
			if len(values) == 0 {
				return false, nil
			}
			subject = strings.Join(values, ", ")
		}
		return r.matches(e.Regex, e.CaseExact, subject)

	case *zest.ExpressionEquals:
		value := r.ReplaceVariables(e.Value, false)
		current := r.Variable(e.VariableName)
		if e.CaseExact {
			return current == value, nil
		}
		return strings.EqualFold(current, value), nil

	case *zest.ExpressionContains:
		value := r.ReplaceVariables(e.Value, false)
		current := r.Variable(e.VariableName)
		if e.CaseExact {
			return strings.Contains(current, value), nil
		}
		return strings.Contains(strings.ToLower(current), strings.ToLower(value)), nil

	case *zest.ExpressionResponseTime:
		if r.lastResp == nil {
			return false, nil
		}
		ms := r.lastResp.Duration.Milliseconds()
		if e.GreaterThan {
			return ms > e.TimeInMs, nil
		}
		return ms < e.TimeInMs, nil

	case *zest.ExpressionURL:
		return r.urlMatches(e)

	case *zest.ExpressionIsInteger:
		_, err := strconv.Atoi(strings.TrimSpace(r.Variable(e.VariableName)))
		return err == nil, nil

	case *zest.ExpressionAnd:
		for _, child := range e.ChildrenCondition {
			ok, err := r.evaluate(ctx, child)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil

	case *zest.ExpressionOr:
		for _, child := range e.ChildrenCondition {
			ok, err := r.evaluate(ctx, child)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil

	case *zest.ExpressionEval:
		engine := r.ScriptEngine(e.Engine)
		if engine == nil {
			return false, errdef.Wrap(errdef.CodeScript, scripts.ErrEngineNotFound, "engine %q", e.Engine)
		}
		res, err := engine.Eval(ctx, e.Script, r.bindings(nil))
		if err != nil {
			return false, err
		}
		return res.Truthy, nil

	case *zest.ExpressionClientElementExists:
		d, err := r.driverFor(ctx, e.WindowHandle)
		if err != nil {
			return false, err
		}
		loc, err := webdriver.ParseLocator(e.Type, r.ReplaceVariables(e.Element, false))
		if err != nil {
			return false, err
		}
		found, err := d.FindElements(ctx, loc)
		if err != nil {
			return false, err
		}
		return len(found) > 0, nil

	default:
		return false, errdef.New(errdef.CodeUnsupported, "unsupported expression %s", expr.ElementType())
	}
}

// urlMatches holds when the last request url matches an include pattern
// and no exclude pattern.
func (r *Runner) urlMatches(e *zest.ExpressionURL) (bool, error) {
	if r.lastReq == nil {
		return false, nil
	}
	target := r.lastReq.URL
	included := false
	for _, pattern := range e.IncludeRegexes {
		ok, err := r.matches(pattern, true, target)
		if err != nil {
			return false, err
		}
		if ok {
			included = true
			break
		}
	}
	if !included {
		return false, nil
	}
	for _, pattern := range e.ExcludeRegexes {
		ok, err := r.matches(pattern, true, target)
		if err != nil || ok {
			return false, err
		}
	}
	return true, nil
}

// bindings exposes the runtime to script engines. Variable names may hold
// dots, so they are reached through the vars object or runtime accessors.
func (r *Runner) bindings(extra map[string]any) map[string]any {
	snapshot := make(map[string]string)
	for _, name := range zest.StandardVariables() {
		if value, ok := r.standard.Resolve(name); ok {
			snapshot[name] = value
		}
	}
	for name, value := range r.local.Values() {
		snapshot[name] = value
	}
	out := map[string]any{
		"vars": snapshot,
		"runtime": map[string]any{
			"getVariable":          r.Variable,
			"setVariable":          r.SetVariable,
			"getGlobalVariable":    r.GlobalVariable,
			"setGlobalVariable":    r.SetGlobalVariable,
			"removeGlobalVariable": r.RemoveGlobalVariable,
			"replaceVariables":     r.ReplaceVariables,
		},
	}
	for name, value := range extra {
		out[name] = value
	}
	return out
}
