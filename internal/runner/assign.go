package runner

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dlclark/regexp2"

	"github.com/unkn0wn-root/zest/internal/errdef"
	"github.com/unkn0wn-root/zest/internal/webdriver"
	"github.com/unkn0wn-root/zest/internal/zest"
)

func (r *Runner) runAssignment(ctx context.Context, a zest.Assignment) error {
	value, err := r.assignedValue(ctx, a)
	if err != nil {
		return err
	}
	r.SetVariable(a.Target(), value)
	return nil
}

func (r *Runner) assignedValue(ctx context.Context, a zest.Assignment) (string, error) {
	switch st := a.(type) {
	case *zest.AssignString:
		return r.ReplaceVariables(st.String, false), nil
	case *zest.AssignRegex:
		return r.assignRegex(st)
	case *zest.AssignFromElement:
		el, err := r.element(ctx, st.Locator())
		if err != nil {
			return "", err
		}
		return webdriver.Project(ctx, el, st.Attribute)
	case *zest.AssignFieldValue:
		return r.fieldValue(st)
	case *zest.AssignRandomInteger:
		return strconv.Itoa(randomInt(st.MinInt, st.MaxInt)), nil
	case *zest.AssignCalc:
		return calc(
			r.ReplaceVariables(st.OperandA, false),
			r.ReplaceVariables(st.OperandB, false),
			st.Operation,
		)
	case *zest.AssignReplace:
		return r.assignReplace(st)
	case *zest.AssignFieldReplace:
		out, _ := replaceField(
			r.Variable(st.Source),
			st.FieldName,
			r.ReplaceVariables(st.Value, false),
		)
		return out, nil
	case *zest.AssignStringDelimiters:
		return r.stringDelimiters(st)
	case *zest.AssignGlobalVariable:
		return r.GlobalVariable(st.GlobalVariableName), nil
	default:
		return "", errdef.New(errdef.CodeUnsupported, "unsupported assignment %s", a.ElementType())
	}
}

// assignRegex yields "" when the pattern does not match.
func (r *Runner) assignRegex(a *zest.AssignRegex) (string, error) {
	re, err := r.regex(a.Regex, a.CaseExact)
	if err != nil {
		return "", err
	}
	m, err := re.FindStringMatch(r.Variable(a.Source))
	if err != nil {
		return "", errdef.Wrap(errdef.CodeAction, err, "match %q", a.Regex)
	}
	if m == nil {
		return "", nil
	}
	g := m.GroupByNumber(a.GroupIndex)
	if g == nil {
		return "", errdef.New(errdef.CodeAction, "regex %q has no group %d", a.Regex, a.GroupIndex)
	}
	return g.String(), nil
}

func (r *Runner) assignReplace(a *zest.AssignReplace) (string, error) {
	current := r.Variable(a.VariableName)
	replacement := r.ReplaceVariables(a.Replacement, false)
	if a.Replace == "" {
		return current, nil
	}
	if !a.Regex && a.CaseExact {
		return strings.ReplaceAll(current, a.Replace, replacement), nil
	}
	pattern := a.Replace
	if !a.Regex {
		pattern = regexp2.Escape(pattern)
		replacement = strings.ReplaceAll(replacement, "$", "$$")
	}
	re, err := r.regex(pattern, a.CaseExact)
	if err != nil {
		return "", err
	}
	out, err := re.Replace(current, replacement, -1, -1)
	if err != nil {
		return "", errdef.Wrap(errdef.CodeAction, err, "replace %q", a.Replace)
	}
	return out, nil
}

// fieldValue reads a named control of form FormIndex in the last response.
func (r *Runner) fieldValue(a *zest.AssignFieldValue) (string, error) {
	if r.lastResp == nil {
		return "", errdef.New(errdef.CodeAction, "no response to read form %d from", a.FormIndex)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(r.lastResp.Body)))
	if err != nil {
		return "", errdef.Wrap(errdef.CodeAction, err, "parse response body")
	}
	forms := doc.Find("form")
	if a.FormIndex < 0 || a.FormIndex >= forms.Length() {
		return "", errdef.New(errdef.CodeAction, "form %d not found, response has %d", a.FormIndex, forms.Length())
	}
	field := forms.Eq(a.FormIndex).Find("input, select, textarea").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.AttrOr("name", "") == a.FieldName
	}).First()
	if field.Length() == 0 {
		return "", errdef.New(errdef.CodeAction, "field %q not found in form %d", a.FieldName, a.FormIndex)
	}
	switch goquery.NodeName(field) {
	case "textarea":
		return field.Text(), nil
	case "select":
		opt := field.Find("option[selected]").First()
		if opt.Length() == 0 {
			opt = field.Find("option").First()
		}
		if v, ok := opt.Attr("value"); ok {
			return v, nil
		}
		return strings.TrimSpace(opt.Text()), nil
	default:
		return field.AttrOr("value", ""), nil
	}
}

func (r *Runner) stringDelimiters(a *zest.AssignStringDelimiters) (string, error) {
	source := r.Variable(zest.VarResponseBody)
	if a.Location == zest.LocationHead {
		source = r.Variable(zest.VarResponseHeader)
	}
	start := strings.Index(source, a.Prefix)
	if a.Prefix == "" || start < 0 {
		return "", errdef.New(errdef.CodeAction, "prefix %q not found in %s", a.Prefix, a.Location)
	}
	rest := source[start+len(a.Prefix):]
	end := strings.Index(rest, a.Postfix)
	if a.Postfix == "" || end < 0 {
		return "", errdef.New(errdef.CodeAction, "postfix %q not found in %s", a.Postfix, a.Location)
	}
	return rest[:end], nil
}

// calc keeps integer arithmetic when both operands are integers, with
// division truncating toward zero.
func calc(a, b string, op zest.CalcOperation) (string, error) {
	ia, errA := strconv.ParseInt(strings.TrimSpace(a), 10, 64)
	ib, errB := strconv.ParseInt(strings.TrimSpace(b), 10, 64)
	if errA == nil && errB == nil {
		switch op {
		case zest.CalcAdd, zest.CalcSubtract, zest.CalcMultiply:
			// results that do not fit in an int64 fall through to floats
			if n, ok := exactInt(ia, ib, op); ok {
				return strconv.FormatInt(n, 10), nil
			}
		case zest.CalcDivide:
			if ib == 0 {
				return "", errdef.New(errdef.CodeAction, "division by zero")
			}
			if ia != math.MinInt64 || ib != -1 {
				return strconv.FormatInt(ia/ib, 10), nil
			}
		default:
			return "", errdef.New(errdef.CodeAction, "unknown calc operation %q", op)
		}
	}

	fa, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
	if err != nil {
		return "", errdef.Wrap(errdef.CodeAction, err, "operand %q is not a number", a)
	}
	fb, err := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if err != nil {
		return "", errdef.Wrap(errdef.CodeAction, err, "operand %q is not a number", b)
	}
	var out float64
	switch op {
	case zest.CalcAdd:
		out = fa + fb
	case zest.CalcSubtract:
		out = fa - fb
	case zest.CalcMultiply:
		out = fa * fb
	case zest.CalcDivide:
		if fb == 0 {
			return "", errdef.New(errdef.CodeAction, "division by zero")
		}
		out = fa / fb
	default:
		return "", errdef.New(errdef.CodeAction, "unknown calc operation %q", op)
	}
	if math.IsInf(out, 0) || math.IsNaN(out) {
		return "", errdef.New(errdef.CodeAction, "calc result out of range")
	}
	return strconv.FormatFloat(out, 'f', -1, 64), nil
}

func exactInt(a, b int64, op zest.CalcOperation) (int64, bool) {
	switch op {
	case zest.CalcAdd:
		n := a + b
		return n, (b >= 0) == (n >= a)
	case zest.CalcSubtract:
		n := a - b
		return n, (b >= 0) == (n <= a)
	case zest.CalcMultiply:
		if a == 0 || b == 0 {
			return 0, true
		}
		n := a * b
		if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
			return 0, false
		}
		return n, n/b == a
	}
	return 0, false
}
