// Package printer renders scripts for people: one-line statement
// descriptions plus the summary and list views of the command line.
package printer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/unkn0wn-root/zest/internal/zest"
)

// Describe returns a one-line description of stmt. Nested statements of
// conditionals and loops are not included.
func Describe(stmt zest.Statement) string {
	switch st := stmt.(type) {
	case *zest.Request:
		return strings.ToUpper(st.Method) + " " + st.URL
	case *zest.Comment:
		return "# " + firstLine(st.Comment)
	case *zest.Conditional:
		return "IF " + DescribeExpression(st.RootExpression)

	case *zest.ActionPrint:
		return "Print " + strconv.Quote(st.Message)
	case *zest.ActionSleep:
		return fmt.Sprintf("Sleep %dms", st.Milliseconds)
	case *zest.ActionFail:
		return fmt.Sprintf("Fail [%s] %s", st.Priority, st.Message)
	case *zest.ActionGlobalVariableSet:
		return fmt.Sprintf("Set global %s = %q", st.GlobalVariableName, st.Value)
	case *zest.ActionGlobalVariableRemove:
		return "Remove global " + st.GlobalVariableName
	case *zest.ActionInvoke:
		params := make([]string, 0, len(st.Parameters))
		for _, p := range st.Parameters {
			params = append(params, p.Name+"="+p.Value)
		}
		return fmt.Sprintf("%s = Invoke %s(%s)", st.VariableName, st.Script, strings.Join(params, ", "))
	case *zest.ActionScan:
		return fmt.Sprintf("Scan %s %s", st.TargetParameter, st.ScanName)

	case *zest.AssignString:
		return fmt.Sprintf("%s = %q", st.VariableName, st.String)
	case *zest.AssignRegex:
		return fmt.Sprintf("%s = %s matches /%s/ group %d", st.VariableName, st.Source, st.Regex, st.GroupIndex)
	case *zest.AssignFromElement:
		return fmt.Sprintf("%s = %s of %s", st.VariableName, st.Attribute, locator(&st.ElementLocator))
	case *zest.AssignFieldValue:
		return fmt.Sprintf("%s = form %d field %s", st.VariableName, st.FormIndex, st.FieldName)
	case *zest.AssignRandomInteger:
		return fmt.Sprintf("%s = random [%d, %d)", st.VariableName, st.MinInt, st.MaxInt)
	case *zest.AssignCalc:
		return fmt.Sprintf("%s = %s %s %s", st.VariableName, st.OperandA, calcSymbol(st.Operation), st.OperandB)
	case *zest.AssignReplace:
		return fmt.Sprintf("%s = replace %q with %q", st.VariableName, st.Replace, st.Replacement)
	case *zest.AssignFieldReplace:
		return fmt.Sprintf("%s = %s with %s=%q", st.VariableName, st.Source, st.FieldName, st.Value)
	case *zest.AssignStringDelimiters:
		return fmt.Sprintf("%s = %s between %q and %q", st.VariableName, st.Location, st.Prefix, st.Postfix)
	case *zest.AssignGlobalVariable:
		return fmt.Sprintf("%s = global %s", st.VariableName, st.GlobalVariableName)

	case *zest.LoopString:
		return fmt.Sprintf("Loop %s over [%s]", st.VariableName, strings.Join(st.Values, ", "))
	case *zest.LoopFile:
		return fmt.Sprintf("Loop %s over lines of %s", st.VariableName, st.PathToFile)
	case *zest.LoopInteger:
		return fmt.Sprintf("Loop %s in [%d, %d) step %d", st.VariableName, st.Start, st.End, st.Step)
	case *zest.LoopClientElements:
		return fmt.Sprintf("Loop %s over %s of %s", st.VariableName, st.Attribute, locator(&st.ElementLocator))
	case *zest.LoopRegex:
		return fmt.Sprintf("Loop %s over /%s/ in %s", st.VariableName, st.Regex, st.InputVariableName)
	case *zest.LoopBreak:
		return "Break"
	case *zest.LoopNext:
		return "Next"
	case *zest.ControlReturn:
		return "Return " + strconv.Quote(st.Value)

	case *zest.ClientLaunch:
		out := fmt.Sprintf("Launch %s as %s", st.BrowserType, st.WindowHandle)
		if st.URL != "" {
			out += " at " + st.URL
		}
		return out
	case *zest.ClientWindowClose:
		return "Close " + st.WindowHandle
	case *zest.ClientElementClick:
		return "Click " + locator(&st.ElementLocator)
	case *zest.ClientElementSendKeys:
		return fmt.Sprintf("Type %q into %s", st.Value, locator(&st.ElementLocator))
	case *zest.ClientElementSubmit:
		return "Submit " + locator(&st.ElementLocator)
	case *zest.ClientElementClear:
		return "Clear " + locator(&st.ElementLocator)
	case *zest.ClientElementSendKeysBySequence:
		return fmt.Sprintf("Type %q key by key into %s", st.Value, locator(&st.ElementLocator))
	case *zest.ClientSwitchToFrame:
		switch {
		case st.Parent:
			return "Switch " + st.WindowHandle + " to parent frame"
		case st.FrameIndex >= 0:
			return fmt.Sprintf("Switch %s to frame %d", st.WindowHandle, st.FrameIndex)
		default:
			return fmt.Sprintf("Switch %s to frame %q", st.WindowHandle, st.FrameName)
		}
	case *zest.ClientWindowHandle:
		return fmt.Sprintf("Window %s at %s", st.WindowHandle, st.URL)
	case *zest.ClientWindowOpenURL:
		return fmt.Sprintf("Open %s in %s", st.URL, st.WindowHandle)
	}
	return stmt.ElementType()
}

// DescribeExpression renders expr with a NOT prefix when it is negated.
func DescribeExpression(expr zest.Expression) string {
	if expr == nil {
		return "<none>"
	}
	out := describeExpression(expr)
	if expr.Negated() {
		return "NOT " + out
	}
	return out
}

func describeExpression(expr zest.Expression) string {
	switch e := expr.(type) {
	case *zest.ExpressionStatusCode:
		return fmt.Sprintf("status == %d", e.Code)
	case *zest.ExpressionLength:
		return fmt.Sprintf("length(%s) in [%d, %d]", e.VariableName, e.MinLength, e.MaxLength)
	case *zest.ExpressionRegex:
		return fmt.Sprintf("%s matches /%s/", e.VariableName, e.Regex)
	case *zest.ExpressionHeader:
		if e.HeaderName == "" {
			return fmt.Sprintf("headers match /%s/", e.Regex)
		}
		return fmt.Sprintf("header %s matches /%s/", e.HeaderName, e.Regex)
	case *zest.ExpressionEquals:
		return fmt.Sprintf("%s == %q", e.VariableName, e.Value)
	case *zest.ExpressionContains:
		return fmt.Sprintf("%s contains %q", e.VariableName, e.Value)
	case *zest.ExpressionResponseTime:
		op := "<"
		if e.GreaterThan {
			op = ">"
		}
		return fmt.Sprintf("response time %s %dms", op, e.TimeInMs)
	case *zest.ExpressionURL:
		return fmt.Sprintf("url includes [%s] excludes [%s]",
			strings.Join(e.IncludeRegexes, ", "),
			strings.Join(e.ExcludeRegexes, ", "))
	case *zest.ExpressionIsInteger:
		return e.VariableName + " is integer"
	case *zest.ExpressionAnd:
		return joinExpressions(e.ChildrenCondition, " AND ")
	case *zest.ExpressionOr:
		return joinExpressions(e.ChildrenCondition, " OR ")
	case *zest.ExpressionEval:
		return fmt.Sprintf("%s eval %q", e.Engine, firstLine(e.Script))
	case *zest.ExpressionClientElementExists:
		return "exists " + locator(&e.ElementLocator)
	}
	return expr.ElementType()
}

func joinExpressions(list []zest.Expression, sep string) string {
	parts := make([]string, 0, len(list))
	for _, child := range list {
		parts = append(parts, DescribeExpression(child))
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func locator(l *zest.ElementLocator) string {
	return fmt.Sprintf("%s[%s=%s]", l.WindowHandle, l.Type, l.Element)
}

func calcSymbol(op zest.CalcOperation) string {
	switch op {
	case zest.CalcSubtract:
		return "-"
	case zest.CalcMultiply:
		return "*"
	case zest.CalcDivide:
		return "/"
	default:
		return "+"
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
