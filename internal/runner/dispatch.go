package runner

import (
	"context"

	"github.com/unkn0wn-root/zest/internal/errdef"
	"github.com/unkn0wn-root/zest/internal/zest"
)

// flow signals a transfer of control out of a statement list.
type flow int

const (
	flowNone flow = iota
	flowBreak
	flowNext
	flowReturn
)

// runStatement dispatches on every statement kind of the object model.
// Anything else is a fatal unsupported error.
func (r *Runner) runStatement(ctx context.Context, stmt zest.Statement) (flow, error) {
	switch st := stmt.(type) {
	case *zest.Request:
		return flowNone, r.runRequest(ctx, st)
	case *zest.Comment:
		return flowNone, nil
	case *zest.Conditional:
		return r.runConditional(ctx, st)

	case *zest.ActionPrint:
		return flowNone, r.actionPrint(st)
	case *zest.ActionSleep:
		return flowNone, r.actionSleep(ctx, st)
	case *zest.ActionFail:
		return flowNone, r.actionFail(st)
	case *zest.ActionGlobalVariableSet:
		r.SetGlobalVariable(st.GlobalVariableName, r.ReplaceVariables(st.Value, false))
		return flowNone, nil
	case *zest.ActionGlobalVariableRemove:
		r.RemoveGlobalVariable(st.GlobalVariableName)
		return flowNone, nil
	case *zest.ActionInvoke:
		return flowNone, r.actionInvoke(ctx, st)
	case *zest.ActionScan:
		return flowNone, r.actionScan(ctx, st)

	case *zest.AssignString,
		*zest.AssignRegex,
		*zest.AssignFromElement,
		*zest.AssignFieldValue,
		*zest.AssignRandomInteger,
		*zest.AssignCalc,
		*zest.AssignReplace,
		*zest.AssignFieldReplace,
		*zest.AssignStringDelimiters,
		*zest.AssignGlobalVariable:
		return flowNone, r.runAssignment(ctx, st.(zest.Assignment))

	case *zest.LoopString:
		return r.loopString(ctx, st)
	case *zest.LoopFile:
		return r.loopFile(ctx, st)
	case *zest.LoopInteger:
		return r.loopInteger(ctx, st)
	case *zest.LoopClientElements:
		return r.loopClientElements(ctx, st)
	case *zest.LoopRegex:
		return r.loopRegex(ctx, st)
	case *zest.LoopBreak:
		return flowBreak, nil
	case *zest.LoopNext:
		return flowNext, nil
	case *zest.ControlReturn:
		r.returnVal = r.ReplaceVariables(st.Value, false)
		return flowReturn, nil

	case *zest.ClientLaunch:
		return flowNone, r.clientLaunch(ctx, st)
	case *zest.ClientWindowClose:
		return flowNone, r.clientWindowClose(ctx, st)
	case *zest.ClientElementClick,
		*zest.ClientElementSendKeys,
		*zest.ClientElementSubmit,
		*zest.ClientElementClear,
		*zest.ClientElementSendKeysBySequence:
		return flowNone, r.clientElement(ctx, st.(zest.Locating))
	case *zest.ClientSwitchToFrame:
		return flowNone, r.clientSwitchToFrame(ctx, st)
	case *zest.ClientWindowHandle:
		return flowNone, r.clientWindowHandle(ctx, st)
	case *zest.ClientWindowOpenURL:
		return flowNone, r.clientOpenURL(ctx, st)

	default:
		return flowNone, errdef.New(errdef.CodeUnsupported, "unsupported statement %s", stmt.ElementType())
	}
}

func (r *Runner) runConditional(ctx context.Context, c *zest.Conditional) (flow, error) {
	ok, err := r.evaluate(ctx, c.RootExpression)
	if err != nil {
		return flowNone, err
	}
	if ok {
		return r.runStatements(ctx, c.IfStatements)
	}
	return r.runStatements(ctx, c.ElseStatements)
}
