package zest

import (
	"sort"
)

// Element is any node that can appear in a script document.
type Element interface {
	ElementType() string
}

// Statement is an executable node. Every statement embeds StatementBase.
type Statement interface {
	Element
	Base() *StatementBase
	statement()
}

// StatementBase holds the fields shared by every statement. Disabled is
// stored inverted so that a zero value statement is enabled.
type StatementBase struct {
	Index    int  `zest:"index"`
	Disabled bool `zest:"enabled,invert"`
}

func (b *StatementBase) Base() *StatementBase { return b }

func (b *StatementBase) Enabled() bool { return !b.Disabled }

func (b *StatementBase) SetEnabled(enabled bool) { b.Disabled = !enabled }

func (*StatementBase) statement() {}

// Expression is a boolean predicate used by assertions and conditionals.
type Expression interface {
	Element
	Negated() bool
	expression()
}

type ExprBase struct {
	Not bool `zest:"not"`
}

func (e *ExprBase) Negated() bool { return e.Not }

func (*ExprBase) expression() {}

// Transformation rewrites a pending request right before dispatch.
type Transformation interface {
	Element
	transformation()
}

type transformBase struct{}

func (transformBase) transformation() {}

// Authentication is attached to requests by the runner.
type Authentication interface {
	Element
	authentication()
}

// Looper is implemented by every loop statement.
type Looper interface {
	Statement
	Loop() *LoopBase
}

// ClientStatement is implemented by statements driving a browser window.
type ClientStatement interface {
	Statement
	Handle() string
}

var registry = map[string]func() Element{}

func register(fn func() Element) {
	registry[fn().ElementType()] = fn
}

// New returns a default constructed element for the given elementType.
func New(elementType string) (Element, bool) {
	fn, ok := registry[elementType]
	if !ok {
		return nil, false
	}
	return fn(), true
}

func ElementTypes() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func init() {
	for _, fn := range []func() Element{
		func() Element { return NewScript() },
		func() Element { return &Parameters{TokenStart: DefaultTokenStart, TokenEnd: DefaultTokenEnd} },
		func() Element { return &HTTPAuthentication{} },
		func() Element { return NewRequest("", "") },
		func() Element { return &Response{} },
		func() Element { return &Assertion{} },
		func() Element { return &Comment{} },
		func() Element { return &Conditional{} },

		func() Element { return &ExpressionStatusCode{} },
		func() Element { return &ExpressionLength{VariableName: VarResponseBody} },
		func() Element { return &ExpressionRegex{VariableName: VarResponseBody} },
		func() Element { return &ExpressionHeader{} },
		func() Element { return &ExpressionEquals{} },
		func() Element { return &ExpressionContains{} },
		func() Element { return &ExpressionResponseTime{} },
		func() Element { return &ExpressionURL{} },
		func() Element { return &ExpressionIsInteger{} },
		func() Element { return &ExpressionAnd{} },
		func() Element { return &ExpressionOr{} },
		func() Element { return &ExpressionEval{Engine: "js"} },
		func() Element { return &ExpressionClientElementExists{} },

		func() Element { return &ActionPrint{} },
		func() Element { return &ActionSleep{} },
		func() Element { return &ActionFail{Priority: PriorityHigh} },
		func() Element { return &ActionGlobalVariableSet{} },
		func() Element { return &ActionGlobalVariableRemove{} },
		func() Element { return &ActionInvoke{} },
		func() Element { return &ActionScan{} },

		func() Element { return &AssignString{} },
		func() Element { return &AssignRegex{} },
		func() Element { return &AssignFromElement{} },
		func() Element { return &AssignFieldValue{} },
		func() Element { return &AssignRandomInteger{MaxInt: 100} },
		func() Element { return &AssignCalc{Operation: CalcAdd} },
		func() Element { return &AssignReplace{} },
		func() Element { return &AssignFieldReplace{} },
		func() Element { return &AssignStringDelimiters{Location: LocationBody} },
		func() Element { return &AssignGlobalVariable{} },

		func() Element { return &LoopString{} },
		func() Element { return &LoopFile{} },
		func() Element { return NewLoopInteger("", 0, 0) },
		func() Element { return &LoopClientElements{} },
		func() Element { return &LoopRegex{} },
		func() Element { return &LoopBreak{} },
		func() Element { return &LoopNext{} },
		func() Element { return &ControlReturn{} },

		func() Element { return NewClientLaunch("", "", "") },
		func() Element { return &ClientWindowClose{} },
		func() Element { return &ClientElementClick{} },
		func() Element { return &ClientElementSendKeys{} },
		func() Element { return &ClientElementSubmit{} },
		func() Element { return &ClientElementClear{} },
		func() Element { return &ClientElementSendKeysBySequence{} },
		func() Element { return &ClientSwitchToFrame{FrameIndex: -1} },
		func() Element { return &ClientWindowHandle{} },
		func() Element { return &ClientWindowOpenURL{} },

		func() Element { return &TransformRandomInteger{MaxInt: 100} },
		func() Element { return &TransformFieldReplace{} },
		func() Element { return &TransformHeader{} },
	} {
		register(fn)
	}
}
