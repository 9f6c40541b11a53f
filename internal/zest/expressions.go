package zest

type ExpressionStatusCode struct {
	ExprBase
	Code int `zest:"code"`
}

func (*ExpressionStatusCode) ElementType() string { return "ZestExpressionStatusCode" }

// ExpressionLength holds when the length of a variable is within [MinLength, MaxLength],
// both bounds inclusive.
type ExpressionLength struct {
	ExprBase
	VariableName string `zest:"variableName"`
	MinLength    int    `zest:"minLength"`
	MaxLength    int    `zest:"maxLength"`
}

func (*ExpressionLength) ElementType() string { return "ZestExpressionLength" }

type ExpressionRegex struct {
	ExprBase
	VariableName string `zest:"variableName"`
	Regex        string `zest:"regex"`
	CaseExact    bool   `zest:"caseExact"`
}

func (*ExpressionRegex) ElementType() string { return "ZestExpressionRegex" }

type ExpressionHeader struct {
	ExprBase
	HeaderName string `zest:"headerName"`
	Regex      string `zest:"regex"`
	CaseExact  bool   `zest:"caseExact"`
}

func (*ExpressionHeader) ElementType() string { return "ZestExpressionHeader" }

type ExpressionEquals struct {
	ExprBase
	VariableName string `zest:"variableName"`
	Value        string `zest:"value"`
	CaseExact    bool   `zest:"caseExact"`
}

func (*ExpressionEquals) ElementType() string { return "ZestExpressionEquals" }

type ExpressionContains struct {
	ExprBase
	VariableName string `zest:"variableName"`
	Value        string `zest:"value"`
	CaseExact    bool   `zest:"caseExact"`
}

func (*ExpressionContains) ElementType() string { return "ZestExpressionContains" }

type ExpressionResponseTime struct {
	ExprBase
	GreaterThan bool  `zest:"greaterThan"`
	TimeInMs    int64 `zest:"timeInMs"`
}

func (*ExpressionResponseTime) ElementType() string { return "ZestExpressionResponseTime" }

// ExpressionURL holds when the last request url matches any include pattern
// and none of the exclude patterns.
type ExpressionURL struct {
	ExprBase
	IncludeRegexes []string `zest:"includeRegexes"`
	ExcludeRegexes []string `zest:"excludeRegexes"`
}

func (*ExpressionURL) ElementType() string { return "ZestExpressionURL" }

type ExpressionIsInteger struct {
	ExprBase
	VariableName string `zest:"variableName"`
}

func (*ExpressionIsInteger) ElementType() string { return "ZestExpressionIsInteger" }

type ExpressionAnd struct {
	ExprBase
	ChildrenCondition []Expression `zest:"childrenCondition"`
}

func (*ExpressionAnd) ElementType() string { return "ZestExpressionAnd" }

type ExpressionOr struct {
	ExprBase
	ChildrenCondition []Expression `zest:"childrenCondition"`
}

func (*ExpressionOr) ElementType() string { return "ZestExpressionOr" }

// ExpressionEval runs Script through the engine registered for Engine and
// treats a truthy result as a match.
type ExpressionEval struct {
	ExprBase
	Script string `zest:"script"`
	Engine string `zest:"engine"`
}

func (*ExpressionEval) ElementType() string { return "ZestExpressionEval" }

type ExpressionClientElementExists struct {
	ExprBase
	ElementLocator
}

func (*ExpressionClientElementExists) ElementType() string {
	return "ZestExpressionClientElementExists"
}

type Conditional struct {
	StatementBase
	RootExpression Expression  `zest:"rootExpression"`
	IfStatements   []Statement `zest:"ifStatements"`
	ElseStatements []Statement `zest:"elseStatements"`
}

func NewConditional(expr Expression) *Conditional {
	return &Conditional{RootExpression: expr}
}

func (*Conditional) ElementType() string { return "ZestConditional" }
