package zest

type CalcOperation string

const (
	CalcAdd      CalcOperation = "add"
	CalcSubtract CalcOperation = "subtract"
	CalcMultiply CalcOperation = "multiply"
	CalcDivide   CalcOperation = "divide"
)

type Location string

const (
	LocationHead Location = "HEAD"
	LocationBody Location = "BODY"
)

// Assignment is implemented by every statement that writes a variable.
type Assignment interface {
	Statement
	Target() string
}

type AssignBase struct {
	VariableName string `zest:"variableName"`
}

func (a *AssignBase) Target() string { return a.VariableName }

type AssignString struct {
	StatementBase
	AssignBase
	String string `zest:"string"`
}

func (*AssignString) ElementType() string { return "ZestAssignString" }

// AssignRegex stores capture group GroupIndex of the first match of Regex
// in the variable named by Source.
type AssignRegex struct {
	StatementBase
	AssignBase
	Source     string `zest:"source"`
	Regex      string `zest:"regex"`
	GroupIndex int    `zest:"groupIndex"`
	CaseExact  bool   `zest:"caseExact"`
}

func (*AssignRegex) ElementType() string { return "ZestAssignRegex" }

type AssignFromElement struct {
	StatementBase
	AssignBase
	ElementLocator
	Attribute string `zest:"attribute"`
}

func (*AssignFromElement) ElementType() string { return "ZestAssignFromElement" }

// AssignFieldValue reads a field of form FormIndex from the last response body.
type AssignFieldValue struct {
	StatementBase
	AssignBase
	FormIndex int    `zest:"formIndex"`
	FieldName string `zest:"fieldName"`
}

func (*AssignFieldValue) ElementType() string { return "ZestAssignFieldValue" }

type AssignRandomInteger struct {
	StatementBase
	AssignBase
	MinInt int `zest:"minInt"`
	MaxInt int `zest:"maxInt"`
}

func (*AssignRandomInteger) ElementType() string { return "ZestAssignRandomInteger" }

type AssignCalc struct {
	StatementBase
	AssignBase
	OperandA  string        `zest:"operandA"`
	OperandB  string        `zest:"operandB"`
	Operation CalcOperation `zest:"operation"`
}

func (*AssignCalc) ElementType() string { return "ZestAssignCalc" }

// AssignReplace rewrites the current value of VariableName, replacing
// Replace (a pattern when Regex is set) with Replacement.
type AssignReplace struct {
	StatementBase
	AssignBase
	Replace     string `zest:"replace"`
	Replacement string `zest:"replacement"`
	Regex       bool   `zest:"regex"`
	CaseExact   bool   `zest:"caseExact"`
}

func (*AssignReplace) ElementType() string { return "ZestAssignReplace" }

// AssignFieldReplace sets FieldName to Value inside the url-encoded form
// held by the variable Source.
type AssignFieldReplace struct {
	StatementBase
	AssignBase
	Source    string `zest:"source"`
	FieldName string `zest:"fieldName"`
	Value     string `zest:"value"`
}

func (*AssignFieldReplace) ElementType() string { return "ZestAssignFieldReplace" }

type AssignStringDelimiters struct {
	StatementBase
	AssignBase
	Prefix   string   `zest:"prefix"`
	Postfix  string   `zest:"postfix"`
	Location Location `zest:"location"`
}

func (*AssignStringDelimiters) ElementType() string { return "ZestAssignStringDelimiters" }

type AssignGlobalVariable struct {
	StatementBase
	AssignBase
	GlobalVariableName string `zest:"globalVariableName"`
}

func (*AssignGlobalVariable) ElementType() string { return "ZestAssignGlobalVariable" }
