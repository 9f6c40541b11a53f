package zest

// LoopBase is embedded by every loop statement.
type LoopBase struct {
	VariableName string      `zest:"variableName"`
	Statements   []Statement `zest:"statements"`
}

func (l *LoopBase) Loop() *LoopBase { return l }

type LoopString struct {
	StatementBase
	LoopBase
	Values []string `zest:"values"`
}

func (*LoopString) ElementType() string { return "ZestLoopString" }

// LoopFile iterates the lines of PathToFile.
type LoopFile struct {
	StatementBase
	LoopBase
	PathToFile string `zest:"pathToFile"`
}

func (*LoopFile) ElementType() string { return "ZestLoopFile" }

// LoopInteger counts over [Start, End) in increments of Step.
type LoopInteger struct {
	StatementBase
	LoopBase
	Start int `zest:"start"`
	End   int `zest:"end"`
	Step  int `zest:"step"`
}

func NewLoopInteger(variable string, start, end int) *LoopInteger {
	return &LoopInteger{
		LoopBase: LoopBase{VariableName: variable},
		Start:    start,
		End:      end,
		Step:     1,
	}
}

func (*LoopInteger) ElementType() string { return "ZestLoopInteger" }

type LoopClientElements struct {
	StatementBase
	LoopBase
	ElementLocator
	Attribute string `zest:"attribute"`
}

func (*LoopClientElements) ElementType() string { return "ZestLoopClientElements" }

type LoopRegex struct {
	StatementBase
	LoopBase
	InputVariableName string `zest:"inputVariableName"`
	Regex             string `zest:"regex"`
	CaseExact         bool   `zest:"caseExact"`
}

func (*LoopRegex) ElementType() string { return "ZestLoopRegex" }

type LoopBreak struct {
	StatementBase
}

func (*LoopBreak) ElementType() string { return "ZestLoopBreak" }

type LoopNext struct {
	StatementBase
}

func (*LoopNext) ElementType() string { return "ZestLoopNext" }

type ControlReturn struct {
	StatementBase
	Value string `zest:"value"`
}

func (*ControlReturn) ElementType() string { return "ZestControlReturn" }
