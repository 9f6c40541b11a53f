package zest

type Priority string

const (
	PriorityInfo   Priority = "INFO"
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityInfo, PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type ActionPrint struct {
	StatementBase
	Message string `zest:"message"`
}

func (*ActionPrint) ElementType() string { return "ZestActionPrint" }

type ActionSleep struct {
	StatementBase
	Milliseconds int64 `zest:"milliseconds"`
}

func (*ActionSleep) ElementType() string { return "ZestActionSleep" }

type ActionFail struct {
	StatementBase
	Message  string   `zest:"message"`
	Priority Priority `zest:"priority"`
}

func (*ActionFail) ElementType() string { return "ZestActionFail" }

type ActionGlobalVariableSet struct {
	StatementBase
	GlobalVariableName string `zest:"globalVariableName"`
	Value              string `zest:"value"`
}

func (*ActionGlobalVariableSet) ElementType() string { return "ZestActionGlobalVariableSet" }

type ActionGlobalVariableRemove struct {
	StatementBase
	GlobalVariableName string `zest:"globalVariableName"`
}

func (*ActionGlobalVariableRemove) ElementType() string { return "ZestActionGlobalVariableRemove" }

type Param struct {
	Name  string `zest:"name"`
	Value string `zest:"value"`
}

// ActionInvoke runs the script at path Script with the engine registered
// for its file extension and stores the result in VariableName.
type ActionInvoke struct {
	StatementBase
	VariableName string  `zest:"variableName"`
	Script       string  `zest:"script"`
	Parameters   []Param `zest:"parameters"`
}

func (*ActionInvoke) ElementType() string { return "ZestActionInvoke" }

type ActionScan struct {
	StatementBase
	TargetParameter string `zest:"targetParameter"`
	ScanName        string `zest:"scanName"`
}

func (*ActionScan) ElementType() string { return "ZestActionScan" }
