package printer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/zest/internal/zest"
)

func sampleScript(t *testing.T) *zest.Script {
	t.Helper()
	s := zest.NewScript()
	s.Title = "Login"
	s.Prefix = "http://host"
	s.Parameters.Tokens = map[string]string{"user": "alice", "pass": "secret"}

	req := zest.NewRequest("get", "http://host/login")
	req.AddAssertion(&zest.ExpressionStatusCode{Code: 200})
	s.Add(req)

	cond := zest.NewConditional(&zest.ExpressionRegex{
		ExprBase:     zest.ExprBase{Not: true},
		VariableName: zest.VarResponseBody,
		Regex:        "welcome",
	})
	s.Add(cond)
	require.NoError(t, s.AddIf(cond, &zest.ActionPrint{Message: "no welcome"}))
	require.NoError(t, s.AddElse(cond, &zest.ActionFail{Message: "bad", Priority: zest.PriorityLow}))

	loop := zest.NewLoopInteger("i", 0, 3)
	s.Add(loop)
	require.NoError(t, s.AddChild(loop, &zest.LoopBreak{}))
	return s
}

func TestList(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, List(&buf, sampleScript(t)))

	want := "1: GET http://host/login\n" +
		"    Assert status == 200\n" +
		"2: IF NOT response.body matches /welcome/\n" +
		"    3: Print \"no welcome\"\n" +
		"ELSE\n" +
		"    4: Fail [LOW] bad\n" +
		"5: Loop i in [0, 3) step 1\n" +
		"    6: Break\n"
	assert.Equal(t, want, buf.String())
}

func TestSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Summary(&buf, sampleScript(t)))

	out := buf.String()
	assert.Contains(t, out, "Title:       Login\n")
	assert.Contains(t, out, "Prefix:      http://host\n")
	assert.Contains(t, out, "Parameters:\n    {{pass}} = secret\n    {{user}} = alice\n")
	assert.Contains(t, out, "Statements:  6 (1 requests)\n")
}

func TestDescribeDisabledAndNested(t *testing.T) {
	p := &zest.ActionPrint{Message: "x"}
	p.SetEnabled(false)
	s := zest.NewScript()
	s.Add(p)

	var buf bytes.Buffer
	require.NoError(t, List(&buf, s))
	assert.Equal(t, "1: Print \"x\" (disabled)\n", buf.String())

	and := &zest.ExpressionAnd{ChildrenCondition: []zest.Expression{
		&zest.ExpressionStatusCode{Code: 200},
		&zest.ExpressionOr{ChildrenCondition: []zest.Expression{
			&zest.ExpressionIsInteger{VariableName: "n"},
			&zest.ExpressionEquals{VariableName: "a", Value: "b"},
		}},
	}}
	assert.Equal(t, `(status == 200 AND (n is integer OR a == "b"))`, DescribeExpression(and))
}

func TestDescribeCoversEveryStatement(t *testing.T) {
	for _, name := range zest.ElementTypes() {
		el, ok := zest.New(name)
		require.True(t, ok)
		stmt, ok := el.(zest.Statement)
		if !ok {
			continue
		}
		assert.NotEqual(t, name, Describe(stmt), "statement %s has no description", name)
	}
}
