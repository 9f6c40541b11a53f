package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/zest/internal/errdef"
	"github.com/unkn0wn-root/zest/internal/zest"
)

// branch runs expr after a request to http://example.com/login that
// answers 200 "hello world" in 5ms, and reports which branch ran.
func branch(t *testing.T, expr zest.Expression) string {
	t.Helper()
	h := newHarness(t, statusSender(200, "hello world"))
	cond := zest.NewConditional(expr)
	s := script(
		zest.NewRequest("GET", "http://example.com/login"),
		assignString("n", "42"),
		assignString("word", "4x"),
		cond,
	)
	require.NoError(t, s.AddIf(cond, say("then")))
	require.NoError(t, s.AddElse(cond, say("else")))
	_, err := h.run(t, s, nil)
	require.NoError(t, err)
	return h.out.String()
}

func TestExpressions(t *testing.T) {
	status := func(code int) zest.Expression { return &zest.ExpressionStatusCode{Code: code} }

	for _, tc := range []struct {
		name  string
		build func(b zest.ExprBase) zest.Expression
		want  bool
	}{
		{"status match", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionStatusCode{ExprBase: b, Code: 200}
		}, true},
		{"status mismatch", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionStatusCode{ExprBase: b, Code: 404}
		}, false},

		{"length empty range", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionLength{ExprBase: b, VariableName: zest.VarResponseBody}
		}, false},
		{"length inclusive bounds", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionLength{ExprBase: b, VariableName: zest.VarResponseBody, MinLength: 11, MaxLength: 11}
		}, true},
		{"length above max", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionLength{ExprBase: b, VariableName: zest.VarResponseBody, MaxLength: 10}
		}, false},
		{"length below min", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionLength{ExprBase: b, VariableName: zest.VarResponseBody, MinLength: 12, MaxLength: 20}
		}, false},

		{"regex any case", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionRegex{ExprBase: b, VariableName: zest.VarResponseBody, Regex: `WORLD$`}
		}, true},
		{"regex exact case", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionRegex{ExprBase: b, VariableName: zest.VarResponseBody, Regex: `WORLD$`, CaseExact: true}
		}, false},

		{"header match", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionHeader{ExprBase: b, HeaderName: "content-type", Regex: `^text/\w+$`}
		}, true},
		{"header exact case", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionHeader{ExprBase: b, HeaderName: "Content-Type", Regex: "TEXT", CaseExact: true}
		}, false},
		{"header missing", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionHeader{ExprBase: b, HeaderName: "X-Missing", Regex: ".*"}
		}, false},

		{"equals expanded", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionEquals{ExprBase: b, VariableName: "n", Value: "{{n}}"}
		}, true},
		{"equals differs", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionEquals{ExprBase: b, VariableName: "n", Value: "41"}
		}, false},

		{"contains any case", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionContains{ExprBase: b, VariableName: zest.VarResponseBody, Value: "LO WO"}
		}, true},
		{"contains exact case", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionContains{ExprBase: b, VariableName: zest.VarResponseBody, Value: "LO WO", CaseExact: true}
		}, false},

		{"response slower than", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionResponseTime{ExprBase: b, GreaterThan: true, TimeInMs: 1}
		}, true},
		{"response faster than", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionResponseTime{ExprBase: b, TimeInMs: 1}
		}, false},

		{"url included", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionURL{ExprBase: b, IncludeRegexes: []string{"logout", "/login$"}}
		}, true},
		{"url excluded", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionURL{ExprBase: b, IncludeRegexes: []string{"login"}, ExcludeRegexes: []string{"example"}}
		}, false},
		{"url without includes", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionURL{ExprBase: b}
		}, false},

		{"is integer", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionIsInteger{ExprBase: b, VariableName: "n"}
		}, true},
		{"is not integer", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionIsInteger{ExprBase: b, VariableName: "word"}
		}, false},

		{"empty and", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionAnd{ExprBase: b}
		}, true},
		{"empty or", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionOr{ExprBase: b}
		}, false},
		{"and all true", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionAnd{ExprBase: b, ChildrenCondition: []zest.Expression{
				status(200), &zest.ExpressionIsInteger{VariableName: "n"},
			}}
		}, true},
		{"and one false", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionAnd{ExprBase: b, ChildrenCondition: []zest.Expression{status(200), status(500)}}
		}, false},
		{"and negated child", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionAnd{ExprBase: b, ChildrenCondition: []zest.Expression{
				status(200), &zest.ExpressionStatusCode{ExprBase: zest.ExprBase{Not: true}, Code: 500},
			}}
		}, true},
		{"or one true", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionOr{ExprBase: b, ChildrenCondition: []zest.Expression{status(500), status(200)}}
		}, true},
		{"or all false", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionOr{ExprBase: b, ChildrenCondition: []zest.Expression{status(500), status(404)}}
		}, false},

		{"eval truthy", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionEval{ExprBase: b, Script: `vars["n"] === "42" && vars["response.status"] === "200"`, Engine: "js"}
		}, true},
		{"eval falsy", func(b zest.ExprBase) zest.Expression {
			return &zest.ExpressionEval{ExprBase: b, Script: `parseInt(vars["n"]) > 100`, Engine: "js"}
		}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			want, negated := "else\n", "then\n"
			if tc.want {
				want, negated = negated, want
			}
			assert.Equal(t, want, branch(t, tc.build(zest.ExprBase{})))
			assert.Equal(t, negated, branch(t, tc.build(zest.ExprBase{Not: true})), "negated")
		})
	}
}

func TestEvalUnknownEngine(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.run(t, script(zest.NewConditional(&zest.ExpressionEval{Script: "1", Engine: "lua"})), nil)
	require.Error(t, err)
	assert.Equal(t, errdef.CodeScript, errdef.CodeOf(err))
}

func TestLengthAssertionOnEmptyRange(t *testing.T) {
	h := newHarness(t, statusSender(200, "not empty"))
	h.r.opts.StopOnAssertFail = false
	req := zest.NewRequest("GET", "http://example.com/")
	req.AddAssertion(&zest.ExpressionLength{VariableName: zest.VarResponseBody})
	res, err := h.run(t, script(req), nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAssertionFailed, res.Outcome)
	require.Len(t, res.Failures, 1)
}
