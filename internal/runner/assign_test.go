package runner

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/zest/internal/errdef"
	"github.com/unkn0wn-root/zest/internal/httpclient"
	"github.com/unkn0wn-root/zest/internal/zest"
)

const formsPage = `<html><body>
<form><input name="csrf" value="abc"><input name="user"></form>
<form>
	<select name="s"><option value="1">1</option><option value="2" selected>2</option></select>
	<textarea name="t">hi</textarea>
</form>
</body></html>`

func assignString(name, value string) *zest.AssignString {
	return &zest.AssignString{AssignBase: zest.AssignBase{VariableName: name}, String: value}
}

func TestAssignments(t *testing.T) {
	h := newHarness(t, statusSender(200, "token=t0k3n; "+formsPage))
	h.r.opts.Globals.Set("shared", "g")
	s := script(
		zest.NewRequest("GET", "http://example.com/"),
		&zest.AssignRegex{AssignBase: zest.AssignBase{VariableName: "tok"}, Source: zest.VarResponseBody, Regex: `TOKEN=(\w+)`, GroupIndex: 1},
		&zest.AssignRegex{AssignBase: zest.AssignBase{VariableName: "exact"}, Source: zest.VarResponseBody, Regex: `TOKEN=(\w+)`, GroupIndex: 1, CaseExact: true},
		&zest.AssignFieldValue{AssignBase: zest.AssignBase{VariableName: "csrf"}, FormIndex: 0, FieldName: "csrf"},
		&zest.AssignFieldValue{AssignBase: zest.AssignBase{VariableName: "sel"}, FormIndex: 1, FieldName: "s"},
		&zest.AssignFieldValue{AssignBase: zest.AssignBase{VariableName: "area"}, FormIndex: 1, FieldName: "t"},
		&zest.AssignStringDelimiters{AssignBase: zest.AssignBase{VariableName: "ctype"}, Prefix: "Content-Type: ", Postfix: "\r\n", Location: zest.LocationHead},
		&zest.AssignStringDelimiters{AssignBase: zest.AssignBase{VariableName: "between"}, Prefix: "token=", Postfix: ";", Location: zest.LocationBody},
		&zest.AssignGlobalVariable{AssignBase: zest.AssignBase{VariableName: "fromGlobal"}, GlobalVariableName: "shared"},
		assignString("form", "a=1&b=2"),
		&zest.AssignFieldReplace{AssignBase: zest.AssignBase{VariableName: "form2"}, Source: "form", FieldName: "b", Value: "x {{tok}}"},
		say("{{tok}}|{{exact}}|{{csrf}}|{{sel}}|{{area}}|{{ctype}}|{{between}}|{{fromGlobal}}|{{form2}}"),
	)
	_, err := h.run(t, s, nil)
	require.NoError(t, err)
	assert.Equal(t, "t0k3n||abc|2|hi|text/html|t0k3n|g|a=1&b=x+t0k3n\n", h.out.String())
}

func TestAssignmentFailures(t *testing.T) {
	for name, stmt := range map[string]zest.Statement{
		"missing group":   &zest.AssignRegex{AssignBase: zest.AssignBase{VariableName: "x"}, Source: zest.VarResponseBody, Regex: `ok`, GroupIndex: 2},
		"missing form":    &zest.AssignFieldValue{AssignBase: zest.AssignBase{VariableName: "x"}, FormIndex: 3, FieldName: "a"},
		"missing field":   &zest.AssignFieldValue{AssignBase: zest.AssignBase{VariableName: "x"}, FormIndex: 0, FieldName: "nope"},
		"missing prefix":  &zest.AssignStringDelimiters{AssignBase: zest.AssignBase{VariableName: "x"}, Prefix: "<<", Postfix: ">>", Location: zest.LocationBody},
		"missing postfix": &zest.AssignStringDelimiters{AssignBase: zest.AssignBase{VariableName: "x"}, Prefix: "ok", Postfix: ">>", Location: zest.LocationBody},
		"bad operand":     &zest.AssignCalc{AssignBase: zest.AssignBase{VariableName: "x"}, OperandA: "one", OperandB: "2", Operation: zest.CalcAdd},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, statusSender(200, "ok <form><input name=a></form>"))
			_, err := h.run(t, script(zest.NewRequest("GET", "http://example.com/"), stmt), nil)
			require.Error(t, err)
			assert.Equal(t, errdef.CodeAction, errdef.CodeOf(err))
		})
	}
}

func TestFieldValueWithoutResponse(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.run(t, script(&zest.AssignFieldValue{AssignBase: zest.AssignBase{VariableName: "x"}, FieldName: "a"}), nil)
	assert.Equal(t, errdef.CodeAction, errdef.CodeOf(err))
}

func TestCalc(t *testing.T) {
	for _, tc := range []struct {
		a, b string
		op   zest.CalcOperation
		want string
	}{
		{"7", "2", zest.CalcAdd, "9"},
		{"7", "9", zest.CalcSubtract, "-2"},
		{"7", "2", zest.CalcDivide, "3"},
		{"-7", "2", zest.CalcDivide, "-3"},
		{" 6 ", "7", zest.CalcMultiply, "42"},
		{"1.5", "2", zest.CalcMultiply, "3"},
		{"1", "4.0", zest.CalcDivide, "0.25"},
		{"9223372036854775807", "0", zest.CalcAdd, "9223372036854775807"},
		{"-4611686018427387904", "2", zest.CalcMultiply, "-9223372036854775808"},
		// past the int64 range the result is computed in floating point
		{"9223372036854775807", "1", zest.CalcAdd, "9223372036854775808"},
		{"9223372036854775807", "-1", zest.CalcSubtract, "9223372036854775808"},
		{"9223372036854775807", "2", zest.CalcMultiply, "18446744073709551616"},
		{"-9223372036854775808", "-1", zest.CalcMultiply, "9223372036854775808"},
		{"-9223372036854775808", "-1", zest.CalcDivide, "9223372036854775808"},
	} {
		got, err := calc(tc.a, tc.b, tc.op)
		require.NoError(t, err, "%s %s %s", tc.a, tc.op, tc.b)
		assert.Equal(t, tc.want, got, "%s %s %s", tc.a, tc.op, tc.b)
	}

	_, err := calc("1", "0", zest.CalcDivide)
	assert.Equal(t, errdef.CodeAction, errdef.CodeOf(err))
	_, err = calc("1.0", "0", zest.CalcDivide)
	assert.Equal(t, errdef.CodeAction, errdef.CodeOf(err))
	_, err = calc("1", "2", zest.CalcOperation("modulo"))
	assert.Equal(t, errdef.CodeAction, errdef.CodeOf(err))
}

func TestAssignCalcExpandsOperands(t *testing.T) {
	h := newHarness(t, nil)
	s := script(
		assignString("n", "40"),
		&zest.AssignCalc{AssignBase: zest.AssignBase{VariableName: "n"}, OperandA: "{{n}}", OperandB: "2", Operation: zest.CalcAdd},
		say("{{n}}"),
	)
	_, err := h.run(t, s, nil)
	require.NoError(t, err)
	assert.Equal(t, "42\n", h.out.String())
}

func TestAssignReplace(t *testing.T) {
	for _, tc := range []struct {
		name string
		stmt *zest.AssignReplace
		want string
	}{
		{"literal any case", &zest.AssignReplace{Replace: "hello", Replacement: "bye"}, "bye bye $1"},
		{"literal exact", &zest.AssignReplace{Replace: "hello", Replacement: "bye", CaseExact: true}, "Hello bye $1"},
		{"literal keeps dollars", &zest.AssignReplace{Replace: "1", Replacement: "$0"}, "Hello hello $$0"},
		{"literal metacharacters", &zest.AssignReplace{Replace: "$1", Replacement: "one", CaseExact: false}, "Hello hello one"},
		{"regex groups", &zest.AssignReplace{Replace: `h(\w+)`, Replacement: "[$1]", Regex: true, CaseExact: true}, "Hello [ello] $1"},
		{"regex any case", &zest.AssignReplace{Replace: `h\w+`, Replacement: "x", Regex: true}, "x x $1"},
		{"empty pattern", &zest.AssignReplace{Replacement: "x"}, "Hello hello $1"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, nil)
			tc.stmt.VariableName = "v"
			_, err := h.run(t, script(assignString("v", "Hello hello $1"), tc.stmt, say("{{v}}")), nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want+"\n", h.out.String())
		})
	}
}

func TestAssignRandomIntegerInRange(t *testing.T) {
	h := newHarness(t, nil)
	loop := zest.NewLoopInteger("i", 0, 50)
	s := script(loop)
	require.NoError(t, s.AddChild(loop,
		&zest.AssignRandomInteger{AssignBase: zest.AssignBase{VariableName: "r"}, MinInt: 3, MaxInt: 6}))
	require.NoError(t, s.AddChild(loop, say("{{r}}")))
	_, err := h.run(t, s, nil)
	require.NoError(t, err)
	for _, line := range strings.Fields(h.out.String()) {
		assert.Contains(t, []string{"3", "4", "5"}, line)
	}
}

func TestRegexLoop(t *testing.T) {
	h := newHarness(t, nil)
	loop := &zest.LoopRegex{
		LoopBase:          zest.LoopBase{VariableName: "m"},
		InputVariableName: "list",
		Regex:             `[A-Z]\d`,
	}
	s := script(assignString("list", "a1, b2; C3"), loop)
	require.NoError(t, s.AddChild(loop, say("{{m}}")))
	_, err := h.run(t, s, nil)
	require.NoError(t, err)
	assert.Equal(t, "a1\nb2\nC3\n", h.out.String())
}

func TestInvokeScript(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, afero.WriteFile(h.fs, "/scripts/join.js", []byte(
		`runtime.setVariable("side", vars["request.method"] || "none");
a + "-" + b`), 0o644))

	s := script(
		zest.NewRequest("POST", "http://example.com/"),
		&zest.ActionInvoke{
			VariableName: "joined",
			Script:       "/scripts/join.js",
			Parameters:   []zest.Param{{Name: "a", Value: "{{x}}"}, {Name: "b", Value: "2"}},
		},
		say("{{joined}} {{side}}"),
	)
	_, err := h.run(t, s, map[string]string{"x": "1"})
	require.NoError(t, err)
	assert.Equal(t, "1-2 POST\n", h.out.String())
}

func TestInvokeFailures(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, afero.WriteFile(h.fs, "/bad.js", []byte("throw new Error('boom')"), 0o644))
	for path, code := range map[string]errdef.Code{
		"/scripts/run.py": errdef.CodeAction,
		"/missing.js":     errdef.CodeIO,
		"/bad.js":         errdef.CodeAction,
	} {
		_, err := h.run(t, script(&zest.ActionInvoke{VariableName: "v", Script: path}), nil)
		require.Error(t, err, path)
		assert.Equal(t, code, errdef.CodeOf(err), path)
	}
}

type scanRecorder struct {
	target, name string
	req          *httpclient.Request
}

func (s *scanRecorder) Scan(_ context.Context, target, name string, req *httpclient.Request, _ *httpclient.Response) (string, error) {
	s.target, s.name, s.req = target, name, req
	return "scanned " + target, nil
}

func TestActionScan(t *testing.T) {
	h := newHarness(t, nil)
	rec := &scanRecorder{}
	scan := &zest.ActionScan{TargetParameter: zest.VarRequestURL, ScanName: "active"}
	s := script(zest.NewRequest("GET", "http://example.com/a"), scan)

	_, err := h.run(t, s, nil)
	require.NoError(t, err)
	assert.Empty(t, h.out.String())

	h.r.opts.Scanner = rec
	_, err = h.run(t, s, nil)
	require.NoError(t, err)
	assert.Equal(t, "scanned http://example.com/a\n", h.out.String())
	assert.Equal(t, "active", rec.name)
	require.NotNil(t, rec.req)
	assert.Equal(t, "http://example.com/a", rec.req.URL)
}
