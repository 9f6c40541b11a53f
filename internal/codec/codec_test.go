package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/zest/internal/errdef"
	"github.com/unkn0wn-root/zest/internal/zest"
)

func sampleScript() *zest.Script {
	s := zest.NewScript()
	s.Title = "sample"
	s.About = "covers the statement catalogue"
	s.Prefix = "http://localhost:8080"
	s.Type = zest.TypeTargeted
	s.Parameters.Tokens = map[string]string{"user": "alice", "n": "3"}
	s.Authentication = []zest.Authentication{
		&zest.HTTPAuthentication{Site: "localhost", Realm: "r", Username: "u", Password: "p"},
	}

	req := zest.NewRequest("POST", "/login")
	req.Headers = "Content-Type: application/x-www-form-urlencoded\r\n"
	req.Data = "user={{user}}&token=TOKEN"
	req.TimestampDelay = 10
	req.Cookies = []zest.Cookie{{Name: "sid", Value: "1", Domain: "localhost", Path: "/", HTTPOnly: true}}
	req.Response = &zest.Response{URL: "http://localhost:8080/login", StatusCode: 200, Body: "ok", ResponseTimeInMs: 12}
	req.AddAssertion(&zest.ExpressionStatusCode{Code: 200})
	req.AddAssertion(&zest.ExpressionLength{VariableName: zest.VarResponseBody, MinLength: 1, MaxLength: 10})
	req.AddAssertion(&zest.ExpressionRegex{ExprBase: zest.ExprBase{Not: true}, VariableName: zest.VarResponseBody, Regex: "error"})
	req.AddAssertion(&zest.ExpressionHeader{HeaderName: "Server", Regex: "nginx", CaseExact: true})
	req.AddTransformation(&zest.TransformRandomInteger{Token: "TOKEN", MinInt: 1, MaxInt: 9})
	req.AddTransformation(&zest.TransformFieldReplace{FieldName: "user", Value: "bob"})
	req.AddTransformation(&zest.TransformHeader{Name: "X-Trace", Value: "1"})
	s.Add(req)

	cond := zest.NewConditional(&zest.ExpressionOr{ChildrenCondition: []zest.Expression{
		&zest.ExpressionEquals{VariableName: "a", Value: "b", CaseExact: true},
		&zest.ExpressionContains{VariableName: "a", Value: "c"},
		&zest.ExpressionAnd{ChildrenCondition: []zest.Expression{
			&zest.ExpressionResponseTime{GreaterThan: true, TimeInMs: 100},
			&zest.ExpressionURL{IncludeRegexes: []string{"login"}, ExcludeRegexes: []string{"logout"}},
			&zest.ExpressionIsInteger{VariableName: "n"},
			&zest.ExpressionEval{Script: "true", Engine: "js"},
			&zest.ExpressionClientElementExists{ElementLocator: zest.ElementLocator{WindowHandle: "w", Type: "id", Element: "x"}},
		}},
	}})
	s.Add(cond)
	_ = s.AddIf(cond, &zest.ActionPrint{Message: "yes"})
	_ = s.AddElse(cond, &zest.ActionFail{Message: "no", Priority: zest.PriorityLow})

	s.Add(&zest.ActionSleep{Milliseconds: 5})
	s.Add(&zest.ActionGlobalVariableSet{GlobalVariableName: "g", Value: "1"})
	s.Add(&zest.ActionGlobalVariableRemove{GlobalVariableName: "g"})
	s.Add(&zest.ActionInvoke{VariableName: "out", Script: "x.js", Parameters: []zest.Param{{Name: "a", Value: "1"}}})
	s.Add(&zest.ActionScan{TargetParameter: "q", ScanName: "xss"})
	s.Add(&zest.Comment{Comment: "assignments"})

	assignments := []zest.Statement{
		&zest.AssignString{AssignBase: zest.AssignBase{VariableName: "a"}, String: "x"},
		&zest.AssignRegex{AssignBase: zest.AssignBase{VariableName: "b"}, Source: "a", Regex: "(x)", GroupIndex: 1},
		&zest.AssignFromElement{AssignBase: zest.AssignBase{VariableName: "c"}, ElementLocator: zest.ElementLocator{WindowHandle: "w", Type: "name", Element: "q"}, Attribute: "value"},
		&zest.AssignFieldValue{AssignBase: zest.AssignBase{VariableName: "d"}, FormIndex: 1, FieldName: "csrf"},
		&zest.AssignRandomInteger{AssignBase: zest.AssignBase{VariableName: "e"}, MinInt: 1, MaxInt: 5},
		&zest.AssignCalc{AssignBase: zest.AssignBase{VariableName: "f"}, OperandA: "1", OperandB: "2", Operation: zest.CalcMultiply},
		&zest.AssignReplace{AssignBase: zest.AssignBase{VariableName: "g"}, Replace: "a+", Replacement: "b", Regex: true},
		&zest.AssignFieldReplace{AssignBase: zest.AssignBase{VariableName: "h"}, Source: "request.body", FieldName: "user", Value: "eve"},
		&zest.AssignStringDelimiters{AssignBase: zest.AssignBase{VariableName: "i"}, Prefix: "<b>", Postfix: "</b>", Location: zest.LocationHead},
		&zest.AssignGlobalVariable{AssignBase: zest.AssignBase{VariableName: "j"}, GlobalVariableName: "g"},
	}
	for _, a := range assignments {
		s.Add(a)
	}

	strLoop := &zest.LoopString{LoopBase: zest.LoopBase{VariableName: "v"}, Values: []string{"a", "b"}}
	s.Add(strLoop)
	_ = s.AddChild(strLoop, &zest.LoopNext{})
	fileLoop := &zest.LoopFile{LoopBase: zest.LoopBase{VariableName: "line"}, PathToFile: "values.txt"}
	s.Add(fileLoop)
	_ = s.AddChild(fileLoop, &zest.LoopBreak{})
	intLoop := zest.NewLoopInteger("i", 0, 5)
	intLoop.Step = 2
	s.Add(intLoop)
	s.Add(&zest.LoopClientElements{LoopBase: zest.LoopBase{VariableName: "el"}, ElementLocator: zest.ElementLocator{WindowHandle: "w", Type: "tagName", Element: "a"}, Attribute: "href"})
	s.Add(&zest.LoopRegex{LoopBase: zest.LoopBase{VariableName: "m"}, InputVariableName: "response.body", Regex: "\\d+"})

	launch := zest.NewClientLaunch("w", "HtmlUnit", "http://localhost/")
	launch.Capabilities = "a=b\nc=d"
	launch.Headless = false
	s.Add(launch)
	s.Add(&zest.ClientElementClick{ElementLocator: zest.ElementLocator{WindowHandle: "w", Type: "id", Element: "go"}})
	s.Add(&zest.ClientElementSendKeys{ElementLocator: zest.ElementLocator{WindowHandle: "w", Type: "id", Element: "q"}, Value: "x"})
	s.Add(&zest.ClientElementSubmit{ElementLocator: zest.ElementLocator{WindowHandle: "w", Type: "id", Element: "f"}})
	s.Add(&zest.ClientElementClear{ElementLocator: zest.ElementLocator{WindowHandle: "w", Type: "id", Element: "q"}})
	s.Add(&zest.ClientElementSendKeysBySequence{ElementLocator: zest.ElementLocator{WindowHandle: "w", Type: "xpath", Element: "//input"}, Value: "ab", DelayInMs: 3})
	s.Add(&zest.ClientSwitchToFrame{WindowHandle: "w", FrameIndex: -1, FrameName: "top"})
	s.Add(&zest.ClientWindowHandle{WindowHandle: "w2", URL: "popup", Regex: true})
	s.Add(&zest.ClientWindowOpenURL{WindowHandle: "w", URL: "http://localhost/next"})
	s.Add(&zest.ClientWindowClose{WindowHandle: "w", SleepInSeconds: 1})

	disabled := &zest.ActionPrint{Message: "skipped"}
	disabled.SetEnabled(false)
	s.Add(disabled)
	s.Add(&zest.ControlReturn{Value: "done"})
	return s
}

func TestRoundTripJSON(t *testing.T) {
	s := sampleScript()
	data, err := MarshalJSON(s)
	require.NoError(t, err)

	got, err := UnmarshalJSON(data)
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestRoundTripYAML(t *testing.T) {
	s := sampleScript()
	data, err := MarshalYAML(s)
	require.NoError(t, err)

	got, err := UnmarshalYAML(data)
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestJSONAndYAMLDecodeToSameGraph(t *testing.T) {
	s := sampleScript()
	js, err := MarshalJSON(s)
	require.NoError(t, err)
	ym, err := MarshalYAML(s)
	require.NoError(t, err)

	fromJSON, err := Decode(js)
	require.NoError(t, err)
	fromYAML, err := Decode(ym)
	require.NoError(t, err)
	assert.Equal(t, fromJSON, fromYAML)
}

func TestEveryElementTypeRoundTrips(t *testing.T) {
	for _, name := range zest.ElementTypes() {
		el, ok := zest.New(name)
		require.True(t, ok)
		data, err := MarshalJSON(el)
		require.NoError(t, err, name)
		got, err := UnmarshalJSON(data)
		require.NoError(t, err, name)
		assert.Equal(t, el, got, name)
	}
}

func TestDecodeDefaultsAndUnknownFields(t *testing.T) {
	el, err := UnmarshalJSON([]byte(`{"elementType":"ZestRequest","url":"http://x/","index":4,"colour":"blue"}`))
	require.NoError(t, err)
	req := el.(*zest.Request)
	assert.Equal(t, "GET", req.Method)
	assert.True(t, req.FollowRedirects)
	assert.True(t, req.ResponseExpected)
	assert.True(t, req.Enabled())
	assert.Equal(t, 4, req.Index)

	el, err = UnmarshalYAML([]byte("elementType: ZestClientLaunch\nwindowHandle: w\nbrowserType: firefox\n"))
	require.NoError(t, err)
	assert.True(t, el.(*zest.ClientLaunch).Headless)

	el, err = UnmarshalJSON([]byte(`{"elementType":"ZestActionPrint","enabled":false}`))
	require.NoError(t, err)
	assert.False(t, el.(*zest.ActionPrint).Enabled())
}

func TestDecodeErrors(t *testing.T) {
	cases := map[string]string{
		"unknown type":  `{"elementType":"ZestTeleport"}`,
		"missing type":  `{"title":"x"}`,
		"wrong kind":    `{"elementType":"ZestScript","statements":[{"elementType":"ZestExpressionStatusCode"}]}`,
		"bad int":       `{"elementType":"ZestActionSleep","milliseconds":"soon"}`,
		"malformed":     `{"elementType":`,
		"trailing data": `{"elementType":"ZestComment"} {}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(doc))
			require.Error(t, err)
			assert.Equal(t, errdef.CodeLoad, errdef.CodeOf(err))
		})
	}
}

func TestDecodeScriptAssignsIndexesAndValidates(t *testing.T) {
	doc := `{
		"elementType": "ZestScript",
		"statements": [
			{"elementType": "ZestActionPrint", "message": "a"},
			{"elementType": "ZestActionPrint", "message": "b", "index": 3}
		]
	}`
	s, err := DecodeScript([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, 4, s.Statements[0].Base().Index)
	assert.Equal(t, 3, s.Statements[1].Base().Index)
	assert.Equal(t, zest.Version, s.ZestVersion)

	dup := `{"elementType":"ZestScript","statements":[
		{"elementType":"ZestComment","index":1},
		{"elementType":"ZestComment","index":1}]}`
	_, err = DecodeScript([]byte(dup))
	require.Error(t, err)
	assert.Equal(t, errdef.CodeLoad, errdef.CodeOf(err))

	_, err = DecodeScript([]byte(`{"elementType":"ZestComment"}`))
	require.Error(t, err)
}

func TestCycleRejected(t *testing.T) {
	s := zest.NewScript()
	loop := &zest.LoopString{LoopBase: zest.LoopBase{VariableName: "v"}}
	loop.Statements = []zest.Statement{loop}
	s.Statements = []zest.Statement{loop}

	_, err := MarshalJSON(s)
	require.Error(t, err)
	assert.Equal(t, errdef.CodeLoad, errdef.CodeOf(err))
	assert.True(t, strings.Contains(err.Error(), "cycle"))
}

func TestSharedNodeIsNotACycle(t *testing.T) {
	s := zest.NewScript()
	p := &zest.ActionPrint{Message: "twice"}
	s.Statements = []zest.Statement{p, p}
	_, err := MarshalJSON(s)
	require.NoError(t, err)
}

func TestSniff(t *testing.T) {
	f, typ := Sniff([]byte("  {\"elementType\":\"ZestScript\"}"))
	assert.Equal(t, FormatJSON, f)
	assert.Equal(t, "ZestScript", typ)

	f, typ = Sniff([]byte("\xEF\xBB\xBFelementType: ZestScript\ntitle: x\n"))
	assert.Equal(t, FormatYAML, f)
	assert.Equal(t, "ZestScript", typ)

	f, typ = Sniff([]byte("title: untyped\n"))
	assert.Equal(t, FormatYAML, f)
	assert.Empty(t, typ)
}
