package zest

import (
	"net/http"
	"net/textproto"
	"sort"
	"strings"
)

// Standard variable names populated from the last request and response.
const (
	VarRequestURL     = "request.url"
	VarRequestMethod  = "request.method"
	VarRequestHeader  = "request.header"
	VarRequestBody    = "request.body"
	VarResponseURL    = "response.url"
	VarResponseHeader = "response.header"
	VarResponseBody   = "response.body"
	VarResponseStatus = "response.status"
)

func StandardVariables() []string {
	return []string{
		VarRequestURL,
		VarRequestMethod,
		VarRequestHeader,
		VarRequestBody,
		VarResponseURL,
		VarResponseHeader,
		VarResponseBody,
		VarResponseStatus,
	}
}

type Request struct {
	StatementBase
	URL              string           `zest:"url"`
	Method           string           `zest:"method"`
	Headers          string           `zest:"headers"`
	Data             string           `zest:"data"`
	ResponseExpected bool             `zest:"responseExpected"`
	FollowRedirects  bool             `zest:"followRedirects"`
	Timestamp        int64            `zest:"timestamp"`
	TimestampDelay   int64            `zest:"timestampDelay"`
	Assertions       []*Assertion     `zest:"assertions"`
	Transformations  []Transformation `zest:"transformations"`
	Cookies          []Cookie         `zest:"cookies"`
	Response         *Response        `zest:"response"`
}

func NewRequest(method, url string) *Request {
	if method == "" {
		method = http.MethodGet
	}
	return &Request{
		URL:              url,
		Method:           method,
		ResponseExpected: true,
		FollowRedirects:  true,
	}
}

func (*Request) ElementType() string { return "ZestRequest" }

func (r *Request) AddAssertion(expr Expression) *Assertion {
	a := &Assertion{RootExpression: expr}
	r.Assertions = append(r.Assertions, a)
	return a
}

func (r *Request) AddTransformation(t Transformation) {
	r.Transformations = append(r.Transformations, t)
}

type Cookie struct {
	Name     string `zest:"name"`
	Value    string `zest:"value"`
	Domain   string `zest:"domain"`
	Path     string `zest:"path"`
	Secure   bool   `zest:"secure"`
	HTTPOnly bool   `zest:"httpOnly"`
}

// Response is the specimen recorded alongside a request for replay comparison.
type Response struct {
	URL              string `zest:"url"`
	Headers          string `zest:"headers"`
	Body             string `zest:"body"`
	StatusCode       int    `zest:"statusCode"`
	ResponseTimeInMs int64  `zest:"responseTimeInMs"`
}

func (*Response) ElementType() string { return "ZestResponse" }

type Assertion struct {
	RootExpression Expression `zest:"rootExpression"`
}

func (*Assertion) ElementType() string { return "ZestAssertion" }

// ParseHeaders reads "Name: value" lines separated by CRLF or LF.
// Lines without a colon are ignored.
func ParseHeaders(raw string) http.Header {
	headers := make(http.Header)
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		headers.Add(name, strings.TrimSpace(value))
	}
	return headers
}

// FormatHeaders renders headers as CRLF terminated lines with sorted names.
func FormatHeaders(headers http.Header) string {
	if len(headers) == 0 {
		return ""
	}
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		canonical := textproto.CanonicalMIMEHeaderKey(name)
		for _, value := range headers[name] {
			b.WriteString(canonical)
			b.WriteString(": ")
			b.WriteString(value)
			b.WriteString("\r\n")
		}
	}
	return b.String()
}
