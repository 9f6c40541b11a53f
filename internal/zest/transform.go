package zest

// TransformRandomInteger replaces every occurrence of Token in the pending
// request url, headers and body with a random integer in [MinInt, MaxInt).
type TransformRandomInteger struct {
	transformBase
	Token  string `zest:"token"`
	MinInt int    `zest:"minInt"`
	MaxInt int    `zest:"maxInt"`
}

func (*TransformRandomInteger) ElementType() string { return "ZestTransformRandomInteger" }

// TransformFieldReplace sets a url-encoded form field in the pending request
// body, falling back to the query string when the body has no such field.
type TransformFieldReplace struct {
	transformBase
	FieldName string `zest:"fieldName"`
	Value     string `zest:"value"`
}

func (*TransformFieldReplace) ElementType() string { return "ZestTransformFieldReplace" }

type TransformHeader struct {
	transformBase
	Name  string `zest:"name"`
	Value string `zest:"value"`
}

func (*TransformHeader) ElementType() string { return "ZestTransformHeader" }
