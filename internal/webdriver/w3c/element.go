package w3c

import (
	"context"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const submitScript = `const el = arguments[0];
const form = el.tagName === 'FORM' ? el : el.form;
if (!form) throw new Error('element is not inside a form');
form.submit();`

type Element struct {
	d  *Driver
	id string
}

func (e *Element) path(suffix string) string {
	return e.d.sessionPath("/element/%s%s", url.PathEscape(e.id), suffix)
}

func (e *Element) Click(ctx context.Context) error {
	_, err := e.d.do(ctx, http.MethodPost, e.path("/click"), "")
	return err
}

func (e *Element) SendKeys(ctx context.Context, keys string) error {
	body, _ := sjson.Set(`{}`, "text", keys)
	_, err := e.d.do(ctx, http.MethodPost, e.path("/value"), body)
	return err
}

func (e *Element) Clear(ctx context.Context) error {
	_, err := e.d.do(ctx, http.MethodPost, e.path("/clear"), "")
	return err
}

// Submit has no W3C endpoint and is run as a script against the element.
func (e *Element) Submit(ctx context.Context) error {
	body, _ := sjson.Set(`{}`, "script", submitScript)
	body, _ = sjson.Set(body, "args", []map[string]string{{elementKey: e.id}})
	_, err := e.d.do(ctx, http.MethodPost, e.d.sessionPath("/execute/sync"), body)
	return err
}

// Attribute prefers the live property and falls back to the markup
// attribute, the way browsers report form control state.
func (e *Element) Attribute(ctx context.Context, name string) (string, error) {
	res, err := e.d.do(ctx, http.MethodGet, e.path("/property/"+url.PathEscape(name)), "")
	if err != nil {
		return "", err
	}
	if res.Exists() && res.Type != gjson.Null && !res.IsObject() && !res.IsArray() {
		return res.String(), nil
	}
	res, err = e.d.do(ctx, http.MethodGet, e.path("/attribute/"+url.PathEscape(name)), "")
	if err != nil {
		return "", err
	}
	return res.String(), nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	res, err := e.d.do(ctx, http.MethodGet, e.path("/text"), "")
	return res.String(), err
}

func (e *Element) TagName(ctx context.Context) (string, error) {
	res, err := e.d.do(ctx, http.MethodGet, e.path("/name"), "")
	return res.String(), err
}
