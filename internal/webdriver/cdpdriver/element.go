package cdpdriver

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/unkn0wn-root/zest/internal/errdef"
)

type Element struct {
	d      *Driver
	handle string
	find   string
	index  int
}

func (e *Element) run(ctx context.Context, body string) (gjson.Result, error) {
	if e.d.current != e.handle {
		return gjson.Result{}, errdef.New(errdef.CodeClient, "element belongs to window %q", e.handle)
	}
	return e.d.eval(ctx, elementCall(e.find, e.index, body))
}

func (e *Element) Click(ctx context.Context) error {
	_, err := e.run(ctx, "el.click(); return true;")
	return err
}

func (e *Element) SendKeys(ctx context.Context, keys string) error {
	if _, err := e.run(ctx, "el.focus(); return true;"); err != nil {
		return err
	}
	return e.d.typeText(ctx, keys)
}

func (e *Element) Clear(ctx context.Context) error {
	_, err := e.run(ctx, "if (!('value' in el)) throw new Error('element cannot be cleared'); "+
		"el.value = ''; el.dispatchEvent(new Event('input', {bubbles: true})); return true;")
	return err
}

func (e *Element) Submit(ctx context.Context) error {
	_, err := e.run(ctx, submitBody)
	return err
}

func (e *Element) Attribute(ctx context.Context, name string) (string, error) {
	res, err := e.run(ctx, fmt.Sprintf(attributeBody, jsString(name)))
	if err != nil {
		return "", err
	}
	return res.String(), nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	res, err := e.run(ctx, "return (el.innerText || el.textContent || '').trim();")
	if err != nil {
		return "", err
	}
	return res.String(), nil
}

func (e *Element) TagName(ctx context.Context) (string, error) {
	res, err := e.run(ctx, "return el.tagName.toLowerCase();")
	if err != nil {
		return "", err
	}
	return res.String(), nil
}
