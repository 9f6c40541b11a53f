package htmldriver

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/unkn0wn-root/zest/internal/errdef"
)

// Element is a single node of the page it was found on. It keeps working
// on that page after the window navigates away.
type Element struct {
	d   *Driver
	w   *window
	p   *page
	sel *goquery.Selection
}

func (e *Element) tag() string {
	return strings.ToLower(goquery.NodeName(e.sel))
}

func (e *Element) inputType() string {
	t, ok := e.sel.Attr("type")
	if !ok || t == "" {
		if e.tag() == "button" {
			return "submit"
		}
		return "text"
	}
	return strings.ToLower(t)
}

func (e *Element) TagName(context.Context) (string, error) {
	return e.tag(), nil
}

func (e *Element) Text(context.Context) (string, error) {
	return visibleText(e.sel), nil
}

// Attribute mirrors what a browser reports for the property: select
// elements report their type as select-one or select-multiple, inputs
// default to type text and form controls report their current value.
func (e *Element) Attribute(_ context.Context, name string) (string, error) {
	switch strings.ToLower(name) {
	case "type":
		switch e.tag() {
		case "select":
			if _, multiple := e.sel.Attr("multiple"); multiple {
				return "select-multiple", nil
			}
			return "select-one", nil
		case "input", "button":
			return e.inputType(), nil
		}
	case "value":
		switch e.tag() {
		case "textarea":
			return e.sel.Text(), nil
		case "select":
			return selectedValue(e.sel), nil
		}
	}
	v, _ := e.sel.Attr(name)
	return v, nil
}

func (e *Element) SendKeys(_ context.Context, keys string) error {
	switch e.tag() {
	case "input":
		v, _ := e.sel.Attr("value")
		e.sel.SetAttr("value", v+keys)
	case "textarea":
		e.sel.SetText(e.sel.Text() + keys)
	case "select":
		options := e.sel.Find("option")
		match := options.FilterFunction(func(_ int, o *goquery.Selection) bool {
			return strings.HasPrefix(visibleText(o), keys) || optionValue(o) == keys
		}).First()
		if match.Length() == 0 {
			return errdef.New(errdef.CodeClient, "no option matching %q", keys)
		}
		options.RemoveAttr("selected")
		match.SetAttr("selected", "selected")
	default:
		return errdef.New(errdef.CodeClient, "element <%s> does not accept keys", e.tag())
	}
	return nil
}

func (e *Element) Clear(context.Context) error {
	switch e.tag() {
	case "input":
		e.sel.SetAttr("value", "")
	case "textarea":
		e.sel.SetText("")
	default:
		return errdef.New(errdef.CodeClient, "element <%s> cannot be cleared", e.tag())
	}
	return nil
}

// Click follows links, submits forms through submit buttons and toggles
// checkboxes and radios. Other elements ignore clicks.
func (e *Element) Click(ctx context.Context) error {
	switch e.tag() {
	case "a":
		href, ok := e.sel.Attr("href")
		if !ok {
			return nil
		}
		target, err := e.p.resolve(href)
		if err != nil {
			return err
		}
		w := e.w
		if t, _ := e.sel.Attr("target"); t == "_blank" {
			w = e.d.openWindow()
		}
		p, err := e.d.fetch(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		if w == e.w {
			w.replace(p)
		} else {
			w.top = p
		}
		return nil
	case "input", "button":
		switch e.inputType() {
		case "submit", "image":
			return e.submit(ctx, e.sel)
		case "checkbox":
			if _, checked := e.sel.Attr("checked"); checked {
				e.sel.RemoveAttr("checked")
			} else {
				e.sel.SetAttr("checked", "checked")
			}
		case "radio":
			if name, ok := e.sel.Attr("name"); ok {
				form := e.sel.Closest("form")
				form.Find("input[type=radio]").FilterFunction(attrEquals("name", name)).RemoveAttr("checked")
			}
			e.sel.SetAttr("checked", "checked")
		}
	}
	return nil
}

func (e *Element) Submit(ctx context.Context) error {
	return e.submit(ctx, nil)
}

func (e *Element) submit(ctx context.Context, submitter *goquery.Selection) error {
	form := e.sel.Closest("form")
	if form.Length() == 0 {
		return errdef.New(errdef.CodeClient, "element <%s> is not inside a form", e.tag())
	}
	method := strings.ToUpper(strings.TrimSpace(form.AttrOr("method", http.MethodGet)))
	if method != http.MethodPost {
		method = http.MethodGet
	}
	action, err := e.p.resolve(form.AttrOr("action", ""))
	if err != nil {
		return err
	}
	p, err := e.d.fetch(ctx, method, action, formValues(form, submitter))
	if err != nil {
		return err
	}
	e.w.replace(p)
	return nil
}

// formValues collects the successful controls of form. Buttons only
// contribute when they are the submitter.
func formValues(form, submitter *goquery.Selection) url.Values {
	values := url.Values{}
	form.Find("input, select, textarea, button").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}
		if _, disabled := s.Attr("disabled"); disabled {
			return
		}
		switch strings.ToLower(goquery.NodeName(s)) {
		case "select":
			values.Add(name, selectedValue(s))
		case "textarea":
			values.Add(name, s.Text())
		case "button":
			if submitter != nil && submitter.IsSelection(s) {
				values.Add(name, s.AttrOr("value", ""))
			}
		default:
			switch strings.ToLower(s.AttrOr("type", "text")) {
			case "submit", "image", "reset", "button":
				if submitter != nil && submitter.IsSelection(s) {
					values.Add(name, s.AttrOr("value", ""))
				}
			case "checkbox", "radio":
				if _, checked := s.Attr("checked"); checked {
					values.Add(name, s.AttrOr("value", "on"))
				}
			default:
				values.Add(name, s.AttrOr("value", ""))
			}
		}
	})
	return values
}

func selectedValue(s *goquery.Selection) string {
	options := s.Find("option")
	chosen := options.Filter("[selected]").First()
	if chosen.Length() == 0 {
		chosen = options.First()
	}
	if chosen.Length() == 0 {
		return ""
	}
	return optionValue(chosen)
}

func optionValue(o *goquery.Selection) string {
	if v, ok := o.Attr("value"); ok {
		return v
	}
	return visibleText(o)
}
