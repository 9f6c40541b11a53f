package cdpdriver

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/unkn0wn-root/zest/internal/webdriver"
)

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// documentExpr walks the selected frame chain from the top document.
// Only same-origin frames are reachable this way.
func documentExpr(frames []int) string {
	expr := "document"
	for _, idx := range frames {
		expr = fmt.Sprintf("(%s).querySelectorAll('frame, iframe')[%d].contentDocument", expr, idx)
	}
	return expr
}

// findExpr evaluates to an array of the elements matching loc inside doc.
func findExpr(doc string, loc webdriver.Locator) (string, error) {
	v := jsString(loc.Value)
	all := fmt.Sprintf("Array.from((%s).getElementsByTagName('*'))", doc)
	switch loc.By {
	case webdriver.ByID:
		return fmt.Sprintf("%s.filter(e => e.id === %s)", all, v), nil
	case webdriver.ByName:
		return fmt.Sprintf("%s.filter(e => e.getAttribute('name') === %s)", all, v), nil
	case webdriver.ByClassName:
		return fmt.Sprintf("%s.filter(e => e.classList.contains(%s))", all, v), nil
	case webdriver.ByCSSSelector:
		return fmt.Sprintf("Array.from((%s).querySelectorAll(%s))", doc, v), nil
	case webdriver.ByLinkText:
		return fmt.Sprintf(
			"Array.from((%s).querySelectorAll('a')).filter(a => a.textContent.trim().replace(/\\s+/g, ' ') === %s.trim())",
			doc, v,
		), nil
	case webdriver.ByPartialLinkText:
		return fmt.Sprintf(
			"Array.from((%s).querySelectorAll('a')).filter(a => a.textContent.replace(/\\s+/g, ' ').includes(%s))",
			doc, v,
		), nil
	case webdriver.ByTagName:
		return fmt.Sprintf("Array.from((%s).getElementsByTagName(%s))", doc, v), nil
	case webdriver.ByXPath:
		return fmt.Sprintf(
			"((d) => { const r = d.evaluate(%s, d, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null); "+
				"const out = []; for (let i = 0; i < r.snapshotLength; i++) { const n = r.snapshotItem(i); "+
				"if (n.nodeType === 1) out.push(n); } return out; })(%s)",
			v, doc,
		), nil
	default:
		return "", fmt.Errorf("unsupported locator type %q", loc.By)
	}
}

// elementCall wraps body so that it runs with el bound to element index
// of the locator result, failing when the element has gone away.
func elementCall(find string, index int, body string) string {
	var b strings.Builder
	b.WriteString("(() => { const el = (")
	b.WriteString(find)
	fmt.Fprintf(&b, ")[%d]; ", index)
	b.WriteString("if (!el) throw new Error('stale element'); ")
	b.WriteString(body)
	b.WriteString(" })()")
	return b.String()
}

const attributeBody = `const name = %s;
const prop = el[name];
if (prop !== undefined && prop !== null && typeof prop !== 'object' && typeof prop !== 'function') return String(prop);
const attr = el.getAttribute(name);
return attr === null ? '' : attr;`

const submitBody = `const form = el.tagName === 'FORM' ? el : el.form;
if (!form) throw new Error('element is not inside a form');
form.submit(); return true;`
