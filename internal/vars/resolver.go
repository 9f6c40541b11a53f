package vars

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const (
	DefaultStart = "{{"
	DefaultEnd   = "}}"
)

type Provider interface {
	Resolve(name string) (string, bool)
	Label() string
}

// Resolver substitutes delimited tokens using the first provider that
// knows the name. Dynamic tokens are consulted after every provider.
type Resolver struct {
	providers []Provider
	start     string
	end       string
}

func NewResolver(providers ...Provider) *Resolver {
	return &Resolver{providers: providers, start: DefaultStart, end: DefaultEnd}
}

func (r *Resolver) SetDelimiters(start, end string) {
	if start == "" {
		start = DefaultStart
	}
	if end == "" {
		end = DefaultEnd
	}
	r.start, r.end = start, end
}

func (r *Resolver) Delimiters() (string, string) {
	return r.start, r.end
}

func (r *Resolver) Resolve(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	for _, provider := range r.providers {
		if value, ok := provider.Resolve(name); ok {
			return value, true
		}
	}
	return resolveDynamic(name)
}

// Expand replaces every token in input in a single pass. Unknown names
// expand to the empty string. Unterminated tokens and names containing
// whitespace are kept verbatim. When urlEncode is set each substituted
// value is percent-encoded first.
func (r *Resolver) Expand(input string, urlEncode bool) string {
	if !strings.Contains(input, r.start) {
		return input
	}
	var b strings.Builder
	b.Grow(len(input))
	rest := input
	for {
		open := strings.Index(rest, r.start)
		if open < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:open])
		after := rest[open+len(r.start):]
		closeAt := strings.Index(after, r.end)
		if closeAt < 0 {
			b.WriteString(rest[open:])
			break
		}
		name := after[:closeAt]
		if !validName(name, r.start) {
			b.WriteString(r.start)
			rest = after
			continue
		}
		value, _ := r.Resolve(name)
		if urlEncode {
			value = Escape(value)
		}
		b.WriteString(value)
		rest = after[closeAt+len(r.end):]
	}
	return b.String()
}

func validName(name, start string) bool {
	if name == "" || strings.Contains(name, start) {
		return false
	}
	return strings.IndexFunc(name, unicode.IsSpace) < 0
}

// Escape percent-encodes every byte outside the unreserved set of RFC 3986.
func Escape(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&15])
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-' || c == '.' || c == '_' || c == '~':
		return true
	}
	return false
}

func resolveDynamic(name string) (string, bool) {
	switch strings.ToLower(name) {
	case "$timestamp":
		return strconv.FormatInt(time.Now().Unix(), 10), true
	case "$timestampiso8601":
		return time.Now().UTC().Format(time.RFC3339), true
	case "$randomint":
		n, _ := rand.Int(rand.Reader, big.NewInt(1<<62))
		return n.String(), true
	case "$uuid", "$guid":
		return uuid.NewString(), true
	default:
		return "", false
	}
}

type MapProvider struct {
	values map[string]string
	label  string
}

// NewMapProvider snapshots values. Names are matched exactly.
func NewMapProvider(label string, values map[string]string) Provider {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &MapProvider{values: copied, label: label}
}

func (p *MapProvider) Resolve(name string) (string, bool) {
	value, ok := p.values[name]
	return value, ok
}

func (p *MapProvider) Label() string {
	return p.label
}

// Store is a mutable provider owned by a single script execution.
type Store struct {
	label  string
	values map[string]string
}

func NewStore(label string) *Store {
	return &Store{label: label, values: make(map[string]string)}
}

func (s *Store) Resolve(name string) (string, bool) {
	value, ok := s.values[name]
	return value, ok
}

func (s *Store) Label() string { return s.label }

func (s *Store) Set(name, value string) { s.values[name] = value }

func (s *Store) Delete(name string) { delete(s.values, name) }

func (s *Store) Reset() { clear(s.values) }

func (s *Store) Len() int { return len(s.values) }

// Values returns a copy of the stored variables.
func (s *Store) Values() map[string]string {
	out := make(map[string]string, len(s.values))
	for name, value := range s.values {
		out[name] = value
	}
	return out
}
