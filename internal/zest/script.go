package zest

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	Version = "0.8"

	DefaultTokenStart = "{{"
	DefaultTokenEnd   = "}}"
)

type ScriptType string

const (
	TypeStandAlone ScriptType = "StandAlone"
	TypeActive     ScriptType = "Active"
	TypePassive    ScriptType = "Passive"
	TypeTargeted   ScriptType = "Targeted"
)

type Script struct {
	About          string           `zest:"about"`
	ZestVersion    string           `zest:"zestVersion"`
	Title          string           `zest:"title"`
	Description    string           `zest:"description"`
	Prefix         string           `zest:"prefix"`
	Type           ScriptType       `zest:"type"`
	Parameters     Parameters       `zest:"parameters"`
	Statements     []Statement      `zest:"statements"`
	Authentication []Authentication `zest:"authentication"`
}

func NewScript() *Script {
	return &Script{
		ZestVersion: Version,
		Type:        TypeStandAlone,
		Parameters:  Parameters{TokenStart: DefaultTokenStart, TokenEnd: DefaultTokenEnd},
	}
}

func (*Script) ElementType() string { return "ZestScript" }

// Parameters are the script level token defaults and the delimiters used
// for substitution.
type Parameters struct {
	TokenStart string            `zest:"tokenStart"`
	TokenEnd   string            `zest:"tokenEnd"`
	Tokens     map[string]string `zest:"tokens"`
}

func (*Parameters) ElementType() string { return "ZestVariables" }

func (p *Parameters) Delimiters() (string, string) {
	start, end := p.TokenStart, p.TokenEnd
	if start == "" {
		start = DefaultTokenStart
	}
	if end == "" {
		end = DefaultTokenEnd
	}
	return start, end
}

// Add appends stmt to the top level, giving it and its descendants fresh indexes.
func (s *Script) Add(stmt Statement) {
	s.index(stmt)
	s.Statements = append(s.Statements, stmt)
}

func (s *Script) Insert(pos int, stmt Statement) {
	if pos < 0 {
		pos = 0
	}
	if pos > len(s.Statements) {
		pos = len(s.Statements)
	}
	s.index(stmt)
	s.Statements = append(s.Statements, nil)
	copy(s.Statements[pos+1:], s.Statements[pos:])
	s.Statements[pos] = stmt
}

// AddChild appends stmt to the body of a loop or the then-branch of a conditional.
func (s *Script) AddChild(parent Statement, stmt Statement) error {
	switch p := parent.(type) {
	case Looper:
		s.index(stmt)
		body := p.Loop()
		body.Statements = append(body.Statements, stmt)
		return nil
	case *Conditional:
		return s.AddIf(p, stmt)
	default:
		return fmt.Errorf("%s cannot contain statements", parent.ElementType())
	}
}

func (s *Script) AddIf(cond *Conditional, stmt Statement) error {
	if cond == nil {
		return fmt.Errorf("conditional is nil")
	}
	s.index(stmt)
	cond.IfStatements = append(cond.IfStatements, stmt)
	return nil
}

func (s *Script) AddElse(cond *Conditional, stmt Statement) error {
	if cond == nil {
		return fmt.Errorf("conditional is nil")
	}
	s.index(stmt)
	cond.ElseStatements = append(cond.ElseStatements, stmt)
	return nil
}

// Remove deletes stmt, found by identity, from wherever it sits in the tree.
func (s *Script) Remove(stmt Statement) bool {
	return removeFrom(&s.Statements, stmt)
}

func removeFrom(list *[]Statement, target Statement) bool {
	for i, stmt := range *list {
		if stmt == target {
			*list = append((*list)[:i], (*list)[i+1:]...)
			if len(*list) == 0 {
				*list = nil
			}
			return true
		}
		for _, branch := range Branches(stmt) {
			if removeFrom(branch, target) {
				return true
			}
		}
	}
	return false
}

func (s *Script) Find(index int) Statement {
	var found Statement
	s.Walk(func(stmt Statement) bool {
		if stmt.Base().Index == index {
			found = stmt
			return false
		}
		return true
	})
	return found
}

// Walk visits statements depth first in document order until fn returns false.
func (s *Script) Walk(fn func(Statement) bool) {
	walk(s.Statements, fn)
}

func walk(list []Statement, fn func(Statement) bool) bool {
	for _, stmt := range list {
		if stmt == nil {
			continue
		}
		if !fn(stmt) {
			return false
		}
		for _, branch := range Branches(stmt) {
			if !walk(*branch, fn) {
				return false
			}
		}
	}
	return true
}

// Branches returns the nested statement lists owned by stmt.
func Branches(stmt Statement) []*[]Statement {
	switch st := stmt.(type) {
	case *Conditional:
		return []*[]Statement{&st.IfStatements, &st.ElseStatements}
	case Looper:
		return []*[]Statement{&st.Loop().Statements}
	}
	return nil
}

func (s *Script) maxIndex() int {
	max := 0
	s.Walk(func(stmt Statement) bool {
		if idx := stmt.Base().Index; idx > max {
			max = idx
		}
		return true
	})
	return max
}

func (s *Script) index(stmt Statement) {
	if stmt == nil {
		return
	}
	next := s.maxIndex()
	walk([]Statement{stmt}, func(st Statement) bool {
		next++
		st.Base().Index = next
		return true
	})
}

// EnsureIndexes gives every statement without a positive index a fresh one.
func (s *Script) EnsureIndexes() {
	next := s.maxIndex()
	s.Walk(func(stmt Statement) bool {
		if stmt.Base().Index <= 0 {
			next++
			stmt.Base().Index = next
		}
		return true
	})
}

func (s *Script) Validate() error {
	seen := make(map[int]Statement)
	var err error
	s.Walk(func(stmt Statement) bool {
		idx := stmt.Base().Index
		if idx <= 0 {
			err = fmt.Errorf("%s has non-positive index %d", stmt.ElementType(), idx)
			return false
		}
		if prev, ok := seen[idx]; ok {
			err = fmt.Errorf(
				"duplicate statement index %d (%s, %s)",
				idx,
				prev.ElementType(),
				stmt.ElementType(),
			)
			return false
		}
		seen[idx] = stmt
		if loop, ok := stmt.(*LoopInteger); ok && loop.Step < 1 {
			err = fmt.Errorf("integer loop %d has step %d, expected >= 1", idx, loop.Step)
			return false
		}
		if loc, ok := stmt.(Locating); ok {
			if t := loc.Locator().Type; t != "" && !ValidLocatorType(t) {
				err = fmt.Errorf("statement %d has unknown locator type %q", idx, t)
				return false
			}
		}
		return true
	})
	return err
}

// SetPrefix replaces oldPrefix with newPrefix in every request url and
// records newPrefix as the script prefix.
func (s *Script) SetPrefix(oldPrefix, newPrefix string) error {
	parsed, err := url.Parse(newPrefix)
	if err != nil {
		return fmt.Errorf("invalid prefix %q: %w", newPrefix, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid prefix %q: scheme and host required", newPrefix)
	}
	if oldPrefix != "" {
		for _, req := range s.Requests() {
			if strings.HasPrefix(req.URL, oldPrefix) {
				req.URL = newPrefix + strings.TrimPrefix(req.URL, oldPrefix)
			}
		}
	}
	s.Prefix = newPrefix
	return nil
}

func (s *Script) Requests() []*Request {
	var out []*Request
	s.Walk(func(stmt Statement) bool {
		if req, ok := stmt.(*Request); ok {
			out = append(out, req)
		}
		return true
	})
	return out
}

type HTTPAuthentication struct {
	Site     string `zest:"site"`
	Realm    string `zest:"realm"`
	Username string `zest:"username"`
	Password string `zest:"password"`
}

func (*HTTPAuthentication) ElementType() string { return "ZestHttpAuthentication" }

func (*HTTPAuthentication) authentication() {}

type Comment struct {
	StatementBase
	Comment string `zest:"comment"`
}

func (*Comment) ElementType() string { return "ZestComment" }
