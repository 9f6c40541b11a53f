package printer

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/unkn0wn-root/zest/internal/zest"
)

const indentStep = "    "

// Summary writes the script header, its parameters and statement counts.
func Summary(w io.Writer, s *zest.Script) error {
	var b strings.Builder
	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%-12s %s\n", label+":", value)
		}
	}
	field("Title", s.Title)
	field("Description", s.Description)
	field("About", firstLine(s.About))
	field("Type", string(s.Type))
	field("Version", s.ZestVersion)
	field("Prefix", s.Prefix)

	if len(s.Parameters.Tokens) > 0 {
		start, end := s.Parameters.Delimiters()
		b.WriteString("Parameters:\n")
		names := make([]string, 0, len(s.Parameters.Tokens))
		for name := range s.Parameters.Tokens {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "%s%s%s%s = %s\n", indentStep, start, name, end, s.Parameters.Tokens[name])
		}
	}
	for _, a := range s.Authentication {
		if auth, ok := a.(*zest.HTTPAuthentication); ok {
			fmt.Fprintf(&b, "%-12s %s (realm %q, user %s)\n", "Auth:", auth.Site, auth.Realm, auth.Username)
		}
	}

	total := 0
	s.Walk(func(zest.Statement) bool {
		total++
		return true
	})
	fmt.Fprintf(&b, "%-12s %d (%d requests)\n", "Statements:", total, len(s.Requests()))

	_, err := io.WriteString(w, b.String())
	return err
}

// List writes every statement with its index, nesting conditional
// branches and loop bodies by indentation.
func List(w io.Writer, s *zest.Script) error {
	var b strings.Builder
	list(&b, s.Statements, 0)
	_, err := io.WriteString(w, b.String())
	return err
}

func list(b *strings.Builder, stmts []zest.Statement, depth int) {
	indent := strings.Repeat(indentStep, depth)
	for _, stmt := range stmts {
		if stmt == nil {
			continue
		}
		marker := ""
		if !stmt.Base().Enabled() {
			marker = " (disabled)"
		}
		fmt.Fprintf(b, "%s%d: %s%s\n", indent, stmt.Base().Index, Describe(stmt), marker)

		switch st := stmt.(type) {
		case *zest.Request:
			for _, a := range st.Assertions {
				fmt.Fprintf(b, "%s%sAssert %s\n", indent, indentStep, DescribeExpression(a.RootExpression))
			}
		case *zest.Conditional:
			list(b, st.IfStatements, depth+1)
			if len(st.ElseStatements) > 0 {
				fmt.Fprintf(b, "%sELSE\n", indent)
				list(b, st.ElseStatements, depth+1)
			}
		case zest.Looper:
			list(b, st.Loop().Statements, depth+1)
		}
	}
}
