// Package cql compiles CQL libraries to SQL. A library is a sequence of
// declarations (library, using, valueset, context, define); each define
// compiles through the pipeline package into a named CTE, so later defines
// and the final query can reference earlier ones.
package cql

import (
	"fmt"
	"strings"

	"github.com/joelmontavon/fhir4ds/expr"
	"github.com/joelmontavon/fhir4ds/fhirpath"
)

// Define is one named expression of a library, in declaration order.
type Define struct {
	Name string
	Expr expr.Node
}

// Library is a parsed CQL library.
type Library struct {
	Name    string
	Version string

	// Using names the data model, normally FHIR.
	Using        string
	UsingVersion string

	// Context is the evaluation context resource type. Defaults to Patient.
	Context string

	// ValueSets maps declared value-set names to their canonical URLs.
	ValueSets map[string]string

	Defines []Define
}

// ParseLibrary parses CQL library source. Define bodies are handed to the
// expression parser; declaration headers are parsed here.
func ParseLibrary(source string) (*Library, error) {
	lib := &Library{Context: "Patient", ValueSets: map[string]string{}}
	for _, stmt := range splitStatements(source) {
		if err := lib.parseStatement(stmt); err != nil {
			return nil, err
		}
	}
	if len(lib.Defines) == 0 {
		return nil, fmt.Errorf("library has no define statements")
	}
	return lib, nil
}

func (lib *Library) parseStatement(stmt statement) error {
	rest := stmt.text[len(stmt.keyword):]
	switch stmt.keyword {
	case "library":
		lib.Name, lib.Version = parseNameVersion(rest)
		if lib.Name == "" {
			return fmt.Errorf("line %d: library statement missing name", stmt.line)
		}
	case "using":
		lib.Using, lib.UsingVersion = parseNameVersion(rest)
	case "context":
		// the statement slice runs to the next declaration keyword and may
		// carry trailing comment lines; the subject is the first token only
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return fmt.Errorf("line %d: context statement missing subject", stmt.line)
		}
		lib.Context = fields[0]
	case "valueset":
		name, rest, ok := quotedName(rest)
		if !ok {
			return fmt.Errorf("line %d: valueset statement missing quoted name", stmt.line)
		}
		rest = strings.TrimSpace(rest)
		if !strings.HasPrefix(rest, ":") {
			return fmt.Errorf("line %d: valueset %q missing ':'", stmt.line, name)
		}
		url := strings.TrimSpace(rest[1:])
		url = strings.Trim(url, "'")
		lib.ValueSets[name] = url
	case "define":
		name, body, ok := quotedName(rest)
		if !ok {
			return fmt.Errorf("line %d: define statement missing quoted name", stmt.line)
		}
		body = strings.TrimSpace(body)
		if !strings.HasPrefix(body, ":") {
			return fmt.Errorf("line %d: define %q missing ':'", stmt.line, name)
		}
		parsed, err := fhirpath.Parse(strings.TrimSpace(body[1:]))
		if err != nil {
			return fmt.Errorf("define %q: %w", name, err)
		}
		lib.Defines = append(lib.Defines, Define{Name: name, Expr: parsed.Tree()})
	}
	return nil
}

// parseNameVersion splits `Name [version 'v']`.
func parseNameVersion(s string) (name, version string) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", ""
	}
	name = fields[0]
	if len(fields) >= 3 && fields[1] == "version" {
		version = strings.Trim(fields[2], "'")
	}
	return name, version
}

// quotedName reads a leading double-quoted or bare name and returns the
// remainder.
func quotedName(s string) (name, rest string, ok bool) {
	s = strings.TrimLeft(s, " \t\r\n")
	if strings.HasPrefix(s, `"`) {
		end := strings.Index(s[1:], `"`)
		if end < 0 {
			return "", "", false
		}
		return s[1 : end+1], s[end+2:], true
	}
	i := strings.IndexAny(s, ": \t\r\n")
	if i <= 0 {
		return "", "", false
	}
	return s[:i], s[i:], true
}

type statement struct {
	keyword string
	text    string
	line    int
}

var statementKeywords = map[string]bool{
	"library": true, "using": true, "include": true, "valueset": true,
	"codesystem": true, "parameter": true, "context": true, "define": true,
}

// splitStatements cuts the source at declaration keywords that start a line,
// skipping string literals, quoted names, and comments so a keyword inside a
// define body does not begin a new statement.
func splitStatements(source string) []statement {
	type mark struct {
		offset, line int
		keyword      string
	}
	var marks []mark
	line := 1
	atLineStart := true
	for i := 0; i < len(source); {
		c := source[i]
		switch {
		case c == '\n':
			line++
			atLineStart = true
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '\'' || c == '"':
			q := c
			for i++; i < len(source) && source[i] != q; i++ {
				if source[i] == '\\' {
					i++
				} else if source[i] == '\n' {
					line++
				}
			}
			i++
			atLineStart = false
		case c == '/' && i+1 < len(source) && source[i+1] == '/':
			for i < len(source) && source[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(source) && source[i+1] == '*':
			for i += 2; i+1 < len(source) && !(source[i] == '*' && source[i+1] == '/'); i++ {
				if source[i] == '\n' {
					line++
				}
			}
			i += 2
		case isWordByte(c):
			start := i
			for i < len(source) && isWordByte(source[i]) {
				i++
			}
			if word := source[start:i]; atLineStart && statementKeywords[word] {
				marks = append(marks, mark{offset: start, line: line, keyword: word})
			}
			atLineStart = false
		default:
			atLineStart = false
			i++
		}
	}

	stmts := make([]statement, 0, len(marks))
	for i, m := range marks {
		end := len(source)
		if i+1 < len(marks) {
			end = marks[i+1].offset
		}
		stmts = append(stmts, statement{
			keyword: m.keyword,
			text:    strings.TrimSpace(source[m.offset:end]),
			line:    m.line,
		})
	}
	return stmts
}

func isWordByte(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
