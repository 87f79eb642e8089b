package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var sqlKeywords = map[string]bool{
	"WITH": true, "SELECT": true, "FROM": true, "WHERE": true, "AS": true,
	"AND": true, "OR": true, "NOT": true, "IN": true, "IS": true,
	"NULL": true, "CASE": true, "WHEN": true, "THEN": true, "ELSE": true,
	"END": true, "EXISTS": true, "DISTINCT": true, "UNION": true,
	"INTERSECT": true, "EXCEPT": true, "ALL": true, "ORDER": true,
	"BY": true, "LIMIT": true, "OFFSET": true, "CAST": true,
	"TRY_CAST": true, "COALESCE": true, "GROUP": true, "WITHIN": true,
}

var (
	keywordColor = color.New(color.FgCyan, color.Bold)
	stringColor  = color.New(color.FgGreen)
)

// printSQL writes sql to w, highlighting keywords and string literals when
// the destination is a terminal. fatih/color disables itself on pipes.
func printSQL(w io.Writer, sql string) {
	var b strings.Builder
	i := 0
	for i < len(sql) {
		c := sql[i]
		switch {
		case c == '\'':
			j := i + 1
			for j < len(sql) {
				if sql[j] == '\'' {
					if j+1 < len(sql) && sql[j+1] == '\'' {
						j += 2
						continue
					}
					j++
					break
				}
				j++
			}
			b.WriteString(stringColor.Sprint(sql[i:j]))
			i = j
		case isWordStart(c):
			j := i + 1
			for j < len(sql) && isWordPart(sql[j]) {
				j++
			}
			word := sql[i:j]
			if sqlKeywords[strings.ToUpper(word)] {
				b.WriteString(keywordColor.Sprint(word))
			} else {
				b.WriteString(word)
			}
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	fmt.Fprintln(w, b.String())
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordPart(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9')
}
