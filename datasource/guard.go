package datasource

import (
	"strings"
)

// IsSelect reports whether the statement is a plain read: a SELECT or a
// WITH ... SELECT. Leading comments are skipped; multi-statement input
// is never a plain read.
func IsSelect(sql string) bool {
	s := stripLeadingComments(sql)
	upper := strings.ToUpper(s)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return false
	}
	// Reject stacked statements like "SELECT 1; DROP TABLE x".
	if i := strings.IndexByte(s, ';'); i >= 0 && strings.TrimSpace(s[i+1:]) != "" {
		return false
	}
	if strings.HasPrefix(upper, "WITH") {
		// A WITH clause can still feed INSERT/UPDATE/DELETE.
		for _, kw := range []string{"INSERT", "UPDATE", "DELETE", "MERGE"} {
			if containsKeyword(upper, kw) {
				return false
			}
		}
	}
	return true
}

func stripLeadingComments(sql string) string {
	s := strings.TrimSpace(sql)
	for {
		switch {
		case strings.HasPrefix(s, "--"):
			if i := strings.IndexByte(s, '\n'); i >= 0 {
				s = strings.TrimSpace(s[i+1:])
				continue
			}
			return ""
		case strings.HasPrefix(s, "/*"):
			if i := strings.Index(s, "*/"); i >= 0 {
				s = strings.TrimSpace(s[i+2:])
				continue
			}
			return ""
		}
		return s
	}
}

// containsKeyword reports whether kw appears as a standalone word.
func containsKeyword(upper, kw string) bool {
	idx := 0
	for {
		i := strings.Index(upper[idx:], kw)
		if i < 0 {
			return false
		}
		i += idx
		beforeOK := i == 0 || !isWordByte(upper[i-1])
		end := i + len(kw)
		afterOK := end >= len(upper) || !isWordByte(upper[end])
		if beforeOK && afterOK {
			return true
		}
		idx = i + len(kw)
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}
