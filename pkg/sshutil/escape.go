package sshutil

import "strings"

// EscapeForBash quotes s as a single shell word. The result is wrapped in
// single quotes and each embedded ' becomes '"'"', so
//
//	echo '$HOME' | grep "x"
//
// becomes
//
//	'echo '"'"'$HOME'"'"' | grep "x"'
//
// and `bash -c <result>` runs exactly s.
func EscapeForBash(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			b.WriteString(`'"'"'`)
			continue
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('\'')
	return b.String()
}
