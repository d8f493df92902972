package dockerfile

import "strings"

// expandArgs substitutes $NAME and ${NAME} occurrences in s from the
// table. Tokens naming variables absent from the table stay verbatim, so
// a substitution pass never destroys information it cannot resolve.
func expandArgs(s string, table map[string]string) string {
	if !strings.ContainsRune(s, '$') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] != '$' {
			b.WriteByte(s[i])
			i++
			continue
		}
		// ${NAME}
		if i+1 < len(s) && s[i+1] == '{' {
			if end := strings.IndexByte(s[i+2:], '}'); end >= 0 {
				name := s[i+2 : i+2+end]
				if v, ok := table[name]; ok && isVarName(name) {
					b.WriteString(v)
					i += end + 3
					continue
				}
			}
			b.WriteByte(s[i])
			i++
			continue
		}
		// $NAME
		j := i + 1
		for j < len(s) && isVarChar(s[j]) {
			j++
		}
		if name := s[i+1 : j]; name != "" {
			if v, ok := table[name]; ok {
				b.WriteString(v)
				i = j
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

func isVarChar(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func isVarName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !isVarChar(name[i]) {
			return false
		}
	}
	return true
}
