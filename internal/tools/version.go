package tools

import "strings"

// TrimVersion удаляет пробелы и переводы строк вокруг версии.
func TrimVersion(raw string) string {
	return strings.TrimSpace(raw)
}

// ParseGitDescribe извлекает версию из вывода вида
// "OpenROAD v2.0-880-gd1c7001ad": берётся последнее слово, из него
// удаляется суффикс git-хэша после последнего "-".
func ParseGitDescribe(raw string) string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ""
	}
	token := fields[len(fields)-1]
	if i := strings.LastIndex(token, "-"); i > 0 {
		return token[:i]
	}
	return token
}
