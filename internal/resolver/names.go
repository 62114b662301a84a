package resolver

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	arrayBoundRe    = regexp.MustCompile(`\[(\d+)\]$`)
	spacedPointerRe = regexp.MustCompile(` \*$`)
)

// IsIndirection reports whether typeName is a pointer, a reference or a
// function type, all of which are laid out as one pointer.
func IsIndirection(typeName string) bool {
	return strings.HasSuffix(typeName, "*") ||
		strings.HasSuffix(typeName, "&") ||
		strings.HasSuffix(typeName, "()") ||
		strings.HasSuffix(typeName, ")>")
}

// ArrayMultiplicity returns N for a name ending in [N], and 1 otherwise.
func ArrayMultiplicity(typeName string) int64 {
	m := arrayBoundRe.FindStringSubmatch(typeName)
	if m == nil {
		return 1
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 1
	}
	return n
}

// ArrayElementType strips a trailing [N].
func ArrayElementType(typeName string) string {
	return arrayBoundRe.ReplaceAllString(typeName, "")
}

// DereferencePointer removes one trailing " *".
func DereferencePointer(typeName string) string {
	return spacedPointerRe.ReplaceAllString(typeName, "")
}

// CleanTypeName normalizes "A *" to "A*" and drops a leading const, which
// debug information does not carry in type names.
func CleanTypeName(typeName string) string {
	typeName = spacedPointerRe.ReplaceAllString(typeName, "*")
	typeName = strings.TrimPrefix(typeName, "const")
	return strings.TrimLeftFunc(typeName, unicode.IsSpace)
}

// ConsumeAngleBracket returns what the outermost angle brackets enclose,
// without a space before the closing bracket. A name without brackets is
// returned unchanged.
func ConsumeAngleBracket(typeName string) string {
	start, end := 0, len(typeName)
	opened, closed := 0, 0
	for i := 0; i < len(typeName); i++ {
		switch typeName[i] {
		case '>':
			closed++
			if closed == opened {
				end = i
				if i > 0 && typeName[i-1] == ' ' {
					end = i - 1
				}
				return typeName[start:end]
			}
		case '<':
			if opened == 0 {
				start = i + 1
			}
			opened++
		}
	}
	return typeName[start:end]
}

// UnwrapAndCleanTypeName extracts the element type from an allocator type
// such as std::allocator<Foo>.
func UnwrapAndCleanTypeName(typeName string) string {
	t := CleanTypeName(ConsumeAngleBracket(typeName))
	// polymorphic allocators carry a trailing bool parameter
	if s, ok := strings.CutSuffix(t, ", false"); ok {
		return s
	}
	if s, ok := strings.CutSuffix(t, ", true"); ok {
		return s
	}
	return t
}

func cleanFormalParameter(param string) string {
	return strings.TrimLeftFunc(strings.TrimPrefix(param, "const"), unicode.IsSpace)
}

func startsWithAnyOf(s string, prefixes []string) (string, bool) {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return p, true
		}
	}
	return "", false
}

// containerNameOf drops the trailing '<' or ':' a matching prefix ends in.
func containerNameOf(prefix string) string {
	return strings.TrimRight(prefix, "<:")
}
