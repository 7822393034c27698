package unit

import (
	"fmt"
	"strings"
)

// unitPathPrefix is the object path under which the systemd manager exposes
// unit objects.
const unitPathPrefix = "/org/freedesktop/systemd1/unit/"

// EscapeObjectPath returns the systemd bus-label encoding of a unit name:
// ASCII letters and digits pass through (except a leading digit), every
// other byte becomes '_' followed by two lowercase hex digits. The empty
// string encodes as a single underscore.
func EscapeObjectPath(name string) string {
	if name == "" {
		return "_"
	}
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
			b.WriteByte(c)
		case c >= '0' && c <= '9' && i > 0:
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "_%02x", c)
		}
	}
	return b.String()
}

// UnescapeObjectPath reverses EscapeObjectPath. It returns an error for
// malformed escape sequences.
func UnescapeObjectPath(label string) (string, error) {
	if label == "_" {
		return "", nil
	}
	var b strings.Builder
	b.Grow(len(label))
	for i := 0; i < len(label); i++ {
		c := label[i]
		if c != '_' {
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(label) {
			return "", fmt.Errorf("truncated escape sequence in bus label %q", label)
		}
		hi, okHi := hexDigit(label[i+1])
		lo, okLo := hexDigit(label[i+2])
		if !okHi || !okLo {
			return "", fmt.Errorf("invalid escape sequence %q in bus label %q", label[i:i+3], label)
		}
		b.WriteByte(hi<<4 | lo)
		i += 2
	}
	return b.String(), nil
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// ObjectPath returns the manager object path for the named unit, computed
// locally. This avoids a GetUnit round trip per unit; systemd derives unit
// paths deterministically from names.
func ObjectPath(name string) string {
	return unitPathPrefix + EscapeObjectPath(name)
}

// NameFromObjectPath recovers a unit name from its manager object path. It
// returns an error when the path is outside the unit namespace or carries a
// malformed label.
func NameFromObjectPath(path string) (string, error) {
	label, ok := strings.CutPrefix(path, unitPathPrefix)
	if !ok {
		return "", fmt.Errorf("object path %q is not a systemd unit path", path)
	}
	return UnescapeObjectPath(label)
}
