package netutil

import (
	"fmt"
	"strings"
)

// NormalizeMAC canonicalizes a device MAC address to uppercase
// colon-separated form (AA:BB:CC:DD:EE:FF). Colon, hyphen and Cisco-style
// dot separators are accepted, as is bare hexadecimal. Input that does not
// resolve to exactly 12 hex digits is rejected.
func NormalizeMAC(input string) (string, error) {
	cleaned := strings.ToUpper(strings.TrimSpace(input))
	cleaned = strings.NewReplacer(":", "", "-", "", ".", "").Replace(cleaned)

	if len(cleaned) != 12 {
		return "", fmt.Errorf("invalid MAC address %q: expected 12 hex digits", input)
	}
	for _, r := range cleaned {
		if !((r >= '0' && r <= '9') || (r >= 'A' && r <= 'F')) {
			return "", fmt.Errorf("invalid MAC address %q: non-hex character %q", input, r)
		}
	}

	var b strings.Builder
	for i := 0; i < 12; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(cleaned[i : i+2])
	}
	return b.String(), nil
}
