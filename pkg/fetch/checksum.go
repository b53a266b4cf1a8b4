package fetch

import (
	"fmt"
	"path/filepath"
	"strings"
)

const sha256HexLen = 64

// ExtractChecksum pulls the SHA-256 digest for assetName out of a checksum
// file. Accepts either a bare hex digest or sha256sum-style lines
// ("<digest>  <filename>"), skipping blank lines and comments.
func ExtractChecksum(data []byte, assetName string) (string, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("checksum file is empty")
	}
	if isHexDigest(text, sha256HexLen) {
		return strings.ToLower(text), nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		digest := fields[0]
		if !isHexDigest(digest, sha256HexLen) {
			continue
		}
		// sha256sum binary-mode lines prefix the name with "*".
		candidate := strings.TrimPrefix(filepath.Base(fields[len(fields)-1]), "*")
		if candidate == assetName {
			return strings.ToLower(digest), nil
		}
	}

	return "", fmt.Errorf("checksum for %s not found", assetName)
}

func isHexDigest(value string, expectedLen int) bool {
	if len(value) != expectedLen {
		return false
	}
	for _, ch := range value {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') && (ch < 'A' || ch > 'F') {
			return false
		}
	}
	return true
}
