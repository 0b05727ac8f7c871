package mlat

import (
	"bufio"
	"os"
	"strings"
)

// readFirstLine returns the first non-empty trimmed line of path. A
// missing file is not an error (ok=false, no error surfaced): matches
// mlattrack.py's read_blacklist swallowing FileNotFoundError.
func readFirstLine(path string) (line string, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line, true
		}
	}
	return "", true
}
