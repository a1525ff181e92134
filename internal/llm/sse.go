package llm

import (
	"bufio"
	"io"
	"strings"
)

const maxSSELine = 1024 * 1024

// readSSE invokes fn with the payload of every "data:" line until fn returns
// false, the stream sends [DONE], or the body ends.
func readSSE(body io.Reader, fn func(data string) bool) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELine)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			return nil
		}
		if !fn(data) {
			return nil
		}
	}
	return scanner.Err()
}
