package quotations

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	numberWidth = 5
	firstNumber = "00001"
)

// NextNumber derives the number following current, the highest number issued
// so far. An empty current yields the first number.
func NextNumber(current string) (string, error) {
	current = strings.TrimSpace(current)
	if current == "" {
		return firstNumber, nil
	}
	n, err := strconv.ParseInt(current, 10, 64)
	if err != nil || n < 0 {
		return "", fmt.Errorf("quotations: malformed quotation number %q", current)
	}
	return fmt.Sprintf("%0*d", numberWidth, n+1), nil
}
