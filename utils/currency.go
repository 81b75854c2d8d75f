package utils

import (
	"fmt"
	"math"
	"strings"
)

// FormatCurrencyINR formats an amount with Indian digit grouping.
// Example: 1234567.5 -> "₹12,34,567.50"
func FormatCurrencyINR(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	amount = math.Round(amount*100) / 100

	formatted := fmt.Sprintf("%.2f", amount)
	parts := strings.Split(formatted, ".")
	integerPart, decimalPart := parts[0], parts[1]

	// last three digits stay together, the rest is grouped in pairs
	if len(integerPart) > 3 {
		head := integerPart[:len(integerPart)-3]
		tail := integerPart[len(integerPart)-3:]
		var groups []string
		for len(head) > 2 {
			groups = append([]string{head[len(head)-2:]}, groups...)
			head = head[:len(head)-2]
		}
		if head != "" {
			groups = append([]string{head}, groups...)
		}
		integerPart = strings.Join(groups, ",") + "," + tail
	}

	return sign + "₹" + integerPart + "." + decimalPart
}
