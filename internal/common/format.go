/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package common

import (
	"fmt"
	"strings"

	"deposit-ledger-go/internal/models"
)

const (
	// Default separator widths
	DefaultWidth = 80
	WideWidth    = 100
)

// ANSI color helpers for console output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

// PrintSeparator prints a separator line with the specified character and width
func PrintSeparator(char string, width int) {
	fmt.Println(strings.Repeat(char, width))
}

// PrintSeparatorNewline prints a separator with a newline before it
func PrintSeparatorNewline(char string, width int) {
	fmt.Println("\n" + strings.Repeat(char, width))
}

// PrintHeader prints a formatted header with title and separators
func PrintHeader(title string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(title)
	PrintSeparator("=", width)
}

// PrintFooter prints a formatted footer with message and separators
func PrintFooter(message string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", width) + "\n")
}

// PrintBoxSeparator prints a box-drawing separator line (for sub-sections)
func PrintBoxSeparator(width int) {
	fmt.Println("├" + strings.Repeat("─", width))
}

// BoxPrefix returns the appropriate box-drawing prefix for list items
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// BoxDetailPrefix returns the prefix for detail lines under list items
func BoxDetailPrefix(isLast bool) string {
	if isLast {
		return "   "
	}
	return "│  "
}

// ShortId trims long identifiers for table output.
func ShortId(id string) string {
	if len(id) > 12 {
		return id[:8] + "…"
	}
	return id
}

// StatusLabel colors a deposit status for the console.
func StatusLabel(status models.DepositStatus) string {
	switch status {
	case models.StatusApproved:
		return colorGreen + string(status) + colorReset
	case models.StatusPending:
		return colorYellow + string(status) + colorReset
	case models.StatusRejected, models.StatusReversed:
		return colorGray + string(status) + colorReset
	default:
		return string(status)
	}
}

// VerificationLabel colors a wallet verification outcome.
func VerificationLabel(v *models.WalletVerification) string {
	if v == nil {
		return colorGray + "not checked" + colorReset
	}
	switch v.Status {
	case models.VerificationBalanced:
		return colorGreen + "✓ balanced" + colorReset
	case models.VerificationMismatch:
		return colorRed + "✗ mismatch " + v.Discrepancy.String() + colorReset
	default:
		return colorYellow + "? unknown" + colorReset
	}
}

// PrintResult prints an operator result in a consistent block.
func PrintResult(operation string, res *models.OperationResult) {
	if !res.Success {
		fmt.Printf("%s✗ %s failed [%s]: %s%s\n", colorRed, operation, res.ErrorKind, res.Error, colorReset)
		return
	}

	label := "✓ " + operation
	if res.Replayed {
		label += " (already processed, replayed)"
	}
	fmt.Printf("%s%s%s\n", colorGreen, label, colorReset)

	d := res.Deposit
	fmt.Printf("  Deposit:   %s (%s)\n", d.Id, d.ReferenceNumber)
	fmt.Printf("  Status:    %s\n", StatusLabel(d.Status))
	fmt.Printf("  Amount:    %s %s\n", d.Amount.String(), d.Currency)
	if d.ReceivedAmount.Valid {
		fmt.Printf("  Received:  %s (rate %s)\n", d.ReceivedAmount.Decimal.String(), d.ExchangeRate.Decimal.String())
	}
	if t := res.Transition; t != nil {
		fmt.Printf("  Balance:   %s -> %s (%s)\n", t.BalanceBefore.String(), t.BalanceAfter.String(), t.BalanceAdjustment.String())
	}
	if res.Verification != nil {
		fmt.Printf("  Wallet:    %s\n", VerificationLabel(res.Verification))
	}
}
