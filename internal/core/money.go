// Package core provides money parsing and handling utilities.
//
// This file contains the parse-or-default helpers used at every input boundary
// and the euro formatting used by reports.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// maxAmountLen bounds the text accepted as an amount.
const maxAmountLen = 32

var (
	hundred = decimal.NewFromInt(100)
	maxKm   = decimal.NewFromInt(math.MaxInt64)
	printer = message.NewPrinter(language.Spanish)
)

// ParseAmount converts user text into a non-negative amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Blank,
// malformed, negative, over-long and exponent (1e9) input yields zero.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34
//	ParseAmount("12,34") -> 12.34
//	ParseAmount("abc")   -> 0
//	ParseAmount("-5")    -> 0
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	if len(s) > maxAmountLen || strings.ContainsAny(s, "eE") {
		return decimal.Zero
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ParsePercent converts user text into a plain percentage clamped to [0,100].
func ParsePercent(s string) decimal.Decimal {
	p := ParseAmount(s)
	if p.GreaterThan(hundred) {
		return hundred
	}
	return p
}

// Fraction converts a plain percentage to a fraction (40 -> 0.4).
func Fraction(pct decimal.Decimal) decimal.Decimal {
	return pct.Div(hundred)
}

// Percent converts a fraction to a plain percentage (0.4 -> 40).
func Percent(fraction decimal.Decimal) decimal.Decimal {
	return fraction.Mul(hundred)
}

// ParseKm converts user text into a non-negative whole number of kilometres.
// Fractions are truncated; values that do not fit an int64 yield zero.
func ParseKm(s string) int64 {
	d := ParseAmount(s)
	if d.GreaterThan(maxKm) {
		return 0
	}
	return d.IntPart()
}

// FormatEuros renders an amount the es-ES way, e.g. "80,00 €".
func FormatEuros(d decimal.Decimal) string {
	return printer.Sprintf("%.2f €", d.Round(2).InexactFloat64())
}
