package sanitizer

import (
	"regexp"
	"strings"
	"unicode"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

const MaxSearchQueryLength = 100

var reNonDigits = regexp.MustCompile(`\D`)

// Digits strips everything but ASCII digits.
func Digits(s string) string {
	return reNonDigits.ReplaceAllString(s, "")
}

func dropControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func truncate(limit int) Strategy {
	return func(s string) string {
		runes := []rune(s)
		if len(runes) <= limit {
			return s
		}
		return strings.TrimSpace(string(runes[:limit]))
	}
}

// NormalizeText is applied to requester name, description and address text.
func NormalizeText(s string) string {
	return Pipeline{dropControl, TrimAndNormalize}.Apply(s)
}

// NormalizeSearchQuery bounds the admin list free-text filter.
func NormalizeSearchQuery(s string) string {
	return Pipeline{dropControl, TrimAndNormalize, truncate(MaxSearchQueryLength)}.Apply(s)
}
