package core

import "strings"

// DefaultFixedCategories are spending categories that cannot be cut in the
// short term. Matching is a case-insensitive substring test.
var DefaultFixedCategories = []string{
	"rent", "emi", "loan", "mortgage", "insurance", "utilit", "electricity",
	"water", "gas bill", "tax", "salary", "school fee", "tuition",
}

// DefaultEmergencySynonyms identify emergency-fund goals by goal type.
var DefaultEmergencySynonyms = []string{
	"emergency", "emergency_fund", "emergency fund", "contingency", "rainy day", "rainy_day",
}

// Matcher performs case-insensitive substring matching against a term set.
type Matcher struct {
	terms []string
}

// NewMatcher builds a matcher; blank terms are ignored.
func NewMatcher(terms []string) Matcher {
	m := Matcher{terms: make([]string, 0, len(terms))}
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			m.terms = append(m.terms, t)
		}
	}
	return m
}

// Match reports whether s contains any of the terms. Terms of three
// letters or fewer ("emi", "tax") must match a whole word.
func (m Matcher) Match(s string) bool {
	s = strings.ToLower(s)
	var words []string
	for _, t := range m.terms {
		if len(t) > 3 {
			if strings.Contains(s, t) {
				return true
			}
			continue
		}
		if words == nil {
			words = strings.FieldsFunc(s, isSeparator)
		}
		for _, w := range words {
			if w == t || w == t+"s" || w == t+"es" {
				return true
			}
		}
	}
	return false
}

// CategoryClassifier splits categories into fixed and discretionary.
type CategoryClassifier struct {
	fixed Matcher
}

func NewCategoryClassifier(fixed []string) CategoryClassifier {
	if len(fixed) == 0 {
		fixed = DefaultFixedCategories
	}
	return CategoryClassifier{fixed: NewMatcher(fixed)}
}

// IsFixed reports whether the category is excluded from reduction suggestions.
func (c CategoryClassifier) IsFixed(category string) bool {
	return c.fixed.Match(category)
}

func isSeparator(r rune) bool {
	return r == ' ' || r == '_' || r == '-' || r == '/' || r == '&' || r == ','
}
