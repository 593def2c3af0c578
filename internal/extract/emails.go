// Package extract finds email addresses in free-form text.
//
// The pattern is intentionally lenient and ASCII-oriented: the top-level
// segment must be at least two letters, so digit-bearing or single-letter
// TLDs are not matched, and no RFC length limits are enforced.
package extract

import (
	"regexp"
	"sort"
)

// Pattern is the email syntax matched by Emails.
const Pattern = `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`

var (
	rxEmail = regexp.MustCompile(Pattern)
	rxWhole = regexp.MustCompile(`^` + Pattern + `$`)
)

// Set holds distinct email strings. Order carries no meaning.
type Set map[string]struct{}

func (s Set) Len() int { return len(s) }

func (s Set) Has(email string) bool {
	_, ok := s[email]
	return ok
}

func (s Set) Add(email string) { s[email] = struct{}{} }

// Sorted lists the set in byte order so output is reproducible.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for e := range s {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// Emails returns every distinct non-overlapping match of Pattern in text.
func Emails(text string) Set {
	set := Set{}
	for _, m := range rxEmail.FindAllString(text, -1) {
		set.Add(m)
	}
	return set
}

// Valid reports whether s as a whole matches Pattern.
func Valid(s string) bool {
	return rxWhole.MatchString(s)
}
