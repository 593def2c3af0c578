package extract

import (
	"reflect"
	"strings"
	"testing"
)

func TestEmails(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{}},
		{"no candidates", "hello world, nothing here", []string{}},
		{"dedup repeats", "a@b.co a@b.co", []string{"a@b.co"}},
		{"plus and subdomain, trailing punctuation", "contact: jane.doe+promo@sub.example.org!", []string{"jane.doe+promo@sub.example.org"}},
		{"no valid tld", "not-an-email@, x@y", []string{}},
		{"single letter tld", "x@y.z", []string{}},
		{"digits in tld", "x@y.c0m", []string{}},
		{"across newline joined segments", "first@one.com\nsecond@two.net\n", []string{"first@one.com", "second@two.net"}},
		{"case sensitive dedup", "Bob@Example.com bob@example.com", []string{"Bob@Example.com", "bob@example.com"}},
		{"percent and underscore", "mail: a_b%c@host-name.io.", []string{"a_b%c@host-name.io"}},
		{"angle brackets", "<sales@shop.de>, <sales@shop.de>", []string{"sales@shop.de"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Emails(tt.in).Sorted()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Emails(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestEmailsMatchesArePatternValid(t *testing.T) {
	inputs := []string{
		"a@b.co,b@c.org;c@d.net",
		"weird...@@x.com a.@b..cc",
		strings.Repeat("z", 300) + "@" + strings.Repeat("y", 300) + ".com",
		"\x00\xff@\xfe.com ok@ok.ok",
		"ünïcode@exämple.com plain@example.com",
	}
	for _, in := range inputs {
		set := Emails(in)
		seen := map[string]bool{}
		for _, e := range set.Sorted() {
			if !Valid(e) {
				t.Errorf("Emails(%q) produced %q which does not match the pattern", in, e)
			}
			if seen[e] {
				t.Errorf("duplicate %q", e)
			}
			seen[e] = true
		}
		if len(seen) != set.Len() {
			t.Errorf("Sorted() length %d != Len() %d", len(seen), set.Len())
		}
	}
}

func TestValid(t *testing.T) {
	if !Valid("a@b.co") {
		t.Error("a@b.co should be valid")
	}
	for _, s := range []string{"", "a@b", "a b@c.com", "a@b.co!"} {
		if Valid(s) {
			t.Errorf("Valid(%q) = true", s)
		}
	}
}

func TestSetHas(t *testing.T) {
	s := Emails("one@x.io two@y.io")
	if !s.Has("one@x.io") || !s.Has("two@y.io") || s.Has("three@z.io") {
		t.Errorf("unexpected membership: %v", s.Sorted())
	}
}
