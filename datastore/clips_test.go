package datastore

import "testing"

func TestNormalizeSearchQuery(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "Jo Example", "jo example"},
		{"strips punctuation", "O'Brien, Pat!", "obrien pat"},
		{"strips unicode", "José Núñez", "jos nez"},
		{"keeps digits", "DJ 3000", "dj 3000"},
		{"trims whitespace", "  pat  ", "pat"},
		{"empty", "", ""},
		{"only punctuation", "?!,.", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeSearchQuery(tc.input); got != tc.want {
				t.Errorf("NormalizeSearchQuery(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
