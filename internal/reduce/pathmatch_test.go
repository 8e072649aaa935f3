package reduce

import "testing"

func TestMatchFilePattern(t *testing.T) {
	cases := []struct {
		pattern, path string
		want          bool
	}{
		{"a.txt", "a.txt", true},
		{"a.txt", "b.txt", false},
		{"src/", "src/main.go", true},
		{"src/", "src", true},
		{"src/", "other/main.go", false},
		{"*.go", "main.go", true},
		{"*.go", "main.txt", false},
		{"cmd*", "cmd/run.go", true},
		{"*", "anything", true},
	}
	for _, c := range cases {
		if got := MatchFilePattern(c.pattern, c.path); got != c.want {
			t.Errorf("MatchFilePattern(%q, %q) = %v, want %v", c.pattern, c.path, got, c.want)
		}
	}
}

func TestMatchAnyFilePattern(t *testing.T) {
	patterns := []string{"a.txt", "*.go"}
	if !MatchAnyFilePattern(patterns, "main.go") {
		t.Error("expected main.go to match *.go")
	}
	if !MatchAnyFilePattern(patterns, "a.txt") {
		t.Error("expected a.txt to match exactly")
	}
	if MatchAnyFilePattern(patterns, "b.txt") {
		t.Error("expected b.txt to match nothing")
	}
	if MatchAnyFilePattern(nil, "anything") {
		t.Error("expected an empty pattern list to match nothing")
	}
}
