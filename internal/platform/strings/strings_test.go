package strings

import (
	"testing"

	kit "mural/internal/platform/testkit"
)

func TestIfEmpty(t *testing.T) {
	def := []string{"a"}
	if got := IfEmpty(nil, def); len(got) != 1 || got[0] != "a" {
		t.Fatalf("IfEmpty(nil) = %v", got)
	}
	in := []string{"x", "y"}
	if got := IfEmpty(in, def); len(got) != 2 || got[0] != "x" {
		t.Fatalf("IfEmpty(in) = %v", got)
	}
}

func TestMustString(t *testing.T) {
	if got := MustString("board", "name"); got != "board" {
		t.Fatalf("MustString = %q", got)
	}
	kit.MustPanic(t, func() { _ = MustString("  ", "name") })
}

func TestMustPrefix(t *testing.T) {
	cases := map[string]string{
		"board":    "/board",
		"/board":   "/board",
		" /board/": "/board",
		"//live//": "/live",
	}
	for in, want := range cases {
		if got := MustPrefix(in); got != want {
			t.Fatalf("MustPrefix(%q) = %q, want %q", in, got, want)
		}
	}
	kit.MustPanic(t, func() { _ = MustPrefix("") })
	kit.MustPanic(t, func() { _ = MustPrefix(" / ") })
}

func TestPtrAndDeref(t *testing.T) {
	if Ptr("") != nil {
		t.Fatal("Ptr(\"\") should be nil")
	}
	p := Ptr("lobby")
	if p == nil || *p != "lobby" {
		t.Fatalf("Ptr = %v", p)
	}
	if Deref(nil) != "" {
		t.Fatal("Deref(nil) should be empty")
	}
	if Deref(p) != "lobby" {
		t.Fatalf("Deref = %q", Deref(p))
	}
}

func TestSQLNull(t *testing.T) {
	if SQLNull("  ") != nil {
		t.Fatal("blank should map to nil")
	}
	if got := SQLNull("origin"); got != "origin" {
		t.Fatalf("SQLNull = %v", got)
	}
}
