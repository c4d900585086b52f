package config

import (
	"testing"
	"time"

	kit "mural/internal/platform/testkit"
)

func TestPrefixAndKey(t *testing.T) {
	root := New()
	api := root.Prefix("CORE_API_")
	if got := api.key("PORT"); got != "CORE_API_PORT" {
		t.Fatalf("key() = %q, want %q", got, "CORE_API_PORT")
	}
	// nested prefix
	board := root.Prefix("MURAL_").Prefix("BOARD_")
	if got := board.key("TTL"); got != "MURAL_BOARD_TTL" {
		t.Fatalf("nested key() = %q, want %q", got, "MURAL_BOARD_TTL")
	}
}

// Must* panics

func TestMustString(t *testing.T) {
	c := New().Prefix("APP_")
	t.Setenv("APP_NAME", "  mural ")
	if got := c.MustString("NAME"); got != "mural" {
		t.Fatalf("MustString = %q, want %q", got, "mural")
	}

	kit.MustPanic(t, func() { _ = c.MustString("MISSING") })
	t.Setenv("APP_BLANK", "   ")
	kit.MustPanic(t, func() { _ = c.MustString("BLANK") })
}

func TestMustDuration(t *testing.T) {
	c := New().Prefix("SVC_")
	t.Setenv("SVC_TTL", "10m")
	if got := c.MustDuration("TTL"); got != 10*time.Minute {
		t.Fatalf("MustDuration = %v", got)
	}
	t.Setenv("SVC_BAD", "soon")
	kit.MustPanic(t, func() { _ = c.MustDuration("BAD") })
	kit.MustPanic(t, func() { _ = c.MustDuration("MISSING") })
}

func TestRequire(t *testing.T) {
	c := New().Prefix("REQ_")
	t.Setenv("REQ_A", "1")
	t.Setenv("REQ_B", "2")
	kit.MustNotPanic(t, func() { c.Require("A", "B") })
	kit.MustPanic(t, func() { c.Require("A", "GONE") })
}

// May* defaults

func TestMayString(t *testing.T) {
	c := New().Prefix("S_")
	if got := c.MayString("MISSING", "fallback"); got != "fallback" {
		t.Fatalf("MayString = %q", got)
	}
	t.Setenv("S_HOST", " example ")
	if got := c.MayString("HOST", "fallback"); got != "example" {
		t.Fatalf("MayString = %q", got)
	}
}

func TestMayInt(t *testing.T) {
	c := New().Prefix("I_")
	if got := c.MayInt("MISSING", 42); got != 42 {
		t.Fatalf("MayInt = %d", got)
	}
	t.Setenv("I_N", " 7 ")
	if got := c.MayInt("N", 42); got != 7 {
		t.Fatalf("MayInt = %d", got)
	}
	t.Setenv("I_BAD", "seven")
	if got := c.MayInt("BAD", 42); got != 42 {
		t.Fatalf("MayInt invalid should use default, got %d", got)
	}
}

func TestMayInt64(t *testing.T) {
	c := New().Prefix("I64_")
	t.Setenv("I64_BYTES", "5242880")
	if got := c.MayInt64("BYTES", 1); got != 5242880 {
		t.Fatalf("MayInt64 = %d", got)
	}
	t.Setenv("I64_BAD", "5MB")
	if got := c.MayInt64("BAD", 99); got != 99 {
		t.Fatalf("MayInt64 invalid should use default, got %d", got)
	}
}

func TestMayBool(t *testing.T) {
	c := New().Prefix("B_")
	if got := c.MayBool("MISSING", true); !got {
		t.Fatal("MayBool default lost")
	}
	t.Setenv("B_ON", "false")
	if got := c.MayBool("ON", true); got {
		t.Fatal("MayBool should parse false")
	}
	t.Setenv("B_BAD", "yep")
	if got := c.MayBool("BAD", true); !got {
		t.Fatal("MayBool invalid should use default")
	}
}

func TestMayDuration(t *testing.T) {
	c := New().Prefix("D_")
	if got := c.MayDuration("MISSING", 5*time.Minute); got != 5*time.Minute {
		t.Fatalf("MayDuration = %v", got)
	}
	t.Setenv("D_SWEEP", "30s")
	if got := c.MayDuration("SWEEP", 5*time.Minute); got != 30*time.Second {
		t.Fatalf("MayDuration = %v", got)
	}
	t.Setenv("D_BAD", "fast")
	if got := c.MayDuration("BAD", time.Second); got != time.Second {
		t.Fatalf("MayDuration invalid should use default, got %v", got)
	}
}

func TestMayCSV(t *testing.T) {
	c := New().Prefix("CSV_")
	def := []string{"a"}
	if got := c.MayCSV("MISSING", def); len(got) != 1 || got[0] != "a" {
		t.Fatalf("MayCSV = %v", got)
	}
	t.Setenv("CSV_LIST", " x, ,y ,")
	got := c.MayCSV("LIST", def)
	if len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Fatalf("MayCSV = %v", got)
	}
	t.Setenv("CSV_EMPTY", " , , ")
	if got := c.MayCSV("EMPTY", def); len(got) != 1 || got[0] != "a" {
		t.Fatalf("MayCSV all-blank should use default, got %v", got)
	}
}

func TestMayEnum(t *testing.T) {
	c := New().Prefix("E_")
	if got := c.MayEnum("MISSING", "memory", "memory", "postgres", "redis"); got != "memory" {
		t.Fatalf("MayEnum = %q", got)
	}
	t.Setenv("E_STORE", "Postgres")
	if got := c.MayEnum("STORE", "memory", "memory", "postgres", "redis"); got != "Postgres" {
		t.Fatalf("MayEnum should be case-insensitive, got %q", got)
	}
	t.Setenv("E_BAD", "sqlite")
	kit.MustPanic(t, func() { _ = c.MayEnum("BAD", "memory", "memory", "postgres", "redis") })
}
