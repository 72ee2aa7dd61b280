package envutil

import "testing"

func TestString(t *testing.T) {
	t.Setenv("EV_TEST_STR", "  value  ")
	if got := String("EV_TEST_STR", "def"); got != "value" {
		t.Fatalf("String = %q", got)
	}
	if got := String("EV_TEST_MISSING", "def"); got != "def" {
		t.Fatalf("default not used, got %q", got)
	}
}

func TestInt(t *testing.T) {
	t.Setenv("EV_TEST_INT", "42")
	if got := Int("EV_TEST_INT", 7); got != 42 {
		t.Fatalf("Int = %d", got)
	}
	t.Setenv("EV_TEST_INT_BAD", "forty")
	if got := Int("EV_TEST_INT_BAD", 7); got != 7 {
		t.Fatalf("bad value should fall back, got %d", got)
	}
}

func TestFloat(t *testing.T) {
	t.Setenv("EV_TEST_FLOAT", "0.25")
	if got := Float("EV_TEST_FLOAT", 1.0); got != 0.25 {
		t.Fatalf("Float = %v", got)
	}
	if got := Float("EV_TEST_FLOAT_MISSING", 0.3); got != 0.3 {
		t.Fatalf("default not used, got %v", got)
	}
}

func TestBool(t *testing.T) {
	cases := map[string]bool{
		"1": true, "true": true, "YES": true, "on": true,
		"0": false, "false": false, "no": false, "off": false,
	}
	for raw, want := range cases {
		t.Setenv("EV_TEST_BOOL", raw)
		if got := Bool("EV_TEST_BOOL", !want); got != want {
			t.Fatalf("Bool(%q) = %v, want %v", raw, got, want)
		}
	}
	t.Setenv("EV_TEST_BOOL", "maybe")
	if got := Bool("EV_TEST_BOOL", true); got != true {
		t.Fatalf("unrecognized value should fall back to default")
	}
}
