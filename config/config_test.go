package config

import (
	"testing"
)

func TestGetEnvDefaults(t *testing.T) {
	t.Setenv("DOCVIEW_TEST_STR", "")
	if got := getEnv("DOCVIEW_TEST_STR", "fallback"); got != "fallback" {
		t.Errorf("getEnv default = %q, want %q", got, "fallback")
	}

	t.Setenv("DOCVIEW_TEST_STR", "value")
	if got := getEnv("DOCVIEW_TEST_STR", "fallback"); got != "value" {
		t.Errorf("getEnv = %q, want %q", got, "value")
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("DOCVIEW_TEST_BOOL", "true")
	if !getEnvBool("DOCVIEW_TEST_BOOL", false) {
		t.Error("Expected true for 'true'")
	}

	t.Setenv("DOCVIEW_TEST_BOOL", "not-a-bool")
	if !getEnvBool("DOCVIEW_TEST_BOOL", true) {
		t.Error("Expected default for unparseable value")
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("DOCVIEW_TEST_INT", "42")
	if got := getEnvInt("DOCVIEW_TEST_INT", 7); got != 42 {
		t.Errorf("getEnvInt = %d, want 42", got)
	}

	t.Setenv("DOCVIEW_TEST_INT", "forty-two")
	if got := getEnvInt("DOCVIEW_TEST_INT", 7); got != 7 {
		t.Errorf("getEnvInt with bad value = %d, want default 7", got)
	}
}

func TestGetEnvFloat(t *testing.T) {
	t.Setenv("DOCVIEW_TEST_FLOAT", "1.5")
	if got := getEnvFloat("DOCVIEW_TEST_FLOAT", 1.0); got != 1.5 {
		t.Errorf("getEnvFloat = %v, want 1.5", got)
	}

	t.Setenv("DOCVIEW_TEST_FLOAT", "big")
	if got := getEnvFloat("DOCVIEW_TEST_FLOAT", 1.0); got != 1.0 {
		t.Errorf("getEnvFloat with bad value = %v, want default 1.0", got)
	}
}
