package config

import "testing"

func TestCredentialsPool(t *testing.T) {
	t.Setenv("DEMOPROV_API_KEY", "key-base")
	t.Setenv("DEMOPROV_API_KEY_1", "key-one")
	t.Setenv("DEMOPROV_API_KEY_2", "key-two")

	keys := Credentials("demoprov")
	if len(keys) != 3 {
		t.Fatalf("expected 3 keys, got %d", len(keys))
	}
	want := []string{"key-base", "key-one", "key-two"}
	for i, k := range want {
		if keys[i] != k {
			t.Fatalf("expected keys[%d]=%q, got %q", i, k, keys[i])
		}
	}
}

func TestCredentialsStopAtGap(t *testing.T) {
	t.Setenv("GAPPROV_API_KEY", "key-base")
	t.Setenv("GAPPROV_API_KEY_1", "key-one")
	// _2 missing; _3 must not be picked up
	t.Setenv("GAPPROV_API_KEY_3", "key-three")

	keys := Credentials("gapprov")
	if len(keys) != 2 {
		t.Fatalf("expected discovery to stop at the gap, got %d keys", len(keys))
	}
}

func TestCredentialsNone(t *testing.T) {
	keys := Credentials("definitely-not-configured")
	if len(keys) != 0 {
		t.Fatalf("expected no keys, got %d", len(keys))
	}
}

func TestCredentialsCaseAndWhitespace(t *testing.T) {
	t.Setenv("MIXEDPROV_API_KEY", "  padded  ")

	keys := Credentials("MixedProv")
	if len(keys) != 1 {
		t.Fatalf("expected 1 key, got %d", len(keys))
	}
	if keys[0] != "padded" {
		t.Fatalf("expected trimmed key, got %q", keys[0])
	}
}
