package utils

import "testing"

func TestHashString(t *testing.T) {
	got := HashString("hello")
	want := "5d41402abc4b2a76b9719d911017c592"
	if got != want {
		t.Fatalf("HashString(\"hello\") = %q, want %q", got, want)
	}

	if HashString("a") == HashString("b") {
		t.Fatal("distinct inputs should not collide")
	}
}
