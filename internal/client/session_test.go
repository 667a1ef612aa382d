package client

import (
	"net/http"
	"testing"
)

func TestTokenManager_AttachEmpty(t *testing.T) {
	m := NewTokenManager("")
	h := http.Header{}
	m.Attach(h)

	if got := h.Get(TokenHeader); got != "" {
		t.Errorf("no token held, header = %q, want empty", got)
	}
}

func TestTokenManager_LastObservedWins(t *testing.T) {
	m := NewTokenManager("")

	resp1 := http.Header{}
	resp1.Set(TokenHeader, "T1")
	m.Observe(resp1)

	resp2 := http.Header{}
	resp2.Set(TokenHeader, "T2")
	m.Observe(resp2)

	out := http.Header{}
	m.Attach(out)
	if got := out.Get(TokenHeader); got != "T2" {
		t.Errorf("attached token = %q, want T2", got)
	}
}

func TestTokenManager_ObserveWithoutHeaderKeepsToken(t *testing.T) {
	m := NewTokenManager("seed")
	m.Observe(http.Header{})

	if got := m.Token(); got != "seed" {
		t.Errorf("token = %q, want seed", got)
	}
}

func TestTokenManager_OnChange(t *testing.T) {
	m := NewTokenManager("")

	var seen []string
	m.OnChange(func(token string) { seen = append(seen, token) })

	h := http.Header{}
	h.Set(TokenHeader, "T1")
	m.Observe(h)
	m.Observe(h) // same token, no change

	h.Set(TokenHeader, "T2")
	m.Observe(h)

	if len(seen) != 2 || seen[0] != "T1" || seen[1] != "T2" {
		t.Errorf("onChange calls = %v, want [T1 T2]", seen)
	}
}
