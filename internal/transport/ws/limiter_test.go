package ws

import (
	"net/http"
	"testing"
)

func TestConnLimiter(t *testing.T) {
	l := newConnLimiter(2)

	if !l.acquire("1.2.3.4") || !l.acquire("1.2.3.4") {
		t.Fatal("first two connections should be admitted")
	}
	if l.acquire("1.2.3.4") {
		t.Fatal("third connection should be refused")
	}
	if !l.acquire("5.6.7.8") {
		t.Fatal("a different IP should not be affected")
	}

	l.release("1.2.3.4")
	if !l.acquire("1.2.3.4") {
		t.Fatal("released slot should be reusable")
	}
}

func TestRealIP(t *testing.T) {
	r := &http.Request{Header: http.Header{}, RemoteAddr: "10.0.0.1:5555"}
	if got := realIP(r); got != "10.0.0.1" {
		t.Fatalf("realIP = %q, want 10.0.0.1", got)
	}

	r.Header.Set("X-Real-IP", "2.2.2.2")
	if got := realIP(r); got != "2.2.2.2" {
		t.Fatalf("realIP = %q, want 2.2.2.2", got)
	}

	r.Header.Set("X-Forwarded-For", "3.3.3.3, 4.4.4.4")
	if got := realIP(r); got != "3.3.3.3" {
		t.Fatalf("realIP = %q, want first forwarded hop 3.3.3.3", got)
	}
}
