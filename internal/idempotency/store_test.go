package idempotency

import "testing"

func TestKey_ScopedPerUser(t *testing.T) {
	t.Parallel()

	a := Key("user-a", "retry-1")
	b := Key("user-b", "retry-1")
	if a == b {
		t.Fatalf("keys collide across users: %q", a)
	}
	if a != Key("user-a", "retry-1") {
		t.Fatal("key not stable")
	}
}
