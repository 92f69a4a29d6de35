package passwd_test

import (
	"errors"
	"testing"

	"github.com/dalemusser/pickuphub/internal/app/system/passwd"
)

func TestHashAndVerify(t *testing.T) {
	h, err := passwd.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if h == "correct horse battery" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !passwd.Verify(h, "correct horse battery") {
		t.Error("Verify rejected the correct password")
	}
	if passwd.Verify(h, "wrong password!") {
		t.Error("Verify accepted the wrong password")
	}
}

func TestHash_TooShort(t *testing.T) {
	_, err := passwd.Hash("short")
	if !errors.Is(err, passwd.ErrTooShort) {
		t.Errorf("Hash(short) err = %v, want ErrTooShort", err)
	}
}
