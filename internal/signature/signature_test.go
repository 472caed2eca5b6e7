package signature

import (
	"errors"
	"testing"
)

func TestCompute_KnownVector(t *testing.T) {
	t.Parallel()

	// RFC 2202-style known answer for HMAC-SHA256
	got := Compute("key", []byte("The quick brown fox jumps over the lazy dog"))
	want := "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8"

	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()

	secret := "s3cr3t"
	body := []byte(`{"message_id":"m1","from":"+15551234567","to":"+15557654321","ts":"2024-01-01T00:00:00Z","text":"hi"}`)

	cases := []struct {
		name     string
		body     []byte
		provided string
		wantErr  error
	}{
		{
			name:     "valid signature",
			body:     body,
			provided: Compute(secret, body),
			wantErr:  nil,
		},
		{
			name:     "missing header",
			body:     body,
			provided: "",
			wantErr:  ErrMissingSignature,
		},
		{
			name:     "wrong signature",
			body:     body,
			provided: "deadbeef",
			wantErr:  ErrInvalidSignature,
		},
		{
			name:     "signature over different body",
			body:     body,
			provided: Compute(secret, []byte(`{"message_id":"m2"}`)),
			wantErr:  ErrInvalidSignature,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Verify(secret, tc.body, tc.provided)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected error %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestVerify_DifferentSecretFails(t *testing.T) {
	t.Parallel()

	body := []byte(`{"message_id":"m1"}`)
	sig := Compute("secret-a", body)

	if err := Verify("secret-b", body, sig); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}
