// SPDX-License-Identifier: BSD-3-Clause

package cluster

import (
	"bytes"
	"errors"
	"testing"
)

func TestFrameRoundTripWithHMAC(t *testing.T) {
	secret := []byte("top-secret")
	var buf bytes.Buffer

	in := Frame{Type: FrameHeartbeat, CorrelationID: "c1", Body: encodeBody(map[string]string{"a": "b"})}
	if err := writeFrame(&buf, in, secret); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := readFrame(&buf, secret)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Type != in.Type || out.CorrelationID != in.CorrelationID {
		t.Fatalf("round trip mismatch: %+v vs %+v", in, out)
	}
}

func TestFrameRoundTripWithoutSecret(t *testing.T) {
	var buf bytes.Buffer
	in := Frame{Type: FrameCast, Body: encodeBody("hello")}
	if err := writeFrame(&buf, in, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := readFrame(&buf, nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Type != FrameCast {
		t.Fatalf("unexpected type: %s", out.Type)
	}
}

func TestFrameTamperedHMACIsRejected(t *testing.T) {
	secret := []byte("top-secret")
	var buf bytes.Buffer
	in := Frame{Type: FrameHeartbeat, Body: encodeBody("x")}
	if err := writeFrame(&buf, in, secret); err != nil {
		t.Fatalf("write: %v", err)
	}

	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xFF // flip a bit in the HMAC trailer

	if _, err := readFrame(bytes.NewReader(raw), secret); !errors.Is(err, ErrHMACMismatch) {
		t.Fatalf("expected ErrHMACMismatch, got %v", err)
	}
}

func TestFrameMissingHMACRejectedWhenSecretConfigured(t *testing.T) {
	var buf bytes.Buffer
	in := Frame{Type: FrameHeartbeat, Body: encodeBody("x")}
	if err := writeFrame(&buf, in, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := readFrame(&buf, []byte("secret")); !errors.Is(err, ErrHMACMismatch) {
		t.Fatalf("expected ErrHMACMismatch, got %v", err)
	}
}
