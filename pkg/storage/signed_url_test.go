package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)

	token, expiresAt, err := signer.Generate("req-1", "2026/req-1.pdf")
	require.NoError(t, err)
	require.True(t, expiresAt.After(time.Now()))

	requestID, relPath, _, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "req-1", requestID)
	require.Equal(t, "2026/req-1.pdf", relPath)
}

func TestSignedURLRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)

	token, _, err := signer.Generate("req-1", "2026/req-1.pdf")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token + "x")
	require.Error(t, err)

	other := NewSignedURLSigner("other-secret", time.Hour)
	_, _, _, err = other.Parse(token)
	require.Error(t, err)
}

func TestSignedURLRejectsExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Nanosecond)

	token, _, err := signer.Generate("req-1", "2026/req-1.pdf")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, _, _, err = signer.Parse(token)
	require.Error(t, err)
}
