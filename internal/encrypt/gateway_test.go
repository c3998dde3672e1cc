// SPDX-License-Identifier: Apache-2.0

package encrypt

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRecipient = "git-remote-s3-test@example.com"

func requireGPG(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("gpg")
	if err != nil {
		t.Skip("gpg not found in PATH, skipping")
	}
	return path
}

// newTestKeyring creates an isolated GNUPGHOME with a single batch-generated
// keypair for testRecipient, the way the teacher's (commented-out)
// setupGPGSigningKeys imports a fixed keypair into an isolated GNUPGHOME
// rather than touching the caller's real keyring.
func newTestKeyring(t *testing.T) {
	t.Helper()
	gpg := requireGPG(t)

	home := t.TempDir()
	t.Setenv("GNUPGHOME", home)

	params := filepath.Join(home, "key-params")
	require.NoError(t, os.WriteFile(params, []byte(
		"%no-protection\n"+
			"Key-Type: RSA\n"+
			"Key-Length: 2048\n"+
			"Name-Real: git-remote-s3 test\n"+
			"Name-Email: "+testRecipient+"\n"+
			"Expire-Date: 0\n"+
			"%commit\n",
	), 0o600))

	cmd := exec.Command(gpg, "--batch", "--yes", "--gen-key", params)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "gpg --gen-key failed: %s", out)
}

func TestNewGatewayRejectsUnknownProgram(t *testing.T) {
	_, err := NewGateway("this-binary-does-not-exist-anywhere")
	assert.ErrorIs(t, err, ErrGPGNotFound)
}

func TestEncryptRequiresRecipients(t *testing.T) {
	requireGPG(t)
	gw, err := NewGateway("")
	require.NoError(t, err)

	dir := t.TempDir()
	in := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(in, []byte("hello"), 0o644))

	err = gw.Encrypt(in, filepath.Join(dir, "out.enc"), nil)
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	newTestKeyring(t)
	gw, err := NewGateway("")
	require.NoError(t, err)

	dir := t.TempDir()
	in := filepath.Join(dir, "plain")
	encPath := filepath.Join(dir, "bundle.bundle.enc")
	outPath := filepath.Join(dir, "roundtrip")

	plaintext := []byte("bundle contents that must survive the round trip")
	require.NoError(t, os.WriteFile(in, plaintext, 0o644))

	require.NoError(t, gw.Encrypt(in, encPath, []string{testRecipient}))

	encrypted, err := os.ReadFile(encPath)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, encrypted)

	require.NoError(t, gw.Decrypt(encPath, outPath))

	recovered, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, plaintext, recovered)
}

func TestDecryptFailsOnGarbageInput(t *testing.T) {
	requireGPG(t)
	gw, err := NewGateway("")
	require.NoError(t, err)

	dir := t.TempDir()
	in := filepath.Join(dir, "not-a-valid-bundle")
	require.NoError(t, os.WriteFile(in, []byte("not pgp data"), 0o644))

	err = gw.Decrypt(in, filepath.Join(dir, "out"))
	require.Error(t, err)
	var cmdErr *CommandError
	assert.ErrorAs(t, err, &cmdErr)
}
