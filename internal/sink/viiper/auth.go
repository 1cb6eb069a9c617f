package viiper

import (
	"bufio"
	"crypto/hmac"
	"crypto/pbkdf2"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	pbkdf2Iterations = 100000
	pbkdf2Salt       = "VIIPER-Key-v1"

	handshakeMagic = "eVI1\x00"
	nonceSize      = 32
	authContext    = "VIIPER-Auth-v1"
	sessionContext = "VIIPER-Session-v1"
	handshakeOK    = "OK\x00"
)

// ErrUnauthorized is returned when the server rejects the password.
var ErrUnauthorized = errors.New("viiper: invalid password")

// DeriveKey stretches a password to the 32-byte handshake key.
func DeriveKey(password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("password cannot be empty")
	}
	return pbkdf2.Key(sha256.New, password, []byte(pbkdf2Salt), pbkdf2Iterations, 32)
}

// DeriveSessionKey mixes the handshake nonces into the per-connection key.
func DeriveSessionKey(key, serverNonce, clientNonce []byte) []byte {
	h := sha256.New()
	h.Write(key)
	h.Write(serverNonce)
	h.Write(clientNonce)
	h.Write([]byte(sessionContext))
	return h.Sum(nil)
}

func clientAuth(key, clientNonce []byte) []byte {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(authContext))
	_, _ = mac.Write(clientNonce)
	return mac.Sum(nil)
}

// handshake authenticates the client side of a fresh connection and returns
// the session key.
func handshake(r *bufio.Reader, w io.Writer, key []byte) ([]byte, error) {
	clientNonce := make([]byte, nonceSize)
	if _, err := rand.Read(clientNonce); err != nil {
		return nil, fmt.Errorf("generate client nonce: %w", err)
	}

	msg := append([]byte(handshakeMagic), clientNonce...)
	msg = append(msg, clientAuth(key, clientNonce)...)
	if _, err := w.Write(msg); err != nil {
		return nil, fmt.Errorf("write handshake: %w", err)
	}

	prefix := make([]byte, len(handshakeOK))
	if _, err := io.ReadFull(r, prefix); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("read handshake response: %w", err)
	}
	if string(prefix) != handshakeOK {
		rest, _ := io.ReadAll(r)
		line := strings.TrimSuffix(string(append(prefix, rest...)), "\n")
		var apiErr ApiError
		if err := json.Unmarshal([]byte(line), &apiErr); err == nil && (apiErr.Status != 0 || apiErr.Title != "") {
			if apiErr.Status == 401 {
				return nil, fmt.Errorf("%w: %w", ErrUnauthorized, apiErr)
			}
			return nil, apiErr
		}
		return nil, fmt.Errorf("invalid handshake response from server: %q", line)
	}

	serverNonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(r, serverNonce); err != nil {
		return nil, fmt.Errorf("read server nonce: %w", err)
	}
	return DeriveSessionKey(key, serverNonce, clientNonce), nil
}
