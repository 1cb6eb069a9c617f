package viiper

import (
	"bufio"
	"bytes"
	"crypto/cipher"
	"encoding/binary"
	"io"
	"net"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

const maxPacketSize = 2 * 1024 * 1024

// secureConn frames every write as length(4) | nonce(12) | ciphertext with a
// ChaCha20-Poly1305 session key. The send counter lives in the last eight
// nonce bytes.
type secureConn struct {
	net.Conn
	r       io.Reader
	aead    cipher.AEAD
	sendCtr uint64
	recvBuf bytes.Buffer
	mu      sync.Mutex
}

func wrapConn(conn net.Conn, r *bufio.Reader, sessionKey []byte) (net.Conn, error) {
	aead, err := chacha20poly1305.New(sessionKey)
	if err != nil {
		return nil, err
	}
	var src io.Reader = conn
	if r != nil {
		src = r
	}
	return &secureConn{Conn: conn, r: src, aead: aead}, nil
}

func (s *secureConn) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint64(nonce[4:], s.sendCtr)
	s.sendCtr++

	ct := s.aead.Seal(nil, nonce, p, nil)
	frame := make([]byte, 4, 4+len(nonce)+len(ct))
	binary.BigEndian.PutUint32(frame, uint32(len(nonce)+len(ct)))
	frame = append(frame, nonce...)
	frame = append(frame, ct...)

	if _, err := s.Conn.Write(frame); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *secureConn) Read(p []byte) (int, error) {
	if s.recvBuf.Len() == 0 {
		var hdr [4]byte
		if _, err := io.ReadFull(s.r, hdr[:]); err != nil {
			return 0, err
		}
		length := binary.BigEndian.Uint32(hdr[:])
		if length > maxPacketSize || length < chacha20poly1305.NonceSize {
			return 0, io.ErrUnexpectedEOF
		}
		pkt := make([]byte, length)
		if _, err := io.ReadFull(s.r, pkt); err != nil {
			return 0, err
		}
		pt, err := s.aead.Open(nil, pkt[:chacha20poly1305.NonceSize], pkt[chacha20poly1305.NonceSize:], nil)
		if err != nil {
			return 0, err
		}
		s.recvBuf.Write(pt)
	}
	return s.recvBuf.Read(p)
}
