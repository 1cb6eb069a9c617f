package viiper

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"
)

// TransportConfig controls dialing, timeouts and authentication.
type TransportConfig struct {
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Password     string
}

func defaultTransportConfig() TransportConfig {
	return TransportConfig{
		DialTimeout:  3 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// Transport speaks the VIIPER management protocol. A request is
// `<path>[ <payload>]\x00`; the server answers with one JSON document and
// closes the connection.
type Transport struct {
	addr string
	cfg  TransportConfig
	key  []byte
}

// NewTransport creates a transport for addr. A nil cfg uses defaults.
func NewTransport(addr string, cfg *TransportConfig) (*Transport, error) {
	c := defaultTransportConfig()
	if cfg != nil {
		c = *cfg
	}
	t := &Transport{addr: addr, cfg: c}
	if c.Password != "" {
		key, err := DeriveKey(c.Password)
		if err != nil {
			return nil, err
		}
		t.key = key
	}
	return t, nil
}

// dial connects to the server and runs the handshake when a password is set.
func (t *Transport) dial(ctx context.Context) (net.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	d := &net.Dialer{Timeout: t.cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			slog.Warn("failed to set TCP_NODELAY", "error", err)
		}
	}
	if t.key == nil {
		return conn, nil
	}

	if t.cfg.WriteTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(t.cfg.WriteTimeout))
	}
	r := bufio.NewReader(conn)
	sessionKey, err := handshake(r, conn, t.key)
	if err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})
	secure, err := wrapConn(conn, r, sessionKey)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return secure, nil
}

// Do sends one request and returns the response without its trailing
// newline. Payloads are sent as-is for []byte and string, JSON otherwise.
func (t *Transport) Do(ctx context.Context, path string, payload any, pathParams map[string]string) (string, error) {
	line := []byte(fillPath(path, pathParams))
	pb, err := toPayloadBytes(payload)
	if err != nil {
		return "", err
	}
	if len(pb) > 0 {
		line = append(append(line, ' '), pb...)
	}

	conn, err := t.dial(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if t.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	}
	if _, err := conn.Write(append(line, '\x00')); err != nil {
		return "", fmt.Errorf("write: %w", err)
	}
	if t.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(t.cfg.ReadTimeout))
	}
	resp, err := io.ReadAll(conn)
	if err != nil && len(resp) == 0 {
		return "", fmt.Errorf("read: %w", err)
	}
	return strings.TrimSuffix(string(resp), "\n"), nil
}

func fillPath(pattern string, params map[string]string) string {
	out := pattern
	for k, v := range params {
		out = strings.ReplaceAll(out, "{"+k+"}", url.PathEscape(v))
	}
	return strings.ToLower(out)
}

func toPayloadBytes(v any) ([]byte, error) {
	switch p := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return p, nil
	case string:
		return []byte(p), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		return b, nil
	}
}
