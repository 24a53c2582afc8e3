package chat

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// SocketURLFunc builds the socket URL for an access token.
type SocketURLFunc func(accessToken string) (string, error)

// WebsocketDialer dials the chat socket with gorilla/websocket.
type WebsocketDialer struct {
	URL    SocketURLFunc
	Dialer *websocket.Dialer
	Header http.Header
}

// NewWebsocketDialer returns a dialer with a 10s handshake timeout.
func NewWebsocketDialer(url SocketURLFunc) *WebsocketDialer {
	return &WebsocketDialer{
		URL:    url,
		Dialer: &websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: 10 * time.Second},
	}
}

// Dial implements Dialer.
func (d *WebsocketDialer) Dial(ctx context.Context, accessToken string, handle func(Message)) (Socket, error) {
	u, err := d.URL(accessToken)
	if err != nil {
		return nil, err
	}
	conn, resp, err := d.Dialer.DialContext(ctx, u, d.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake: status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}
	s := &wsSocket{conn: conn, done: make(chan struct{})}
	s.handle.Store(&handle)
	go s.readLoop()
	return s, nil
}

type wsSocket struct {
	conn   *websocket.Conn
	handle atomic.Pointer[func(Message)]

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// Send writes v as one JSON text frame.
func (s *wsSocket) Send(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(v)
}

// Close detaches the handler and closes the connection without waiting for the reader.
func (s *wsSocket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.handle.Store(nil)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

// Done is closed when the read loop exits.
func (s *wsSocket) Done() <-chan struct{} { return s.done }

func (s *wsSocket) readLoop() {
	defer close(s.done)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && s.handle.Load() != nil {
				slog.Warn("chat: socket read failed", slog.Any("err", err))
			}
			return
		}
		// A frame may batch several messages separated by newlines.
		for _, line := range bytes.Split(data, []byte{'\n'}) {
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			msg, err := decodeMessage(line)
			if err != nil {
				slog.Debug("chat: undecodable message", slog.Any("err", err))
				continue
			}
			h := s.handle.Load()
			if h == nil {
				return
			}
			(*h)(msg)
		}
	}
}
