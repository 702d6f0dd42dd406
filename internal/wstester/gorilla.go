package wstester

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// closeWait is the time allowed to write the close frame.
	closeWait = time.Second
)

// GorillaTransport opens client connections with gorilla/websocket.
type GorillaTransport struct {
	// Dialer is used for the opening handshake. Nil means a copy of
	// websocket.DefaultDialer.
	Dialer *websocket.Dialer

	// ReadLimit caps inbound frame size. 0 means no limit.
	ReadLimit int64
}

// NewGorillaTransport returns a transport using the default dialer.
func NewGorillaTransport() *GorillaTransport {
	return &GorillaTransport{}
}

// Open implements Transport. The handshake runs on its own goroutine.
func (g *GorillaTransport) Open(rawURL string, protocols []string, header http.Header, h Handler) (Conn, error) {
	dialer := websocket.DefaultDialer
	if g.Dialer != nil {
		dialer = g.Dialer
	}
	d := *dialer
	d.Subprotocols = protocols

	ctx, cancel := context.WithCancel(context.Background())
	c := &gorillaConn{cancel: cancel, handler: h}
	c.state.Store(int32(ReadyConnecting))

	go c.run(ctx, &d, rawURL, header, g.ReadLimit)
	return c, nil
}

type gorillaConn struct {
	cancel  context.CancelFunc
	handler Handler

	state atomic.Int32

	mu       sync.Mutex
	ws       *websocket.Conn
	protocol string
	closing  bool

	writeMu sync.Mutex
}

func (c *gorillaConn) run(ctx context.Context, d *websocket.Dialer, rawURL string, header http.Header, readLimit int64) {
	ws, _, err := d.DialContext(ctx, rawURL, header)
	if err != nil {
		c.state.Store(int32(ReadyClosed))
		if ctx.Err() == nil {
			c.handler.OnError(err)
		}
		c.handler.OnClose(CloseAbnormal, err.Error())
		return
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		_ = ws.Close()
		c.state.Store(int32(ReadyClosed))
		c.handler.OnClose(CloseNormal, "closed during handshake")
		return
	}
	c.ws = ws
	c.protocol = ws.Subprotocol()
	c.mu.Unlock()

	if readLimit > 0 {
		ws.SetReadLimit(readLimit)
	}

	c.state.Store(int32(ReadyOpen))
	c.handler.OnOpen(ws.Subprotocol())
	c.readLoop(ws)
}

func (c *gorillaConn) readLoop(ws *websocket.Conn) {
	defer func() {
		_ = ws.Close()
		c.state.Store(int32(ReadyClosed))
	}()

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			code, reason := CloseAbnormal, err.Error()
			var closeErr *websocket.CloseError
			switch {
			case errors.As(err, &closeErr):
				code, reason = closeErr.Code, closeErr.Text
			case c.isClosing():
				code, reason = CloseNormal, ""
			default:
				c.handler.OnError(err)
			}
			c.state.Store(int32(ReadyClosed))
			c.handler.OnClose(code, reason)
			return
		}

		switch msgType {
		case websocket.TextMessage:
			c.handler.OnMessage(Frame{Kind: FrameText, Data: data})
		case websocket.BinaryMessage:
			c.handler.OnMessage(Frame{Kind: FrameBinary, Data: data})
		}
	}
}

func (c *gorillaConn) isClosing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closing
}

// Send implements Conn.
func (c *gorillaConn) Send(kind FrameKind, data []byte) error {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil || ReadyState(c.state.Load()) != ReadyOpen {
		return errors.New("websocket is not open")
	}

	msgType := websocket.TextMessage
	if kind == FrameBinary {
		msgType = websocket.BinaryMessage
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	return ws.WriteMessage(msgType, data)
}

// Close implements Conn.
func (c *gorillaConn) Close() error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	ws := c.ws
	c.mu.Unlock()

	c.cancel()
	if ws == nil {
		return nil
	}

	if ReadyState(c.state.Load()) == ReadyOpen {
		c.state.Store(int32(ReadyClosing))
	}

	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait))
	c.writeMu.Unlock()

	return ws.Close()
}

// Protocol implements Conn.
func (c *gorillaConn) Protocol() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.protocol
}

// ReadyState implements Conn.
func (c *gorillaConn) ReadyState() ReadyState {
	return ReadyState(c.state.Load())
}
