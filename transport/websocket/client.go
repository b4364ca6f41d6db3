// Copyright (c) 2014 The AUTHORS
//
// This file is part of chainrpc.
//
// chainrpc is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// chainrpc is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with chainrpc.  If not, see <http://www.gnu.org/licenses/>.

// Package websocket implements the WebSocket transport contract: a
// stateful, frame-multiplexed transport that also carries the downstream
// fire-and-forget channel on the same connection. Two frame kinds cross
// it: batch request/response frames correlated by the first item's id,
// and downstream frames with no correlation at all.
package websocket

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cider/chainrpc/chainerr"
	"github.com/cider/chainrpc/transport"
	"github.com/cider/chainrpc/wire"
)

// Protocol is the base RPC subprotocol name; a connecting client may
// also advertise "<Protocol>.clientId.<id>" so the server can tag the
// connection for downstream delivery.
const Protocol = "chainrpc"

// DefaultTimeout bounds how long Execute waits for a batch's reply.
const DefaultTimeout = 30 * time.Second

type pending struct {
	resultsCh chan []wire.Result
	errCh     chan error
}

// Client is a stateful WebSocket Transport.
type Client struct {
	URL      string
	Prefix   string
	ClientID string
	Headers  http.Header
	Timeout  time.Duration

	mu          sync.Mutex
	conn        *websocket.Conn
	pendingByID map[string]*pending
	downstream  transport.DownstreamHandler
	onClose     func(error)
	keepAlive   bool
	connected   bool
	writeMu     sync.Mutex
}

var _ transport.Transport = (*Client)(nil)

// NewClient builds a WebSocket transport for the given ws(s):// URL.
func NewClient(wsURL, prefix, clientID string) *Client {
	if prefix == "" {
		prefix = "/__rpc"
	}
	return &Client{
		URL:         wsURL,
		Prefix:      prefix,
		ClientID:    clientID,
		Headers:     make(http.Header),
		Timeout:     DefaultTimeout,
		pendingByID: make(map[string]*pending),
	}
}

func (c *Client) frameType() string {
	t := c.Prefix
	for len(t) > 0 && t[0] == '/' {
		t = t[1:]
	}
	for len(t) > 0 && t[len(t)-1] == '/' {
		t = t[:len(t)-1]
	}
	return t
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}

	subprotocols := []string{Protocol}
	if c.ClientID != "" {
		subprotocols = append(subprotocols, fmt.Sprintf("%s.clientId.%s", Protocol, c.ClientID))
	}
	dialer := &websocket.Dialer{Subprotocols: subprotocols}

	u, err := url.Parse(c.URL)
	if err != nil {
		return chainerr.Transportf("invalid websocket url: %v", err)
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), c.Headers)
	if err != nil {
		return chainerr.Transportf("websocket dial (close 1011): %v", err)
	}
	c.conn = conn
	c.connected = true
	go c.readLoop(conn)
	return nil
}

func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	pendings := c.pendingByID
	c.pendingByID = make(map[string]*pending)
	c.mu.Unlock()

	for _, p := range pendings {
		p.errCh <- &transport.ErrDisconnected{}
	}
	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return conn.Close()
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) SetDownstreamHandler(fn transport.DownstreamHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.downstream = fn
}

// SetCloseHandler installs a hook invoked after the connection drops and
// every pending batch has been rejected. The hook fires for remote
// closes and read failures, not for a locally-initiated Disconnect.
func (c *Client) SetCloseHandler(fn func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = fn
}

// SetKeepAlive toggles transparent reconnect. Reconnection never replays
// in-flight operations: pending items at the moment of drop are always
// rejected (see Disconnect), keep-alive only affects whether a fresh
// Connect is attempted automatically afterwards.
func (c *Client) SetKeepAlive(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keepAlive = enabled
}

// Execute sends req as one frame and waits for its correlated reply,
// tracked by the first item's id.
func (c *Client) Execute(ctx context.Context, req wire.BatchRequest) (wire.BatchResponse, error) {
	if len(req.Batch) == 0 {
		return wire.BatchResponse{}, chainerr.Validationf("empty batch")
	}
	key := req.Batch[0].ID

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return wire.BatchResponse{}, &transport.ErrDisconnected{}
	}
	p := &pending{resultsCh: make(chan []wire.Result, 1), errCh: make(chan error, 1)}
	c.pendingByID[key] = p
	conn := c.conn
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pendingByID, key)
		c.mu.Unlock()
	}()

	frame, err := wire.EncodeRequestFrame(c.frameType(), req.Batch)
	if err != nil {
		return wire.BatchResponse{}, chainerr.Serializationf("%v", err)
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c.writeMu.Lock()
	writeErr := conn.WriteMessage(websocket.BinaryMessage, frame)
	c.writeMu.Unlock()
	if writeErr != nil {
		return wire.BatchResponse{}, chainerr.Transportf("%v", writeErr)
	}

	select {
	case results := <-p.resultsCh:
		return wire.BatchResponse{Batch: results}, nil
	case err := <-p.errCh:
		return wire.BatchResponse{}, err
	case <-ctx.Done():
		return wire.BatchResponse{}, chainerr.Transportf("batch timed out: %v", ctx.Err())
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			// Disconnect clears c.conn before closing it, so a read failure
			// on a connection that is no longer current was initiated
			// locally and has already been handled there.
			c.mu.Lock()
			current := c.conn == conn
			c.mu.Unlock()
			if current {
				c.handleDisconnect(err)
			}
			return
		}
		frame, err := wire.DecodeFrame(data)
		if err != nil {
			continue
		}
		if frame.Type == wire.DownstreamFrameType {
			c.deliverDownstream(frame)
			continue
		}
		results, err := wire.DecodeResponseBatch(frame)
		if err != nil || len(results) == 0 {
			continue
		}
		c.deliverResults(results)
	}
}

func (c *Client) deliverDownstream(frame wire.Frame) {
	c.mu.Lock()
	handler := c.downstream
	c.mu.Unlock()
	if handler == nil {
		return
	}
	payload, err := wire.DecodeDownstreamPayload(frame)
	if err != nil {
		return
	}
	handler(payload)
}

func (c *Client) deliverResults(results []wire.Result) {
	key := results[0].ID
	c.mu.Lock()
	p, ok := c.pendingByID[key]
	c.mu.Unlock()
	if !ok {
		return
	}
	p.resultsCh <- results
}

func (c *Client) handleDisconnect(cause error) {
	c.mu.Lock()
	c.connected = false
	keepAlive := c.keepAlive
	onClose := c.onClose
	pendings := c.pendingByID
	c.pendingByID = make(map[string]*pending)
	c.mu.Unlock()

	for _, p := range pendings {
		p.errCh <- &transport.ErrDisconnected{Cause: cause}
	}
	if onClose != nil {
		onClose(cause)
	}

	if keepAlive {
		go func() {
			_ = c.Connect(context.Background())
		}()
	}
}
