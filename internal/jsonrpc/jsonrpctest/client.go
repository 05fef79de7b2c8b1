// Package jsonrpctest drives a jsonrpc.Server over in-memory pipes.
package jsonrpctest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"
	"testing"

	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/jsonrpc"
	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/testutil"
)

// Client is the client end of a running server.
type Client struct {
	srv *jsonrpc.Server
	w   io.WriteCloser

	writeMu sync.Mutex
	mu      sync.Mutex
	nextID  int
	pending map[string]chan *jsonrpc.Message
	notes   []*jsonrpc.Message
	arrived chan struct{}
	runErr  chan error
}

// New starts a server whose handlers are installed by setup, and returns a
// client connected to it. The server is stopped when the test ends.
func New(t testing.TB, setup func(srv *jsonrpc.Server), opts ...jsonrpc.Option) *Client {
	t.Helper()

	clientToServer, serverIn := io.Pipe()
	serverOut, serverToClient := io.Pipe()

	opts = append([]jsonrpc.Option{jsonrpc.WithLogger(testutil.NewTestLogger(t))}, opts...)
	srv := jsonrpc.NewServer(clientToServer, serverToClient, opts...)
	if setup != nil {
		setup(srv)
	}

	c := &Client{
		srv:     srv,
		w:       serverIn,
		pending: make(map[string]chan *jsonrpc.Message),
		arrived: make(chan struct{}),
		runErr:  make(chan error, 1),
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		err := srv.Run(ctx)
		_ = serverToClient.Close()
		c.runErr <- err
	}()
	go c.readLoop(jsonrpc.NewFrameReader(serverOut))

	t.Cleanup(func() {
		_ = serverIn.Close()
		cancel()
		<-c.runErr
	})
	return c
}

// Server returns the server under test.
func (c *Client) Server() *jsonrpc.Server { return c.srv }

func (c *Client) readLoop(fr *jsonrpc.FrameReader) {
	for {
		body, err := fr.Read()
		if err != nil {
			c.mu.Lock()
			for id, ch := range c.pending {
				close(ch)
				delete(c.pending, id)
			}
			c.mu.Unlock()
			return
		}
		var msg jsonrpc.Message
		if err := json.Unmarshal(body, &msg); err != nil {
			continue
		}

		c.mu.Lock()
		if msg.IsNotification() {
			c.notes = append(c.notes, &msg)
			close(c.arrived)
			c.arrived = make(chan struct{})
		} else if ch, ok := c.pending[msg.IDString()]; ok {
			delete(c.pending, msg.IDString())
			ch <- &msg
		}
		c.mu.Unlock()
	}
}

func (c *Client) send(msg *jsonrpc.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return jsonrpc.WriteFrame(c.w, body)
}

// Call sends a request and waits for its response. A response error is
// returned as *jsonrpc.Error. result may be nil.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	c.mu.Lock()
	c.nextID++
	id := strconv.Itoa(c.nextID)
	ch := make(chan *jsonrpc.Message, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	raw := json.RawMessage(id)
	msg := &jsonrpc.Message{JSONRPC: "2.0", ID: &raw, Method: method}
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return err
		}
		msg.Params = b
	}
	if err := c.send(msg); err != nil {
		return err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return fmt.Errorf("connection closed before response to %s", method)
		}
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil {
			return json.Unmarshal(resp.Result, result)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Notify sends a notification.
func (c *Client) Notify(method string, params any) error {
	msg := &jsonrpc.Message{JSONRPC: "2.0", Method: method}
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return err
		}
		msg.Params = b
	}
	return c.send(msg)
}

// SendRaw writes body as one frame, bypassing encoding.
func (c *Client) SendRaw(body []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return jsonrpc.WriteFrame(c.w, body)
}

// Notifications returns the notifications received so far for method, in
// arrival order. An empty method matches all.
func (c *Client) Notifications(method string) []*jsonrpc.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*jsonrpc.Message
	for _, n := range c.notes {
		if method == "" || n.Method == method {
			out = append(out, n)
		}
	}
	return out
}

// WaitNotification blocks until at least count notifications of method
// have arrived and decodes the count-th one (1-based) into params.
func (c *Client) WaitNotification(ctx context.Context, method string, count int, params any) error {
	for {
		c.mu.Lock()
		seen := 0
		var match *jsonrpc.Message
		for _, n := range c.notes {
			if n.Method == method {
				seen++
				if seen == count {
					match = n
					break
				}
			}
		}
		arrived := c.arrived
		c.mu.Unlock()

		if match != nil {
			if params == nil {
				return nil
			}
			return json.Unmarshal(match.Params, params)
		}

		select {
		case <-arrived:
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s #%d: %w", method, count, ctx.Err())
		}
	}
}
