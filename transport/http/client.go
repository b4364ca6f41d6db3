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

// Package http implements the HTTP transport contract: one POST per
// batch to
// {baseURL}/{prefix}/{hostBindingName}/{hostInstance}/call.
package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cider/chainrpc/chainerr"
	"github.com/cider/chainrpc/transport"
	"github.com/cider/chainrpc/wire"
)

// ContentType is the media type chainrpc's HTTP transport sends and
// expects. The wire codec is msgpack, not JSON, so the content type
// names what is actually on the wire.
const ContentType = "application/x-chainrpc-msgpack"

// DefaultTimeout bounds one batch round trip unless the caller
// overrides Timeout.
const DefaultTimeout = 30 * time.Second

// Client is a stateless HTTP Transport: Connect/Disconnect/IsConnected
// are no-ops, SetKeepAlive is a no-op, and SetDownstreamHandler is a
// no-op since plain HTTP has no channel to receive a push on.
type Client struct {
	BaseURL         string
	Prefix          string
	HostBindingName string
	HostInstance    string
	Headers         http.Header
	Timeout         time.Duration
	HTTPClient      *http.Client
}

// NewClient builds an HTTP transport targeting one host binding/instance.
// prefix defaults to "/__rpc" if empty.
func NewClient(baseURL, prefix, hostBindingName, hostInstance string) *Client {
	if prefix == "" {
		prefix = "/__rpc"
	}
	return &Client{
		BaseURL:         baseURL,
		Prefix:          prefix,
		HostBindingName: hostBindingName,
		HostInstance:    hostInstance,
		Headers:         make(http.Header),
		Timeout:         DefaultTimeout,
		HTTPClient:      &http.Client{},
	}
}

var _ transport.Transport = (*Client)(nil)

func (c *Client) url() string {
	return fmt.Sprintf("%s%s/%s/%s/call", c.BaseURL, c.Prefix, c.HostBindingName, c.HostInstance)
}

// Execute sends req as one POST and decodes the response body as a
// BatchResponse. An unexpected status or an unreadable body is reported
// as a Transport-kind error, failing the whole batch.
func (c *Client) Execute(ctx context.Context, req wire.BatchRequest) (wire.BatchResponse, error) {
	body, err := wire.EncodeRequest(req)
	if err != nil {
		return wire.BatchResponse{}, chainerr.Serializationf("encoding batch request: %v", err)
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(), bytes.NewReader(body))
	if err != nil {
		return wire.BatchResponse{}, chainerr.Transportf("building request: %v", err)
	}
	httpReq.Header.Set("Content-Type", ContentType)
	for k, vs := range c.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	httpResp, err := client.Do(httpReq)
	if err != nil {
		return wire.BatchResponse{}, chainerr.Transportf("%v", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return wire.BatchResponse{}, chainerr.Transportf("reading response: %v", err)
	}

	// 400 carries a synthetic single-item parse-error batch; 200 and 500
	// both carry a well-formed envelope whose per-item status the client
	// must honour instead of the transport status.
	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusInternalServerError && httpResp.StatusCode != http.StatusBadRequest {
		return wire.BatchResponse{}, chainerr.Transportf("unexpected status %d", httpResp.StatusCode)
	}

	resp, err := wire.DecodeResponse(respBody)
	if err != nil {
		return wire.BatchResponse{}, chainerr.Transportf("decoding response: %v", err)
	}
	return resp, nil
}

func (c *Client) Connect(ctx context.Context) error                   { return nil }
func (c *Client) Disconnect(ctx context.Context) error                { return nil }
func (c *Client) IsConnected() bool                                   { return true }
func (c *Client) SetDownstreamHandler(fn transport.DownstreamHandler) {}
func (c *Client) SetKeepAlive(enabled bool)                           {}
