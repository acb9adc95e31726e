// Package fetch provides the HTTP client and download loop used to measure throughput
package fetch

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/Jigsaw-Code/outline-sdk/transport"
	"github.com/Jigsaw-Code/outline-sdk/x/configurl"
)

// Options contains the configuration shared by every worker of a session
type Options struct {
	// Transport config string (outline-sdk configurl). Empty means direct TCP.
	Transport string
	// Override address to connect to. If empty, use the URL authority
	Address string
	// HTTP method to use (default: "GET")
	Method string
	// Raw HTTP headers to add (without \r\n)
	Headers []string
	// Time to wait for response headers in seconds (default: 10)
	HeaderTimeoutSec int
	// Called after every base TCP dial, with the dialed address and the dial error
	OnDial func(addr string, err error)
}

// NewClient builds an HTTP client that dials through the configured transport.
// The client has no overall timeout: bodies are streamed for as long as the server sends them.
func NewClient(opts Options) (*http.Client, error) {
	if opts.HeaderTimeoutSec == 0 {
		opts.HeaderTimeoutSec = 10
	}

	var overrideHost, overridePort string
	if opts.Address != "" {
		var err error
		overrideHost, overridePort, err = net.SplitHostPort(opts.Address)
		if err != nil {
			// Fail to parse. Assume the address is host only.
			overrideHost = opts.Address
			overridePort = ""
		}
	}

	configToDialer := configurl.NewDefaultConfigToDialer()
	if opts.OnDial != nil {
		configToDialer.BaseStreamDialer = newTracedDialer(opts.OnDial)
	}
	dialer, err := configToDialer.NewStreamDialer(opts.Transport)
	if err != nil {
		return nil, fmt.Errorf("could not create dialer: %w", err)
	}

	dialContext := func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid address: %w", err)
		}
		if overrideHost != "" {
			host = overrideHost
		}
		if overridePort != "" {
			port = overridePort
		}
		if !strings.HasPrefix(network, "tcp") {
			return nil, fmt.Errorf("protocol not supported: %v", network)
		}
		return dialer.DialStream(ctx, net.JoinHostPort(host, port))
	}

	return &http.Client{
		Transport: &http.Transport{
			DialContext:           dialContext,
			ResponseHeaderTimeout: time.Duration(opts.HeaderTimeoutSec) * time.Second,
			// Compressed bodies would hide the bytes actually transferred.
			DisableCompression: true,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}

func newTracedDialer(onDial func(addr string, err error)) transport.StreamDialer {
	dialer := &transport.TCPDialer{}
	return transport.FuncStreamDialer(func(ctx context.Context, addr string) (transport.StreamConn, error) {
		conn, err := dialer.DialStream(ctx, addr)
		onDial(addr, err)
		return conn, err
	})
}

// ParseHeaders parses raw header lines such as "Accept: */*".
func ParseHeaders(lines []string) (http.Header, error) {
	header := http.Header{}
	if len(lines) == 0 {
		return header, nil
	}
	headerText := strings.Join(lines, "\r\n") + "\r\n\r\n"
	h, err := textproto.NewReader(bufio.NewReader(strings.NewReader(headerText))).ReadMIMEHeader()
	if err != nil {
		return nil, fmt.Errorf("invalid header line: %w", err)
	}
	for name, values := range h {
		for _, value := range values {
			header.Add(name, value)
		}
	}
	return header, nil
}
