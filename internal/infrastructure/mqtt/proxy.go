package mqtt

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// proxyConnectionFn returns a paho connection opener that tunnels the
// broker connection through an HTTP CONNECT proxy.
//
// For ssl/tls/mqtts schemes the TLS handshake runs inside the tunnel using
// the client's TLS configuration.
func proxyConnectionFn(proxyAddr string, timeout time.Duration) pahomqtt.OpenConnectionFunc {
	return func(uri *url.URL, options pahomqtt.ClientOptions) (net.Conn, error) {
		conn, err := dialThroughProxy(proxyAddr, uri.Host, timeout)
		if err != nil {
			return nil, err
		}

		switch uri.Scheme {
		case "ssl", "tls", "mqtts", "tcps":
		default:
			return conn, nil
		}

		var tlsConfig *tls.Config
		if options.TLSConfig != nil {
			tlsConfig = options.TLSConfig.Clone()
		} else {
			tlsConfig = &tls.Config{MinVersion: tlsMinVersion}
		}
		if tlsConfig.ServerName == "" {
			tlsConfig.ServerName = uri.Hostname()
		}

		tlsConn := tls.Client(conn, tlsConfig)
		_ = tlsConn.SetDeadline(time.Now().Add(timeout))
		if err := tlsConn.Handshake(); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%w: TLS handshake through proxy: %w", ErrProxy, err)
		}
		_ = tlsConn.SetDeadline(time.Time{})
		return tlsConn, nil
	}
}

// dialThroughProxy opens a TCP connection to proxyAddr and asks it to
// CONNECT to target. The returned connection carries raw tunnel bytes.
func dialThroughProxy(proxyAddr, target string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", proxyAddr, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %w", ErrProxy, proxyAddr, err)
	}
	_ = conn.SetDeadline(time.Now().Add(timeout))

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: target},
		Host:   target,
		Header: make(http.Header),
	}
	if err := req.Write(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: writing CONNECT: %w", ErrProxy, err)
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: reading CONNECT response: %w", ErrProxy, err)
	}
	// resp.Body is not closed: closing it would read from the tunnel.
	if resp.StatusCode != http.StatusOK {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: proxy answered %s", ErrProxy, resp.Status)
	}

	_ = conn.SetDeadline(time.Time{})
	if br.Buffered() > 0 {
		return &bufferedConn{Conn: conn, r: br}, nil
	}
	return conn, nil
}

// bufferedConn serves bytes the proxy sent after its response headers
// before reading from the connection again.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}
