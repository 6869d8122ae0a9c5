// Package imapsync talks IMAP to the provider and mirrors mailboxes into
// the local cache. Connections authenticate with XOAUTH2 access tokens;
// no password ever reaches this package.
package imapsync

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/client"

	"github.com/vdavid/mailsync/internal/auth"
)

var (
	// ErrConnect is returned when the IMAP server cannot be reached.
	ErrConnect = errors.New("failed to connect to IMAP server")

	// ErrAuthRejected is returned when the server refuses the XOAUTH2
	// token. The caller should treat this as non-retryable and force a
	// token refresh or re-authorization.
	ErrAuthRejected = errors.New("IMAP authentication rejected")
)

const dialTimeout = 5 * time.Second

// Client is an authenticated IMAP connection.
type Client struct {
	c *client.Client
}

// Connect dials the IMAP server with a 5-second timeout.
// useTLS: true for production, false for tests against a local server.
func Connect(addr string, useTLS bool) (*Client, error) {
	dialer := &net.Dialer{Timeout: dialTimeout}

	if useTLS {
		c, err := client.DialWithDialerTLS(dialer, addr, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrConnect, addr, err)
		}
		return &Client{c: c}, nil
	}

	c, err := client.DialWithDialer(dialer, addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnect, addr, err)
	}

	return &Client{c: c}, nil
}

// Authenticate runs the XOAUTH2 SASL exchange for username with the
// given access token.
func (c *Client) Authenticate(username, token string) error {
	if err := c.c.Authenticate(auth.NewXOAuth2(username, token)); err != nil {
		return fmt.Errorf("%w: %v", ErrAuthRejected, err)
	}
	return nil
}

// Login authenticates with a plain password. Only the test server
// accepts this.
func (c *Client) Login(username, password string) error {
	if err := c.c.Login(username, password); err != nil {
		return fmt.Errorf("%w: %v", ErrAuthRejected, err)
	}
	return nil
}

// Logout ends the session and closes the connection.
func (c *Client) Logout() error {
	return c.c.Logout()
}
