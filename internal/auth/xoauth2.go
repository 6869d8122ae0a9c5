package auth

import (
	"github.com/emersion/go-sasl"
)

// xoauth2Client implements the XOAUTH2 SASL mechanism used by Gmail and
// Office 365 for bearer-token authentication over IMAP and SMTP.
type xoauth2Client struct {
	username string
	token    string
}

// NewXOAuth2 returns a SASL client that authenticates username with the
// given OAuth2 access token.
func NewXOAuth2(username, token string) sasl.Client {
	return &xoauth2Client{username: username, token: token}
}

func (c *xoauth2Client) Start() (mech string, ir []byte, err error) {
	ir = []byte("user=" + c.username + "\x01auth=Bearer " + c.token + "\x01\x01")
	return "XOAUTH2", ir, nil
}

// Next handles the error round: on failure the server sends a challenge
// with a JSON error blob and expects an empty response before it issues
// the final NO.
func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	return []byte{}, nil
}
