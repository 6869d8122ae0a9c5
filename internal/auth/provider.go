package auth

import (
	"errors"
	"strings"
)

// ErrUnsupportedProvider is returned when no provider matches the
// requested name or email domain.
var ErrUnsupportedProvider = errors.New("unsupported provider")

// Provider describes one supported mail provider: its OAuth2 endpoints,
// the scopes mail access needs, and the hosts to reach its mail servers
// on. The set of providers is closed; callers get values from
// ProviderByName or ProviderForEmail.
type Provider struct {
	Name        string
	AuthURL     string
	TokenURL    string
	UserinfoURL string
	IMAPAddr    string
	SMTPAddr    string
	Scopes      []string

	// JSON field names in the userinfo response.
	EmailField string
	NameField  string
}

var google = Provider{
	Name:        "google",
	AuthURL:     "https://accounts.google.com/o/oauth2/v2/auth",
	TokenURL:    "https://oauth2.googleapis.com/token",
	UserinfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
	IMAPAddr:    "imap.gmail.com:993",
	SMTPAddr:    "smtp.gmail.com:587",
	Scopes: []string{
		"https://mail.google.com/",
		"https://www.googleapis.com/auth/userinfo.email",
		"https://www.googleapis.com/auth/userinfo.profile",
	},
	EmailField: "email",
	NameField:  "name",
}

var microsoft = Provider{
	Name:        "microsoft",
	AuthURL:     "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
	TokenURL:    "https://login.microsoftonline.com/common/oauth2/v2.0/token",
	UserinfoURL: "https://graph.microsoft.com/v1.0/me",
	IMAPAddr:    "outlook.office365.com:993",
	SMTPAddr:    "smtp.office365.com:587",
	Scopes: []string{
		"https://outlook.office.com/IMAP.AccessAsUser.All",
		"https://outlook.office.com/SMTP.Send",
		"offline_access",
		"openid",
		"profile",
		"email",
	},
	EmailField: "userPrincipalName",
	NameField:  "displayName",
}

func defaultProviders() map[string]Provider {
	return map[string]Provider{
		google.Name:    google,
		microsoft.Name: microsoft,
	}
}

// ProviderByName returns the provider registered under name.
func ProviderByName(name string) (Provider, error) {
	p, ok := defaultProviders()[strings.ToLower(name)]
	if !ok {
		return Provider{}, ErrUnsupportedProvider
	}
	return p, nil
}

// ProviderForEmail guesses the provider from an email address's domain.
func ProviderForEmail(email string) (Provider, error) {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return Provider{}, ErrUnsupportedProvider
	}

	switch strings.ToLower(email[at+1:]) {
	case "gmail.com", "googlemail.com":
		return google, nil
	case "outlook.com", "hotmail.com", "live.com", "msn.com":
		return microsoft, nil
	default:
		return Provider{}, ErrUnsupportedProvider
	}
}
