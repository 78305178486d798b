package browser

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
)

// ErrNoSession is returned when no usable cookies are stored.
var ErrNoSession = errors.New("browser: no stored session")

// Session is a persisted set of cookies for one site.
type Session struct {
	Site       string            `json:"site"`
	Cookies    []*network.Cookie `json:"cookies"`
	CapturedAt time.Time         `json:"captured_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// CookieJar stores one Session per file.
type CookieJar struct {
	path     string
	required []string
}

// NewCookieJar creates a jar at path. required names the cookies that must
// be present for the session to count as logged in; the earliest of their
// expirations becomes the session expiry.
func NewCookieJar(path string, required ...string) *CookieJar {
	return &CookieJar{path: path, required: required}
}

// Path returns the file backing the jar.
func (j *CookieJar) Path() string { return j.path }

// Save persists cookies for site.
// TODO: encrypt at rest once a keyring dependency is settled.
func (j *CookieJar) Save(site string, cookies []*network.Cookie, now time.Time) error {
	if err := os.MkdirAll(filepath.Dir(j.path), 0700); err != nil {
		return err
	}

	var expiry time.Time
	for _, c := range cookies {
		if !j.isRequired(c.Name) || c.Expires <= 0 {
			continue
		}
		exp := time.Unix(int64(c.Expires), 0)
		if expiry.IsZero() || exp.Before(expiry) {
			expiry = exp
		}
	}

	data, err := json.MarshalIndent(Session{
		Site:       site,
		Cookies:    cookies,
		CapturedAt: now,
		ExpiresAt:  expiry,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(j.path, data, 0600)
}

// Load reads the stored session.
func (j *CookieJar) Load() (*Session, error) {
	data, err := os.ReadFile(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSession
		}
		return nil, err
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Valid reports whether a stored session has every required cookie and has
// not expired at now.
func (j *CookieJar) Valid(now time.Time) bool {
	s, err := j.Load()
	if err != nil {
		return false
	}
	if !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt) {
		return false
	}

	have := map[string]bool{}
	for _, c := range s.Cookies {
		if c.Value != "" {
			have[c.Name] = true
		}
	}
	for _, name := range j.required {
		if !have[name] {
			return false
		}
	}
	return true
}

// ForDomain returns stored cookies whose domain matches domain or a
// subdomain of it.
func (j *CookieJar) ForDomain(domain string) ([]*network.Cookie, error) {
	s, err := j.Load()
	if err != nil {
		return nil, err
	}

	var out []*network.Cookie
	for _, c := range s.Cookies {
		d := strings.TrimPrefix(c.Domain, ".")
		if d == domain || strings.HasSuffix(d, "."+domain) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoSession
	}
	return out, nil
}

// Clear removes stored cookies
func (j *CookieJar) Clear() error {
	err := os.Remove(j.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (j *CookieJar) isRequired(name string) bool {
	for _, r := range j.required {
		if r == name {
			return true
		}
	}
	return false
}
