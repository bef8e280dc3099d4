// Package urlnorm parses and validates download URLs (component C2).
package urlnorm

import (
	"net/url"
	"path"
	"strings"

	"github.com/arlofen/fetchcore/internal/core/task"
)

// ParsedURL is the normalized form of a request URL.
type ParsedURL struct {
	Scheme    string
	Host      string
	Path      string
	Filename  string
	Extension string
	String    string
}

// Parse normalizes raw, prepending "https://" when the scheme is
// missing, and rejects anything other than HTTP(S) with InvalidURLError.
func Parse(raw string) (*ParsedURL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &task.InvalidURLError{URL: raw, Err: errEmpty}
	}

	candidate := raw
	if !strings.Contains(raw, "://") {
		candidate = "https://" + raw
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return nil, &task.InvalidURLError{URL: raw, Err: err}
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, &task.InvalidURLError{URL: raw, Err: errScheme}
	}
	if u.Host == "" {
		return nil, &task.InvalidURLError{URL: raw, Err: errEmpty}
	}

	filename, ext := filenameFromPath(u.Path)

	return &ParsedURL{
		Scheme:    scheme,
		Host:      u.Host,
		Path:      u.Path,
		Filename:  filename,
		Extension: ext,
		String:    u.String(),
	}, nil
}

func filenameFromPath(p string) (name, ext string) {
	base := path.Base(p)
	if base == "" || base == "/" || base == "." {
		return "", ""
	}
	decoded, err := url.PathUnescape(base)
	if err == nil {
		base = decoded
	}
	ext = path.Ext(base)
	if len(ext) > 0 {
		ext = ext[1:]
	}
	return base, ext
}

var (
	errEmpty  = simpleErr("url is empty or missing a host")
	errScheme = simpleErr("only http and https schemes are supported")
)

type simpleErr string

func (e simpleErr) Error() string { return string(e) }
