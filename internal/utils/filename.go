package utils

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/vfaronov/httpheader"
)

// DetermineFilename extracts the filename from a URL and HTTP response,
// in the order the probe contract requires: Content-Disposition (quoted
// or RFC-5987 encoded), then the last non-empty URL path segment, then
// the literal "download". It returns the resolved filename, a new
// io.Reader that includes any bytes sniffed off the body while guessing
// a missing extension, and an error.
func DetermineFilename(rawurl string, resp *http.Response, verbose bool) (string, io.Reader, error) {
	parsed, err := url.Parse(rawurl)
	if err != nil {
		return "", nil, err
	}

	var candidate string

	// 1. Content-Disposition
	if _, name, err := httpheader.ContentDisposition(resp.Header); err == nil && name != "" {
		candidate = name
		if verbose {
			fmt.Fprintf(os.Stderr, "Filename from Content-Disposition: %s\n", candidate)
		}
	}

	// 2. last non-empty URL path segment (net/url already percent-decodes Path)
	if candidate == "" {
		candidate = filepath.Base(parsed.Path)
		if verbose && candidate != "" && candidate != "." && candidate != "/" {
			fmt.Fprintf(os.Stderr, "Filename from URL path: %s\n", candidate)
		}
	}

	filename := sanitizeFilename(candidate)

	header := make([]byte, 512)
	n, rerr := io.ReadFull(resp.Body, header)
	if rerr != nil {
		if rerr == io.ErrUnexpectedEOF || rerr == io.EOF {
			header = header[:n]
		} else {
			return "", nil, fmt.Errorf("reading header: %w", rerr)
		}
	} else {
		header = header[:n]
	}

	body := io.MultiReader(bytes.NewReader(header), resp.Body)

	if verbose {
		mimeType := http.DetectContentType(header)
		fmt.Fprintln(os.Stderr, "Detected MIME:", mimeType)

		if kind, _ := filetype.Match(header); kind != filetype.Unknown {
			fmt.Fprintln(os.Stderr, "Magic Type:", kind.Extension, kind.MIME)
		}
	}

	// 3. literal "download" when neither disposition nor path yielded a name
	if filename == "" || filename == "." || filename == "/" {
		filename = "download"
		if verbose {
			fmt.Fprintln(os.Stderr, "Falling back to default filename: download")
		}
	}

	if filepath.Ext(filename) == "" {
		if kind, _ := filetype.Match(header); kind != filetype.Unknown && kind.Extension != "" {
			filename = filename + "." + kind.Extension
			if verbose {
				fmt.Fprintf(os.Stderr, "Added extension from magic type: %s\n", kind.Extension)
			}
		}
	}

	return filename, body, nil
}

func sanitizeFilename(name string) string {
	// Replace backslashes with forward slashes first so filepath.Base treats them as separators
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	if name == "." {
		return name
	}
	if name == "/" || name == "\\" {
		return "_"
	}
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "/", "_")
	// Additional standard replacements for windows/linux safety
	name = strings.ReplaceAll(name, ":", "_")
	name = strings.ReplaceAll(name, "*", "_")
	name = strings.ReplaceAll(name, "?", "_")
	name = strings.ReplaceAll(name, "\"", "_")
	name = strings.ReplaceAll(name, "<", "_")
	name = strings.ReplaceAll(name, ">", "_")
	name = strings.ReplaceAll(name, "|", "_")
	return name
}
