package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// CassetteExt is the structured-text extension used for cassette files.
const CassetteExt = ".yml"

// HostPathSegment transforms a capture URL's host into a filesystem-safe
// directory name: dots become underscores so no path segment contains raw
// dots, slashes or query characters.
func HostPathSegment(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	return strings.ReplaceAll(host, ".", "_"), nil
}

// CassetteStem derives the file stem for a capture URL: the hex SHA-256
// digest of the full URL string. Identical URLs always map to the same stem.
func CassetteStem(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// CassettePath computes the full fixture path for a capture URL:
// <baseDir>/<host_with_dots_as_underscores>/<sha256(url)>.yml
func CassettePath(baseDir, rawURL string) (string, error) {
	host, err := HostPathSegment(rawURL)
	if err != nil {
		return "", err
	}
	return filepath.Join(baseDir, host, CassetteStem(rawURL)+CassetteExt), nil
}
