package parse

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/Sriram-PR/conf-crawler/pkg/utils"
)

// HostKey returns the lowercased host of rawURL with any default port removed.
// It keys per-host pacing and names the crawl-state database.
func HostKey(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: URL %q: %w", utils.ErrParsing, rawURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: URL %q has no host", utils.ErrParsing, rawURL)
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)

	h, port, err := net.SplitHostPort(host)
	if err == nil { // Host included a port
		if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
			host = h
		}
	}
	return host, nil
}
