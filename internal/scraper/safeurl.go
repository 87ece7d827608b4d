// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package scraper

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// allowedHosts is the external-source allow-list: any host not
// in this set is rejected before an adapter is allowed to dial it.
var allowedHosts = map[string]bool{
	"api.mangadex.org": true,
	"mangadex.org":     true,
	"mangapark.io":     true,
	"comick.io":        true,
	"mangasee123.com":  true,
}

// SafeURL validates an outbound adapter target against the host
// allow-list and rejects a host given as a literal private or loopback
// IP; host names are not resolved. The core consumes this as an external collaborator
// contract; this is the concrete implementation, since no
// upstream SSRF module exists for adapters to call into instead.
type SafeURL struct{}

// Validate reports an error if raw is not an https URL to an
// allow-listed host, or if the host is a literal internal/loopback IP.
func (SafeURL) Validate(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("scraper: malformed url: %w", err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("scraper: url %q must use https", raw)
	}
	host := strings.ToLower(u.Hostname())
	if !allowedHosts[host] {
		return fmt.Errorf("scraper: host %q is not allow-listed", host)
	}
	if ip := net.ParseIP(host); ip != nil && isInternalIP(ip) {
		return fmt.Errorf("scraper: url %q resolves to an internal address", raw)
	}
	return nil
}

func isInternalIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}
