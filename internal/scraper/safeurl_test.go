// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package scraper_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/yomira/internal/scraper"
)

func TestSafeURL_Validate(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"allow_listed_https", "https://api.mangadex.org/manga/x/aggregate", false},
		{"plain_http_rejected", "http://api.mangadex.org/manga/x/aggregate", true},
		{"unlisted_host_rejected", "https://evil.example.com/payload", true},
		{"literal_loopback_rejected", "https://127.0.0.1/internal", true},
		{"literal_private_rejected", "https://10.0.0.5/internal", true},
		{"malformed_url_rejected", "https://[::1", true},
	}

	var su scraper.SafeURL
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := su.Validate(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
