package audit

import (
	"fmt"
	"strings"

	"github.com/mssola/useragent"
)

// ParseUserAgent turns a raw User-Agent header into a short human-readable
// device summary for audit entries, e.g. "Chrome 120 on Mac OS X".
func ParseUserAgent(rawUA string) string {
	if rawUA == "" {
		return "Unknown Device"
	}

	ua := useragent.New(rawUA)
	browser, version := ua.Browser()
	os := ua.OS()

	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}

	// Major version only; full versions churn too fast to be useful.
	if idx := strings.Index(version, "."); idx != -1 {
		version = version[:idx]
	}

	if version == "" {
		return fmt.Sprintf("%s on %s", browser, os)
	}
	return fmt.Sprintf("%s %s on %s", browser, version, os)
}
