package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// AllowedVideoHosts is the exact set of hosts a lesson video link may use.
var AllowedVideoHosts = []string{"youtube.com", "www.youtube.com", "youtu.be"}

// VideoHostError reports a video link whose host is not allowed.
type VideoHostError struct {
	Host string
}

func (e *VideoHostError) Error() string {
	if e.Host == "" {
		return "Video link has no host. Allowed hosts: " + strings.Join(AllowedVideoHosts, ", ")
	}
	return fmt.Sprintf("Video host %q is not allowed. Allowed hosts: %s", e.Host, strings.Join(AllowedVideoHosts, ", "))
}

// ValidateVideoLink checks only the host of raw against AllowedVideoHosts.
// The host is compared exactly as written, so case, ports and userinfo all
// make it fail. Scheme, path and query are not inspected.
func ValidateVideoLink(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return &VideoHostError{}
	}

	host := u.Host
	if u.User != nil {
		return &VideoHostError{Host: u.User.String() + "@" + host}
	}
	for _, allowed := range AllowedVideoHosts {
		if host == allowed {
			return nil
		}
	}

	return &VideoHostError{Host: host}
}
