package pluto

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/hb9tf/plutoiq/sdr"
)

const infoAlias = "iio_info"

var bracketRE = regexp.MustCompile(`\[([^\]]*)\]`)

// DiscoveryError reports that no device URI could be determined.
type DiscoveryError struct {
	Reason string
	Err    error
}

func (e *DiscoveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("device discovery failed: %s: %s", e.Reason, e.Err)
	}
	return fmt.Sprintf("device discovery failed: %s", e.Reason)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// Discover scans for IIO contexts and returns the preferred URI.
func Discover(ctx context.Context) (string, error) {
	return discover(ctx, sdr.Run)
}

func discover(ctx context.Context, run runFunc) (string, error) {
	out, err := run(ctx, infoAlias, "-s")
	if err != nil {
		return "", &DiscoveryError{Reason: "unable to scan for IIO contexts", Err: err}
	}
	return SelectURI(out)
}

// ParseURIs returns all usb: and ip: URIs listed in brackets, in order of appearance.
func ParseURIs(out string) []string {
	var uris []string
	for _, m := range bracketRE.FindAllStringSubmatch(out, -1) {
		for _, tok := range strings.Split(m[1], ",") {
			tok = strings.TrimSpace(tok)
			if strings.HasPrefix(tok, "usb:") || strings.HasPrefix(tok, "ip:") {
				uris = append(uris, tok)
			}
		}
	}
	return uris
}

// SelectURI picks the first usb: URI, else the first ip: URI from a context listing.
func SelectURI(out string) (string, error) {
	uris := ParseURIs(out)
	if len(uris) == 0 {
		return "", &DiscoveryError{Reason: "no usb: or ip: URI found"}
	}
	for _, prefix := range []string{"usb:", "ip:"} {
		for _, u := range uris {
			if strings.HasPrefix(u, prefix) {
				return u, nil
			}
		}
	}
	return uris[0], nil
}
