package routing

import (
	"fmt"
	"strings"
)

// Event is the routing query issued by the signaling proxy for every inbound
// call leg. Field names follow the proxy's wire format.
type Event struct {
	Event      string `json:"event"`
	SourceIP   string `json:"source_ip"`
	SourcePort int    `json:"source_port"`
	CallID     string `json:"call_id"`
	FromName   string `json:"from_name"`
	FromURI    string `json:"from_uri"`
	FromTag    string `json:"from_tag"`
	ToName     string `json:"to_name"`
	ToURI      string `json:"to_uri"`
	ToTag      string `json:"to_tag"`
}

// Validate checks the fields the decision depends on. The proxy always sends
// the full set; anything missing here means the request is malformed.
func (e *Event) Validate() error {
	if e.CallID == "" {
		return fmt.Errorf("%w: missing call_id", ErrMalformedInput)
	}
	if e.ToURI == "" {
		return fmt.Errorf("%w: missing to_uri", ErrMalformedInput)
	}
	if _, _, err := SplitURI(e.ToURI); err != nil {
		return err
	}
	return nil
}

// SplitURI extracts the user and host parts of a SIP URI. It accepts both
// bare "user@host" addresses and full "sip:user@host:port;params" URIs, with
// or without angle brackets. The user part may be empty; the host may not.
func SplitURI(uri string) (user, host string, err error) {
	s := strings.TrimSpace(uri)
	if i := strings.IndexByte(s, '<'); i >= 0 {
		s = s[i+1:]
		if j := strings.IndexByte(s, '>'); j >= 0 {
			s = s[:j]
		}
	}
	s = strings.TrimPrefix(s, "sip:")
	s = strings.TrimPrefix(s, "sips:")

	// Drop URI parameters and headers.
	if i := strings.IndexAny(s, ";?"); i >= 0 {
		s = s[:i]
	}

	if i := strings.LastIndexByte(s, '@'); i >= 0 {
		user, host = s[:i], s[i+1:]
	} else {
		host = s
	}

	// Drop the port from the host part.
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}

	if host == "" {
		return "", "", fmt.Errorf("%w: no host in uri %q", ErrMalformedInput, uri)
	}
	return user, host, nil
}
