package routing

import (
	"fmt"
)

// Transaction-timer values understood by the signaling proxy as
// retransmission and failover controls.
const (
	branchFlags = 8
	frTimer     = 5000
	frInvTimer  = 30000
)

// Response is the full reply to a routing query. RTJSON is nil when no
// routing entity matched.
type Response struct {
	Success bool    `json:"success"`
	RTJSON  *RTJSON `json:"rtjson"`
}

// RTJSON is the routing document the proxy feeds to its serial-forking logic.
type RTJSON struct {
	Version string  `json:"version"`
	Routing string  `json:"routing"`
	Routes  []Route `json:"routes"`
}

// Route is a single hop. DID-routed hops carry the full target in "uri";
// domain-routed hops carry only the endpoint address in "dst_uri" and the
// proxy preserves the original user part.
type Route struct {
	URI         string  `json:"uri,omitempty"`
	DstURI      string  `json:"dst_uri,omitempty"`
	Path        string  `json:"path"`
	Socket      string  `json:"socket"`
	Headers     Headers `json:"headers"`
	BranchFlags int     `json:"branch_flags"`
	FrTimer     int     `json:"fr_timer"`
	FrInvTimer  int     `json:"fr_inv_timer"`
}

// Headers echoes the original from/to identities back to the proxy.
type Headers struct {
	From NameAddr `json:"from"`
	To   NameAddr `json:"to"`
	Extra string  `json:"extra"`
}

// NameAddr is a display-name / URI pair.
type NameAddr struct {
	Display string `json:"display"`
	URI     string `json:"uri"`
}

// NoMatchResponse is the negative reply: a well-formed object, never a raw
// fault.
func NoMatchResponse() *Response {
	return &Response{Success: false, RTJSON: nil}
}

// BuildResponse assembles the rtjson document for a positive decision.
// Builder failures are request errors; they are never downgraded to a
// no-match response.
func BuildResponse(decision *Decision, ev *Event) (*Response, error) {
	if decision.IPBX == nil || decision.IPBX.IPFqdn == "" {
		return nil, fmt.Errorf("%w: decision for call %s", ErrBadEndpoint, ev.CallID)
	}

	port := decision.IPBX.Port
	if port == 0 {
		port = 5060
	}

	route := Route{
		Path:   "",
		Socket: "",
		Headers: Headers{
			From:  NameAddr{Display: ev.FromName, URI: ev.FromURI},
			To:    NameAddr{Display: ev.ToName, URI: ev.ToURI},
			Extra: "",
		},
		BranchFlags: branchFlags,
		FrTimer:     frTimer,
		FrInvTimer:  frInvTimer,
	}

	switch decision.Kind {
	case DecisionDomain:
		route.DstURI = fmt.Sprintf("sip:%s:%d", decision.IPBX.IPFqdn, port)
	case DecisionDID:
		if decision.Number == "" {
			return nil, fmt.Errorf("%w: did decision without a number for call %s", ErrBadEndpoint, ev.CallID)
		}
		route.URI = fmt.Sprintf("sip:%s@%s:%d", decision.Number, decision.IPBX.IPFqdn, port)
	default:
		return nil, fmt.Errorf("unknown decision kind %d", decision.Kind)
	}

	return &Response{
		Success: true,
		RTJSON: &RTJSON{
			Version: "1.0",
			Routing: "serial",
			Routes:  []Route{route},
		},
	}, nil
}
