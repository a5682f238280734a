package timeauth

import (
	"fmt"
	"net/http"
	"time"
)

// Options selects and configures a key authority.
type Options struct {
	// Kind is "shutter" (default) or "drand".
	Kind            string
	ShutterAPIBase  string
	ShutterRegistry string
	DrandBaseURL    string
	DrandChainHash  string
	Timeout         time.Duration
	// HTTPClient defaults to a client sharing http.DefaultTransport.
	HTTPClient HTTPDoer
}

// NewAuthority creates the configured production key authority.
// This centralizes authority construction.
func NewAuthority(opts Options) (Authority, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	switch opts.Kind {
	case "", "shutter":
		base := opts.ShutterAPIBase
		if base == "" {
			base = DefaultShutterAPIBase
		}
		registry := opts.ShutterRegistry
		if registry == "" {
			registry = DefaultShutterRegistry
		}
		return NewShutterAuthority(base, registry, client, timeout), nil

	case "drand":
		base := opts.DrandBaseURL
		if base == "" {
			base = DefaultDrandBaseURL
		}
		return NewDrandAuthorityWithDeps(base, opts.DrandChainHash, client, nil, timeout), nil

	default:
		return nil, fmt.Errorf("unknown authority %q (expected shutter or drand)", opts.Kind)
	}
}
