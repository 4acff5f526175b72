// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package transport

import (
	"errors"
	"fmt"
)

// Names of the known strategies.
const (
	// HTTP selects HTTPTransport, the full-featured client.
	HTTP = "http"

	// Raw selects RawTransport, the bare-socket fallback.
	Raw = "raw"
)

// Strategy describes which transport implementation to use.  This
// implements the flag.Value interface, and so a typical use is
//
//     func main() {
//         strategy := transport.Strategy{Implementation: transport.HTTP}
//         flag.Var(&strategy, "transport", "http or raw")
//         flag.Parse()
//         t := strategy.Transport(nil)
//     }
//
// The zero value selects HTTP.
type Strategy struct {
	// Implementation holds the name of the implementation; for
	// instance, "raw".
	Implementation string
}

// Transport creates a new transport of the selected kind.  dial, if
// non-nil, overrides how connections are opened.
//
// If s.Implementation does not match a known implementation, panics.
// It is assumed that Set() has validated it.
func (s Strategy) Transport(dial DialFunc) Transport {
	switch s.name() {
	case HTTP:
		return NewHTTPTransport(dial)
	case Raw:
		return NewRawTransport(dial)
	default:
		panic(errors.New("unknown transport strategy " + s.Implementation))
	}
}

func (s Strategy) name() string {
	if s.Implementation == "" {
		return HTTP
	}
	return s.Implementation
}

// Validate returns an error if s does not name a known strategy.
func (s Strategy) Validate() error {
	switch s.name() {
	case HTTP, Raw:
		return nil
	default:
		return fmt.Errorf("unknown transport strategy %q (want %q or %q)", s.Implementation, HTTP, Raw)
	}
}

// String renders the strategy name.
func (s *Strategy) String() string {
	return s.name()
}

// Set parses a strategy name into an existing strategy.  This is
// part of the flag.Value interface.  If Set returns a nil error then
// Transport() will return successfully.
func (s *Strategy) Set(param string) error {
	candidate := Strategy{Implementation: param}
	if err := candidate.Validate(); err != nil {
		return err
	}
	*s = candidate
	return nil
}

// UnmarshalYAML reads a strategy from a YAML scalar, validating it.
func (s *Strategy) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	return s.Set(name)
}

// MarshalYAML writes the strategy as its name.
func (s Strategy) MarshalYAML() (interface{}, error) {
	return s.name(), nil
}
