// Package uri parses the x402://<action>/<scheme>://<path> addressing scheme
// used to name discoverable and subscribable payable resources.
package uri

import (
	"fmt"
	"strings"

	"github.com/vitwit/x402pay/types"
)

// Prefix is the literal outer scheme every x402 URI starts with.
const Prefix = "x402://"

// Action is what the client intends to do with the named resource.
type Action int

const (
	ActionDiscover Action = iota
	ActionSubscribe
	ActionUnsubscribe
	ActionOnce
)

var actionTokens = map[string]Action{
	"discover":    ActionDiscover,
	"subscribe":   ActionSubscribe,
	"unsubscribe": ActionUnsubscribe,
	"once":        ActionOnce,
}

func (a Action) String() string {
	switch a {
	case ActionDiscover:
		return "discover"
	case ActionSubscribe:
		return "subscribe"
	case ActionUnsubscribe:
		return "unsubscribe"
	case ActionOnce:
		return "once"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Scheme is the transport of the wrapped resource URI.
type Scheme int

const (
	SchemeHTTPS Scheme = iota
	SchemeA2A
	SchemeMCP
)

// schemePrefixes is checked in order; the first match wins.
var schemePrefixes = []struct {
	prefix string
	scheme Scheme
}{
	{"https://", SchemeHTTPS},
	{"a2a://", SchemeA2A},
	{"mcp://", SchemeMCP},
}

func (s Scheme) String() string {
	switch s {
	case SchemeHTTPS:
		return "https"
	case SchemeA2A:
		return "a2a"
	case SchemeMCP:
		return "mcp"
	}
	return fmt.Sprintf("Scheme(%d)", int(s))
}

// Prefix returns the "<scheme>://" string the inner URI starts with.
func (s Scheme) Prefix() string {
	return s.String() + "://"
}

var (
	ErrMissingPrefix = &types.X402Error{
		Kind:    types.KindMalformedInput,
		Code:    "INVALID_X402_URI",
		Message: "an x402 URI must start with `x402://`",
	}
	ErrMissingAction = &types.X402Error{
		Kind:    types.KindMalformedInput,
		Code:    "MISSING_X402_URI_ACTION",
		Message: "an x402 URI must have an action after `x402://`",
	}
	ErrInvalidAction = &types.X402Error{
		Kind:    types.KindMalformedInput,
		Code:    "INVALID_X402_URI_ACTION",
		Message: "the action in the URI is not one of discover, subscribe, unsubscribe or once",
	}
	ErrUnsupportedScheme = &types.X402Error{
		Kind:    types.KindMalformedInput,
		Code:    types.ErrUnsupportedScheme,
		Message: "only `https://`, `a2a://` and `mcp://` URIs are supported after the action",
	}
)

// X402Uri is a parsed x402 URI. It is a comparable value type.
type X402Uri struct {
	Scheme Scheme
	Action Action
	// URI is the wrapped resource URI, kept verbatim.
	URI string
}

// Parse validates raw against the x402 URI grammar. The trailing path is
// opaque: it is neither percent-decoded nor otherwise checked.
func Parse(raw string) (X402Uri, error) {
	if !strings.HasPrefix(raw, Prefix) {
		return X402Uri{}, ErrMissingPrefix
	}

	actionRaw, rest, found := strings.Cut(strings.TrimPrefix(raw, Prefix), "/")
	if !found {
		return X402Uri{}, ErrMissingAction
	}

	action, err := ParseAction(actionRaw)
	if err != nil {
		return X402Uri{}, err
	}

	scheme, err := ParseScheme(rest)
	if err != nil {
		return X402Uri{}, err
	}

	return X402Uri{Scheme: scheme, Action: action, URI: rest}, nil
}

// ParseAction matches a single action token, case-sensitively.
func ParseAction(token string) (Action, error) {
	action, ok := actionTokens[token]
	if !ok {
		return 0, ErrInvalidAction
	}
	return action, nil
}

// ParseScheme returns the scheme whose prefix inner starts with.
func ParseScheme(inner string) (Scheme, error) {
	for _, p := range schemePrefixes {
		if strings.HasPrefix(inner, p.prefix) {
			return p.scheme, nil
		}
	}
	return 0, ErrUnsupportedScheme
}

// String rebuilds the x402 URI.
func (u X402Uri) String() string {
	return Prefix + u.Action.String() + "/" + u.URI
}
