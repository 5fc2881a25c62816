package proxy

import (
	"net"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// DefaultPseudonym identifies this proxy in Via and Forwarded "by" when no
// other name is configured. The leading underscore marks it as an obfuscated
// identifier per RFC 7239 section 6.3.
const DefaultPseudonym = "_webdev"

// ForwardedElement is one hop of a Forwarded header.
type ForwardedElement struct {
	For   string
	By    string
	Proto string
	Host  string
}

// ForwardedChain is the ordered list of hops recorded in Forwarded headers,
// oldest first.
type ForwardedChain []ForwardedElement

// String renders e as a forwarded-element. Empty parameters are omitted;
// a missing "for" is written as "unknown".
func (e ForwardedElement) String() string {
	var pairs []string
	forNode := e.For
	if forNode == "" {
		forNode = "unknown"
	}
	pairs = append(pairs, "for="+formatNode(forNode))
	if e.Host != "" {
		pairs = append(pairs, "host="+quoteIfNeeded(e.Host))
	}
	if e.Proto != "" {
		pairs = append(pairs, "proto="+quoteIfNeeded(e.Proto))
	}
	if e.By != "" {
		pairs = append(pairs, "by="+formatNode(e.By))
	}
	return strings.Join(pairs, ";")
}

// Append returns a new chain with e added as the most recent hop.
func (c ForwardedChain) Append(e ForwardedElement) ForwardedChain {
	out := make(ForwardedChain, len(c), len(c)+1)
	copy(out, c)
	return append(out, e)
}

// ParseForwarded parses the values of one or more Forwarded header lines.
// Empty list elements are skipped; anything else that does not follow the
// RFC 7239 grammar is rejected.
func ParseForwarded(values []string) (ForwardedChain, error) {
	var chain ForwardedChain
	for _, line := range values {
		elements, err := splitOutsideQuotes(line, ',')
		if err != nil {
			return nil, invalidHeader(HeaderForwarded, line, err.Error())
		}
		for _, raw := range elements {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			e, err := parseForwardedElement(raw)
			if err != nil {
				return nil, invalidHeader(HeaderForwarded, line, err.Error())
			}
			chain = append(chain, e)
		}
	}
	return chain, nil
}

func validateForwarded(values []string) error {
	_, err := ParseForwarded(values)
	return err
}

func parseForwardedElement(raw string) (ForwardedElement, error) {
	var e ForwardedElement
	pairs, err := splitOutsideQuotes(raw, ';')
	if err != nil {
		return e, err
	}

	seen := make(map[string]bool, len(pairs))
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return e, errorString("parameter without value: " + pair)
		}
		name = strings.ToLower(name)
		if !isToken(name) {
			return e, errorString("invalid parameter name: " + name)
		}
		if seen[name] {
			return e, errorString("duplicate parameter: " + name)
		}
		seen[name] = true

		v, err := parseValue(value)
		if err != nil {
			return e, err
		}
		switch name {
		case "for":
			e.For = v
		case "by":
			e.By = v
		case "proto":
			e.Proto = v
		case "host":
			e.Host = v
		}
	}
	return e, nil
}

// parseValue accepts a token or a quoted-string and returns the unquoted text.
func parseValue(v string) (string, error) {
	if v == "" {
		return "", errorString("empty parameter value")
	}
	if v[0] != '"' {
		if !isToken(v) {
			return "", errorString("invalid token value: " + v)
		}
		return v, nil
	}
	if len(v) < 2 || v[len(v)-1] != '"' {
		return "", errorString("unterminated quoted string")
	}
	var sb strings.Builder
	inner := v[1 : len(v)-1]
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		switch {
		case c == '\\':
			i++
			if i == len(inner) {
				return "", errorString("dangling escape in quoted string")
			}
			sb.WriteByte(inner[i])
		case c == '"':
			return "", errorString("unescaped quote in quoted string")
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), nil
}

// splitOutsideQuotes splits s on sep, ignoring separators inside
// quoted-strings.
func splitOutsideQuotes(s string, sep byte) ([]string, error) {
	var parts []string
	start := 0
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case inQuote && c == '\\':
			i++
		case c == '"':
			inQuote = !inQuote
		case !inQuote && c == sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	if inQuote {
		return nil, errorString("unterminated quoted string")
	}
	return append(parts, s[start:]), nil
}

// validateXForwardedFor accepts comma-separated IP addresses, optionally with
// a port, and the literal "unknown".
func validateXForwardedFor(values []string) error {
	for _, line := range values {
		for _, entry := range strings.Split(line, ",") {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			if strings.EqualFold(entry, "unknown") {
				continue
			}
			host := entry
			if h, _, err := net.SplitHostPort(entry); err == nil {
				host = h
			}
			if net.ParseIP(strings.Trim(host, "[]")) == nil {
				return invalidHeader(HeaderXForwardedFor, line, "not an IP address: "+entry)
			}
		}
	}
	return nil
}

// formatNode renders a node identifier, bracketing and quoting IPv6
// addresses as RFC 7239 requires.
func formatNode(node string) string {
	if ip := net.ParseIP(node); ip != nil && ip.To4() == nil {
		return `"[` + node + `]"`
	}
	return quoteIfNeeded(node)
}

func quoteIfNeeded(v string) string {
	if isToken(v) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(v) + `"`
}

func isToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !httpguts.IsTokenRune(r) {
			return false
		}
	}
	return true
}

type errorString string

func (e errorString) Error() string { return string(e) }
