package bridge

import "strings"

// Matcher recognizes locally addressed recipients: addresses whose domain is
// one of the configured local domains. Matching is exact on the full domain
// portion after "@", case-insensitive.
type Matcher struct {
	domains map[string]struct{}
}

// NewMatcher creates a Matcher for the given domain set. Domains are
// normalized to lower case.
func NewMatcher(domains []string) *Matcher {
	set := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		set[strings.ToLower(d)] = struct{}{}
	}
	return &Matcher{domains: set}
}

// LocalPart returns the local part of addr if its domain is a configured
// local domain. The second return value is false when the address has no
// domain or the domain is not local.
func (m *Matcher) LocalPart(addr string) (string, bool) {
	at := strings.LastIndex(addr, "@")
	if at <= 0 {
		return "", false
	}
	domain := strings.ToLower(addr[at+1:])
	if _, ok := m.domains[domain]; !ok {
		return "", false
	}
	return addr[:at], true
}
