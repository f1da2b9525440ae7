package criteria

import "net/netip"

// rfc1918 holds the private IPv4 network ranges. A CIDR wholly inside one of
// these can never admit traffic from the public internet, so it passes CIDR
// validity regardless of the configured whitelist.
var rfc1918 = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
}

// cidrInWhitelist reports whether cidr is an acceptable source or
// destination range. Three tiers, cheapest first:
//
//  1. exact string match against the whitelist
//  2. private-network shortcut: the range sits inside an RFC1918 block
//  3. containment or masked equivalence against each whitelist entry
//
// An unparseable CIDR is never acceptable.
func cidrInWhitelist(cidr string, whitelist []string) bool {
	for _, allowed := range whitelist {
		if cidr == allowed {
			return true
		}
	}

	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return false
	}

	for _, private := range rfc1918 {
		if cidrContains(private, prefix) {
			return true
		}
	}

	for _, allowed := range whitelist {
		parent, err := netip.ParsePrefix(allowed)
		if err != nil {
			continue
		}
		if cidrContains(parent, prefix) || cidrsEquivalent(parent, prefix) {
			return true
		}
	}
	return false
}

// cidrContains reports whether child is wholly inside parent.
func cidrContains(parent, child netip.Prefix) bool {
	if parent.Addr().Is4() != child.Addr().Is4() {
		return false
	}
	return parent.Bits() <= child.Bits() && parent.Contains(child.Addr())
}

// cidrsEquivalent reports whether two prefixes describe the same effective
// network once their host bits are masked off.
func cidrsEquivalent(a, b netip.Prefix) bool {
	return a.Bits() == b.Bits() && a.Masked() == b.Masked()
}

// protocolMatches reports whether an IP permission's protocol covers the
// protocol a rule targets. "-1" is the provider's wildcard for all protocols.
func protocolMatches(protocol, want string) bool {
	return protocol == want || protocol == "-1"
}

// portInRange reports whether port falls inside a permission's port range.
// Nil bounds mean the permission covers all ports (wildcard protocols omit
// the range entirely).
func portInRange(from, to *int32, port int32) bool {
	if from == nil || to == nil {
		return true
	}
	return *from <= port && port <= *to
}
