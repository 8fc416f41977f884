package toolbase

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

// labHostnameLabel matches a conservative hostname label: alphanumerics
// and hyphens, not starting or ending with a hyphen, 1-63 characters.
var labHostnameLabel = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?$`)

// labSuffix is the only hostname domain the target policy authorizes.
const labSuffix = ".lab.internal"

var rfc1918Nets = func() []*net.IPNet {
	cidrs := []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "127.0.0.0/8"}
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err) // static CIDRs, cannot fail
		}
		nets = append(nets, n)
	}
	return nets
}()

// IsPrivateOrLoopback reports whether ip falls within RFC1918, IPv4
// loopback, or IPv6 loopback/unique-local space.
func IsPrivateOrLoopback(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsLoopback() {
		return true
	}
	if ip4 := ip.To4(); ip4 != nil {
		for _, n := range rfc1918Nets {
			if n.Contains(ip4) {
				return true
			}
		}
		return false
	}
	// IPv6 unique local (fc00::/7).
	return len(ip) == net.IPv6len && ip[0]&0xfe == 0xfc
}

// IsLabHostname reports whether host is a single conservative label
// suffixed with ".lab.internal".
func IsLabHostname(host string) bool {
	label, ok := strings.CutSuffix(host, labSuffix)
	if !ok || label == "" {
		return false
	}
	return labHostnameLabel.MatchString(label)
}

// ValidateHostOrCIDR checks target is either a bare IPv4/IPv6 address, a
// CIDR network, entirely within the private/loopback range, or a
// ".lab.internal" hostname. It returns the number of addresses the
// target denotes (1 for a bare host) for callers enforcing a network
// size ceiling.
func ValidateHostOrCIDR(target string) (addressCount uint64, err error) {
	if target == "" {
		return 0, fmt.Errorf("%w: empty target", ErrTargetPolicy)
	}

	if ip, ipnet, cidrErr := net.ParseCIDR(target); cidrErr == nil {
		if !IsPrivateOrLoopback(ip) {
			return 0, fmt.Errorf("%w: %q is not within RFC1918/loopback", ErrTargetPolicy, target)
		}
		ones, bits := ipnet.Mask.Size()
		return uint64(1) << uint(bits-ones), nil
	}

	if ip := net.ParseIP(target); ip != nil {
		if !IsPrivateOrLoopback(ip) {
			return 0, fmt.Errorf("%w: %q is not within RFC1918/loopback", ErrTargetPolicy, target)
		}
		return 1, nil
	}

	if IsLabHostname(target) {
		return 1, nil
	}

	return 0, fmt.Errorf("%w: %q is neither a private IP/CIDR nor a .lab.internal hostname", ErrTargetPolicy, target)
}

// ValidateHTTPTarget checks target is an http(s) URL whose host is
// either a literal private/loopback IP or a ".lab.internal" hostname.
// Per spec.md §4.3.1(1)(c) the host must "resolve to" the private
// constraint; this implementation checks the literal host only (see
// DESIGN.md for the reasoning — a live DNS resolution at validation
// time would make the execution core's admission decision depend on
// an external, unauthenticated, cacheless network call).
func ValidateHTTPTarget(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("%w: %q is not a valid URL: %v", ErrTargetPolicy, target, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q must use http or https", ErrTargetPolicy, target)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: %q has no host", ErrTargetPolicy, target)
	}
	if ip := net.ParseIP(host); ip != nil {
		if !IsPrivateOrLoopback(ip) {
			return fmt.Errorf("%w: %q host is not within RFC1918/loopback", ErrTargetPolicy, target)
		}
		return nil
	}
	if IsLabHostname(host) {
		return nil
	}
	return fmt.Errorf("%w: %q host must be RFC1918/loopback or end in %s", ErrTargetPolicy, target, labSuffix)
}

// DNSNameValidator checks target is a bare ".lab.internal" DNS name,
// used by enumerator tools running in DNS mode (no URL scheme).
func ValidateLabDNSName(target string) error {
	if !IsLabHostname(target) {
		return fmt.Errorf("%w: %q must end in %s", ErrTargetPolicy, target, labSuffix)
	}
	return nil
}

// hostPortServicePattern matches "host:service" or "host:port:service".
var hostPortServicePattern = regexp.MustCompile(`^([^:/]+)(?::(\d{1,5}))?:([A-Za-z][A-Za-z0-9_-]*)$`)

// ValidateHostPortServiceTarget checks target matches one of the three
// shapes the credential tester accepts: "host:service",
// "host:port:service", or "service://host[:port]", with host
// authorized under the private/loopback/.lab.internal policy and
// service drawn from allowedServices.
func ValidateHostPortServiceTarget(target string, allowedServices map[string]bool) (host, service string, err error) {
	if u, uerr := url.Parse(target); uerr == nil && u.Scheme != "" && u.Host != "" {
		host = u.Hostname()
		service = strings.ToLower(u.Scheme)
	} else {
		m := hostPortServicePattern.FindStringSubmatch(target)
		if m == nil {
			return "", "", fmt.Errorf("%w: %q does not match host:service, host:port:service, or service://host[:port]", ErrTargetPolicy, target)
		}
		host = m[1]
		service = strings.ToLower(m[3])
	}

	if !allowedServices[service] {
		return "", "", fmt.Errorf("%w: service %q is not in the allowlist", ErrTargetPolicy, service)
	}

	if ip := net.ParseIP(host); ip != nil {
		if !IsPrivateOrLoopback(ip) {
			return "", "", fmt.Errorf("%w: host %q is not within RFC1918/loopback", ErrTargetPolicy, host)
		}
		return host, service, nil
	}
	if IsLabHostname(host) {
		return host, service, nil
	}
	return "", "", fmt.Errorf("%w: host %q must be RFC1918/loopback or end in %s", ErrTargetPolicy, host, labSuffix)
}
