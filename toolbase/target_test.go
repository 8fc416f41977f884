package toolbase

import (
	"net"
	"testing"
)

func TestIsPrivateOrLoopback(t *testing.T) {
	cases := []struct {
		ip   string
		want bool
	}{
		{"10.0.0.1", true},
		{"10.255.255.255", true},
		{"172.16.0.1", true},
		{"172.31.255.254", true},
		{"192.168.1.1", true},
		{"127.0.0.1", true},
		{"8.8.8.8", false},
		{"172.32.0.1", false},
		{"1.1.1.1", false},
		{"::1", true},
		{"fc00::1", true},
		{"2001:4860:4860::8888", false},
	}
	for _, c := range cases {
		got := IsPrivateOrLoopback(net.ParseIP(c.ip))
		if got != c.want {
			t.Errorf("IsPrivateOrLoopback(%q) = %v, want %v", c.ip, got, c.want)
		}
	}
}

func TestIsLabHostname(t *testing.T) {
	cases := []struct {
		host string
		want bool
	}{
		{"db1.lab.internal", true},
		{"web-01.lab.internal", true},
		{"a.lab.internal", true},
		{".lab.internal", false},
		{"-bad.lab.internal", false},
		{"bad-.lab.internal", false},
		{"example.com", false},
		{"lab.internal", false},
	}
	for _, c := range cases {
		if got := IsLabHostname(c.host); got != c.want {
			t.Errorf("IsLabHostname(%q) = %v, want %v", c.host, got, c.want)
		}
	}
}

func TestValidateHostOrCIDR(t *testing.T) {
	t.Run("private bare IP", func(t *testing.T) {
		count, err := ValidateHostOrCIDR("10.0.0.5")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 1 {
			t.Errorf("count = %d, want 1", count)
		}
	})

	t.Run("private CIDR", func(t *testing.T) {
		count, err := ValidateHostOrCIDR("10.0.0.0/29")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 8 {
			t.Errorf("count = %d, want 8", count)
		}
	})

	t.Run("public IP rejected", func(t *testing.T) {
		if _, err := ValidateHostOrCIDR("8.8.8.8"); err == nil {
			t.Error("expected error for public IP")
		}
	})

	t.Run("lab hostname", func(t *testing.T) {
		count, err := ValidateHostOrCIDR("db1.lab.internal")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 1 {
			t.Errorf("count = %d, want 1", count)
		}
	})

	t.Run("empty target rejected", func(t *testing.T) {
		if _, err := ValidateHostOrCIDR(""); err == nil {
			t.Error("expected error for empty target")
		}
	})

	t.Run("unrelated hostname rejected", func(t *testing.T) {
		if _, err := ValidateHostOrCIDR("example.com"); err == nil {
			t.Error("expected error for non-lab hostname")
		}
	})
}

func TestValidateHTTPTarget(t *testing.T) {
	t.Run("private IP URL accepted", func(t *testing.T) {
		if err := ValidateHTTPTarget("http://10.0.0.1/"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("lab hostname URL accepted", func(t *testing.T) {
		if err := ValidateHTTPTarget("https://app.lab.internal/path"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("public host rejected", func(t *testing.T) {
		if err := ValidateHTTPTarget("https://example.com/"); err == nil {
			t.Error("expected error for public host")
		}
	})

	t.Run("non-http scheme rejected", func(t *testing.T) {
		if err := ValidateHTTPTarget("ftp://10.0.0.1/"); err == nil {
			t.Error("expected error for non-http scheme")
		}
	})

	t.Run("malformed URL rejected", func(t *testing.T) {
		if err := ValidateHTTPTarget("://bad"); err == nil {
			t.Error("expected error for malformed URL")
		}
	})
}

func TestValidateLabDNSName(t *testing.T) {
	if err := ValidateLabDNSName("internal-db.lab.internal"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateLabDNSName("example.com"); err == nil {
		t.Error("expected error for non-lab name")
	}
}

func TestValidateHostPortServiceTarget(t *testing.T) {
	services := map[string]bool{"ssh": true, "http": true}

	t.Run("host:service", func(t *testing.T) {
		host, service, err := ValidateHostPortServiceTarget("10.0.0.1:ssh", services)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if host != "10.0.0.1" || service != "ssh" {
			t.Errorf("got host=%q service=%q", host, service)
		}
	})

	t.Run("host:port:service", func(t *testing.T) {
		host, service, err := ValidateHostPortServiceTarget("10.0.0.1:2222:ssh", services)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if host != "10.0.0.1" || service != "ssh" {
			t.Errorf("got host=%q service=%q", host, service)
		}
	})

	t.Run("service://host", func(t *testing.T) {
		host, service, err := ValidateHostPortServiceTarget("http://10.0.0.1", services)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if host != "10.0.0.1" || service != "http" {
			t.Errorf("got host=%q service=%q", host, service)
		}
	})

	t.Run("disallowed service rejected", func(t *testing.T) {
		if _, _, err := ValidateHostPortServiceTarget("10.0.0.1:telnet", services); err == nil {
			t.Error("expected error for disallowed service")
		}
	})

	t.Run("public host rejected", func(t *testing.T) {
		if _, _, err := ValidateHostPortServiceTarget("8.8.8.8:ssh", services); err == nil {
			t.Error("expected error for public host")
		}
	})

	t.Run("malformed target rejected", func(t *testing.T) {
		if _, _, err := ValidateHostPortServiceTarget("not-a-valid-target", services); err == nil {
			t.Error("expected error for malformed target")
		}
	})
}
