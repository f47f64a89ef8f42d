package shared

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"APPROVAL_BACKEND", "PROVIDER_TIMEOUT_SECONDS", "CACHE_TTL_SECONDS", "REDIS_ADDR"} {
		t.Setenv(k, "")
	}
	c := Load()
	if c.ApprovalBackend != BackendMemory {
		t.Fatalf("backend = %q", c.ApprovalBackend)
	}
	if c.ProviderTimeout != 8*time.Second {
		t.Fatalf("provider timeout = %s", c.ProviderTimeout)
	}
	if c.RedisAddr != "" {
		t.Fatalf("redis must be opt-in, got %q", c.RedisAddr)
	}
}

func TestLoad_OverridesAndBadValues(t *testing.T) {
	t.Setenv("APPROVAL_BACKEND", "MySQL")
	t.Setenv("PROVIDER_TIMEOUT_SECONDS", "3")
	t.Setenv("CACHE_TTL_SECONDS", "soon")
	c := Load()
	if c.ApprovalBackend != BackendMySQL {
		t.Fatalf("backend = %q", c.ApprovalBackend)
	}
	if c.ProviderTimeout != 3*time.Second {
		t.Fatalf("provider timeout = %s", c.ProviderTimeout)
	}
	if c.CacheTTL != 300*time.Second {
		t.Fatalf("bad ttl must fall back to default, got %s", c.CacheTTL)
	}
	if !hasWarning(c, "CACHE_TTL_SECONDS") {
		t.Fatalf("bad ttl must be reported, got %q", c.Warnings)
	}

	t.Setenv("APPROVAL_BACKEND", "etcd")
	c = Load()
	if c.ApprovalBackend != BackendMemory {
		t.Fatalf("unknown backend must fall back to memory, got %q", c.ApprovalBackend)
	}
	if !hasWarning(c, "etcd") {
		t.Fatalf("unknown backend must be reported, got %q", c.Warnings)
	}
}

func TestLoad_MissingCredentialsAreWarnings(t *testing.T) {
	t.Setenv("HOSTAWAY_ACCOUNT_ID", "61148")
	t.Setenv("HOSTAWAY_API_KEY", "secret")
	t.Setenv("PLACES_API_KEY", "")
	c := Load()
	if hasWarning(c, "HOSTAWAY") {
		t.Fatalf("hostaway is configured, got %q", c.Warnings)
	}
	if !hasWarning(c, "PLACES_API_KEY") {
		t.Fatalf("missing places key must be reported, got %q", c.Warnings)
	}
}

func hasWarning(c Config, sub string) bool {
	for _, w := range c.Warnings {
		if strings.Contains(w, sub) {
			return true
		}
	}
	return false
}
