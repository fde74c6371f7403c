package proxy

import (
	"slices"
	"testing"
)

func TestGetProxyRotates(t *testing.T) {
	t.Parallel()

	m, err := NewManager([]string{"http://p1:8000", "http://user:pass@p2:8000"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for i := 0; i < 3; i++ {
		got = append(got, m.GetProxy().Host)
	}
	if want := []string{"p1:8000", "p2:8000", "p1:8000"}; !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestNoProxy(t *testing.T) {
	t.Parallel()

	m, err := NewManager(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if u, err := m.Proxy(nil); u != nil || err != nil {
		t.Errorf("expected direct connection, got %v %v", u, err)
	}
	if ua := m.GetUserAgent(); !slices.Contains(DefaultUserAgents, ua) {
		t.Errorf("unexpected user agent %q", ua)
	}
}

func TestConfiguredUserAgent(t *testing.T) {
	t.Parallel()

	m, err := NewManager(nil, []string{"test-agent/1.0"})
	if err != nil {
		t.Fatal(err)
	}
	if ua := m.GetUserAgent(); ua != "test-agent/1.0" {
		t.Errorf("unexpected user agent %q", ua)
	}
}

func TestInvalidProxy(t *testing.T) {
	t.Parallel()

	if _, err := NewManager([]string{"::not a url"}, nil); err == nil {
		t.Error("expected an error for an invalid proxy")
	}
}
