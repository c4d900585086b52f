package module

import (
	"testing"

	phttp "mural/internal/platform/net/http"
)

type pinger interface{ Ping() string }

type pingPort struct{ reply string }

func (p pingPort) Ping() string { return p.reply }

type fakeModule struct {
	name  string
	ports any
}

func (m fakeModule) MountRoutes(phttp.Router) {}
func (m fakeModule) Ports() any               { return m.ports }
func (m fakeModule) Name() string             { return m.name }

func TestRegistryRoundTrip(t *testing.T) {
	t.Cleanup(Reset)
	Reset()

	type boardPorts struct{ Ping pinger }
	Register("board", boardPorts{Ping: pingPort{reply: "ok"}})

	got, ok := PortsAs[boardPorts]("board")
	if !ok || got.Ping.Ping() != "ok" {
		t.Fatalf("PortsAs = %+v ok=%v", got, ok)
	}

	if _, ok := PortsAs[boardPorts]("missing"); ok {
		t.Fatal("unknown name should not resolve")
	}
	if _, ok := PortsAs[string]("board"); ok {
		t.Fatal("wrong type assertion should not resolve")
	}

	Reset()
	if _, ok := PortsAs[boardPorts]("board"); ok {
		t.Fatal("Reset should clear the registry")
	}
}

func TestPortsOfDirect(t *testing.T) {
	m := fakeModule{name: "live", ports: pingPort{reply: "direct"}}
	p, ok := PortsOf[pinger](m)
	if !ok || p.Ping() != "direct" {
		t.Fatalf("PortsOf direct = %v ok=%v", p, ok)
	}
}

func TestPortsOfStructField(t *testing.T) {
	type bundle struct {
		Ping  pinger
		Other int
	}
	m := fakeModule{name: "board", ports: bundle{Ping: pingPort{reply: "field"}}}
	p, ok := PortsOf[pinger](m)
	if !ok || p.Ping() != "field" {
		t.Fatalf("PortsOf field = %v ok=%v", p, ok)
	}
}

func TestPortsOfMisses(t *testing.T) {
	if _, ok := PortsOf[pinger](fakeModule{name: "empty"}); ok {
		t.Fatal("nil ports should not resolve")
	}
	if _, ok := PortsOf[pinger](fakeModule{name: "plain", ports: struct{ N int }{1}}); ok {
		t.Fatal("no matching field should not resolve")
	}
}

func TestMustPortsOfPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("want panic for a missing port")
		}
	}()
	_ = MustPortsOf[pinger](fakeModule{name: "empty"})
}
