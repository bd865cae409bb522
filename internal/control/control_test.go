package control

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/talonweb/talon/internal/crawl"
)

func TestRegisterAndPauseRoundTrip(t *testing.T) {
	p := New(nil)
	cmds := make(chan crawl.Command, 1)
	id := p.Register(cmds, func() {})

	srv := httptest.NewServer(p.Router())
	defer srv.Close()

	resp, err := srv.Client().Post(srv.URL+"/targets/"+id+"/pause", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 202 {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	select {
	case cmd := <-cmds:
		if cmd.Kind != crawl.Pause || cmd.TargetID != id {
			t.Fatalf("unexpected command: %+v", cmd)
		}
	default:
		t.Fatal("expected a pause command to be queued")
	}
}

func TestUnknownTargetReturns404(t *testing.T) {
	p := New(nil)
	srv := httptest.NewServer(p.Router())
	defer srv.Close()

	resp, err := srv.Client().Post(srv.URL+"/targets/does-not-exist/pause", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestShutdownUnregistersTarget(t *testing.T) {
	p := New(nil)
	cmds := make(chan crawl.Command, 1)
	id := p.Register(cmds, func() {})

	srv := httptest.NewServer(p.Router())
	defer srv.Close()

	resp, err := srv.Client().Post(srv.URL+"/targets/"+id+"/shutdown", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 202 {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	listResp, err := srv.Client().Get(srv.URL + "/targets")
	if err != nil {
		t.Fatal(err)
	}
	defer listResp.Body.Close()
	var ids []string
	if err := json.NewDecoder(listResp.Body).Decode(&ids); err != nil {
		t.Fatal(err)
	}
	for _, got := range ids {
		if got == id {
			t.Fatal("expected target to be unregistered after shutdown")
		}
	}
}
