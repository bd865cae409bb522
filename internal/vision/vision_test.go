package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeEvaluator struct {
	reply string
	err   error
}

func (f *fakeEvaluator) EvaluateInto(js string, out interface{}) error {
	if f.err != nil {
		return f.err
	}
	*(out.(*string)) = f.reply
	return nil
}

func TestInPageOracleClassifyTileYes(t *testing.T) {
	o := &InPageOracle{Page: &fakeEvaluator{reply: "Yes"}}
	ok, err := o.ClassifyTile(context.Background(), []byte{1, 2, 3}, "bus")
	if err != nil || !ok {
		t.Fatalf("expected yes/nil, got ok=%v err=%v", ok, err)
	}
}

func TestInPageOracleUnavailableOnReferenceError(t *testing.T) {
	o := &InPageOracle{Page: &fakeEvaluator{reply: "ReferenceError: LanguageModel is not defined"}}
	_, err := o.ClassifyTile(context.Background(), []byte{1}, "bus")
	if err != ErrUnavailable {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestInPageOracleLocateGapParsesNumber(t *testing.T) {
	o := &InPageOracle{Page: &fakeEvaluator{reply: "142.5"}}
	gap, err := o.LocateGap(context.Background(), []byte{1})
	if err != nil || gap != 142.5 {
		t.Fatalf("expected 142.5/nil, got gap=%v err=%v", gap, err)
	}
}

func TestExternalOracleClassifyTile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{"parts": []map[string]string{{"text": "yes"}}}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	o := &ExternalOracle{Endpoint: srv.URL, Client: srv.Client()}
	ok, err := o.ClassifyTile(context.Background(), []byte{1, 2}, "bridge")
	if err != nil || !ok {
		t.Fatalf("expected yes/nil, got ok=%v err=%v", ok, err)
	}
}

func TestExternalOracleMissingEndpoint(t *testing.T) {
	o := &ExternalOracle{Client: http.DefaultClient}
	_, err := o.ClassifyTile(context.Background(), []byte{1}, "bus")
	if err == nil {
		t.Fatal("expected an error when no endpoint is configured")
	}
}

func TestFallbackOracleFallsBackToExternal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{"parts": []map[string]string{{"text": "no"}}}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	f := &FallbackOracle{
		InPage:   &InPageOracle{Page: &fakeEvaluator{reply: "ReferenceError: nope"}},
		External: &ExternalOracle{Endpoint: srv.URL, Client: srv.Client()},
		Bound:    NewSemaphore(1),
	}
	ok, err := f.ClassifyTile(context.Background(), []byte{1}, "bus")
	if err != nil || ok {
		t.Fatalf("expected no/nil from the external fallback, got ok=%v err=%v", ok, err)
	}
}

func TestFallbackOracleNoProvidersIsUnavailable(t *testing.T) {
	f := &FallbackOracle{}
	_, err := f.ClassifyTile(context.Background(), []byte{1}, "bus")
	if err != ErrUnavailable {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSemaphoreBoundsConcurrency(t *testing.T) {
	s := NewSemaphore(1)
	if err := s.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Acquire(ctx); err == nil {
		t.Fatal("expected second acquire to fail while the slot is held and ctx is cancelled")
	}
	s.Release()
}
