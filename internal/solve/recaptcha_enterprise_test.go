package solve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/talonweb/talon/internal/crawlmodel"
)

type fakeTileOracle struct {
	yesSuffix string
}

func (o *fakeTileOracle) ClassifyTile(_ context.Context, imageBytes []byte, _ string) (bool, error) {
	return strings.HasSuffix(string(imageBytes), o.yesSuffix), nil
}

func (o *fakeTileOracle) LocateGap(context.Context, []byte) (float64, error) { return 0, nil }

func TestClassifyTilesRunsConcurrentlyAndCollectsYesVotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tile-" + r.URL.Query().Get("id")))
	}))
	defer srv.Close()

	s := &RecaptchaEnterpriseSolver{oracle: &fakeTileOracle{yesSuffix: "2"}, log: logrus.StandardLogger()}
	tc := crawlmodel.TileChallenge{
		TargetWord: "bridge",
		Tiles: []crawlmodel.Tile{
			{ID: 1, ImageURL: srv.URL + "?id=1"},
			{ID: 2, ImageURL: srv.URL + "?id=2"},
			{ID: 3, ImageURL: srv.URL + "?id=3"},
		},
	}

	got := s.classifyTiles(context.Background(), tc)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("expected only tile 2 to be classified yes, got %v", got)
	}
}

func TestClassifyTilesSkipsFailedDownloads(t *testing.T) {
	s := &RecaptchaEnterpriseSolver{oracle: &fakeTileOracle{yesSuffix: "anything"}, log: logrus.StandardLogger()}
	tc := crawlmodel.TileChallenge{
		Tiles: []crawlmodel.Tile{
			{ID: 9, ImageURL: "http://127.0.0.1:0/unreachable"},
		},
	}

	got := s.classifyTiles(context.Background(), tc)
	if len(got) != 0 {
		t.Fatalf("expected no votes when the tile download fails, got %v", got)
	}
}
