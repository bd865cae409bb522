package solve

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/talonweb/talon/internal/browser"
	"github.com/talonweb/talon/internal/crawlmodel"
	"github.com/talonweb/talon/internal/detect"
	"github.com/talonweb/talon/internal/vision"
)

// RecaptchaEnterpriseSolver first clicks the v2-style anchor, then, if
// an image grid appears, asks the Vision Oracle to classify each tile
// and clicks every tile it answers "yes" to.
type RecaptchaEnterpriseSolver struct {
	oracle vision.Oracle
	log    *logrus.Logger
}

func (s *RecaptchaEnterpriseSolver) Kind() crawlmodel.ChallengeKind {
	return crawlmodel.ChallengeRecaptchaEnterprise
}

func (s *RecaptchaEnterpriseSolver) Solve(ctx context.Context, page *browser.Session, targetURL string) (bool, []byte, error) {
	if err := page.ClickSelector("#recaptcha-anchor"); err != nil {
		s.log.WithError(err).Debug("recaptcha-enterprise: anchor click failed, grid may already be open")
	}
	page.WaitFor(browser.WaitSpec{Delay: 1_000_000_000, Navigations: true})

	return runLoop(ctx, page, s.Kind(), s.log, func(html []byte) error {
		if html == nil {
			return fmt.Errorf("recaptcha-enterprise: no html to inspect")
		}
		tc := detect.ExtractTileChallenge(html)
		if len(tc.Tiles) == 0 {
			return page.WaitFor(browser.WaitSpec{Delay: 1_000_000_000})
		}

		for _, id := range s.classifyTiles(ctx, tc) {
			sel := fmt.Sprintf(`.rc-imageselect-tile[id="%d"], [data-tile-id="%d"]`, id, id)
			if cerr := page.ClickSelector(sel); cerr != nil {
				s.log.WithError(cerr).Debug("recaptcha-enterprise: tile click failed")
			}
		}

		if tc.HasVerifyButton {
			if err := page.ClickSelector(`#recaptcha-verify-button`); err != nil {
				s.log.WithError(err).Debug("recaptcha-enterprise: verify click failed")
			}
		}

		return page.WaitFor(browser.WaitSpec{Delay: 1_500_000_000, IdleNetwork: 8_000_000_000, Navigations: true})
	})
}

// classifyTiles downloads and classifies every tile concurrently,
// bounded by a semaphore sized to the tile count (min 1) and a
// per-tile timeout carved out of the overall solve deadline, and
// returns the ids the oracle answered "yes" to. Clicking stays
// sequential in Solve; only the network/oracle round-trip runs in
// parallel here.
func (s *RecaptchaEnterpriseSolver) classifyTiles(ctx context.Context, tc crawlmodel.TileChallenge) []uint8 {
	permits := len(tc.Tiles)
	if permits < 1 {
		permits = 1
	}
	sem := vision.NewSemaphore(permits)
	perTileTimeout := crawlmodel.DefaultOverallDeadline / time.Duration(len(tc.Tiles)+1)

	var mu sync.Mutex
	var yesIDs []uint8
	var wg sync.WaitGroup

	for _, tile := range tc.Tiles {
		wg.Add(1)
		go func(tile crawlmodel.Tile) {
			defer wg.Done()

			if err := sem.Acquire(ctx); err != nil {
				return
			}
			defer sem.Release()

			tileCtx, cancel := context.WithTimeout(ctx, perTileTimeout)
			defer cancel()

			img, err := downloadImage(tileCtx, tile.ImageURL)
			if err != nil {
				s.log.WithError(err).Debug("recaptcha-enterprise: tile download failed")
				return
			}
			yes, err := s.oracle.ClassifyTile(tileCtx, img, tc.TargetWord)
			if err != nil {
				s.log.WithError(err).Debug("recaptcha-enterprise: oracle classify failed")
				return
			}
			if yes {
				mu.Lock()
				yesIDs = append(yesIDs, tile.ID)
				mu.Unlock()
			}
		}(tile)
	}
	wg.Wait()
	return yesIDs
}

func downloadImage(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
