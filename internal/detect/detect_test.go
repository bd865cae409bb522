package detect

import (
	"strings"
	"testing"

	"github.com/talonweb/talon/internal/crawlmodel"
	"github.com/talonweb/talon/internal/patterns"
)

func TestClassifyClean(t *testing.T) {
	got := Classify([]byte("<html><body>hello world</body></html>"), "text/html")
	if got != crawlmodel.ChallengeNone {
		t.Fatalf("expected clean, got %s", got)
	}
}

func TestClassifyHardForbiddenTakesPrecedence(t *testing.T) {
	got := Classify(patterns.HardForbiddenShells[0], "text/html")
	if got != crawlmodel.ChallengeHardForbidden {
		t.Fatalf("expected hard-forbidden, got %s", got)
	}
}

func TestClassifyCloudflare(t *testing.T) {
	body := []byte(`<!DOCTYPE html><html lang="en-US" dir="ltr"><head><title>Just a moment...</title>` + string(make([]byte, 200)))
	got := Classify(body, "text/html")
	if got != crawlmodel.ChallengeCloudflareTurnstile {
		t.Fatalf("expected cloudflare turnstile, got %s", got)
	}
}

func TestClassifyImpervaRespectsSizeGate(t *testing.T) {
	small := []byte("geo.captcha-delivery.com incapsula incident id")
	if Classify(small, "text/html") != crawlmodel.ChallengeImpervaIframe {
		t.Fatalf("expected imperva iframe for small body")
	}

	oversized := append(small, make([]byte, 300_000)...)
	if Classify(oversized, "text/html") == crawlmodel.ChallengeImpervaIframe {
		t.Fatalf("oversized body should not classify as imperva")
	}
}

func TestExtractTileChallengeDedupesByID(t *testing.T) {
	body := []byte(`<td id="1" class="rc-imageselect-tile"><img src="https://www.google.com/recaptcha/enterprise/payload?c=1"></td>` +
		`<td id="1" class="rc-imageselect-tile"><img src="https://www.google.com/recaptcha/enterprise/payload?c=2"></td>` +
		`<td id="2" class="rc-imageselect-tile"><img src="https://www.google.com/recaptcha/enterprise/payload?c=3"></td>`)

	tc := ExtractTileChallenge(body)
	if len(tc.Tiles) != 2 {
		t.Fatalf("expected 2 deduped tiles, got %d", len(tc.Tiles))
	}
}

func TestExtractTileChallengeEmptyWhenNoMarkers(t *testing.T) {
	tc := ExtractTileChallenge([]byte("<html>nothing here</html>"))
	if len(tc.Tiles) != 0 {
		t.Fatalf("expected no tiles, got %d", len(tc.Tiles))
	}
}

func TestExtractTileChallengeSetsTargetWord(t *testing.T) {
	body := []byte(`<div class="rc-imageselect-desc-no-canonical">Select all images with <strong>a crosswalk</strong></div>` +
		`<td id="1" class="rc-imageselect-tile"><img src="https://www.google.com/recaptcha/enterprise/payload?c=1"></td>` +
		`<td id="2" class="rc-imageselect-tile"><img src="https://www.google.com/recaptcha/enterprise/payload?c=2"></td>`)

	tc := ExtractTileChallenge(body)
	if tc.TargetWord != "a crosswalk" {
		t.Fatalf("expected target word %q, got %q", "a crosswalk", tc.TargetWord)
	}
	if !strings.Contains(tc.InstructionText, "Select all images with") {
		t.Fatalf("expected instruction text to retain the prompt sentence, got %q", tc.InstructionText)
	}
	if len(tc.Tiles) != 2 {
		t.Fatalf("expected 2 tiles, got %d", len(tc.Tiles))
	}
}
