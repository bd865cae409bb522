package solve

import (
	"testing"

	"github.com/talonweb/talon/internal/crawlmodel"
)

func TestHtmlContainsIsCaseInsensitive(t *testing.T) {
	if !htmlContains([]byte("<div>GeeTest_Panel</div>"), "geetest_panel") {
		t.Fatal("expected case-insensitive containment match")
	}
	if htmlContains([]byte("<div>nothing here</div>"), "geetest_panel") {
		t.Fatal("expected no match")
	}
}

func TestErrTimeoutMessage(t *testing.T) {
	err := &ErrTimeout{Kind: crawlmodel.ChallengeGeeTestVisible}
	if err.Error() == "" {
		t.Fatal("expected a non-empty error message")
	}
}

func TestRegistryDispatchesByKind(t *testing.T) {
	r := NewRegistry(nil, nil)

	cases := []crawlmodel.ChallengeKind{
		crawlmodel.ChallengeCloudflareTurnstile,
		crawlmodel.ChallengeImpervaWait,
		crawlmodel.ChallengeImpervaIframe,
		crawlmodel.ChallengeRecaptcha,
		crawlmodel.ChallengeRecaptchaEnterprise,
		crawlmodel.ChallengeGeeTestVisible,
		crawlmodel.ChallengeGeeTestLoading,
	}
	for _, kind := range cases {
		if r.For(kind) == nil {
			t.Fatalf("expected a solver registered for %v", kind)
		}
	}
}

func TestRegistryHasNoSolverForNoneOrForbidden(t *testing.T) {
	r := NewRegistry(nil, nil)
	if r.For(crawlmodel.ChallengeNone) != nil {
		t.Fatal("expected no solver for ChallengeNone")
	}
	if r.For(crawlmodel.ChallengeHardForbidden) != nil {
		t.Fatal("expected no solver for ChallengeHardForbidden")
	}
}
