package patterns

import "testing"

func TestMatcherIsMatchCaseInsensitive(t *testing.T) {
	m := New("test", []string{"Hello World"})
	if !m.IsMatch([]byte("say hello world to everyone")) {
		t.Fatal("expected case-insensitive match")
	}
	if m.IsMatch([]byte("nothing here")) {
		t.Fatal("expected no match")
	}
}

func TestMatcherCaseSensitive(t *testing.T) {
	m := New("test", []string{"Verify"}, CaseSensitive())
	if m.IsMatch([]byte("verify now")) {
		t.Fatal("case-sensitive matcher should not match lowercase")
	}
	if !m.IsMatch([]byte("Verify now")) {
		t.Fatal("case-sensitive matcher should match exact case")
	}
}

func TestMatcherRequireAll(t *testing.T) {
	m := New("all", []string{"a", "b", "c"}, RequireAll())
	if m.IsMatch([]byte("a and b but not the third")) {
		t.Fatal("RequireAll should fail when a literal is missing")
	}
	if !m.IsMatch([]byte("a b c all present")) {
		t.Fatal("RequireAll should succeed when every literal is present")
	}
}

func TestMatcherMaxScanBytes(t *testing.T) {
	m := New("bounded", []string{"needle"}, MaxScanBytes(10))
	body := []byte("0123456789needle-far-away")
	if m.IsMatch(body) {
		t.Fatal("needle beyond the scan window should not match")
	}
	body2 := []byte("needle-right-here")
	if !m.IsMatch(body2) {
		t.Fatal("needle within the scan window should match")
	}
}

func TestRCEnterpriseGuardRequiresAllFour(t *testing.T) {
	partial := []byte(`__recaptcha_api rc-imageselect`)
	if RCEnterpriseGuard.IsMatch(partial) {
		t.Fatal("guard should not fire with only two of four literals")
	}
	full := []byte(`__recaptcha_api rc-imageselect rc-imageselect-tile /recaptcha/enterprise/`)
	if !RCEnterpriseGuard.IsMatch(full) {
		t.Fatal("guard should fire when all four literals are present")
	}
}

func TestMatchesCloudflareShell(t *testing.T) {
	body := []byte(`<html><body>x<a href="https://www.cloudflare.com/5xx-error-landing" target="_blank">Cloudflare</a></div></div></div></body></html>`)
	if !MatchesCloudflareShell(body) {
		t.Fatal("expected CF suffix match")
	}
	if MatchesCloudflareShell([]byte("<html>ordinary page</html>")) {
		t.Fatal("ordinary page should not match CF shell")
	}
}

func TestImpervaSizeGate(t *testing.T) {
	if ImpervaSizeGate(0) {
		t.Fatal("zero-length body should never pass the gate")
	}
	if !ImpervaSizeGate(1000) {
		t.Fatal("body within range should pass the gate")
	}
	if ImpervaSizeGate(300_000) {
		t.Fatal("body beyond 220000 bytes should not pass the gate")
	}
}

func TestIsHardForbidden(t *testing.T) {
	if !IsHardForbidden(HardForbiddenShells[0]) {
		t.Fatal("exact shell body should be recognized as hard-forbidden")
	}
	if IsHardForbidden([]byte("some unrelated 403 Forbidden text embedded in a bigger page")) {
		t.Fatal("substring-only match should not count as hard-forbidden")
	}
}
