package patterns

import "bytes"

// Registry instances are process-wide, immutable, built once at
// package init from a fixed literal set.
var (
	BotVerify = New("bot-verify", []string{
		"verifying you are human",
		"checking your browser before accessing",
		"this process is automatic",
		"please stand by, while we are checking your browser",
	})

	ImpervaIframe = New("imperva-iframe", []string{
		"geo.captcha-delivery.com",
		"verification system",
		"incapsula incident id",
	})

	ImpervaWait = New("imperva-wait", []string{
		"verifying the device",
		"available after verification",
	})

	HCaptchaIframe = New("hcaptcha-iframe", []string{
		"newassets.hcaptcha.com",
		"hcaptcha.com/captcha",
		"hcaptcha-box",
	})

	Recaptcha = New("recaptcha", []string{
		"/recaptcha/api2/anchor",
		"recaptcha/enterprise/bframe",
		"www.google.com/recaptcha/api.js",
	})

	// RCEnterpriseGuard requires ALL four literals to be present
	// (case-sensitive) before the body is treated as a reCAPTCHA
	// enterprise grid rather than a plain v2 anchor.
	RCEnterpriseGuard = New("rc-enterprise-guard", []string{
		"__recaptcha_api",
		"rc-imageselect",
		"rc-imageselect-tile",
		"/recaptcha/enterprise/",
	}, CaseSensitive(), RequireAll())

	RCVerifyButton = New("rc-verify-button", []string{
		`id="recaptcha-verify-button"`,
		">Verify<",
	}, CaseSensitive())

	GeeTest = New("geetest", []string{
		"geetest_panel",
		"geetest_radar",
	})

	GeeTestLoading = New("geetest-loading", []string{
		"geetest_wait",
		"geetest_loading",
	})

	GeeTestVisible = New("geetest-visible", []string{
		"geetest_slider_button",
		"geetest_canvas_slice",
		"geetest_btn",
	})

	// CFJustAMoment only ever scans the first 120 bytes of the body.
	CFJustAMoment = New("cf-just-a-moment", []string{
		`<!DOCTYPE html><html lang="en-US" dir="ltr"><head><title>Just a moment...</title>`,
	}, MaxScanBytes(120))
)

// Cloudflare interstitial shells are matched by byte-exact
// suffix/prefix, not substring search. These four constants cover the
// known shells; CFJustAMoment above (prefix-only, first 120 bytes)
// rounds out the set.
var (
	CFSuffixA          = []byte(`target="_blank">Cloudflare</a></div></div></div></body></html>`)
	CFSuffixB          = []byte(`Performance &amp; security by Cloudflare</div></div></div></body></html>`)
	CFPrefix           = []byte("<html><head>\n    <style global=\"\">")
	CFMockFrameSuffix  = []byte("<iframe height=\"1\" width=\"1\" style=\"position: absolute; top: 0px; left: 0px; border: none; visibility: hidden;\"></iframe>\n\n</body></html>")
)

// MatchesCloudflareShell reports whether body is byte-exact-bounded by
// one of the four Cloudflare interstitial signatures above.
func MatchesCloudflareShell(body []byte) bool {
	return bytes.HasSuffix(body, CFSuffixA) ||
		bytes.HasSuffix(body, CFSuffixB) ||
		bytes.HasPrefix(body, CFPrefix) ||
		bytes.HasSuffix(body, CFMockFrameSuffix)
}

// ImpervaSizeGate reports whether body_len qualifies for Imperva
// detection at all (0, 220_000] bytes; outside this range Imperva
// matchers should never fire regardless of content.
func ImpervaSizeGate(bodyLen int) bool {
	return bodyLen > 0 && bodyLen <= 220_000
}

// HardForbidden literal shells (Apache/OpenResty default 403 pages).
// The whole body must equal a shell, ignoring surrounding whitespace —
// these are terminal, never retried.
var HardForbiddenShells = [][]byte{
	[]byte("<html>\r\n<head><title>403 Forbidden</title></head>\r\n<body>\r\n<center><h1>403 Forbidden</h1></center>\r\n<hr><center>openresty</center>\r\n</body>\r\n</html>\r\n"),
	[]byte("<!DOCTYPE HTML PUBLIC \"-//IETF//DTD HTML 2.0//EN\">\n<html><head>\n<title>403 Forbidden</title>\n</head><body>\n<h1>Forbidden</h1>\n<p>You don't have permission to access this resource.</p>\n</body></html>\n"),
}

// IsHardForbidden checks the body for equality with the known shells
// after trimming surrounding whitespace from both; a substring match
// would risk matching an embedded quote of
// the error page inside a legitimate larger document.
func IsHardForbidden(body []byte) bool {
	for _, shell := range HardForbiddenShells {
		if bytes.Equal(bytes.TrimSpace(body), bytes.TrimSpace(shell)) {
			return true
		}
	}
	return false
}
