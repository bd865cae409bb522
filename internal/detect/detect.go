// Package detect implements the challenge detector: a pure classifier
// from a fetched body to crawlmodel.ChallengeKind, plus
// reCAPTCHA-enterprise tile extraction. Built entirely on top of
// internal/patterns, in a fixed classification order.
package detect

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/talonweb/talon/internal/crawlmodel"
	"github.com/talonweb/talon/internal/patterns"
)

// Classify returns the first matching ChallengeKind for body, per the
// fixed precedence order: hard-forbidden, CF, Imperva, hCaptcha,
// reCAPTCHA enterprise, reCAPTCHA v2, GeeTest, else clean.
func Classify(body []byte, contentType string) crawlmodel.ChallengeKind {
	bodyLen := len(body)

	if patterns.IsHardForbidden(body) {
		return crawlmodel.ChallengeHardForbidden
	}
	if patterns.MatchesCloudflareShell(body) || patterns.CFJustAMoment.IsMatch(body) || patterns.BotVerify.IsMatch(body) {
		return crawlmodel.ChallengeCloudflareTurnstile
	}
	if patterns.ImpervaSizeGate(bodyLen) {
		if patterns.ImpervaIframe.IsMatch(body) {
			return crawlmodel.ChallengeImpervaIframe
		}
		if patterns.ImpervaWait.IsMatch(body) {
			return crawlmodel.ChallengeImpervaWait
		}
	}
	if patterns.ImpervaSizeGate(bodyLen) && patterns.HCaptchaIframe.IsMatch(body) {
		return crawlmodel.ChallengeHCaptchaEmbedded
	}
	if patterns.RCEnterpriseGuard.IsMatch(body) {
		if tiles := ExtractTileChallenge(body); len(tiles.Tiles) > 0 {
			return crawlmodel.ChallengeRecaptchaEnterprise
		}
	}
	if patterns.Recaptcha.IsMatch(body) {
		return crawlmodel.ChallengeRecaptcha
	}
	if patterns.GeeTestVisible.IsMatch(body) {
		return crawlmodel.ChallengeGeeTestVisible
	}
	if patterns.GeeTestLoading.IsMatch(body) || patterns.GeeTest.IsMatch(body) {
		return crawlmodel.ChallengeGeeTestLoading
	}
	return crawlmodel.ChallengeNone
}

const (
	tileMarker      = "rc-imageselect-tile"
	backScanWindow  = 240
	idAttrPrefix    = `id="`
	payloadPrefix   = "https://www.google.com/recaptcha/enterprise/payload"
	srcAttrPrefix   = `src="`
	descMarker      = "rc-imageselect-desc"
	descScanWindow  = 400
	strongOpenTag   = "<strong>"
	strongCloseTag  = "</strong>"
)

// ExtractTileChallenge scans body for reCAPTCHA enterprise tile markup:
// for each "rc-imageselect-tile" occurrence, back-scan up to 240 bytes
// for an id="<digit>" attribute and forward-scan for the next payload
// image src, deduplicating by tile id. It also locates the
// rc-imageselect-desc node and pulls its <strong>-wrapped target word
// plus the surrounding instruction text.
func ExtractTileChallenge(body []byte) crawlmodel.TileChallenge {
	var tiles []crawlmodel.Tile
	seen := make(map[uint8]struct{})

	marker := []byte(tileMarker)
	pos := 0
	for {
		idx := bytes.Index(body[pos:], marker)
		if idx < 0 {
			break
		}
		abs := pos + idx

		start := abs - backScanWindow
		if start < 0 {
			start = 0
		}
		window := body[start:abs]
		id, ok := findTileID(window)
		if ok {
			if _, dup := seen[id]; !dup {
				if src, found := findPayloadSrc(body[abs:]); found {
					seen[id] = struct{}{}
					tiles = append(tiles, crawlmodel.Tile{ID: id, ImageURL: src})
				}
			}
		}

		pos = abs + len(marker)
	}

	hasVerify := patterns.RCVerifyButton.IsMatch(body)
	target, instruction := findTargetWord(body)
	return crawlmodel.TileChallenge{
		TargetWord:      target,
		InstructionText: instruction,
		Tiles:           tiles,
		HasVerifyButton: hasVerify,
	}
}

// findTargetWord locates the rc-imageselect-desc node and forward-scans
// up to descScanWindow bytes for its enclosing <strong> text, the
// target word tile selection is judged against. instruction is the
// surrounding description text with tags stripped.
func findTargetWord(body []byte) (target, instruction string) {
	idx := bytes.Index(body, []byte(descMarker))
	if idx < 0 {
		return "", ""
	}
	window := body[idx:]

	// skip past the rest of the opening tag (the one carrying the
	// rc-imageselect-desc class) so its attributes don't leak into
	// instruction text.
	tagEnd := bytes.IndexByte(window, '>')
	if tagEnd < 0 {
		return "", ""
	}
	window = window[tagEnd+1:]

	end := descScanWindow
	if closeIdx := bytes.Index(window, []byte("</div>")); closeIdx >= 0 && closeIdx < end {
		end = closeIdx
	}
	if end > len(window) {
		end = len(window)
	}
	segment := window[:end]

	instruction = stripTags(segment)

	strongStart := bytes.Index(segment, []byte(strongOpenTag))
	if strongStart < 0 {
		return "", instruction
	}
	rest := segment[strongStart+len(strongOpenTag):]
	strongEnd := bytes.Index(rest, []byte(strongCloseTag))
	if strongEnd < 0 {
		return "", instruction
	}
	return strings.TrimSpace(string(rest[:strongEnd])), instruction
}

// stripTags removes anything between < and > and trims the remainder.
func stripTags(b []byte) string {
	var out []byte
	depth := 0
	for _, c := range b {
		switch {
		case c == '<':
			depth++
		case c == '>':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			out = append(out, c)
		}
	}
	return strings.TrimSpace(string(out))
}

func findTileID(window []byte) (uint8, bool) {
	idx := bytes.LastIndex(window, []byte(idAttrPrefix))
	if idx < 0 {
		return 0, false
	}
	rest := window[idx+len(idAttrPrefix):]
	end := bytes.IndexByte(rest, '"')
	if end <= 0 {
		return 0, false
	}
	n, err := strconv.ParseUint(string(rest[:end]), 10, 8)
	if err != nil {
		return 0, false
	}
	return uint8(n), true
}

func findPayloadSrc(forward []byte) (string, bool) {
	srcIdx := bytes.Index(forward, []byte(srcAttrPrefix))
	if srcIdx < 0 {
		return "", false
	}
	rest := forward[srcIdx+len(srcAttrPrefix):]
	end := bytes.IndexByte(rest, '"')
	if end <= 0 {
		return "", false
	}
	src := string(rest[:end])
	if len(src) < len(payloadPrefix) || src[:len(payloadPrefix)] != payloadPrefix {
		return "", false
	}
	return src, true
}
