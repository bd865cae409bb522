// Package crawlmodel holds the data types shared by every stage of the
// pipeline (fetch, detect, solve, extract, frontier) so those packages
// don't need to import one another just to pass a record around.
package crawlmodel

import "time"

// ChallengeKind classifies a fetched page per C6 (Challenge Detector).
type ChallengeKind int

const (
	ChallengeNone ChallengeKind = iota
	ChallengeCloudflareTurnstile
	ChallengeImpervaWait
	ChallengeImpervaIframe
	ChallengeHCaptchaEmbedded
	ChallengeRecaptcha
	ChallengeRecaptchaEnterprise
	ChallengeGeeTestLoading
	ChallengeGeeTestVisible
	ChallengeHardForbidden
)

func (k ChallengeKind) String() string {
	switch k {
	case ChallengeNone:
		return "none"
	case ChallengeCloudflareTurnstile:
		return "cloudflare_turnstile"
	case ChallengeImpervaWait:
		return "imperva_wait"
	case ChallengeImpervaIframe:
		return "imperva_iframe"
	case ChallengeHCaptchaEmbedded:
		return "hcaptcha_embedded"
	case ChallengeRecaptcha:
		return "recaptcha"
	case ChallengeRecaptchaEnterprise:
		return "recaptcha_enterprise"
	case ChallengeGeeTestLoading:
		return "geetest_loading"
	case ChallengeGeeTestVisible:
		return "geetest_visible"
	case ChallengeHardForbidden:
		return "hard_forbidden"
	default:
		return "unknown"
	}
}

// FetchRecord is the result of one acquisition attempt, raw or browser-escalated.
type FetchRecord struct {
	FinalURL          string
	Status            int
	Headers           map[string][]string
	Cookies           []string
	Body              []byte // absent (nil) when streaming was aborted
	BytesTransferred  int64
	WAFFlag           bool
	RemoteAddr        string
	ChallengeKind     ChallengeKind
	Solved            bool // only meaningful when ChallengeKind != None
	NoRetry           bool // set for HardForbidden
}

// HasBody reports whether the record carries a usable body.
func (r *FetchRecord) HasBody() bool {
	return r != nil && r.Body != nil
}

// Tile is one cell of a reCAPTCHA-enterprise image grid.
type Tile struct {
	ID       uint8
	ImageURL string
}

// TileChallenge is the data extracted from a reCAPTCHA enterprise grid,
// sufficient to drive tile selection (C6 tile extraction, C7 enterprise solver).
type TileChallenge struct {
	TargetWord      string
	InstructionText string
	Tiles           []Tile
	HasVerifyButton bool
}

// SolverSession bounds one challenge-solving attempt against a borrowed browser page.
type SolverSession struct {
	PageHandle     string
	StartTime      time.Time
	IterationCount int
	MaxIterations  int
	OverallDeadline time.Duration
}

// DefaultOverallDeadline is the total budget a solver gets across all
// of its iterations (and, for the enterprise tile solver, the budget
// its per-tile oracle timeouts are carved out of).
const DefaultOverallDeadline = 30 * time.Second

// NewSolverSession starts a session with the default bounds (<=10
// iterations, 30s overall deadline).
func NewSolverSession(pageHandle string) *SolverSession {
	return &SolverSession{
		PageHandle:      pageHandle,
		StartTime:       time.Now(),
		MaxIterations:   10,
		OverallDeadline: DefaultOverallDeadline,
	}
}

// Expired reports whether the session has exhausted its deadline or iteration budget.
func (s *SolverSession) Expired() bool {
	return s.IterationCount >= s.MaxIterations || time.Since(s.StartTime) >= s.OverallDeadline
}

// Remaining returns the wall-clock time left before the overall deadline.
func (s *SolverSession) Remaining() time.Duration {
	left := s.OverallDeadline - time.Since(s.StartTime)
	if left < 0 {
		return 0
	}
	return left
}
