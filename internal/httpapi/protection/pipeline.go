// Package protection gates comment creation with an ordered chain of
// anti-spam checks. Every applicable check runs; failures are accumulated
// into one combined error list instead of short-circuiting, so the caller
// gets every problem in a single rejection.
package protection

import "strings"

// CookiesToken is the sentinel value the human-proof cookie must carry. The
// cookie is set on ordinary page views, never on the create request itself,
// so its presence proves the client loaded a page before submitting.
const CookiesToken = "JustTheCommentsCookies"

// Error labels, stable across deployments so clients and localization tables
// can key off them.
const (
	LabelTransport = "transport"
	LabelCookies   = "cookies"
	LabelTrap      = "trap"
	LabelTolerance = "tolerance_time"
)

// Error is one user-facing rejection reason. Deficit is only set for
// tolerance-time violations and carries how many seconds too early the
// submission arrived.
type Error struct {
	Label   string `json:"label"`
	Message string `json:"message"`
	Deficit int    `json:"deficit,omitempty"`
}

// Config is the immutable pipeline configuration. Construct it once from the
// application config and share it between requests.
type Config struct {
	// CookieToken is the expected human-proof cookie value.
	CookieToken string

	// EmptyTrapProtection enables the honeypot-field check. TrapFields are
	// the form field names expected to always arrive blank.
	EmptyTrapProtection bool
	TrapFields          []string

	// ToleranceTimeProtection enables the minimum-fill-time check.
	// ToleranceTime is the minimum accepted client-reported elapsed time in
	// seconds.
	ToleranceTimeProtection bool
	ToleranceTime           int
}

// Submission is the protection-relevant slice of an inbound comment request.
type Submission struct {
	// XHR reports whether the request came in over the asynchronous
	// channel. Full-page form posts are rejected regardless of content.
	XHR bool

	// CookieValue is the raw human-proof cookie value, empty when absent.
	CookieValue string

	// TrapValues maps each configured trap field name to the submitted
	// value, empty string when the field was absent.
	TrapValues map[string]string

	// ToleranceTime is the client-reported elapsed seconds between page
	// load and submit.
	ToleranceTime int
}

type Pipeline struct {
	cfg Config
}

func NewPipeline(cfg Config) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// Check runs every enabled check against sub and returns the accumulated
// error list, nil when the submission is clean. Disabled checks are skipped
// entirely.
func (p *Pipeline) Check(sub Submission) []Error {
	var errs []Error

	if !sub.XHR {
		errs = append(errs, Error{
			Label:   LabelTransport,
			Message: "comments must be submitted asynchronously",
		})
	}

	if sub.CookieValue != p.cfg.CookieToken {
		errs = append(errs, Error{
			Label:   LabelCookies,
			Message: "cookies are required to post comments",
		})
	}

	if p.cfg.EmptyTrapProtection {
		// Evaluate every trap field so the outcome does not depend on
		// field order; one aggregated error regardless of how many
		// fields were filled.
		human := true
		for _, field := range p.cfg.TrapFields {
			if strings.TrimSpace(sub.TrapValues[field]) != "" {
				human = false
			}
		}
		if !human {
			errs = append(errs, Error{
				Label:   LabelTrap,
				Message: "automated submission suspected",
			})
		}
	}

	if p.cfg.ToleranceTimeProtection && sub.ToleranceTime < p.cfg.ToleranceTime {
		deficit := p.cfg.ToleranceTime - sub.ToleranceTime
		errs = append(errs, Error{
			Label:   LabelTolerance,
			Message: "comment submitted too fast",
			Deficit: deficit,
		})
	}

	return errs
}
