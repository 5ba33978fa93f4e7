// -- internal/safety/policy.go --
package safety

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Mukuloli/browser-automation-1/internal/config"
)

// Policy enforces the session scope over every action the model requests.
// Checks run in a fixed order: emergency stop, blocked domains, blocked URL
// patterns, allowlist scope, keyword screening of typed text, then the
// session timeout and budgets. The first failing check wins, and the action
// budget is consumed only when every screen passes.
type Policy struct {
	cfg    config.SafetyConfig
	logger *zap.Logger
	vlog   *ViolationLog

	blockedDomainRes []*regexp.Regexp
	blockedURLRes    []*regexp.Regexp

	mu             sync.Mutex
	actionCount    int
	tokenCount     int
	violationCount int
	startedAt      time.Time
}

// NewPolicy compiles the blocklists and starts the session clock.
func NewPolicy(cfg config.SafetyConfig, vlog *ViolationLog, logger *zap.Logger) *Policy {
	p := &Policy{
		cfg:       cfg,
		logger:    logger.Named("safety"),
		vlog:      vlog,
		startedAt: time.Now(),
	}
	for _, pattern := range cfg.BlockedDomains {
		if re := globToRegexp(pattern); re != nil {
			p.blockedDomainRes = append(p.blockedDomainRes, re)
		}
	}
	for _, pattern := range cfg.BlockedURLPatterns {
		if re := globToRegexp(pattern); re != nil {
			p.blockedURLRes = append(p.blockedURLRes, re)
		}
	}
	return p
}

// globToRegexp converts a glob-ish blocklist pattern into a substring-matching
// regexp: "." is literal, "*" matches anything.
func globToRegexp(pattern string) *regexp.Regexp {
	escaped := strings.ReplaceAll(pattern, ".", `\.`)
	escaped = strings.ReplaceAll(escaped, "*", ".*")
	re, err := regexp.Compile(strings.ToLower(escaped))
	if err != nil {
		return nil
	}
	return re
}

// navigationActions take a URL argument that must be screened.
var navigationActions = map[string]bool{
	"navigate":  true,
	"go_to_url": true,
}

// textArgKeys are the argument names that carry user-visible text worth
// screening for blocked keywords.
var textArgKeys = []string{"text", "query", "value"}

// CheckAction validates one model-requested action against the full policy.
// A nil return means the action may run and consumes one unit of the action
// budget; blocked actions leave the budget untouched.
func (p *Policy) CheckAction(name string, args map[string]any) *Violation {
	if IsEmergencyStopped() {
		return p.violation(Violation{
			Rule: RuleEmergencyStop, Action: name,
			Detail: "emergency stop is active", Severity: "critical",
		})
	}

	if navigationActions[name] {
		if rawURL, ok := args["url"].(string); ok {
			if v := p.CheckNavigation(rawURL); v != nil {
				v.Action = name
				return v
			}
		}
	}

	for _, key := range textArgKeys {
		if text, ok := args[key].(string); ok {
			if v := p.CheckText(text); v != nil {
				v.Action = name
				return v
			}
		}
	}

	p.mu.Lock()
	if p.cfg.SessionTimeout > 0 && time.Since(p.startedAt) > p.cfg.SessionTimeout {
		p.mu.Unlock()
		return p.violation(Violation{
			Rule: RuleSessionTimeout, Action: name,
			Detail:   fmt.Sprintf("session exceeded %s", p.cfg.SessionTimeout),
			Severity: "high",
		})
	}
	if p.actionCount >= p.cfg.MaxActions {
		p.mu.Unlock()
		return p.violation(Violation{
			Rule: RuleActionBudget, Action: name,
			Detail:   fmt.Sprintf("action budget of %d exhausted", p.cfg.MaxActions),
			Severity: "high",
		})
	}
	if p.tokenCount >= p.cfg.MaxTokens {
		p.mu.Unlock()
		return p.violation(Violation{
			Rule: RuleTokenBudget, Action: name,
			Detail:   fmt.Sprintf("token budget of %d exhausted", p.cfg.MaxTokens),
			Severity: "high",
		})
	}
	p.actionCount++
	p.mu.Unlock()
	return nil
}

// CheckNavigation screens a target URL against the domain blocklist, the URL
// pattern blocklist and the session allowlist.
func (p *Policy) CheckNavigation(rawURL string) *Violation {
	lowered := strings.ToLower(rawURL)

	host := lowered
	if u, err := url.Parse(lowered); err == nil && u.Host != "" {
		host = u.Host
	}

	for _, re := range p.blockedDomainRes {
		if re.MatchString(host) {
			return p.violation(Violation{
				Rule:     RuleBlockedDomain,
				Detail:   fmt.Sprintf("domain %q matches blocklist pattern %q", host, re.String()),
				Severity: "critical",
			})
		}
	}
	for _, re := range p.blockedURLRes {
		if re.MatchString(lowered) {
			return p.violation(Violation{
				Rule:     RuleBlockedURL,
				Detail:   fmt.Sprintf("url matches blocked pattern %q", re.String()),
				Severity: "critical",
			})
		}
	}

	if len(p.cfg.AllowedDomains) > 0 {
		allowed := false
		for _, domain := range p.cfg.AllowedDomains {
			d := strings.ToLower(domain)
			if host == d || strings.HasSuffix(host, "."+d) {
				allowed = true
				break
			}
		}
		if !allowed {
			return p.violation(Violation{
				Rule:     RuleOutOfScope,
				Detail:   fmt.Sprintf("domain %q is outside the session allowlist", host),
				Severity: "high",
			})
		}
	}
	return nil
}

// CheckText screens typed or searched text for blocked keywords.
func (p *Policy) CheckText(text string) *Violation {
	lowered := strings.ToLower(text)
	for _, kw := range p.cfg.BlockedKeywords {
		if strings.Contains(lowered, strings.ToLower(kw)) {
			return p.violation(Violation{
				Rule:     RuleBlockedKeyword,
				Detail:   fmt.Sprintf("text contains blocked keyword %q", kw),
				Severity: "critical",
			})
		}
	}
	return nil
}

// RecordTokens adds billed tokens to the session total.
func (p *Policy) RecordTokens(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenCount += n
}

// TokensExhausted reports whether the token budget is spent.
func (p *Policy) TokensExhausted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenCount >= p.cfg.MaxTokens
}

// ActionCount returns the number of actions admitted so far.
func (p *Policy) ActionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.actionCount
}

// RequireStepConfirmation reports whether each plan step needs approval.
func (p *Policy) RequireStepConfirmation() bool {
	return p.cfg.RequireStepConfirmation
}

// Summary is the session's resource usage and violation tally. It is reported
// at the end of every run, including runs that end early.
type Summary struct {
	Actions         int     `json:"actions"`
	Tokens          int     `json:"tokens"`
	Violations      int     `json:"violations"`
	DurationMinutes float64 `json:"duration_minutes"`
}

// Summary returns usage so far. Safe to call mid-run.
func (p *Policy) Summary() Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Summary{
		Actions:         p.actionCount,
		Tokens:          p.tokenCount,
		Violations:      p.violationCount,
		DurationMinutes: time.Since(p.startedAt).Minutes(),
	}
}

// violation counts v and records it in the audit log before returning it.
func (p *Policy) violation(v Violation) *Violation {
	p.mu.Lock()
	p.violationCount++
	p.mu.Unlock()
	if p.vlog != nil {
		p.vlog.Record(v)
	} else {
		p.logger.Warn("Safety violation", zap.String("rule", v.Rule), zap.String("detail", v.Detail))
	}
	return &v
}
