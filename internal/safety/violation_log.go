// -- internal/safety/violation_log.go --
package safety

import (
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Violation is one blocked action or budget breach.
type Violation struct {
	Timestamp time.Time `json:"timestamp"`
	Rule      string    `json:"rule"`
	Action    string    `json:"action,omitempty"`
	Detail    string    `json:"detail"`
	Severity  string    `json:"severity"`
}

// Violation rules.
const (
	RuleEmergencyStop  = "emergency_stop"
	RuleBlockedDomain  = "blocked_domain"
	RuleBlockedURL     = "blocked_url_pattern"
	RuleBlockedKeyword = "blocked_keyword"
	RuleOutOfScope     = "out_of_scope"
	RuleActionBudget   = "action_budget"
	RuleTokenBudget    = "token_budget"
	RuleSessionTimeout = "session_timeout"
)

// ViolationLog persists violations as JSON lines in a rotated file. Write
// failures never propagate: a broken audit log must not abort the run.
type ViolationLog struct {
	mu     sync.Mutex
	writer *lumberjack.Logger
	logger *zap.Logger
}

// NewViolationLog opens (lazily) the violation log at path. An empty path
// disables persistence.
func NewViolationLog(path string, logger *zap.Logger) *ViolationLog {
	vl := &ViolationLog{logger: logger.Named("violations")}
	if path != "" {
		vl.writer = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}
	}
	return vl
}

// Record appends one violation. Errors are swallowed.
func (vl *ViolationLog) Record(v Violation) {
	if v.Timestamp.IsZero() {
		v.Timestamp = time.Now().UTC()
	}
	vl.logger.Warn("Safety violation",
		zap.String("rule", v.Rule),
		zap.String("action", v.Action),
		zap.String("detail", v.Detail),
	)
	if vl.writer == nil {
		return
	}

	line, err := json.Marshal(v)
	if err != nil {
		vl.logger.Debug("Failed to marshal violation", zap.Error(err))
		return
	}
	line = append(line, '\n')

	vl.mu.Lock()
	defer vl.mu.Unlock()
	if _, err := vl.writer.Write(line); err != nil {
		vl.logger.Debug("Failed to write violation log", zap.Error(err))
	}
}

// Close flushes and closes the underlying file.
func (vl *ViolationLog) Close() error {
	if vl.writer == nil {
		return nil
	}
	return vl.writer.Close()
}
