package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var alertCounterScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// AlertResult contains alert evaluation output.
type AlertResult struct {
	Triggered bool
	Count     int64
	Threshold int64
	Window    time.Duration
}

// AuditAlerter counts failed security events per client IP in fixed
// windows and reports when a rule's threshold is reached.
type AuditAlerter struct {
	redisClient *redis.Client
	prefix      string
	now         func() time.Time
}

// NewAuditAlerter creates an alerter backed by Redis counters. It returns
// nil when addr is empty; a nil alerter observes nothing.
func NewAuditAlerter(addr, password, prefix string) *AuditAlerter {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "mailbox:alerts"
	}
	return &AuditAlerter{
		redisClient: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		prefix: prefix,
		now:    time.Now,
	}
}

// Observe records a security event and returns whether the alert threshold is reached.
func (a *AuditAlerter) Observe(ctx context.Context, event, outcome, ip string) (AlertResult, error) {
	if a == nil || a.redisClient == nil {
		return AlertResult{}, nil
	}
	rule, ok := ruleFor(event, outcome)
	if !ok {
		return AlertResult{}, nil
	}
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = "unknown"
	}
	windowMs := rule.window.Milliseconds()
	slot := a.now().UTC().UnixMilli() / windowMs
	key := fmt.Sprintf("%s:%s:%s:%s:%d", a.prefix, sanitizeSegment(event), sanitizeSegment(outcome), sanitizeSegment(ip), slot)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	count, err := alertCounterScript.Run(ctx, a.redisClient, []string{key}, windowMs).Int64()
	if err != nil {
		return AlertResult{}, fmt.Errorf("count %s: %w", event, err)
	}
	return AlertResult{
		Triggered: count >= rule.threshold,
		Count:     count,
		Threshold: rule.threshold,
		Window:    rule.window,
	}, nil
}

// Close releases the Redis connection.
func (a *AuditAlerter) Close() error {
	if a == nil || a.redisClient == nil {
		return nil
	}
	return a.redisClient.Close()
}

type alertRule struct {
	threshold int64
	window    time.Duration
}

var (
	rateLimitedRule = alertRule{threshold: 20, window: time.Minute}
	failureRules    = map[string]alertRule{
		"mailbox.login":           {10, 5 * time.Minute},
		"mailbox.register":        {10, 5 * time.Minute},
		"mailbox.logout":          {15, 5 * time.Minute},
		"mailbox.password.change": {15, 5 * time.Minute},
		"mailbox.token.verify":    {25, 5 * time.Minute},
		"mailbox.admin.authorize": {25, 5 * time.Minute},
	}
)

func ruleFor(event, outcome string) (alertRule, bool) {
	switch strings.TrimSpace(outcome) {
	case "rate_limited":
		return rateLimitedRule, true
	case "fail":
		rule, ok := failureRules[strings.TrimSpace(event)]
		return rule, ok
	default:
		return alertRule{}, false
	}
}

func sanitizeSegment(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}
	replacer := strings.NewReplacer(":", "_", "|", "_", " ", "_")
	return replacer.Replace(in)
}
