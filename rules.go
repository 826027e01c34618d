package ferry

import (
	"context"
	"log/slog"
	"net/netip"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// Predicate reports whether a request satisfies a rule value, e.g. whether
// the user has the role named by value.
type Predicate func(ctx context.Context, value string, req RequestContext) bool

// RuleRegistry maps rule types to predicates. It is safe for concurrent use;
// predicates are normally registered once at startup.
type RuleRegistry struct {
	mu         sync.RWMutex
	predicates map[RuleType]Predicate
	logger     *slog.Logger
}

// NewRuleRegistry returns an empty registry.
func NewRuleRegistry(logger *slog.Logger) *RuleRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleRegistry{
		predicates: make(map[RuleType]Predicate),
		logger:     logger,
	}
}

// DefaultRuleRegistry returns a registry with the user_role, user_id and
// ip_address predicates registered.
func DefaultRuleRegistry(logger *slog.Logger) *RuleRegistry {
	r := NewRuleRegistry(logger)
	r.Register(RuleUserRole, UserRolePredicate)
	r.Register(RuleUserID, UserIDPredicate)
	r.Register(RuleIPAddress, IPAddressPredicate)
	return r
}

// Register adds or replaces the predicate for a rule type.
func (r *RuleRegistry) Register(t RuleType, p Predicate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predicates[t] = p
}

// Evaluate reports whether a single rule is met. A rule whose type has no
// registered predicate is never met.
func (r *RuleRegistry) Evaluate(ctx context.Context, rule Rule, req RequestContext) bool {
	r.mu.RLock()
	p, ok := r.predicates[rule.Type]
	r.mu.RUnlock()

	if !ok {
		r.logger.WarnContext(ctx, "no predicate registered for rule type", "type", rule.Type)
		return false
	}

	result := p(ctx, rule.Value, req)
	if rule.Condition == ConditionIsNot {
		return !result
	}
	return result
}

// Allows combines the rules of a ConditionalLogic with its type and action.
func (r *RuleRegistry) Allows(ctx context.Context, logic ConditionalLogic, req RequestContext) bool {
	if !logic.Enabled || len(logic.Rules) == 0 {
		return true
	}

	met := func(rule Rule) bool {
		return r.Evaluate(ctx, rule, req)
	}

	var matched bool
	if logic.Type == LogicAny {
		matched = lo.SomeBy(logic.Rules, met)
	} else {
		matched = lo.EveryBy(logic.Rules, met)
	}

	if logic.Action == ActionPrevent {
		return !matched
	}
	return matched
}

// UserRolePredicate matches when the request user has the given role.
func UserRolePredicate(_ context.Context, value string, req RequestContext) bool {
	return req.User.HasRole(strings.TrimSpace(value))
}

// UserIDPredicate matches when the request user has the given ID.
func UserIDPredicate(_ context.Context, value string, req RequestContext) bool {
	return req.User != nil && req.User.ID == strings.TrimSpace(value)
}

// IPAddressPredicate matches the client IP against a comma separated list of
// addresses and CIDR prefixes.
func IPAddressPredicate(_ context.Context, value string, req RequestContext) bool {
	addr, err := netip.ParseAddr(req.IP)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	entries := lo.Compact(lo.Map(strings.Split(value, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))

	return lo.SomeBy(entries, func(entry string) bool {
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			return err == nil && prefix.Contains(addr)
		}
		other, err := netip.ParseAddr(entry)
		return err == nil && other.Unmap() == addr
	})
}
