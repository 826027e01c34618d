package ferry

import (
	"context"
	"fmt"
	"log/slog"
)

// Gate decides whether a request may download a resource. Checks run in a
// fixed order and stop at the first refusal:
//
//  1. the download exists and has a locator (ErrNotDownloadable)
//  2. the password, if any, was supplied (ErrPasswordRequired) and matches (ErrIncorrectPassword)
//  3. the conditional logic admits the request (ErrUnauthorized)
type Gate struct {
	rules  *RuleRegistry
	logger *slog.Logger
}

func NewGate(rules *RuleRegistry, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	if rules == nil {
		rules = DefaultRuleRegistry(logger)
	}
	return &Gate{rules: rules, logger: logger}
}

func (g *Gate) Check(ctx context.Context, d *Download, req RequestContext) error {
	if d == nil || !d.IsDownloadable() {
		return fmt.Errorf("gate: %w", ErrNotDownloadable)
	}

	if d.IsPasswordProtected() {
		if !req.HasPassword {
			return fmt.Errorf("gate: download %d: %w", d.ID, ErrPasswordRequired)
		}

		ok, err := VerifyPassword(req.Password, d.Password)
		if err != nil {
			g.logger.WarnContext(ctx, "stored password is unusable", "download_id", d.ID, "err", err)
		}
		if !ok {
			return fmt.Errorf("gate: download %d: %w", d.ID, ErrIncorrectPassword)
		}
	}

	if !g.rules.Allows(ctx, d.Rules, req) {
		return fmt.Errorf("gate: download %d: %w", d.ID, ErrUnauthorized)
	}

	return nil
}
