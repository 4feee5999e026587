package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Policy verbs, configured per event kind.
const (
	VerbLog           = "log"
	VerbDelete        = "delete"
	VerbTimeout       = "timeout"
	VerbDeleteTimeout = "delete_timeout"
)

// ValidVerb reports whether s is a recognized policy verb. Empty is valid and
// means log.
func ValidVerb(s string) bool {
	switch s {
	case "", VerbLog, VerbDelete, VerbTimeout, VerbDeleteTimeout:
		return true
	}
	return false
}

// target identifies what an enforcement action applies to.
type target struct {
	kind    EventKind
	account int64
	channel int64
	message int64
	thread  int64
}

// Effect records which sanctions actually succeeded, not which were attempted.
type Effect struct {
	Deleted    bool
	TimedOut   bool
	Banned     bool
	TimeoutDur time.Duration
}

// Describe renders the applied sanctions for humans: "Ban + Delete",
// "Timeout (24h) + Delete", "Delete", "None".
func (e Effect) Describe() string {
	var parts []string
	if e.Banned {
		parts = append(parts, "Ban")
	}
	if e.TimedOut {
		if e.TimeoutDur >= time.Hour {
			parts = append(parts, fmt.Sprintf("Timeout (%dh)", int(e.TimeoutDur.Hours())))
		} else {
			parts = append(parts, fmt.Sprintf("Timeout (%dm)", int(e.TimeoutDur.Minutes())))
		}
	}
	if e.Deleted {
		parts = append(parts, "Delete")
	}
	if len(parts) == 0 {
		return "None"
	}
	return strings.Join(parts, " + ")
}

// applyPolicy maps (event kind, tier, configured verb) to concrete enforcement
// actions and executes them. Deletion runs first and is best-effort; ban takes
// precedence over timeout; timeout only applies if no ban happened. Individual
// action failures are logged and reflected in the returned Effect, never
// propagated.
func (eng *Engine) applyPolicy(ctx context.Context, tgt target, tier Tier) Effect {
	verb := eng.policyVerb(tgt.kind)
	var eff Effect
	if verb == VerbLog {
		return eff
	}
	if eng.Enforcer == nil {
		eng.Logger.Warn("no enforcer configured, policy verb ignored", "verb", verb, "kind", tgt.kind)
		return eff
	}

	log := eng.Logger.With("account", tgt.account, "kind", tgt.kind)

	if verb == VerbDelete || verb == VerbDeleteTimeout {
		if err := eng.deleteTarget(ctx, tgt); err != nil {
			log.Warn("delete failed", "err", err, "channel", tgt.channel, "object", tgt.message)
		} else {
			eff.Deleted = true
			enforceActionCount.WithLabelValues("delete").Inc()
		}
	}

	if eng.banEnabled(tgt.kind, tier) {
		// resolving first avoids a ban call for accounts that already left
		if _, err := eng.Enforcer.ResolveMember(ctx, tgt.account); err != nil {
			if errors.Is(err, ErrMemberNotFound) {
				log.Info("ban skipped, member already gone")
			} else {
				log.Warn("member resolution failed", "err", err)
			}
		} else if err := eng.Enforcer.BanAccount(ctx, tgt.account); err != nil {
			log.Warn("ban failed", "err", err)
		} else {
			eff.Banned = true
			enforceActionCount.WithLabelValues("ban").Inc()
		}
	}

	if !eff.Banned && (verb == VerbTimeout || verb == VerbDeleteTimeout) {
		dur := eng.Config.timeoutDuration()
		if err := eng.Enforcer.TimeoutAccount(ctx, tgt.account, dur); err != nil {
			log.Warn("timeout failed", "err", err)
		} else {
			eff.TimedOut = true
			eff.TimeoutDur = dur
			enforceActionCount.WithLabelValues("timeout").Inc()
		}
	}

	// a thread that could not be deleted still needs containment; fall back
	// to a timeout so the author cannot keep opening threads
	if tgt.kind == KindThread && verb == VerbDelete && !eff.Deleted && !eff.Banned && !eff.TimedOut {
		dur := eng.Config.timeoutDuration()
		if err := eng.Enforcer.TimeoutAccount(ctx, tgt.account, dur); err != nil {
			log.Warn("fallback timeout failed", "err", err)
		} else {
			eff.TimedOut = true
			eff.TimeoutDur = dur
			enforceActionCount.WithLabelValues("timeout").Inc()
		}
	}

	return eff
}

func (eng *Engine) policyVerb(kind EventKind) string {
	var v string
	switch kind {
	case KindMessage:
		v = eng.Config.PolicyMessage
	case KindThread:
		v = eng.Config.PolicyThread
	case KindQR:
		v = eng.Config.PolicyQR
	case KindAvatar:
		v = eng.Config.PolicyAvatar
	default:
		panic(fmt.Sprintf("unknown event kind: %s", kind))
	}
	if v == "" {
		return VerbLog
	}
	if !ValidVerb(v) {
		panic(fmt.Sprintf("unknown policy verb: %s", v))
	}
	return v
}

func (eng *Engine) banEnabled(kind EventKind, tier Tier) bool {
	if kind == KindQR {
		return eng.Config.BanOnQR
	}
	switch tier {
	case TierStrict:
		return eng.Config.BanOnStrict
	case TierNormal:
		return eng.Config.BanOnNormal
	}
	return false
}

func (eng *Engine) deleteTarget(ctx context.Context, tgt target) error {
	switch tgt.kind {
	case KindMessage, KindQR:
		return eng.Enforcer.DeleteMessage(ctx, tgt.channel, tgt.message)
	case KindThread:
		// the starter message is removed first when known; it may already be
		// gone, so its failure does not block the thread removal
		if tgt.message != 0 {
			if err := eng.Enforcer.DeleteMessage(ctx, tgt.thread, tgt.message); err != nil {
				eng.Logger.Warn("starter message delete failed", "err", err, "thread", tgt.thread, "object", tgt.message)
			}
		}
		return eng.Enforcer.DeleteThread(ctx, tgt.thread)
	case KindAvatar:
		// nothing to delete for a profile image
		return nil
	default:
		panic(fmt.Sprintf("unknown event kind: %s", tgt.kind))
	}
}
