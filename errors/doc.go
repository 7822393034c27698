// Package errors provides standardized error handling patterns for killjoy.
//
// # Overview
//
// The errors package implements a three-class error classification system for
// the unit-watching daemon: Transient (temporary, retryable), Invalid (bad
// input, non-retryable), and Fatal (unrecoverable, stop processing).
//
// Classification lets the watcher, dispatcher, and supervisor make informed
// decisions about reconnects, graceful degradation, and shutdown without
// hardcoded error string matching.
//
// # Error Classification
//
// Errors are classified based on their type or content:
//
//   - Transient: bus disconnects, call timeouts, unreachable notifiers (retry recommended)
//   - Invalid: malformed signal bodies, unparseable settings, unknown states (do not retry)
//   - Fatal: rejected configuration, exhausted reconnect budget (stop processing)
//
// The classification system integrates with Go's standard error handling,
// supporting errors.Is(), errors.As(), and error wrapping chains.
//
// # Quick Start
//
// Use standard error variables for common conditions:
//
//	if conn == nil {
//	    return errors.ErrNotConnected
//	}
//
// Wrap errors with context for debugging:
//
//	if err := obj.Call(...); err != nil {
//	    return errors.WrapTransient(err, "Client", "ListUnits", "manager call")
//	}
//
// Check classification for retry logic:
//
//	if err := session.Run(ctx); err != nil {
//	    if errors.IsTransient(err) {
//	        // reconnect with exponential backoff
//	    } else if errors.IsFatal(err) {
//	        // stop the session, escalate to the supervisor
//	    }
//	}
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// This format enables consistent log parsing and debugging across the daemon.
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")
//	errors.WrapInvalid(err, "Component", "Method", "action")
//	errors.WrapFatal(err, "Component", "Method", "action")
//
// The generic Wrap() function preserves the original error's classification:
//
//	errors.Wrap(err, "Component", "Method", "action")
//
// # Retry Configuration
//
// RetryConfig carries the reconnect policy for a bus session and bridges to
// the pkg/retry framework:
//
//	cfg := errors.DefaultRetryConfig()
//	err := retry.Do(ctx, cfg.ToRetryConfig(), func() error {
//	    return session.connect(ctx)
//	})
//
// Non-transient errors should be wrapped with retry.NonRetryable before being
// returned from the retried function so the loop fails fast.
//
// # Context Cancellation
//
// Context errors (context.DeadlineExceeded, context.Canceled) classify as
// Transient. Callers that need to distinguish shutdown from a flaky bus check
// ctx.Err() directly before consulting the classification.
//
// # Architecture Integration
//
//   - dbusclient: uses the connection error variables and WrapTransient
//   - watcher: classifies session failures to choose between reconnect and stop
//   - dispatch: isolates notifier failures as transient, never fatal
//   - config: returns Invalid wrapping for validation failures, Fatal for an
//     unsupported schema version
package errors
