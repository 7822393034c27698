package health

import "time"

// NewHealthy builds a healthy status stamped now.
func NewHealthy(component, message string) Status {
	return newStatus(component, "healthy", true, message)
}

// NewUnhealthy builds an unhealthy status stamped now.
func NewUnhealthy(component, message string) Status {
	return newStatus(component, "unhealthy", false, message)
}

// NewDegraded builds a degraded status stamped now. Degraded is what a bus
// session reports while reconnecting: not failed, not yet watching.
func NewDegraded(component, message string) Status {
	return newStatus(component, "degraded", false, message)
}

func newStatus(component, state string, healthy bool, message string) Status {
	return Status{
		Component: component,
		Healthy:   healthy,
		Status:    state,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Aggregate folds sub-statuses into one daemon-level status. Any unhealthy
// sub-status makes the aggregate unhealthy; failing that, any degraded one
// makes it degraded. The sub-statuses are copied into the result, so callers
// keep ownership of their slice.
func Aggregate(component string, subs []Status) Status {
	if len(subs) == 0 {
		return NewHealthy(component, "No sub-components to aggregate")
	}

	agg := NewHealthy(component, "All sub-components are healthy")
	for _, sub := range subs {
		switch {
		case sub.IsUnhealthy():
			agg = NewUnhealthy(component, "One or more sub-components are unhealthy")
		case sub.IsDegraded() && !agg.IsUnhealthy():
			agg = NewDegraded(component, "One or more sub-components are degraded")
		}
	}

	agg.SubStatuses = append([]Status(nil), subs...)
	return agg
}
