// Package notify posts load run outcomes to chat webhooks.
package notify

import (
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/mirrorperf/packages/stress"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends notifications for every run
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when a run fails
	NotifyFailure NotifyOn = "failure"
	// NotifySuccess sends notifications only when a run passes
	NotifySuccess NotifyOn = "success"
	// NotifyRecovery sends notifications on failure and when a run passes after a failed one
	NotifyRecovery NotifyOn = "recovery"
)

// ParseNotifyOn validates a --notify-on value
func ParseNotifyOn(s string) (NotifyOn, error) {
	switch on := NotifyOn(s); on {
	case NotifyAlways, NotifyFailure, NotifySuccess, NotifyRecovery:
		return on, nil
	case "":
		return NotifyFailure, nil
	default:
		return "", fmt.Errorf("invalid notify-on %q (use always, failure, success or recovery)", s)
	}
}

// RunSummary is what a notification reports about one load run
type RunSummary struct {
	RunID      string        `json:"run_id"`
	Target     string        `json:"target,omitempty"`
	Scenarios  []string      `json:"scenarios"`
	Mode       string        `json:"mode"`
	Duration   time.Duration `json:"duration"`
	Iterations int64         `json:"iterations"`
	Errors     int64         `json:"errors"`
	RPS        float64       `json:"rps"`
	P95        time.Duration `json:"p95"`
	CheckRate  float64       `json:"check_rate"`
	Passed     bool          `json:"passed"`

	FailedThresholds []FailedThreshold `json:"failed_thresholds,omitempty"`
	FailedChecks     []FailedCheck     `json:"failed_checks,omitempty"`
	IsRecovery       bool              `json:"is_recovery,omitempty"`
}

// FailedThreshold is a threshold the run did not meet
type FailedThreshold struct {
	Name     string `json:"name"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// FailedCheck is a check that failed on at least one iteration
type FailedCheck struct {
	Scenario string `json:"scenario"`
	Name     string `json:"name"`
	Failed   int64  `json:"failed"`
	Total    int64  `json:"total"`
}

// FromResult summarizes a finished run. target is the BASE_URL_PREFIX
// the run was pointed at.
func FromResult(result *stress.Result, target string) *RunSummary {
	s := &RunSummary{
		RunID:     result.RunID,
		Target:    target,
		Scenarios: result.Scenarios,
		Mode:      result.Config.Mode.String(),
		Passed:    result.Passed,
	}

	if sum := result.Summary; sum != nil {
		s.Duration = sum.Duration
		s.Iterations = sum.TotalRequests
		s.Errors = sum.ErrorCount
		s.RPS = sum.RPS
		s.P95 = sum.P95
		s.CheckRate = sum.CheckRate

		for _, c := range sum.Checks {
			if c.Failed == 0 {
				continue
			}
			s.FailedChecks = append(s.FailedChecks, FailedCheck{
				Scenario: c.Scenario,
				Name:     c.Name,
				Failed:   c.Failed,
				Total:    c.Passed + c.Failed,
			})
		}
	}

	for _, tr := range result.Thresholds {
		if !tr.Passed {
			s.FailedThresholds = append(s.FailedThresholds, FailedThreshold{
				Name:     tr.Name,
				Expected: tr.Expected,
				Actual:   tr.Actual,
			})
		}
	}

	return s
}

// Notifier is the interface for notification services
type Notifier interface {
	// Notify sends a notification about a run
	Notify(summary *RunSummary) error

	// Name returns the name of the notifier
	Name() string
}

// Manager manages multiple notifiers
type Manager struct {
	notifiers []Notifier
	notifyOn  NotifyOn
	lastState bool // true if last run passed
}

// NewManager creates a new notification manager
func NewManager(notifyOn NotifyOn, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		lastState: true, // Assume success initially
	}
}

// AddNotifier adds a notifier to the manager
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Len returns the number of notifiers
func (m *Manager) Len() int {
	return len(m.notifiers)
}

// SetLastState records whether the previous run passed, e.g. from run history
func (m *Manager) SetLastState(passed bool) {
	m.lastState = passed
}

// Notify sends notifications based on the configured policy
func (m *Manager) Notify(summary *RunSummary) error {
	shouldNotify := false

	switch m.notifyOn {
	case NotifyAlways:
		shouldNotify = true
	case NotifyFailure:
		shouldNotify = !summary.Passed
	case NotifySuccess:
		shouldNotify = summary.Passed
	case NotifyRecovery:
		if !m.lastState && summary.Passed {
			shouldNotify = true
			summary.IsRecovery = true
		}
		if !summary.Passed {
			shouldNotify = true
		}
	}

	m.lastState = summary.Passed

	if !shouldNotify {
		return nil
	}

	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(summary); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}

	return errors.Join(errs...)
}

// headline returns the title of a notification
func headline(summary *RunSummary) string {
	switch {
	case !summary.Passed && len(summary.FailedThresholds) > 0:
		return fmt.Sprintf("Load run failed %d threshold(s)", len(summary.FailedThresholds))
	case !summary.Passed:
		return "Load run failed"
	case summary.IsRecovery:
		return "Load run recovered!"
	default:
		return "Load run passed"
	}
}

func formatPercent(rate float64) string {
	return fmt.Sprintf("%.2f%%", rate*100)
}
