package check

import "sort"

// Severity is the ordered probe outcome. It doubles as the process exit
// code expected by monitoring schedulers.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityWarning
	SeverityCritical
)

// String renders the severity the way the summary line spells it.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "Warning"
	case SeverityCritical:
		return "Critical"
	default:
		return "OK"
	}
}

// Result accumulates the outcome of one evaluation pass: the overall
// severity plus the sensors responsible at each level. A sensor appears in
// at most one of the two sets; promotion to critical removes it from the
// warning set. Severity only ever rises.
type Result struct {
	severity Severity
	warning  map[string]struct{}
	critical map[string]struct{}
}

// NewResult returns an OK result with empty sensor sets.
func NewResult() *Result {
	return &Result{
		warning:  make(map[string]struct{}),
		critical: make(map[string]struct{}),
	}
}

// AddWarning marks a sensor as breaching its warning level. A sensor that
// is already critical stays critical; the overall severity still rises to
// at least Warning.
func (r *Result) AddWarning(name string) {
	r.raise(SeverityWarning)
	if _, ok := r.critical[name]; ok {
		return
	}
	r.warning[name] = struct{}{}
}

// AddCritical marks a sensor as critical, removing any warning mark it
// carried.
func (r *Result) AddCritical(name string) {
	r.raise(SeverityCritical)
	delete(r.warning, name)
	r.critical[name] = struct{}{}
}

func (r *Result) raise(s Severity) {
	if s > r.severity {
		r.severity = s
	}
}

// Severity returns the overall outcome.
func (r *Result) Severity() Severity { return r.severity }

// WarningSensors returns the warning set, sorted for deterministic output.
func (r *Result) WarningSensors() []string { return sortedNames(r.warning) }

// CriticalSensors returns the critical set, sorted for deterministic output.
func (r *Result) CriticalSensors() []string { return sortedNames(r.critical) }

// IsWarning reports whether the sensor is in the warning set.
func (r *Result) IsWarning(name string) bool {
	_, ok := r.warning[name]
	return ok
}

// IsCritical reports whether the sensor is in the critical set.
func (r *Result) IsCritical(name string) bool {
	_, ok := r.critical[name]
	return ok
}

func sortedNames(set map[string]struct{}) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
