package populator

import (
	"strings"

	"matter_intake_backend/internal/policy"
)

// Status is the outcome of a field update decision.
type Status string

const (
	StatusUpdate   Status = "updateField"
	StatusSkip     Status = "skipField"
	StatusNotFound Status = "notFound"
)

// Decision says whether a stored field value is written and with what.
type Decision struct {
	Status Status
	Value  string
}

// Decide applies the field's configured action. replaceIf resolves to
// doNothing on vacant land and replace otherwise. doNothing writes only into
// an empty stored value (first write wins).
func Decide(action policy.Action, vacantLand bool, stored, incoming string) Decision {
	if action == policy.ActionReplaceIf {
		action = policy.ActionReplace
		if vacantLand {
			action = policy.ActionDoNothing
		}
	}

	switch action {
	case policy.ActionReplace:
		return Decision{Status: StatusUpdate, Value: incoming}
	case policy.ActionDoNothing:
		if strings.TrimSpace(stored) == "" && strings.TrimSpace(incoming) != "" {
			return Decision{Status: StatusUpdate, Value: incoming}
		}
		return Decision{Status: StatusSkip}
	default:
		return Decision{Status: StatusNotFound}
	}
}
