// Package policy holds the per-tenant lookup tables the saga consults: field
// update actions, placeholder company names, role names and custom holidays.
// Tables are loaded once and injected; nothing here is mutated after Load.
package policy

import (
	"fmt"
	"os"
	"strings"

	"matter_intake_backend/internal/calendar"

	"gopkg.in/yaml.v3"
)

// Action is the configured update behaviour for a data-collection field.
type Action string

const (
	// ActionReplace always overwrites the stored value.
	ActionReplace Action = "replace"
	// ActionDoNothing writes only when the stored value is empty (first write wins).
	ActionDoNothing Action = "doNothing"
	// ActionReplaceIf is replace, or doNothing when the property is vacant land.
	ActionReplaceIf Action = "replaceIf"
	// ActionNotFound is the implicit action for keys missing from the table.
	ActionNotFound Action = "notFound"
)

// Roles names the participant types that carry special linking rules.
type Roles struct {
	Buyer              string `yaml:"buyer"`
	Seller             string `yaml:"seller"`
	Council            string `yaml:"council"`
	WaterAuthority     string `yaml:"waterAuthority"`
	OtherSideSolicitor string `yaml:"otherSideSolicitor"`
	Client             string `yaml:"client"`
	OtherSide          string `yaml:"otherSide"`
	Property           string `yaml:"property"`
}

// Notes holds the fixed texts used when issues are written to the matter.
type Notes struct {
	Disclaimer            string `yaml:"disclaimer"`
	ExternalSubmissionTag string `yaml:"externalSubmissionTag"`
}

// StepChange configures the terminal workflow-step transition.
type StepChange struct {
	TargetStep       string            `yaml:"targetStep"`
	DefaultAssignee  string            `yaml:"defaultAssignee"`
	RequiredStepData map[string]string `yaml:"requiredStepData"`
}

// Policy is the full table set for one tenant.
type Policy struct {
	FieldActions     map[string]Action        `yaml:"fieldActions"`
	DefaultCompanies []string                 `yaml:"defaultCompanies"`
	CustomHolidays   []calendar.CustomHoliday `yaml:"customHolidays"`
	Roles            Roles                    `yaml:"roles"`
	Notes            Notes                    `yaml:"notes"`
	StepChange       StepChange               `yaml:"stepChange"`
	// PropertyField is the synthetic collection field that receives the
	// property participant id; empty disables the injection.
	PropertyField  string `yaml:"propertyField"`
	DocumentFolder string `yaml:"documentFolder"`
}

// Default returns the built-in table set used when no policy file is configured.
func Default() *Policy {
	return &Policy{
		FieldActions: map[string]Action{
			"purchase_price":       ActionReplace,
			"deposit_amount":       ActionReplace,
			"contract_date":        ActionReplace,
			"settlement_date":      ActionReplace,
			"finance_date":         ActionReplace,
			"cooling_off_date":     ActionReplace,
			"property_address":     ActionReplace,
			"lot_number":           ActionDoNothing,
			"plan_number":          ActionDoNothing,
			"title_reference":      ActionDoNothing,
			"zoning":               ActionDoNothing,
			"property_participant": ActionDoNothing,
			"smoke_alarm_required": ActionReplaceIf,
			"pool_certificate":     ActionReplaceIf,
			"building_inspection":  ActionReplaceIf,
		},
		DefaultCompanies: []string{"TBA", "To Be Advised", "Unknown Agent", "Private Sale"},
		Roles: Roles{
			Buyer:              "Buyer",
			Seller:             "Seller",
			Council:            "Council",
			WaterAuthority:     "Water Authority",
			OtherSideSolicitor: "Other Side Solicitor",
			Client:             "Client",
			OtherSide:          "Other Side",
			Property:           "Property",
		},
		Notes: Notes{
			Disclaimer:            "The notes above were generated automatically while the matter was created. Please review them.",
			ExternalSubmissionTag: "[external submission]",
		},
		StepChange: StepChange{
			TargetStep: "File Opened",
		},
		PropertyField:  "property_participant",
		DocumentFolder: "Documents",
	}
}

// Load reads a YAML policy file. An empty path returns Default().
// Missing sections in the file fall back to the defaults.
func Load(path string) (*Policy, error) {
	p := Default()
	if strings.TrimSpace(path) == "" {
		return p, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes YAML on top of Default().
func Parse(raw []byte) (*Policy, error) {
	p := Default()
	if err := yaml.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("decode policy: %w", err)
	}
	for key, action := range p.FieldActions {
		switch action {
		case ActionReplace, ActionDoNothing, ActionReplaceIf:
		default:
			return nil, fmt.Errorf("policy: field %q has unknown action %q", key, action)
		}
	}
	return p, nil
}

// ActionFor returns the configured action for a field key, or ActionNotFound.
func (p *Policy) ActionFor(field string) Action {
	if action, ok := p.FieldActions[field]; ok {
		return action
	}
	return ActionNotFound
}

// IsDefaultCompany reports whether name is a configured placeholder company,
// ignoring case and surrounding whitespace.
func (p *Policy) IsDefaultCompany(name string) bool {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return false
	}
	for _, c := range p.DefaultCompanies {
		if strings.ToLower(strings.TrimSpace(c)) == needle {
			return true
		}
	}
	return false
}

// SameRole compares participant type names case-insensitively.
func SameRole(a, b string) bool {
	return a != "" && strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
