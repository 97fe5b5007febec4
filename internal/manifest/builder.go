package manifest

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"matter_intake_backend/internal/duedate"
	"matter_intake_backend/platform/apperr"
	"matter_intake_backend/platform/sanitize"
	"matter_intake_backend/platform/validator"
)

// DueField is a free-text due value ("21 days", "27/12/2024") resolved into
// a collection field relative to the contract date.
type DueField struct {
	CollectionID string `json:"collectionId" validate:"required"`
	Field        string `json:"field" validate:"required"`
	Due          string `json:"due"`
}

// TaskInput is a task whose due date is free text.
type TaskInput struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
	Due         string `json:"due,omitempty"`
	AssigneeID  string `json:"assigneeId,omitempty"`
}

// Submission is the intake payload a manifest is built from.
type Submission struct {
	MatterName   string             `json:"matterName"`
	TemplateID   string             `json:"templateId"`
	ContractDate string             `json:"contractDate,omitempty"`
	VacantLand   bool               `json:"vacantLand"`
	Participants Participants       `json:"participants"`
	Collections  []CollectionFields `json:"collections,omitempty" validate:"dive"`
	DueFields    []DueField         `json:"dueFields,omitempty" validate:"dive"`
	Filenotes    []string           `json:"filenotes,omitempty"`
	Tasks        []TaskInput        `json:"tasks,omitempty" validate:"dive"`
	Files        []FileRef          `json:"files,omitempty" validate:"dive"`
}

// Builder turns a Submission into a validated Manifest.
type Builder struct {
	dates    *duedate.Interpreter
	validate *validator.Validator
	schema   *Schema
}

// NewBuilder creates a Builder.
func NewBuilder(dates *duedate.Interpreter, val *validator.Validator, schema *Schema) *Builder {
	return &Builder{dates: dates, validate: val, schema: schema}
}

// Build copies the submission into a manifest, resolving due values against
// the contract date. Unresolvable due values are reported as issues, not
// errors; a manifest failing validation is an INVALID_MANIFEST error.
func (b *Builder) Build(sub Submission) (*Manifest, []string, error) {
	var issues []string

	reference, issue := contractDate(sub.ContractDate)
	if issue != "" {
		issues = append(issues, issue)
	}

	m := &Manifest{
		MatterName:   strings.TrimSpace(sub.MatterName),
		TemplateID:   strings.TrimSpace(sub.TemplateID),
		VacantLand:   sub.VacantLand,
		Participants: sub.Participants,
		Filenotes:    sanitize.Lines(sub.Filenotes),
		Files:        append([]FileRef(nil), sub.Files...),
	}

	index := make(map[string]int, len(sub.Collections))
	for _, c := range sub.Collections {
		fields := make(map[string]string, len(c.Fields))
		maps.Copy(fields, c.Fields)
		if i, ok := index[c.CollectionID]; ok {
			maps.Copy(m.Collections[i].Fields, fields)
			continue
		}
		index[c.CollectionID] = len(m.Collections)
		m.Collections = append(m.Collections, CollectionFields{CollectionID: c.CollectionID, Name: c.Name, Fields: fields})
	}

	for _, due := range sub.DueFields {
		value, ok := b.dates.Resolve(due.Due, reference)
		if !ok {
			issues = append(issues, fmt.Sprintf("Could not work out a date for %s from %q.", due.Field, due.Due))
			continue
		}
		i, exists := index[due.CollectionID]
		if !exists {
			i = len(m.Collections)
			index[due.CollectionID] = i
			m.Collections = append(m.Collections, CollectionFields{CollectionID: due.CollectionID, Fields: map[string]string{}})
		}
		m.Collections[i].Fields[due.Field] = value.Format(duedate.ISODate)
	}

	for _, t := range sub.Tasks {
		task := Task{Name: t.Name, Description: sanitize.Text(t.Description), AssigneeID: t.AssigneeID}
		if strings.TrimSpace(t.Due) != "" {
			task.DueDate = b.dates.ResolveISO(t.Due, reference)
			if task.DueDate == "" {
				issues = append(issues, fmt.Sprintf("Could not work out a due date for task %q from %q.", t.Name, t.Due))
			}
		}
		m.Tasks = append(m.Tasks, task)
	}

	if err := b.Validate(m); err != nil {
		return nil, issues, err
	}
	return m, issues, nil
}

// Validate runs struct and schema validation.
func (b *Builder) Validate(m *Manifest) error {
	if err := b.validate.Struct(m); err != nil {
		return invalid(validator.Describe(err), err)
	}
	if err := b.schema.Validate(m); err != nil {
		return invalid(err.Error(), err)
	}
	return nil
}

func invalid(detail string, err error) error {
	return apperr.Wrap(apperr.KindValidation, "manifest failed validation", err).
		WithCode(apperr.CodeInvalidManifest).
		WithUserMessage("The matter details could not be used because they are incomplete or malformed: " + detail)
}

func contractDate(raw string) (*time.Time, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, "No contract date was supplied, so due dates were left blank."
	}
	d, err := time.Parse(duedate.ISODate, raw)
	if err != nil {
		return nil, fmt.Sprintf("Contract date %q is not a valid date, so due dates were left blank.", raw)
	}
	return &d, ""
}
