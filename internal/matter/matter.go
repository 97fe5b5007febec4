// Package matter defines the contract of the external case-management system
// the saga provisions matters in. The HTTP implementation lives in matter/client.
package matter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Address is a postal address in the external system's shape.
type Address struct {
	Line1    string `json:"line1,omitempty"`
	Line2    string `json:"line2,omitempty"`
	Suburb   string `json:"suburb,omitempty"`
	State    string `json:"state,omitempty"`
	Postcode string `json:"postcode,omitempty"`
	Country  string `json:"country,omitempty"`
}

// IsZero reports whether no address line is set.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Participant is a contact card.
type Participant struct {
	ID              string    `json:"id,omitempty"`
	IsCompany       bool      `json:"isCompany"`
	CompanyName     string    `json:"companyName,omitempty"`
	FirstName       string    `json:"firstName,omitempty"`
	MiddleName      string    `json:"middleName,omitempty"`
	LastName        string    `json:"lastName,omitempty"`
	Email           string    `json:"email,omitempty"`
	Phone1          string    `json:"phone1"`
	Phone1Label     string    `json:"phone1Label"`
	Phone2          string    `json:"phone2"`
	Phone2Label     string    `json:"phone2Label"`
	Phone3          string    `json:"phone3"`
	Phone3Label     string    `json:"phone3Label"`
	Phone4          string    `json:"phone4"`
	Phone4Label     string    `json:"phone4Label"`
	PhysicalAddress Address   `json:"physicalAddress"`
	MailingAddress  Address   `json:"mailingAddress"`
	ModifiedAt      time.Time `json:"modifiedAt,omitempty"`
}

// DisplayName is the company name for companies, otherwise "First Last".
func (p Participant) DisplayName() string {
	if p.IsCompany && p.CompanyName != "" {
		return p.CompanyName
	}
	return strings.Join(strings.Fields(p.FirstName+" "+p.LastName), " ")
}

// ParticipantUpdate carries the fields changed on an existing participant.
type ParticipantUpdate struct {
	IsCompany   *bool   `json:"isCompany,omitempty"`
	CompanyName *string `json:"companyName,omitempty"`
}

// ParticipantFilter narrows a participant search.
type ParticipantFilter struct {
	CompanyNameContains string
	FirstName           string
	MiddleName          string
	LastName            string
	IsCompany           bool
}

// filterEscaper backslash-escapes the filter-string separators in values.
var filterEscaper = strings.NewReplacer(`\`, `\\`, ";", `\;`, "=", `\=`)

// String renders the filter in the external system's filter-string syntax.
// Values are escaped so a name cannot add or alter clauses.
func (f ParticipantFilter) String() string {
	parts := make([]string, 0, 5)
	add := func(key, value string) {
		if value != "" {
			parts = append(parts, key+"="+filterEscaper.Replace(value))
		}
	}
	add("companyName_ilike", f.CompanyNameContains)
	add("firstName_ieq", f.FirstName)
	add("middleName_ieq", f.MiddleName)
	add("lastName_ieq", f.LastName)
	if f.IsCompany {
		parts = append(parts, "isCompany=T")
	} else {
		parts = append(parts, "isCompany=F")
	}
	return strings.Join(parts, ";")
}

// Page selects one page of a listing. Number starts at 1.
type Page struct {
	Number int
	Size   int
}

// ParticipantPage is one page of participant search results.
type ParticipantPage struct {
	Items   []Participant `json:"items"`
	HasMore bool          `json:"hasMore"`
}

// ParticipantType is a role a participant can hold on a matter.
type ParticipantType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MatterParticipant is a participant linked to a matter under a type.
type MatterParticipant struct {
	ParticipantID string `json:"participantId"`
	TypeID        string `json:"typeId"`
	TypeName      string `json:"typeName"`
	DisplayName   string `json:"displayName"`
}

// MatterCreate is the input for creating a matter from a template.
type MatterCreate struct {
	Name       string `json:"name"`
	TemplateID string `json:"templateId"`
	AssigneeID string `json:"assigneeId,omitempty"`
	Reference  string `json:"reference,omitempty"`
}

// Matter is a case record.
type Matter struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	TemplateID string `json:"templateId"`
	StepID     string `json:"stepId"`
}

// DataCollection is a named group of structured fields.
type DataCollection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RecordValue is one field value of a data-collection record on a matter.
type RecordValue struct {
	ID           string `json:"id"`
	CollectionID string `json:"collectionId"`
	RecordID     string `json:"recordId"`
	Field        string `json:"field"`
	Value        string `json:"value"`
}

// RecordValuePage is one page of record values.
type RecordValuePage struct {
	Items   []RecordValue `json:"items"`
	HasMore bool          `json:"hasMore"`
}

// Task is a to-do created on a matter.
type Task struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	DueDate     string `json:"dueDate,omitempty"`
	AssigneeID  string `json:"assigneeId,omitempty"`
}

// Folder is a document folder on a matter.
type Folder struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parentId,omitempty"`
}

// DocumentLink attaches an uploaded file to a matter folder.
type DocumentLink struct {
	UploadID string `json:"uploadId"`
	FolderID string `json:"folderId"`
	Name     string `json:"name"`
}

// Step is a workflow step.
type Step struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StepInfo describes where a matter currently sits in its workflow.
type StepInfo struct {
	Current      Step     `json:"current"`
	AssigneeID   string   `json:"assigneeId"`
	Available    []Step   `json:"available"`
	RequiredData []string `json:"requiredData"`
}

// StepChange moves a matter to another workflow step.
type StepChange struct {
	StepID     string            `json:"stepId"`
	AssigneeID string            `json:"assigneeId,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
}

// Client is the capability set the saga needs from the case-management system.
type Client interface {
	CreateMatter(ctx context.Context, in MatterCreate) (Matter, error)

	ListParticipantTypes(ctx context.Context) ([]ParticipantType, error)
	SearchParticipants(ctx context.Context, filter ParticipantFilter, page Page) (ParticipantPage, error)
	CreateParticipant(ctx context.Context, in Participant) (Participant, error)
	UpdateParticipant(ctx context.Context, id string, in ParticipantUpdate) error

	ListMatterParticipants(ctx context.Context, matterID string) ([]MatterParticipant, error)
	LinkParticipant(ctx context.Context, matterID, participantID, typeID string) error

	ListDataCollections(ctx context.Context) ([]DataCollection, error)
	CreateCollectionRecord(ctx context.Context, matterID, collectionID string) (string, error)
	ListRecordValues(ctx context.Context, matterID string, page Page) (RecordValuePage, error)
	UpdateRecordValue(ctx context.Context, valueID, value string) error

	CreateFileNote(ctx context.Context, matterID, text string) error
	CreateTask(ctx context.Context, matterID string, task Task) error

	ListFolders(ctx context.Context, matterID string) ([]Folder, error)
	UploadDocument(ctx context.Context, name string, content []byte) (string, error)
	LinkDocument(ctx context.Context, matterID string, link DocumentLink) error

	GetStepInfo(ctx context.Context, matterID string) (StepInfo, error)
	ChangeStep(ctx context.Context, matterID string, change StepChange) error
}

// APIError is a non-2xx response from the case-management system.
type APIError struct {
	Op     string
	Status int
	Body   []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("matter api %s: status %d", e.Op, e.Status)
}

// Display renders the error for an operator. JSON bodies are pretty-printed.
func (e *APIError) Display() string {
	body := bytes.TrimSpace(e.Body)
	if len(body) == 0 {
		return e.Error()
	}

	var pretty bytes.Buffer
	if json.Valid(body) && json.Indent(&pretty, body, "", "  ") == nil {
		return e.Error() + "\n" + pretty.String()
	}
	return e.Error() + "\n" + string(body)
}
