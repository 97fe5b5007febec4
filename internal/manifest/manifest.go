// Package manifest describes everything a saga provisions on one matter. A
// Manifest is computed once from the intake submission, validated against
// the embedded JSON schema and persisted on the saga state; it is never
// mutated afterwards.
package manifest

// Address kinds.
const (
	AddressPhysical = "physical"
	AddressMailing  = "mailing"
)

// Phone is a number with an optional label such as "Mobile" or "Work".
type Phone struct {
	Number string `json:"number" validate:"required"`
	Label  string `json:"label,omitempty"`
}

// Address is either structured lines or a single free-text line in Text.
type Address struct {
	Kind     string `json:"kind,omitempty" validate:"omitempty,oneof=physical mailing"`
	Text     string `json:"text,omitempty"`
	Line1    string `json:"line1,omitempty"`
	Line2    string `json:"line2,omitempty"`
	Suburb   string `json:"suburb,omitempty"`
	State    string `json:"state,omitempty"`
	Postcode string `json:"postcode,omitempty"`
	Country  string `json:"country,omitempty"`
}

// ParticipantDescriptor is a party to find or create and link to the matter.
// Ref is a manifest-local handle that link directives can point at.
type ParticipantDescriptor struct {
	Ref         string    `json:"ref,omitempty"`
	TypeID      string    `json:"typeId" validate:"required"`
	TypeName    string    `json:"typeName" validate:"required"`
	IsCompany   bool      `json:"isCompany"`
	CompanyName string    `json:"companyName,omitempty"`
	FirstName   string    `json:"firstName,omitempty"`
	MiddleName  string    `json:"middleName,omitempty"`
	LastName    string    `json:"lastName,omitempty"`
	Email       string    `json:"email,omitempty" validate:"omitempty,email"`
	Phones      []Phone   `json:"phones,omitempty" validate:"dive"`
	Addresses   []Address `json:"addresses,omitempty" validate:"dive"`
	// Second marks the second buyer or seller on a co-ownership contract.
	Second bool `json:"second,omitempty"`
}

// HasPhone reports whether any phone number is supplied.
func (d ParticipantDescriptor) HasPhone() bool {
	for _, p := range d.Phones {
		if p.Number != "" {
			return true
		}
	}
	return false
}

// Label names the party for issue notes.
func (d ParticipantDescriptor) Label() string {
	if d.IsCompany || (d.FirstName == "" && d.LastName == "") {
		if d.CompanyName != "" {
			return d.CompanyName
		}
	}
	name := d.FirstName
	if d.MiddleName != "" {
		name += " " + d.MiddleName
	}
	if d.LastName != "" {
		name += " " + d.LastName
	}
	if name == "" {
		return d.TypeName
	}
	return name
}

// ExistingParticipant links a contact already known by id.
type ExistingParticipant struct {
	ParticipantID string `json:"participantId" validate:"required"`
	TypeID        string `json:"typeId" validate:"required"`
	TypeName      string `json:"typeName" validate:"required"`
	DisplayName   string `json:"displayName,omitempty"`
}

// LinkDirective links a source participant to the matter under another role.
// The source is SourceID, or the participant created from SourceRef in the
// same run. SourceRole selects the created participants a client or
// other-side target fans out over.
type LinkDirective struct {
	SourceID     string `json:"sourceId,omitempty"`
	SourceRef    string `json:"sourceRef,omitempty"`
	SourceRole   string `json:"sourceRole,omitempty"`
	TargetTypeID string `json:"targetTypeId" validate:"required"`
	TargetRole   string `json:"targetRole" validate:"required"`
}

// Participants groups the three participant directives.
type Participants struct {
	New        []ParticipantDescriptor `json:"new,omitempty" validate:"dive"`
	Existing   []ExistingParticipant   `json:"existing,omitempty" validate:"dive"`
	LinkMatter []LinkDirective         `json:"linkMatter,omitempty" validate:"dive"`
}

// CollectionFields assigns values to fields of one data collection. Field
// keys are the external system's snake_case field keys.
type CollectionFields struct {
	CollectionID string            `json:"collectionId" validate:"required"`
	Name         string            `json:"name,omitempty"`
	Fields       map[string]string `json:"fields"`
}

// Task is a to-do created on the matter. DueDate is YYYY-MM-DD or empty.
type Task struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
	DueDate     string `json:"dueDate,omitempty"`
	AssigneeID  string `json:"assigneeId,omitempty"`
}

// FileRef is a document to download and attach. ParentFolder nests Folder
// one level below a named parent.
type FileRef struct {
	URL          string `json:"url" validate:"required"`
	Name         string `json:"name" validate:"required"`
	Folder       string `json:"folder,omitempty"`
	ParentFolder string `json:"parentFolder,omitempty"`
}

// Manifest is the immutable provisioning plan for one matter.
type Manifest struct {
	MatterName   string             `json:"matterName" validate:"required"`
	TemplateID   string             `json:"templateId" validate:"required"`
	VacantLand   bool               `json:"vacantLand"`
	Participants Participants       `json:"participants"`
	Collections  []CollectionFields `json:"collections,omitempty" validate:"dive"`
	Filenotes    []string           `json:"filenotes,omitempty"`
	Tasks        []Task             `json:"tasks,omitempty" validate:"dive"`
	Files        []FileRef          `json:"files,omitempty" validate:"dive"`
}

// CollectionIDs returns the referenced collection ids in manifest order, without duplicates.
func (m *Manifest) CollectionIDs() []string {
	seen := make(map[string]struct{}, len(m.Collections))
	ids := make([]string, 0, len(m.Collections))
	for _, c := range m.Collections {
		if _, ok := seen[c.CollectionID]; ok {
			continue
		}
		seen[c.CollectionID] = struct{}{}
		ids = append(ids, c.CollectionID)
	}
	return ids
}
