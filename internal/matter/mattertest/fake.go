// Package mattertest provides an in-memory matter.Client for tests.
package mattertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"matter_intake_backend/internal/matter"
)

// Link records one LinkParticipant call.
type Link struct {
	MatterID      string
	ParticipantID string
	TypeID        string
}

// Fake is a goroutine-safe in-memory case-management system. Exported fields
// may be seeded before use; the Fail map injects errors by method name.
type Fake struct {
	mu sync.Mutex

	Types        []matter.ParticipantType
	Participants []matter.Participant
	Collections  []matter.DataCollection
	Values       map[string][]matter.RecordValue
	Folders      map[string][]matter.Folder
	Steps        map[string]matter.StepInfo

	Matters       []matter.Matter
	Created       []matter.Participant
	Updated       map[string]matter.ParticipantUpdate
	Links         []Link
	MatterLinks   map[string][]matter.MatterParticipant
	Records       map[string][]string
	ValueUpdates  map[string]string
	Notes         map[string][]string
	Tasks         map[string][]matter.Task
	Uploads       map[string][]byte
	Documents     map[string][]matter.DocumentLink
	StepChanges   map[string][]matter.StepChange
	SearchCalls   int
	SearchFilters []matter.ParticipantFilter

	Fail map[string]error

	nextID int
}

// New returns an empty fake.
func New() *Fake {
	return &Fake{
		Values:       map[string][]matter.RecordValue{},
		Folders:      map[string][]matter.Folder{},
		Steps:        map[string]matter.StepInfo{},
		Updated:      map[string]matter.ParticipantUpdate{},
		MatterLinks:  map[string][]matter.MatterParticipant{},
		Records:      map[string][]string{},
		ValueUpdates: map[string]string{},
		Notes:        map[string][]string{},
		Tasks:        map[string][]matter.Task{},
		Uploads:      map[string][]byte{},
		Documents:    map[string][]matter.DocumentLink{},
		StepChanges:  map[string][]matter.StepChange{},
		Fail:         map[string]error{},
	}
}

var _ matter.Client = (*Fake)(nil)

func (f *Fake) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *Fake) fail(op string) error {
	return f.Fail[op]
}

func (f *Fake) CreateMatter(_ context.Context, in matter.MatterCreate) (matter.Matter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateMatter"); err != nil {
		return matter.Matter{}, err
	}
	m := matter.Matter{ID: f.id("matter"), Name: in.Name, TemplateID: in.TemplateID}
	f.Matters = append(f.Matters, m)
	return m, nil
}

func (f *Fake) ListParticipantTypes(context.Context) ([]matter.ParticipantType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListParticipantTypes"); err != nil {
		return nil, err
	}
	return append([]matter.ParticipantType(nil), f.Types...), nil
}

// SearchParticipants applies the name parts of the filter and pages the result.
func (f *Fake) SearchParticipants(_ context.Context, filter matter.ParticipantFilter, page matter.Page) (matter.ParticipantPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SearchCalls++
	f.SearchFilters = append(f.SearchFilters, filter)
	if err := f.fail("SearchParticipants"); err != nil {
		return matter.ParticipantPage{}, err
	}

	var hits []matter.Participant
	for _, p := range f.Participants {
		if filter.IsCompany != p.IsCompany {
			continue
		}
		if filter.CompanyNameContains != "" &&
			!strings.Contains(strings.ToLower(p.CompanyName), strings.ToLower(filter.CompanyNameContains)) {
			continue
		}
		if filter.LastName != "" && !strings.EqualFold(p.LastName, filter.LastName) {
			continue
		}
		if filter.FirstName != "" && !strings.EqualFold(p.FirstName, filter.FirstName) {
			continue
		}
		hits = append(hits, p)
	}

	size := page.Size
	if size <= 0 {
		size = len(hits) + 1
	}
	number := page.Number
	if number < 1 {
		number = 1
	}
	start := (number - 1) * size
	if start >= len(hits) {
		return matter.ParticipantPage{}, nil
	}
	end := min(start+size, len(hits))
	return matter.ParticipantPage{Items: hits[start:end], HasMore: end < len(hits)}, nil
}

func (f *Fake) CreateParticipant(_ context.Context, in matter.Participant) (matter.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateParticipant"); err != nil {
		return matter.Participant{}, err
	}
	in.ID = f.id("participant")
	f.Created = append(f.Created, in)
	f.Participants = append(f.Participants, in)
	return in, nil
}

func (f *Fake) UpdateParticipant(_ context.Context, id string, in matter.ParticipantUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("UpdateParticipant"); err != nil {
		return err
	}
	f.Updated[id] = in
	return nil
}

func (f *Fake) ListMatterParticipants(_ context.Context, matterID string) ([]matter.MatterParticipant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListMatterParticipants"); err != nil {
		return nil, err
	}
	return append([]matter.MatterParticipant(nil), f.MatterLinks[matterID]...), nil
}

func (f *Fake) LinkParticipant(_ context.Context, matterID, participantID, typeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("LinkParticipant"); err != nil {
		return err
	}
	f.Links = append(f.Links, Link{MatterID: matterID, ParticipantID: participantID, TypeID: typeID})

	var typeName string
	for _, t := range f.Types {
		if t.ID == typeID {
			typeName = t.Name
		}
	}
	f.MatterLinks[matterID] = append(f.MatterLinks[matterID], matter.MatterParticipant{
		ParticipantID: participantID, TypeID: typeID, TypeName: typeName,
	})
	return nil
}

func (f *Fake) ListDataCollections(context.Context) ([]matter.DataCollection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListDataCollections"); err != nil {
		return nil, err
	}
	return append([]matter.DataCollection(nil), f.Collections...), nil
}

func (f *Fake) CreateCollectionRecord(_ context.Context, matterID, collectionID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateCollectionRecord"); err != nil {
		return "", err
	}
	f.Records[matterID] = append(f.Records[matterID], collectionID)
	return f.id("record"), nil
}

func (f *Fake) ListRecordValues(_ context.Context, matterID string, page matter.Page) (matter.RecordValuePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListRecordValues"); err != nil {
		return matter.RecordValuePage{}, err
	}
	all := f.Values[matterID]
	size := page.Size
	if size <= 0 {
		size = len(all) + 1
	}
	start := (max(page.Number, 1) - 1) * size
	if start >= len(all) {
		return matter.RecordValuePage{}, nil
	}
	end := min(start+size, len(all))
	return matter.RecordValuePage{Items: append([]matter.RecordValue(nil), all[start:end]...), HasMore: end < len(all)}, nil
}

func (f *Fake) UpdateRecordValue(_ context.Context, valueID, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("UpdateRecordValue"); err != nil {
		return err
	}
	f.ValueUpdates[valueID] = value
	return nil
}

func (f *Fake) CreateFileNote(_ context.Context, matterID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateFileNote"); err != nil {
		return err
	}
	f.Notes[matterID] = append(f.Notes[matterID], text)
	return nil
}

func (f *Fake) CreateTask(_ context.Context, matterID string, task matter.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateTask"); err != nil {
		return err
	}
	f.Tasks[matterID] = append(f.Tasks[matterID], task)
	return nil
}

func (f *Fake) ListFolders(_ context.Context, matterID string) ([]matter.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListFolders"); err != nil {
		return nil, err
	}
	return append([]matter.Folder(nil), f.Folders[matterID]...), nil
}

func (f *Fake) UploadDocument(_ context.Context, _ string, content []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("UploadDocument"); err != nil {
		return "", err
	}
	id := f.id("upload")
	f.Uploads[id] = content
	return id, nil
}

func (f *Fake) LinkDocument(_ context.Context, matterID string, link matter.DocumentLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("LinkDocument"); err != nil {
		return err
	}
	f.Documents[matterID] = append(f.Documents[matterID], link)
	return nil
}

func (f *Fake) GetStepInfo(_ context.Context, matterID string) (matter.StepInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetStepInfo"); err != nil {
		return matter.StepInfo{}, err
	}
	return f.Steps[matterID], nil
}

func (f *Fake) ChangeStep(_ context.Context, matterID string, change matter.StepChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ChangeStep"); err != nil {
		return err
	}
	f.StepChanges[matterID] = append(f.StepChanges[matterID], change)
	return nil
}

// NoteCount returns the number of file notes written to matterID.
func (f *Fake) NoteCount(matterID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Notes[matterID])
}
