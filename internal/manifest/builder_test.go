package manifest

import (
	"encoding/json"
	"testing"

	"matter_intake_backend/internal/calendar"
	"matter_intake_backend/internal/duedate"
	"matter_intake_backend/platform/apperr"
	"matter_intake_backend/platform/validator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuilder(t *testing.T) *Builder {
	t.Helper()
	cal, err := calendar.NewResolver("NSW", nil)
	require.NoError(t, err)
	schema, err := LoadSchema()
	require.NoError(t, err)
	return NewBuilder(duedate.New(cal), validator.New(), schema)
}

func baseSubmission() Submission {
	return Submission{
		MatterName:   "Smith purchase of 1 Test St",
		TemplateID:   "tpl-conveyance",
		ContractDate: "2025-01-13",
		Participants: Participants{
			New: []ParticipantDescriptor{{
				Ref: "buyer1", TypeID: "t-buyer", TypeName: "Buyer",
				FirstName: "Jane", LastName: "Smith", Email: "jane@example.com",
			}},
		},
		Collections: []CollectionFields{{CollectionID: "c-contract", Fields: map[string]string{"purchase_price": "950000"}}},
		DueFields: []DueField{
			{CollectionID: "c-contract", Field: "finance_date", Due: "5 business days"},
			{CollectionID: "c-dates", Field: "settlement_date", Due: "27/12/2024"},
		},
		Tasks: []TaskInput{{Name: "Order searches", Due: "5 days"}},
	}
}

func TestBuildResolvesDueValues(t *testing.T) {
	b := newBuilder(t)

	m, issues, err := b.Build(baseSubmission())
	require.NoError(t, err)
	assert.Empty(t, issues)

	require.Len(t, m.Collections, 2)
	assert.Equal(t, "950000", m.Collections[0].Fields["purchase_price"])
	assert.Equal(t, "2025-01-17", m.Collections[0].Fields["finance_date"])
	assert.Equal(t, "c-dates", m.Collections[1].CollectionID)
	assert.Equal(t, "2024-12-27", m.Collections[1].Fields["settlement_date"])

	require.Len(t, m.Tasks, 1)
	assert.Equal(t, "2025-01-17", m.Tasks[0].DueDate)
	assert.Equal(t, []string{"c-contract", "c-dates"}, m.CollectionIDs())
}

func TestBuildWithoutContractDateLeavesDatesBlank(t *testing.T) {
	b := newBuilder(t)
	sub := baseSubmission()
	sub.ContractDate = ""

	m, issues, err := b.Build(sub)
	require.NoError(t, err)

	assert.NotContains(t, m.Collections[0].Fields, "finance_date")
	assert.Empty(t, m.Tasks[0].DueDate)
	assert.Len(t, issues, 4)
}

func TestBuildDoesNotAliasSubmissionMaps(t *testing.T) {
	b := newBuilder(t)
	sub := baseSubmission()

	_, _, err := b.Build(sub)
	require.NoError(t, err)
	assert.NotContains(t, sub.Collections[0].Fields, "finance_date")
}

func TestBuildRejectsMissingTemplate(t *testing.T) {
	b := newBuilder(t)
	sub := baseSubmission()
	sub.TemplateID = "  "

	_, _, err := b.Build(sub)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidManifest, apperr.GetCode(err))
}

func TestSchemaRejectsDescriptorWithoutName(t *testing.T) {
	b := newBuilder(t)
	sub := baseSubmission()
	sub.Participants.New[0].FirstName = ""
	sub.Participants.New[0].LastName = ""

	_, _, err := b.Build(sub)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidManifest, apperr.GetCode(err))
}

func TestSchemaRejectsBadFieldKey(t *testing.T) {
	schema, err := LoadSchema()
	require.NoError(t, err)

	m := Manifest{
		MatterName:  "x",
		TemplateID:  "y",
		Collections: []CollectionFields{{CollectionID: "c", Fields: map[string]string{"Purchase Price": "1"}}},
	}
	raw, err := json.Marshal(m)
	require.NoError(t, err)

	assert.Error(t, schema.ValidateJSON(raw))
}

func TestBuildCleansSubmittedText(t *testing.T) {
	b := newBuilder(t)
	sub := baseSubmission()
	sub.Filenotes = []string{"<p>Vendor &amp; agent notified</p>", "   ", "Keys at office"}
	sub.Tasks = []TaskInput{{Name: "Order searches", Description: "<b>urgent</b>\r\n\r\n\r\nbefore cooling off"}}

	m, _, err := b.Build(sub)
	require.NoError(t, err)
	assert.Equal(t, []string{"Vendor & agent notified", "Keys at office"}, m.Filenotes)
	assert.Equal(t, "urgent\n\nbefore cooling off", m.Tasks[0].Description)
}
