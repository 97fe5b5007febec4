package participants

import (
	"testing"

	"matter_intake_backend/internal/manifest"
	"matter_intake_backend/internal/matter"

	"github.com/stretchr/testify/assert"
)

func TestAssignPhoneSlotsMobileOnly(t *testing.T) {
	got := AssignPhoneSlots([]manifest.Phone{{Number: "0412 345 678"}}, "AU")

	assert.Equal(t, PhoneSlots{"", "", "+61412345678", "Mobile", "", "", "", ""}, got)
}

func TestAssignPhoneSlotsMobileAlwaysSlotTwo(t *testing.T) {
	inputs := [][]manifest.Phone{
		{{Number: "0412345678"}, {Number: "02 9876 5432", Label: "Work"}, {Number: "03 9123 4567", Label: "Home"}},
		{{Number: "02 9876 5432", Label: "Work"}, {Number: "0412345678"}, {Number: "03 9123 4567", Label: "Home"}},
		{{Number: "02 9876 5432", Label: "Work"}, {Number: "03 9123 4567", Label: "Home"}, {Number: "0412345678"}},
	}

	want := PhoneSlots{"+61298765432", "Work", "+61412345678", "Mobile", "+61391234567", "Home", "", ""}
	for _, in := range inputs {
		assert.Equal(t, want, AssignPhoneSlots(in, "AU"))
	}
}

func TestAssignPhoneSlotsLabelMarksMobile(t *testing.T) {
	got := AssignPhoneSlots([]manifest.Phone{{Number: "12345", Label: "mobile"}}, "AU")

	assert.Equal(t, "12345", got[2])
	assert.Equal(t, "Mobile", got[3])
	assert.Empty(t, got[0])
}

func TestAssignPhoneSlotsDropsBeyondFour(t *testing.T) {
	got := AssignPhoneSlots([]manifest.Phone{
		{Number: "02 9876 5432"}, {Number: "03 9123 4567"}, {Number: "07 3123 4567"}, {Number: "08 9123 4567"},
	}, "AU")

	assert.Equal(t, "+61298765432", got[0])
	assert.Equal(t, "Phone", got[1])
	assert.Empty(t, got[2])
	assert.Equal(t, "+61391234567", got[4])
	assert.Equal(t, "+61731234567", got[6])
}

func TestPhoneSlotsApplyTo(t *testing.T) {
	var p matter.Participant
	PhoneSlots{"a", "Work", "b", "Mobile", "", "", "", ""}.ApplyTo(&p)

	assert.Equal(t, "a", p.Phone1)
	assert.Equal(t, "Mobile", p.Phone2Label)
	assert.Empty(t, p.Phone3)
}
