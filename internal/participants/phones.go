package participants

import (
	"strings"

	"matter_intake_backend/internal/manifest"
	"matter_intake_backend/internal/matter"
	"matter_intake_backend/platform/phone"
)

const mobileLabel = "Mobile"

// PhoneSlots holds number/label pairs for the four generic phone slots:
// [phone1, label1, phone2, label2, phone3, label3, phone4, label4].
type PhoneSlots [8]string

// AssignPhoneSlots places the first non-mobile number in slot 1, the first
// mobile in slot 2 and the remaining numbers in slots 3 and 4 in input order.
// Numbers beyond four are dropped and unused slots stay empty.
func AssignPhoneSlots(phones []manifest.Phone, region string) PhoneSlots {
	var slots PhoneSlots
	var rest []manifest.Phone
	haveLandline, haveMobile := false, false

	for _, p := range phones {
		number := phone.NormalizeE164(p.Number, region)
		if number == "" {
			continue
		}
		p.Number = number

		mobile := isMobile(p, region)
		switch {
		case mobile && !haveMobile:
			slots[2], slots[3] = number, mobileLabel
			haveMobile = true
		case !mobile && !haveLandline:
			slots[0], slots[1] = number, labelOr(p.Label, "Phone")
			haveLandline = true
		default:
			rest = append(rest, p)
		}
	}

	for i, p := range rest {
		if i >= 2 {
			break
		}
		label := labelOr(p.Label, "Phone")
		if isMobile(p, region) {
			label = mobileLabel
		}
		slots[4+2*i], slots[5+2*i] = p.Number, label
	}
	return slots
}

// ApplyTo copies the slots onto a participant.
func (s PhoneSlots) ApplyTo(p *matter.Participant) {
	p.Phone1, p.Phone1Label = s[0], s[1]
	p.Phone2, p.Phone2Label = s[2], s[3]
	p.Phone3, p.Phone3Label = s[4], s[5]
	p.Phone4, p.Phone4Label = s[6], s[7]
}

func isMobile(p manifest.Phone, region string) bool {
	if strings.EqualFold(strings.TrimSpace(p.Label), mobileLabel) {
		return true
	}
	return phone.IsMobile(p.Number, region)
}

func labelOr(label, fallback string) string {
	if l := strings.TrimSpace(label); l != "" {
		return l
	}
	return fallback
}
