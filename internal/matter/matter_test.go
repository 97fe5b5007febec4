package matter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParticipantFilterString(t *testing.T) {
	tests := []struct {
		name   string
		filter ParticipantFilter
		want   string
	}{
		{
			name:   "person",
			filter: ParticipantFilter{FirstName: "Jane", LastName: "Smith"},
			want:   "firstName_ieq=Jane;lastName_ieq=Smith;isCompany=F",
		},
		{
			name:   "company",
			filter: ParticipantFilter{CompanyNameContains: "Acme", IsCompany: true},
			want:   "companyName_ilike=Acme;isCompany=T",
		},
		{
			name:   "separators in values are escaped",
			filter: ParticipantFilter{LastName: "Smith;isCompany=T"},
			want:   `lastName_ieq=Smith\;isCompany\=T;isCompany=F`,
		},
		{
			name:   "backslash is escaped first",
			filter: ParticipantFilter{CompanyNameContains: `A\;B`, IsCompany: true},
			want:   `companyName_ilike=A\\\;B;isCompany=T`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.String())
		})
	}
}
