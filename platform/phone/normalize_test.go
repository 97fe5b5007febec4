package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeE164(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		region string
		want   string
	}{
		{"national mobile", "0412 345 678", "AU", "+61412345678"},
		{"already international", "+61 2 9876 5432", "AU", "+61298765432"},
		{"default region", "(02) 9876 5432", "", "+61298765432"},
		{"unparseable kept trimmed", "  call me  ", "AU", "call me"},
		{"empty", "   ", "AU", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeE164(tc.input, tc.region))
		})
	}
}

func TestIsMobile(t *testing.T) {
	assert.True(t, IsMobile("0412 345 678", "AU"))
	assert.False(t, IsMobile("02 9876 5432", "AU"))
	assert.False(t, IsMobile("", "AU"))
}
