package participants

import (
	"context"
	"strings"

	"matter_intake_backend/internal/manifest"
	"matter_intake_backend/internal/matter"
)

// AddressNormalizer turns a free-text address into structured lines.
type AddressNormalizer interface {
	Normalize(ctx context.Context, text string) (matter.Address, error)
}

// SplitAddresses picks the physical and mailing address. A single address
// serves as both. Otherwise the first address tagged with each kind wins and
// untagged addresses fill a kind that has no tagged address, in order.
func SplitAddresses(addrs []manifest.Address) (physical, mailing manifest.Address) {
	switch len(addrs) {
	case 0:
		return manifest.Address{}, manifest.Address{}
	case 1:
		return addrs[0], addrs[0]
	}

	var untagged []manifest.Address
	havePhysical, haveMailing := false, false
	for _, a := range addrs {
		switch strings.ToLower(strings.TrimSpace(a.Kind)) {
		case manifest.AddressPhysical:
			if !havePhysical {
				physical, havePhysical = a, true
			}
		case manifest.AddressMailing:
			if !haveMailing {
				mailing, haveMailing = a, true
			}
		default:
			untagged = append(untagged, a)
		}
	}

	if !havePhysical && len(untagged) > 0 {
		physical, untagged = untagged[0], untagged[1:]
		havePhysical = true
	}
	if !haveMailing && len(untagged) > 0 {
		mailing = untagged[0]
	}
	return physical, mailing
}

// toMatterAddress converts a manifest address. Free text goes through the
// normalizer when one is configured; on failure the raw text stays on line 1.
func (p *Provisioner) toMatterAddress(ctx context.Context, a manifest.Address) matter.Address {
	text := strings.TrimSpace(a.Text)
	if text == "" || a.Line1 != "" {
		return matter.Address{
			Line1:    a.Line1,
			Line2:    a.Line2,
			Suburb:   a.Suburb,
			State:    a.State,
			Postcode: a.Postcode,
			Country:  a.Country,
		}
	}

	if p.addresses != nil {
		normalized, err := p.addresses.Normalize(ctx, text)
		if err == nil && !normalized.IsZero() {
			return normalized
		}
		if err != nil {
			p.log.WithContext(ctx).Warn("address normalization failed, keeping raw text", "error", err)
		}
	}
	return matter.Address{Line1: text}
}
