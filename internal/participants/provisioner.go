package participants

import (
	"context"
	"fmt"
	"strings"

	"matter_intake_backend/internal/manifest"
	"matter_intake_backend/internal/matter"
	"matter_intake_backend/internal/policy"
	"matter_intake_backend/platform/apperr"
	"matter_intake_backend/platform/logger"
	"matter_intake_backend/platform/phone"
)

const (
	searchPageSize = 100
	searchMaxPages = 5
)

// Options configures a Provisioner.
type Options struct {
	Region string
	// DefaultContactID replaces placeholder companies such as "TBA".
	DefaultContactID string
	// ReportMismatch adds a note comparing contact details when a search
	// returned cards but none matched.
	ReportMismatch bool
}

// Outcome is the result of provisioning one descriptor.
type Outcome struct {
	ParticipantID string
	Created       bool
	Issues        []string
}

// Result is the outcome of a best-effort call. A failed Result is for the
// caller to log; it never aborts a batch.
type Result struct {
	Op  string
	Err error
}

// OK reports whether the call succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Provisioner finds or creates contact cards and links them to matters.
type Provisioner struct {
	client    matter.Client
	matcher   *Matcher
	policy    *policy.Policy
	addresses AddressNormalizer
	opts      Options
	log       *logger.Logger
}

// NewProvisioner creates a Provisioner. addresses may be nil.
func NewProvisioner(client matter.Client, pol *policy.Policy, addresses AddressNormalizer, opts Options, log *logger.Logger) *Provisioner {
	return &Provisioner{
		client:    client,
		matcher:   NewMatcher(opts.Region),
		policy:    pol,
		addresses: addresses,
		opts:      opts,
		log:       log,
	}
}

// ProcessNewParticipant resolves d to a contact card id, searching before
// creating. Any failure is returned as a PARTICIPANT_PROVISIONING_FAILED error.
func (p *Provisioner) ProcessNewParticipant(ctx context.Context, d manifest.ParticipantDescriptor) (Outcome, error) {
	out, err := p.process(ctx, d)
	if err != nil {
		p.log.WithContext(ctx).Error("participant provisioning failed",
			"participant", d.Label(), "type", d.TypeName, "error", err)
		if apperr.GetCode(err) == apperr.CodeMissingConfig {
			return out, err
		}
		return out, apperr.Wrap(apperr.KindExternal, "provision participant", err).
			WithCode(apperr.CodeProvisioningFailed).
			WithUserMessage(fmt.Sprintf("The contact card for %s (%s) could not be found or created.", d.Label(), d.TypeName))
	}
	return out, nil
}

func (p *Provisioner) process(ctx context.Context, d manifest.ParticipantDescriptor) (Outcome, error) {
	var out Outcome

	if d.IsCompany && p.policy.IsDefaultCompany(d.CompanyName) {
		if p.opts.DefaultContactID == "" {
			return out, apperr.Precondition(apperr.CodeMissingConfig, "default contact id is not configured").
				WithUserMessage("A placeholder company was supplied but no default contact card is configured.")
		}
		out.ParticipantID = p.opts.DefaultContactID
		return out, nil
	}

	if d.Email != "" || d.HasPhone() || d.IsCompany {
		id, issues, err := p.searchExisting(ctx, d)
		if err != nil {
			return out, err
		}
		out.Issues = issues
		if id != "" {
			out.ParticipantID = id
			return out, nil
		}
	}

	created, err := p.client.CreateParticipant(ctx, p.newCard(ctx, d))
	if err != nil {
		return out, err
	}
	out.ParticipantID = created.ID
	out.Created = true

	if !d.IsCompany && strings.TrimSpace(d.CompanyName) != "" && policy.SameRole(d.TypeName, p.policy.Roles.OtherSideSolicitor) {
		isCompany := true
		name := strings.TrimSpace(d.CompanyName)
		if err := p.client.UpdateParticipant(ctx, created.ID, matter.ParticipantUpdate{IsCompany: &isCompany, CompanyName: &name}); err != nil {
			return out, err
		}
	}
	return out, nil
}

// searchExisting returns the id of a matching card, or "" when a new card is
// needed, along with the issue notes describing what was found.
func (p *Provisioner) searchExisting(ctx context.Context, d manifest.ParticipantDescriptor) (string, []string, error) {
	candidates, err := p.search(ctx, searchFilter(d))
	if err != nil {
		return "", nil, err
	}

	label := d.Label()
	if len(candidates) == 0 {
		return "", []string{fmt.Sprintf("No contact card found for %s (%s); a new card was created.", label, d.TypeName)}, nil
	}

	match, ok := p.matcher.Match(candidates, d)
	if !ok {
		if !p.opts.ReportMismatch {
			return "", nil, nil
		}
		return "", []string{p.mismatchNote(d, candidates[0])}, nil
	}

	var issues []string
	if match.Ambiguous() {
		issues = append(issues, fmt.Sprintf(
			"Multiple contact cards found for %s (%s): %d cards matched. Linked the most recently modified card %s; please review.",
			label, d.TypeName, match.Count, match.Candidate.ID))
	} else {
		issues = append(issues, fmt.Sprintf("Found existing contact card for %s (%s): %s.", label, d.TypeName, match.Candidate.ID))
	}
	return match.Candidate.ID, issues, nil
}

func (p *Provisioner) search(ctx context.Context, filter matter.ParticipantFilter) ([]matter.Participant, error) {
	var all []matter.Participant
	for page := 1; page <= searchMaxPages; page++ {
		res, err := p.client.SearchParticipants(ctx, filter, matter.Page{Number: page, Size: searchPageSize})
		if err != nil {
			return nil, err
		}
		all = append(all, res.Items...)
		if !res.HasMore {
			break
		}
	}
	return all, nil
}

func searchFilter(d manifest.ParticipantDescriptor) matter.ParticipantFilter {
	if d.IsCompany {
		return matter.ParticipantFilter{CompanyNameContains: strings.TrimSpace(d.CompanyName), IsCompany: true}
	}
	return matter.ParticipantFilter{
		FirstName:  strings.TrimSpace(d.FirstName),
		MiddleName: strings.TrimSpace(d.MiddleName),
		LastName:   strings.TrimSpace(d.LastName),
	}
}

func (p *Provisioner) mismatchNote(d manifest.ParticipantDescriptor, existing matter.Participant) string {
	newPhones := make([]string, 0, len(d.Phones))
	for _, ph := range d.Phones {
		newPhones = append(newPhones, phone.NormalizeE164(ph.Number, p.opts.Region))
	}
	oldPhones := make([]string, 0, 4)
	for _, ph := range []string{existing.Phone1, existing.Phone2, existing.Phone3, existing.Phone4} {
		if ph != "" {
			oldPhones = append(oldPhones, ph)
		}
	}

	return fmt.Sprintf(
		"An existing contact card for %s (%s) was found but the phone/email did not match, so a new card was created.\n"+
			"Existing card %s: phone %s, email %s.\nNew details: phone %s, email %s.",
		d.Label(), d.TypeName, existing.ID,
		orNone(strings.Join(oldPhones, ", ")), orNone(existing.Email),
		orNone(strings.Join(newPhones, ", ")), orNone(d.Email))
}

func (p *Provisioner) newCard(ctx context.Context, d manifest.ParticipantDescriptor) matter.Participant {
	card := matter.Participant{
		IsCompany:   d.IsCompany,
		CompanyName: strings.TrimSpace(d.CompanyName),
		FirstName:   strings.TrimSpace(d.FirstName),
		MiddleName:  strings.TrimSpace(d.MiddleName),
		LastName:    strings.TrimSpace(d.LastName),
		Email:       strings.ToLower(strings.TrimSpace(d.Email)),
	}
	if !d.IsCompany {
		card.CompanyName = ""
	}

	AssignPhoneSlots(d.Phones, p.opts.Region).ApplyTo(&card)

	physical, mailing := SplitAddresses(d.Addresses)
	card.PhysicalAddress = p.toMatterAddress(ctx, physical)
	card.MailingAddress = card.PhysicalAddress
	if mailing != physical {
		card.MailingAddress = p.toMatterAddress(ctx, mailing)
	}
	return card
}

// Link attaches a participant to a matter under a type.
func (p *Provisioner) Link(ctx context.Context, matterID, participantID, typeID string) Result {
	err := p.client.LinkParticipant(ctx, matterID, participantID, typeID)
	return Result{Op: "link participant", Err: err}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
