package service

import (
	"context"
	"testing"

	"aileadgen_backend/internal/events"
	"aileadgen_backend/internal/leads/domain"
	"aileadgen_backend/internal/leads/repository"
	"aileadgen_backend/internal/leads/transport"
	"aileadgen_backend/platform/apperr"

	"github.com/google/uuid"
)

type fakeRepo struct {
	leads map[uuid.UUID]*repository.Lead
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{leads: make(map[uuid.UUID]*repository.Lead)}
}

func (f *fakeRepo) Create(_ context.Context, params repository.CreateLeadParams) (repository.Lead, error) {
	lead := &repository.Lead{
		ID:          uuid.New(),
		Name:        params.Name,
		PhoneNumber: params.PhoneNumber,
		Timezone:    params.Timezone,
		Notes:       params.Notes,
		Status:      domain.LeadStatusNew,
	}
	f.leads[lead.ID] = lead
	return *lead, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	return *lead, nil
}

func (f *fakeRepo) List(_ context.Context, params repository.ListLeadsParams) ([]repository.Lead, error) {
	out := make([]repository.Lead, 0)
	for _, lead := range f.leads {
		if params.Status != nil && lead.Status != *params.Status {
			continue
		}
		out = append(out, *lead)
	}
	return out, nil
}

func (f *fakeRepo) Update(_ context.Context, id uuid.UUID, params repository.UpdateLeadParams) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	if params.Name != nil {
		lead.Name = *params.Name
	}
	if params.PhoneNumber != nil {
		lead.PhoneNumber = *params.PhoneNumber
	}
	if params.Timezone != nil {
		lead.Timezone = *params.Timezone
	}
	if params.Notes != nil {
		lead.Notes = *params.Notes
	}
	if params.Status != nil {
		lead.Status = *params.Status
	}
	return *lead, nil
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.leads[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.leads, id)
	return nil
}

type captureBus struct {
	published []events.Event
}

func (b *captureBus) Publish(_ context.Context, event events.Event) {
	b.published = append(b.published, event)
}

func (b *captureBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *captureBus) Subscribe(string, events.Handler) {}

func TestCreateNormalizesPhoneNumber(t *testing.T) {
	repo := newFakeRepo()
	bus := &captureBus{}
	svc := New(repo, bus)

	lead, err := svc.Create(context.Background(), transport.CreateLeadRequest{
		Name:        "Jordan Reyes",
		PhoneNumber: "(401) 416-5676",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if lead.PhoneNumber != "+14014165676" {
		t.Fatalf("phone = %s, want +14014165676", lead.PhoneNumber)
	}
	if lead.Status != string(domain.LeadStatusNew) {
		t.Fatalf("status = %s, want new", lead.Status)
	}
	if lead.Timezone != "UTC" {
		t.Fatalf("timezone = %s, want UTC default", lead.Timezone)
	}
	if len(bus.published) != 1 || bus.published[0].EventName() != "leads.lead.created" {
		t.Fatalf("published = %v, want one LeadCreated", bus.published)
	}
}

func TestCreateRejectsEmptyPhone(t *testing.T) {
	svc := New(newFakeRepo(), &captureBus{})

	_, err := svc.Create(context.Background(), transport.CreateLeadRequest{Name: "No Phone"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("error = %v, want validation", err)
	}
}

func TestGetByIDUnknownLead(t *testing.T) {
	svc := New(newFakeRepo(), &captureBus{})

	_, err := svc.GetByID(context.Background(), uuid.New())
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestListRejectsUnknownStatusFilter(t *testing.T) {
	svc := New(newFakeRepo(), &captureBus{})

	if _, err := svc.List(context.Background(), "archived", 100, 0); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("error = %v, want validation", err)
	}
}

func TestUpdateAllowsOperatorStatusOverride(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, &captureBus{})

	created, err := svc.Create(context.Background(), transport.CreateLeadRequest{
		Name:        "Override Me",
		PhoneNumber: "+14014165676",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Operators can force terminal statuses machine transitions never leave.
	status := string(domain.LeadStatusFailed)
	updated, err := svc.Update(context.Background(), created.ID, transport.UpdateLeadRequest{Status: &status})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != status {
		t.Fatalf("status = %s, want failed", updated.Status)
	}

	bogus := "archived"
	if _, err := svc.Update(context.Background(), created.ID, transport.UpdateLeadRequest{Status: &bogus}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("error = %v, want validation for unknown status", err)
	}
}

func TestUpdateRejectsEmptyPhone(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, &captureBus{})

	created, err := svc.Create(context.Background(), transport.CreateLeadRequest{
		Name:        "Keep Phone",
		PhoneNumber: "+14014165676",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	empty := ""
	_, err = svc.Update(context.Background(), created.ID, transport.UpdateLeadRequest{PhoneNumber: &empty})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("error = %v, want validation", err)
	}
}

func TestDeleteUnknownLead(t *testing.T) {
	svc := New(newFakeRepo(), &captureBus{})

	if err := svc.Delete(context.Background(), uuid.New()); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
}
