package service

import (
	"context"
	"testing"

	callstransport "aileadgen_backend/internal/calls/transport"
	"aileadgen_backend/internal/campaigns/repository"
	"aileadgen_backend/internal/campaigns/transport"
	"aileadgen_backend/internal/leads/domain"
	leadsrepo "aileadgen_backend/internal/leads/repository"
	"aileadgen_backend/platform/apperr"
	"aileadgen_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeCampaignRepo struct {
	campaigns map[uuid.UUID]*repository.Campaign
	members   map[uuid.UUID][]uuid.UUID // campaign -> undialed queue
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{
		campaigns: make(map[uuid.UUID]*repository.Campaign),
		members:   make(map[uuid.UUID][]uuid.UUID),
	}
}

func (f *fakeCampaignRepo) add(status repository.CampaignStatus, members ...uuid.UUID) *repository.Campaign {
	campaign := &repository.Campaign{
		ID:     uuid.New(),
		Name:   "September push",
		Status: status,
		Total:  len(members),
	}
	f.campaigns[campaign.ID] = campaign
	f.members[campaign.ID] = append([]uuid.UUID(nil), members...)
	return campaign
}

func (f *fakeCampaignRepo) Create(_ context.Context, name, agentID string, leadIDs []uuid.UUID) (repository.Campaign, error) {
	campaign := f.add(repository.StatusCreated, leadIDs...)
	campaign.Name = name
	campaign.AgentID = agentID
	return *campaign, nil
}

func (f *fakeCampaignRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Campaign, error) {
	campaign, ok := f.campaigns[id]
	if !ok {
		return repository.Campaign{}, repository.ErrNotFound
	}
	return *campaign, nil
}

func (f *fakeCampaignRepo) List(context.Context) ([]repository.Campaign, error) {
	out := make([]repository.Campaign, 0, len(f.campaigns))
	for _, campaign := range f.campaigns {
		out = append(out, *campaign)
	}
	return out, nil
}

func (f *fakeCampaignRepo) SetStatus(_ context.Context, id uuid.UUID, status repository.CampaignStatus) (repository.Campaign, error) {
	campaign, ok := f.campaigns[id]
	if !ok {
		return repository.Campaign{}, repository.ErrNotFound
	}
	campaign.Status = status
	return *campaign, nil
}

func (f *fakeCampaignRepo) ListRunning(context.Context) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0)
	for id, campaign := range f.campaigns {
		if campaign.Status == repository.StatusRunning {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeCampaignRepo) NextUndialed(_ context.Context, campaignID uuid.UUID) (uuid.UUID, error) {
	queue := f.members[campaignID]
	if len(queue) == 0 {
		return uuid.Nil, repository.ErrNoLeadsRemaining
	}
	leadID := queue[0]
	f.members[campaignID] = queue[1:]
	f.campaigns[campaignID].Dialed++
	return leadID, nil
}

type fakeLeads struct {
	leads map[uuid.UUID]leadsrepo.Lead
}

func (f *fakeLeads) GetByID(_ context.Context, id uuid.UUID) (leadsrepo.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return leadsrepo.Lead{}, leadsrepo.ErrNotFound
	}
	return lead, nil
}

type fakeDialer struct {
	dispatched []uuid.UUID
	errFor     map[uuid.UUID]error
}

func (f *fakeDialer) Dispatch(_ context.Context, leadID uuid.UUID) (callstransport.CallLogResponse, error) {
	if err := f.errFor[leadID]; err != nil {
		return callstransport.CallLogResponse{}, err
	}
	f.dispatched = append(f.dispatched, leadID)
	return callstransport.CallLogResponse{LeadID: leadID.String()}, nil
}

func lead(status domain.LeadStatus) leadsrepo.Lead {
	return leadsrepo.Lead{ID: uuid.New(), Name: "Sam", PhoneNumber: "+14014165676", Status: status}
}

func TestStartOnlyFromCreatedOrPaused(t *testing.T) {
	repo := newFakeCampaignRepo()
	svc := New(repo, &fakeDialer{}, &fakeLeads{}, logger.New("development"))

	created := repo.add(repository.StatusCreated)
	if _, err := svc.Start(context.Background(), created.ID); err != nil {
		t.Fatalf("Start from created: %v", err)
	}

	completed := repo.add(repository.StatusCompleted)
	if _, err := svc.Start(context.Background(), completed.ID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("Start from completed = %v, want conflict", err)
	}

	running := repo.add(repository.StatusRunning)
	if _, err := svc.Pause(context.Background(), running.ID); err != nil {
		t.Fatalf("Pause from running: %v", err)
	}
	if _, err := svc.Pause(context.Background(), running.ID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("Pause paused campaign = %v, want conflict", err)
	}
}

func TestDialNextDispatchesFirstDialableMember(t *testing.T) {
	repo := newFakeCampaignRepo()
	booked := lead(domain.LeadStatusBooked)
	fresh := lead(domain.LeadStatusNew)
	leads := &fakeLeads{leads: map[uuid.UUID]leadsrepo.Lead{
		booked.ID: booked,
		fresh.ID:  fresh,
	}}
	campaign := repo.add(repository.StatusRunning, booked.ID, fresh.ID)
	dialer := &fakeDialer{}
	svc := New(repo, dialer, leads, logger.New("development"))

	if err := svc.DialNext(context.Background(), campaign.ID); err != nil {
		t.Fatalf("DialNext: %v", err)
	}

	// The booked lead is skipped, the new one is dialed.
	if len(dialer.dispatched) != 1 || dialer.dispatched[0] != fresh.ID {
		t.Fatalf("dispatched = %v, want [%s]", dialer.dispatched, fresh.ID)
	}
}

func TestDialNextSkipsConflictedLead(t *testing.T) {
	repo := newFakeCampaignRepo()
	busy := lead(domain.LeadStatusCallback)
	next := lead(domain.LeadStatusNew)
	leads := &fakeLeads{leads: map[uuid.UUID]leadsrepo.Lead{
		busy.ID: busy,
		next.ID: next,
	}}
	campaign := repo.add(repository.StatusRunning, busy.ID, next.ID)
	dialer := &fakeDialer{errFor: map[uuid.UUID]error{
		busy.ID: apperr.Conflict("a call for this lead is already in progress"),
	}}
	svc := New(repo, dialer, leads, logger.New("development"))

	if err := svc.DialNext(context.Background(), campaign.ID); err != nil {
		t.Fatalf("DialNext: %v", err)
	}
	if len(dialer.dispatched) != 1 || dialer.dispatched[0] != next.ID {
		t.Fatalf("dispatched = %v, want [%s]", dialer.dispatched, next.ID)
	}
}

func TestDialNextCompletesExhaustedCampaign(t *testing.T) {
	repo := newFakeCampaignRepo()
	campaign := repo.add(repository.StatusRunning)
	svc := New(repo, &fakeDialer{}, &fakeLeads{}, logger.New("development"))

	if err := svc.DialNext(context.Background(), campaign.ID); err != nil {
		t.Fatalf("DialNext: %v", err)
	}
	got, _ := repo.GetByID(context.Background(), campaign.ID)
	if got.Status != repository.StatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
}

func TestDialNextIgnoresNonRunningCampaign(t *testing.T) {
	repo := newFakeCampaignRepo()
	member := lead(domain.LeadStatusNew)
	leads := &fakeLeads{leads: map[uuid.UUID]leadsrepo.Lead{member.ID: member}}
	campaign := repo.add(repository.StatusPaused, member.ID)
	dialer := &fakeDialer{}
	svc := New(repo, dialer, leads, logger.New("development"))

	if err := svc.DialNext(context.Background(), campaign.ID); err != nil {
		t.Fatalf("DialNext: %v", err)
	}
	if len(dialer.dispatched) != 0 {
		t.Fatal("paused campaign dialed a lead")
	}
}

func TestDialNextStopsOnProviderOutage(t *testing.T) {
	repo := newFakeCampaignRepo()
	member := lead(domain.LeadStatusNew)
	leads := &fakeLeads{leads: map[uuid.UUID]leadsrepo.Lead{member.ID: member}}
	campaign := repo.add(repository.StatusRunning, member.ID)
	dialer := &fakeDialer{errFor: map[uuid.UUID]error{
		member.ID: apperr.Upstream("calling provider is unreachable"),
	}}
	svc := New(repo, dialer, leads, logger.New("development"))

	if err := svc.DialNext(context.Background(), campaign.ID); !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("DialNext = %v, want upstream error", err)
	}
}

func TestCreateDeduplicatesLeadIDs(t *testing.T) {
	repo := newFakeCampaignRepo()
	svc := New(repo, &fakeDialer{}, &fakeLeads{}, logger.New("development"))

	id := uuid.NewString()
	resp, err := svc.Create(context.Background(), transport.CreateCampaignRequest{
		Name:    "dup test",
		LeadIDs: []string{id, id},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if resp.Total != 1 {
		t.Fatalf("total = %d, want 1 after dedup", resp.Total)
	}
}
