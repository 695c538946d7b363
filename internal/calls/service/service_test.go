package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"aileadgen_backend/internal/calls/repository"
	"aileadgen_backend/internal/calls/transport"
	"aileadgen_backend/internal/events"
	"aileadgen_backend/internal/leads/domain"
	leadsrepo "aileadgen_backend/internal/leads/repository"
	"aileadgen_backend/internal/retell"
	"aileadgen_backend/platform/apperr"
	"aileadgen_backend/platform/logger"

	"github.com/google/uuid"
)

// fakeRepo mirrors the database invariants the real repository relies on: at
// most one pending entry per lead, and finalize only moves pending entries.
type fakeRepo struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*repository.CallLog
	leads   map[uuid.UUID]*leadsrepo.Lead
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		entries: make(map[uuid.UUID]*repository.CallLog),
		leads:   make(map[uuid.UUID]*leadsrepo.Lead),
	}
}

func (f *fakeRepo) addLead(status domain.LeadStatus) *leadsrepo.Lead {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead := &leadsrepo.Lead{
		ID:          uuid.New(),
		Name:        "Jordan Reyes",
		PhoneNumber: "+14014165676",
		Timezone:    "UTC",
		Status:      status,
	}
	f.leads[lead.ID] = lead
	return lead
}

func (f *fakeRepo) CreatePending(_ context.Context, leadID uuid.UUID, agentVersion string) (repository.CallLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.leads[leadID]; !ok {
		return repository.CallLog{}, repository.ErrLeadNotFound
	}
	for _, entry := range f.entries {
		if entry.LeadID == leadID && entry.ProcessingStatus == domain.ProcessingPending {
			return repository.CallLog{}, repository.ErrPendingExists
		}
	}
	entry := &repository.CallLog{
		ID:               uuid.New(),
		LeadID:           leadID,
		AttemptedAt:      time.Now().UTC(),
		AgentVersion:     agentVersion,
		ProcessingStatus: domain.ProcessingPending,
	}
	f.entries[entry.ID] = entry
	return *entry, nil
}

func (f *fakeRepo) MarkDispatched(_ context.Context, id uuid.UUID, providerCallID string) (repository.CallLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[id]
	if !ok || entry.ProcessingStatus != domain.ProcessingPending {
		return repository.CallLog{}, repository.ErrNotFound
	}
	entry.ProviderCallID = &providerCallID
	lead := f.leads[entry.LeadID]
	lead.Status = domain.LeadStatusCalled
	attempted := entry.AttemptedAt
	lead.LastCallTime = &attempted
	return *entry, nil
}

func (f *fakeRepo) MarkDispatchFailed(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[id]
	if !ok || entry.ProcessingStatus != domain.ProcessingPending {
		return repository.ErrNotFound
	}
	outcome := domain.OutcomeFailed
	entry.Outcome = &outcome
	entry.ProcessingStatus = domain.ProcessingCompleted
	return nil
}

func (f *fakeRepo) Finalize(_ context.Context, params repository.FinalizeParams) (repository.CallLog, leadsrepo.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var entry *repository.CallLog
	for _, e := range f.entries {
		if e.ProviderCallID != nil && *e.ProviderCallID == params.ProviderCallID {
			entry = e
			break
		}
	}
	if entry == nil {
		return repository.CallLog{}, leadsrepo.Lead{}, repository.ErrNotFound
	}
	if entry.ProcessingStatus != domain.ProcessingPending {
		return *entry, leadsrepo.Lead{}, repository.ErrAlreadyFinalized
	}
	entry.Outcome = &params.Outcome
	entry.Transcript = params.Transcript
	entry.RecordingURL = params.RecordingURL
	entry.DurationSec = params.DurationSec
	entry.ProcessingStatus = domain.ProcessingCompleted
	lead := f.leads[entry.LeadID]
	lead.Status = params.LeadStatus
	attempted := entry.AttemptedAt
	lead.LastCallTime = &attempted
	return *entry, *lead, nil
}

func (f *fakeRepo) ListByLead(_ context.Context, leadID uuid.UUID) ([]repository.CallLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.CallLog, 0)
	for _, entry := range f.entries {
		if entry.LeadID == leadID {
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListRecent(_ context.Context, limit int) ([]repository.CallLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.CallLog, 0)
	for _, entry := range f.entries {
		if len(out) == limit {
			break
		}
		out = append(out, *entry)
	}
	return out, nil
}

func (f *fakeRepo) ListStuckPending(_ context.Context, cutoff time.Time) ([]repository.CallLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.CallLog, 0)
	for _, entry := range f.entries {
		if entry.ProcessingStatus == domain.ProcessingPending && entry.AttemptedAt.Before(cutoff) {
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (leadsrepo.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[id]
	if !ok {
		return leadsrepo.Lead{}, leadsrepo.ErrNotFound
	}
	return *lead, nil
}

func (f *fakeRepo) pendingCount(leadID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, entry := range f.entries {
		if entry.LeadID == leadID && entry.ProcessingStatus == domain.ProcessingPending {
			n++
		}
	}
	return n
}

func (f *fakeRepo) entryCount(leadID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, entry := range f.entries {
		if entry.LeadID == leadID {
			n++
		}
	}
	return n
}

type fakeProvider struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *fakeProvider) PlaceCall(_ context.Context, _ retell.PlaceCallParams) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.calls++
	return uuid.NewString(), nil
}

func (p *fakeProvider) placed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type captureBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *captureBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *captureBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *captureBus) Subscribe(string, events.Handler) {}

func (b *captureBus) named(name string) []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]events.Event, 0)
	for _, e := range b.events {
		if e.EventName() == name {
			out = append(out, e)
		}
	}
	return out
}

func newTestService(repo *fakeRepo, provider *fakeProvider, bus events.Bus) *Service {
	return New(repo, repo, provider, bus, logger.New("development"), Config{
		AgentID:      "agent_test",
		AgentVersion: "1.0.0",
	})
}

func TestDispatchPlacesCallAndMovesLead(t *testing.T) {
	repo := newFakeRepo()
	lead := repo.addLead(domain.LeadStatusNew)
	provider := &fakeProvider{}
	bus := &captureBus{}
	svc := newTestService(repo, provider, bus)

	entry, err := svc.Dispatch(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if entry.ProviderCallID == nil || *entry.ProviderCallID == "" {
		t.Fatal("dispatched entry has no provider call id")
	}
	if entry.ProcessingStatus != string(domain.ProcessingPending) {
		t.Fatalf("processing status = %s, want pending", entry.ProcessingStatus)
	}

	got, _ := repo.GetByID(context.Background(), lead.ID)
	if got.Status != domain.LeadStatusCalled {
		t.Fatalf("lead status = %s, want called", got.Status)
	}
	if got.LastCallTime == nil {
		t.Fatal("last_call_time not set on dispatch")
	}
	if len(bus.named("calls.call.dispatched")) != 1 {
		t.Fatal("expected one CallDispatched event")
	}
}

func TestDispatchConcurrentSameLead(t *testing.T) {
	repo := newFakeRepo()
	lead := repo.addLead(domain.LeadStatusNew)
	provider := &fakeProvider{}
	svc := newTestService(repo, provider, &captureBus{})

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Dispatch(context.Background(), lead.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, conflicted int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperr.Is(err, apperr.KindConflict):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if succeeded != 1 {
		t.Fatalf("succeeded = %d, want exactly 1", succeeded)
	}
	if conflicted != attempts-1 {
		t.Fatalf("conflicted = %d, want %d", conflicted, attempts-1)
	}
	if provider.placed() != 1 {
		t.Fatalf("provider calls = %d, want 1", provider.placed())
	}
	if repo.entryCount(lead.ID) != 1 {
		t.Fatalf("call log entries = %d, want 1", repo.entryCount(lead.ID))
	}
}

func TestDispatchProviderFailureReleasesLead(t *testing.T) {
	repo := newFakeRepo()
	lead := repo.addLead(domain.LeadStatusNew)
	provider := &fakeProvider{err: retell.ErrUnavailable}
	svc := newTestService(repo, provider, &captureBus{})

	_, err := svc.Dispatch(context.Background(), lead.ID)
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("error = %v, want upstream", err)
	}

	if repo.pendingCount(lead.ID) != 0 {
		t.Fatal("failed dispatch left a pending entry")
	}
	got, _ := repo.GetByID(context.Background(), lead.ID)
	if got.Status != domain.LeadStatusNew {
		t.Fatalf("lead status = %s, want new (untouched)", got.Status)
	}

	// Lead is immediately dialable again.
	provider.err = nil
	if _, err := svc.Dispatch(context.Background(), lead.ID); err != nil {
		t.Fatalf("redial after failure: %v", err)
	}
}

func TestDispatchProviderRejection(t *testing.T) {
	repo := newFakeRepo()
	lead := repo.addLead(domain.LeadStatusNew)
	provider := &fakeProvider{err: &retell.APIError{StatusCode: 402, Body: "insufficient balance"}}
	svc := newTestService(repo, provider, &captureBus{})

	_, err := svc.Dispatch(context.Background(), lead.ID)
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("error = %v, want upstream", err)
	}
	if repo.pendingCount(lead.ID) != 0 {
		t.Fatal("rejected dispatch left a pending entry")
	}
}

func TestDispatchUnknownLead(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeProvider{}, &captureBus{})

	_, err := svc.Dispatch(context.Background(), uuid.New())
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestReconcileAppliesOutcomeToLead(t *testing.T) {
	repo := newFakeRepo()
	lead := repo.addLead(domain.LeadStatusNew)
	svc := newTestService(repo, &fakeProvider{}, &captureBus{})

	entry, err := svc.Dispatch(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	recording := "https://recordings.example.com/abc.wav"
	duration := 183
	result, err := svc.Reconcile(context.Background(), transport.CallStatusWebhook{
		ProviderCallID: *entry.ProviderCallID,
		Outcome:        "booked",
		Transcript: []transport.TranscriptTurn{
			{Speaker: "agent", Text: "Shall we book Tuesday at ten?"},
			{Speaker: "lead", Text: "Tuesday works."},
		},
		RecordingURL: &recording,
		DurationSec:  &duration,
	})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.AlreadyReconciled {
		t.Fatal("first reconcile reported already reconciled")
	}
	if result.LeadStatus != domain.LeadStatusBooked {
		t.Fatalf("lead status = %s, want booked", result.LeadStatus)
	}
	if result.CallLog.Outcome == nil || *result.CallLog.Outcome != "booked" {
		t.Fatal("call log outcome not recorded")
	}
	if len(result.CallLog.Transcript) != 2 {
		t.Fatalf("transcript turns = %d, want 2", len(result.CallLog.Transcript))
	}

	got, _ := repo.GetByID(context.Background(), lead.ID)
	if got.Status != domain.LeadStatusBooked {
		t.Fatalf("stored lead status = %s, want booked", got.Status)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	lead := repo.addLead(domain.LeadStatusNew)
	bus := &captureBus{}
	svc := newTestService(repo, &fakeProvider{}, bus)

	entry, err := svc.Dispatch(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	first := transport.CallStatusWebhook{ProviderCallID: *entry.ProviderCallID, Outcome: "booked"}
	if _, err := svc.Reconcile(context.Background(), first); err != nil {
		t.Fatalf("first Reconcile: %v", err)
	}

	// Replay with a different outcome: must not win.
	replay := transport.CallStatusWebhook{ProviderCallID: *entry.ProviderCallID, Outcome: "failed"}
	result, err := svc.Reconcile(context.Background(), replay)
	if err != nil {
		t.Fatalf("replayed Reconcile: %v", err)
	}
	if !result.AlreadyReconciled {
		t.Fatal("replay not reported as already reconciled")
	}
	if result.CallLog.Outcome == nil || *result.CallLog.Outcome != "booked" {
		t.Fatal("replay overwrote the first outcome")
	}

	got, _ := repo.GetByID(context.Background(), lead.ID)
	if got.Status != domain.LeadStatusBooked {
		t.Fatalf("lead status after replay = %s, want booked", got.Status)
	}
	if n := len(bus.named("calls.call.reconciled")); n != 1 {
		t.Fatalf("CallReconciled events = %d, want 1", n)
	}
	if n := len(bus.named("calls.lead.booked")); n != 1 {
		t.Fatalf("LeadBooked events = %d, want 1", n)
	}
}

func TestReconcileMapsProviderOnlyOutcomes(t *testing.T) {
	for _, outcome := range []string{"completed", "busy", "not_answered"} {
		repo := newFakeRepo()
		lead := repo.addLead(domain.LeadStatusNew)
		svc := newTestService(repo, &fakeProvider{}, &captureBus{})

		entry, err := svc.Dispatch(context.Background(), lead.ID)
		if err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
		result, err := svc.Reconcile(context.Background(), transport.CallStatusWebhook{
			ProviderCallID: *entry.ProviderCallID,
			Outcome:        outcome,
		})
		if err != nil {
			t.Fatalf("Reconcile(%s): %v", outcome, err)
		}
		if result.LeadStatus != domain.LeadStatusNotAnswered {
			t.Fatalf("outcome %s mapped lead to %s, want not_answered", outcome, result.LeadStatus)
		}
	}
}

func TestReconcileUnknownOutcome(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeProvider{}, &captureBus{})

	_, err := svc.Reconcile(context.Background(), transport.CallStatusWebhook{
		ProviderCallID: "call_123",
		Outcome:        "voicemail_dropped",
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("error = %v, want validation", err)
	}
}

func TestReconcileUnknownProviderCallID(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeProvider{}, &captureBus{})

	_, err := svc.Reconcile(context.Background(), transport.CallStatusWebhook{
		ProviderCallID: "call_missing",
		Outcome:        "booked",
	})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestSweepStuckFinalizesOldPending(t *testing.T) {
	repo := newFakeRepo()
	lead := repo.addLead(domain.LeadStatusNew)
	svc := newTestService(repo, &fakeProvider{}, &captureBus{})

	entry, err := svc.Dispatch(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	// Age the entry past the cutoff.
	repo.mu.Lock()
	for _, e := range repo.entries {
		e.AttemptedAt = e.AttemptedAt.Add(-time.Hour)
	}
	repo.mu.Unlock()

	swept, err := svc.SweepStuck(context.Background(), 30*time.Minute)
	if err != nil {
		t.Fatalf("SweepStuck: %v", err)
	}
	if swept != 1 {
		t.Fatalf("swept = %d, want 1", swept)
	}

	history, _ := svc.ListByLead(context.Background(), lead.ID)
	if len(history) != 1 {
		t.Fatalf("history = %d entries, want 1", len(history))
	}
	if history[0].Outcome == nil || *history[0].Outcome != "failed" {
		t.Fatal("stuck entry not finalized as failed")
	}
	got, _ := repo.GetByID(context.Background(), lead.ID)
	if got.Status != domain.LeadStatusFailed {
		t.Fatalf("lead status = %s, want failed", got.Status)
	}

	// The webhook arriving late is a no-op.
	result, err := svc.Reconcile(context.Background(), transport.CallStatusWebhook{
		ProviderCallID: *entry.ProviderCallID,
		Outcome:        "booked",
	})
	if err != nil {
		t.Fatalf("late Reconcile: %v", err)
	}
	if !result.AlreadyReconciled {
		t.Fatal("late webhook was not treated as a replay")
	}
}

func TestSweepStuckSkipsFreshPending(t *testing.T) {
	repo := newFakeRepo()
	lead := repo.addLead(domain.LeadStatusNew)
	svc := newTestService(repo, &fakeProvider{}, &captureBus{})

	if _, err := svc.Dispatch(context.Background(), lead.ID); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	swept, err := svc.SweepStuck(context.Background(), 30*time.Minute)
	if err != nil {
		t.Fatalf("SweepStuck: %v", err)
	}
	if swept != 0 {
		t.Fatalf("swept = %d, want 0", swept)
	}
	if repo.pendingCount(lead.ID) != 1 {
		t.Fatal("fresh pending entry was swept")
	}
}

func TestSweepStuckClosesUndispatchedReservation(t *testing.T) {
	repo := newFakeRepo()
	lead := repo.addLead(domain.LeadStatusNew)
	svc := newTestService(repo, &fakeProvider{}, &captureBus{})

	// A reservation that never reached the provider: no provider call id.
	entry, err := repo.CreatePending(context.Background(), lead.ID, "1.0.0")
	if err != nil {
		t.Fatalf("CreatePending: %v", err)
	}
	repo.mu.Lock()
	repo.entries[entry.ID].AttemptedAt = time.Now().UTC().Add(-time.Hour)
	repo.mu.Unlock()

	swept, err := svc.SweepStuck(context.Background(), 30*time.Minute)
	if err != nil {
		t.Fatalf("SweepStuck: %v", err)
	}
	if swept != 1 {
		t.Fatalf("swept = %d, want 1", swept)
	}
	if repo.pendingCount(lead.ID) != 0 {
		t.Fatal("undispatched reservation still pending")
	}
	// The lead was never called, so it keeps its original status.
	got, _ := repo.GetByID(context.Background(), lead.ID)
	if got.Status != domain.LeadStatusNew {
		t.Fatalf("lead status = %s, want new", got.Status)
	}
}

func TestListByLeadUnknownLead(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeProvider{}, &captureBus{})

	_, err := svc.ListByLead(context.Background(), uuid.New())
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestDispatchFailedCleanupErrorDoesNotMaskUpstream(t *testing.T) {
	repo := newFakeRepo()
	lead := repo.addLead(domain.LeadStatusNew)
	provider := &fakeProvider{err: errors.New("dial tcp: i/o timeout")}
	svc := newTestService(repo, provider, &captureBus{})

	_, err := svc.Dispatch(context.Background(), lead.ID)
	if err == nil {
		t.Fatal("expected error from provider failure")
	}
	if apperr.Is(err, apperr.KindUpstream) {
		t.Fatal("untyped transport error should pass through, not be rewritten")
	}
}
