// internal/engine/fakes_test.go
package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "github.com/naalis/influfinder/internal/common/errors"
	"github.com/naalis/influfinder/internal/common/logger"
	"github.com/naalis/influfinder/internal/models"
	"github.com/naalis/influfinder/internal/scoring"
)

// The fakes mirror the conditional-update semantics of the SQL stores: a
// transition is applied only when the current status permits it, and the
// mutex stands in for the database's row-level serialization.

type notifyCall struct {
	userID string
	event  models.EventType
	data   map[string]interface{}
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (f *fakeNotifier) Notify(userID string, event models.EventType, data map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notifyCall{userID: userID, event: event, data: data})
}

func (f *fakeNotifier) eventsFor(event models.EventType) []notifyCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notifyCall
	for _, c := range f.calls {
		if c.event == event {
			out = append(out, c)
		}
	}
	return out
}

type fakeOfferStore struct {
	mu     sync.Mutex
	offers map[string]*models.Offer
}

func newFakeOfferStore() *fakeOfferStore {
	return &fakeOfferStore{offers: map[string]*models.Offer{}}
}

func (f *fakeOfferStore) Get(_ context.Context, id string) (*models.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.offers[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("offer", id)
	}
	cp := *o
	return &cp, nil
}

type fakeApplicationStore struct {
	mu      sync.Mutex
	apps    map[string]*models.Application
	collabs *fakeCollaborationStore
}

func newFakeApplicationStore(collabs *fakeCollaborationStore) *fakeApplicationStore {
	return &fakeApplicationStore{apps: map[string]*models.Application{}, collabs: collabs}
}

func cloneApplication(a *models.Application) *models.Application {
	cp := *a
	return &cp
}

func (f *fakeApplicationStore) Get(_ context.Context, id string) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getLocked(id)
}

func (f *fakeApplicationStore) getLocked(id string) (*models.Application, error) {
	a, ok := f.apps[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("application", id)
	}
	return cloneApplication(a), nil
}

func (f *fakeApplicationStore) Create(_ context.Context, app *models.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.apps {
		if existing.OfferID == app.OfferID && existing.CreatorID == app.CreatorID && existing.Status.Active() {
			return apperrors.NewConflictError(fmt.Sprintf(
				"active application already exists for offer %s by creator %s",
				app.OfferID, app.CreatorID))
		}
	}
	f.apps[app.ID] = cloneApplication(app)
	return nil
}

func (f *fakeApplicationStore) MarkUnderReview(_ context.Context, id string, at time.Time) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.apps[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("application", id)
	}
	switch a.Status {
	case models.ApplicationApplied:
		a.Status = models.ApplicationUnderReview
		a.ReviewedAt = &at
	case models.ApplicationUnderReview:
	default:
		return nil, apperrors.NewInvalidStateError(fmt.Sprintf(
			"application %s is %s, cannot transition to %s", id, a.Status, models.ApplicationUnderReview))
	}
	return cloneApplication(a), nil
}

func (f *fakeApplicationStore) Reject(_ context.Context, id, reason string, at time.Time) (*models.Application, error) {
	return f.finish(id, models.ApplicationRejected, reason, at)
}

func (f *fakeApplicationStore) Withdraw(_ context.Context, id string, at time.Time) (*models.Application, error) {
	return f.finish(id, models.ApplicationWithdrawn, "", at)
}

func (f *fakeApplicationStore) finish(id string, status models.ApplicationStatus, reason string, at time.Time) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.apps[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("application", id)
	}
	if a.Status != models.ApplicationApplied && a.Status != models.ApplicationUnderReview {
		return nil, apperrors.NewInvalidStateError(fmt.Sprintf(
			"application %s is %s, cannot transition to %s", id, a.Status, status))
	}
	a.Status = status
	a.RejectionReason = reason
	a.RespondedAt = &at
	return cloneApplication(a), nil
}

func (f *fakeApplicationStore) AcceptAndSpawn(_ context.Context, id string, at time.Time, collab *models.Collaboration) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.apps[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("application", id)
	}
	if a.Status != models.ApplicationApplied && a.Status != models.ApplicationUnderReview {
		return nil, apperrors.NewInvalidStateError(fmt.Sprintf(
			"application %s is %s, cannot transition to %s", id, a.Status, models.ApplicationAccepted))
	}
	a.Status = models.ApplicationAccepted
	a.ReviewedAt = &at
	a.RespondedAt = &at
	f.collabs.put(collab)
	return cloneApplication(a), nil
}

func (f *fakeApplicationStore) ListByCreator(_ context.Context, creatorID string, status models.ApplicationStatus) ([]*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Application
	for _, a := range f.apps {
		if a.CreatorID != creatorID {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, cloneApplication(a))
	}
	return out, nil
}

type fakeCollaborationStore struct {
	mu      sync.Mutex
	collabs map[string]*models.Collaboration
	subs    *fakeSubmissionStore
}

func newFakeCollaborationStore(subs *fakeSubmissionStore) *fakeCollaborationStore {
	return &fakeCollaborationStore{collabs: map[string]*models.Collaboration{}, subs: subs}
}

func cloneCollaboration(c *models.Collaboration) *models.Collaboration {
	cp := *c
	return &cp
}

func (f *fakeCollaborationStore) put(c *models.Collaboration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collabs[c.ID] = cloneCollaboration(c)
}

func (f *fakeCollaborationStore) Get(_ context.Context, id string) (*models.Collaboration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.collabs[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("collaboration", id)
	}
	return cloneCollaboration(c), nil
}

func (f *fakeCollaborationStore) Schedule(_ context.Context, id string, date, at time.Time) (*models.Collaboration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.collabs[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("collaboration", id)
	}
	if c.Status.Terminal() {
		return nil, apperrors.NewInvalidStateError(fmt.Sprintf(
			"collaboration %s is %s, cannot transition to %s", id, c.Status, models.CollaborationScheduled))
	}
	if c.Status == models.CollaborationAccepted || c.Status == models.CollaborationScheduled {
		c.Status = models.CollaborationScheduled
	}
	c.ScheduledDate = &date
	c.UpdatedAt = at
	return cloneCollaboration(c), nil
}

func (f *fakeCollaborationStore) MarkVisited(_ context.Context, id string, at time.Time) (*models.Collaboration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.collabs[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("collaboration", id)
	}
	if c.Status != models.CollaborationAccepted && c.Status != models.CollaborationScheduled {
		return nil, apperrors.NewInvalidStateError(fmt.Sprintf(
			"collaboration %s is %s, cannot transition to %s", id, c.Status, models.CollaborationVisited))
	}
	c.Status = models.CollaborationVisited
	c.VisitedDate = &at
	c.UpdatedAt = at
	return cloneCollaboration(c), nil
}

// AdvanceOnSubmission stores the submission only when the status gate
// passes, like the SQL store's single transaction.
func (f *fakeCollaborationStore) AdvanceOnSubmission(_ context.Context, sub *models.ContentSubmission, at time.Time) (*models.Collaboration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.collabs[sub.CollaborationID]
	if !ok {
		return nil, apperrors.NewNotFoundError("collaboration", sub.CollaborationID)
	}
	if c.Status.Terminal() {
		return nil, apperrors.NewInvalidStateError(fmt.Sprintf(
			"collaboration %s is %s, cannot transition to %s", sub.CollaborationID, c.Status, models.CollaborationContentSubmitted))
	}
	switch c.Status {
	case models.CollaborationAccepted, models.CollaborationScheduled, models.CollaborationVisited:
		c.Status = models.CollaborationContentSubmitted
	}
	c.SubmissionID = &sub.ID
	c.UpdatedAt = at
	f.subs.put(sub)
	return cloneCollaboration(c), nil
}

func (f *fakeCollaborationStore) MarkInReview(_ context.Context, id string, at time.Time) (*models.Collaboration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.collabs[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("collaboration", id)
	}
	if c.Status == models.CollaborationContentSubmitted {
		c.Status = models.CollaborationInReview
		c.UpdatedAt = at
	}
	return cloneCollaboration(c), nil
}

func (f *fakeCollaborationStore) Complete(_ context.Context, id string, submissionID *string, at time.Time) (*models.Collaboration, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.collabs[id]
	if !ok {
		return nil, false, apperrors.NewNotFoundError("collaboration", id)
	}
	if c.CompletedDate != nil || c.Status == models.CollaborationCancelled || c.Status == models.CollaborationDisputed {
		return cloneCollaboration(c), false, nil
	}
	c.Status = models.CollaborationCompleted
	c.CompletedDate = &at
	if submissionID != nil {
		c.SubmissionID = submissionID
	}
	c.UpdatedAt = at
	return cloneCollaboration(c), true, nil
}

func (f *fakeCollaborationStore) SetRating(_ context.Context, id string, role models.Role, rating int, feedback string, at time.Time) (*models.Collaboration, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.collabs[id]
	if !ok {
		return nil, false, apperrors.NewNotFoundError("collaboration", id)
	}
	switch role {
	case models.RoleCreator:
		c.CreatorRating = &rating
		c.CreatorFeedback = feedback
	case models.RoleBusiness:
		c.BusinessRating = &rating
		c.BusinessFeedback = feedback
	}
	completedNow := false
	if c.BothRated() && c.CompletedDate == nil &&
		c.Status != models.CollaborationCancelled && c.Status != models.CollaborationDisputed {
		completedNow = true
		c.Status = models.CollaborationCompleted
		c.CompletedDate = &at
	}
	c.UpdatedAt = at
	return cloneCollaboration(c), completedNow, nil
}

func (f *fakeCollaborationStore) Terminate(_ context.Context, id string, status models.CollaborationStatus, reason string, at time.Time) (*models.Collaboration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.collabs[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("collaboration", id)
	}
	if c.Status.Terminal() {
		return nil, apperrors.NewInvalidStateError(fmt.Sprintf(
			"collaboration %s is %s, cannot transition to %s", id, c.Status, status))
	}
	c.Status = status
	if status == models.CollaborationDisputed {
		c.DisputeReason = reason
	}
	c.UpdatedAt = at
	return cloneCollaboration(c), nil
}

func (f *fakeCollaborationStore) CountCompletedByCreator(_ context.Context, creatorID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, c := range f.collabs {
		if c.CreatorID == creatorID && c.Status == models.CollaborationCompleted {
			count++
		}
	}
	return count, nil
}

func (f *fakeCollaborationStore) ListByUser(_ context.Context, userID string, role models.Role, status models.CollaborationStatus) ([]*models.Collaboration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Collaboration
	for _, c := range f.collabs {
		switch role {
		case models.RoleCreator:
			if c.CreatorID != userID {
				continue
			}
		case models.RoleBusiness:
			if c.BusinessID != userID {
				continue
			}
		default:
			if c.CreatorID != userID && c.BusinessID != userID {
				continue
			}
		}
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, cloneCollaboration(c))
	}
	return out, nil
}

type fakeSubmissionStore struct {
	mu   sync.Mutex
	subs map[string]*models.ContentSubmission
}

func newFakeSubmissionStore() *fakeSubmissionStore {
	return &fakeSubmissionStore{subs: map[string]*models.ContentSubmission{}}
}

func cloneSubmission(s *models.ContentSubmission) *models.ContentSubmission {
	cp := *s
	return &cp
}

func (f *fakeSubmissionStore) Get(_ context.Context, id string) (*models.ContentSubmission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("submission", id)
	}
	return cloneSubmission(s), nil
}

func (f *fakeSubmissionStore) put(sub *models.ContentSubmission) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[sub.ID] = cloneSubmission(sub)
}

func (f *fakeSubmissionStore) SetScore(_ context.Context, id string, score float64, analysis map[string]interface{}, at time.Time) (*models.ContentSubmission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("submission", id)
	}
	if s.Status != models.SubmissionSubmitted && s.Status != models.SubmissionUnderReview {
		return nil, apperrors.NewInvalidStateError(fmt.Sprintf(
			"submission %s is %s, cannot transition to %s", id, s.Status, models.SubmissionUnderReview))
	}
	s.Status = models.SubmissionUnderReview
	s.AIScore = &score
	s.AIAnalysis = analysis
	return cloneSubmission(s), nil
}

func (f *fakeSubmissionStore) Decide(_ context.Context, id string, decision models.SubmissionStatus, reviewerID, notes string, at time.Time) (*models.ContentSubmission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("submission", id)
	}
	if s.Status.Terminal() {
		return nil, apperrors.NewInvalidStateError(fmt.Sprintf(
			"submission %s is %s, cannot transition to %s", id, s.Status, decision))
	}
	s.Status = decision
	s.ReviewedBy = &reviewerID
	s.ReviewerNotes = notes
	s.ReviewedAt = &at
	return cloneSubmission(s), nil
}

func (f *fakeSubmissionStore) ListByCollaboration(_ context.Context, collabID string) ([]*models.ContentSubmission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.ContentSubmission
	for _, s := range f.subs {
		if s.CollaborationID == collabID {
			out = append(out, cloneSubmission(s))
		}
	}
	return out, nil
}

func (f *fakeSubmissionStore) ListUnscored(_ context.Context, limit int) ([]*models.ContentSubmission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.ContentSubmission
	for _, s := range f.subs {
		if len(out) >= limit {
			break
		}
		if s.Status == models.SubmissionSubmitted && s.AIScore == nil {
			out = append(out, cloneSubmission(s))
		}
	}
	return out, nil
}

type fakeTierStore struct {
	mu      sync.Mutex
	records map[string]*models.TierRecord
}

func newFakeTierStore() *fakeTierStore {
	return &fakeTierStore{records: map[string]*models.TierRecord{}}
}

func (f *fakeTierStore) Get(_ context.Context, creatorID string) (*models.TierRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[creatorID]
	if !ok {
		return nil, apperrors.NewNotFoundError("tier record", creatorID)
	}
	cp := *r
	return &cp, nil
}

func (f *fakeTierStore) Upsert(_ context.Context, rec *models.TierRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	f.records[rec.CreatorID] = &cp
	return nil
}

type fakeOracle struct {
	mu     sync.Mutex
	result *scoring.Result
	err    error
	calls  int
}

func (f *fakeOracle) Analyze(_ context.Context, _ string, _ map[string]interface{}, _ string) (*scoring.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// testRig wires the four engines over the in-memory fakes.
type testRig struct {
	apps     *fakeApplicationStore
	collabs  *fakeCollaborationStore
	subs     *fakeSubmissionStore
	offers   *fakeOfferStore
	tiers    *fakeTierStore
	notifier *fakeNotifier
	oracle   *fakeOracle

	applications *ApplicationEngine
	lifecycle    *CollaborationEngine
	content      *ContentEngine
	tier         *TierEngine
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	log := logger.NewTestLogger(t)

	r := &testRig{
		subs:     newFakeSubmissionStore(),
		offers:   newFakeOfferStore(),
		tiers:    newFakeTierStore(),
		notifier: &fakeNotifier{},
		oracle:   &fakeOracle{result: &scoring.Result{Score: 87.5, PassedRequirements: true}},
	}
	r.collabs = newFakeCollaborationStore(r.subs)
	r.apps = newFakeApplicationStore(r.collabs)

	r.tier = NewTierEngine(r.collabs, r.tiers, r.notifier, log)
	r.lifecycle = NewCollaborationEngine(r.collabs, r.tier, r.notifier, log)
	r.applications = NewApplicationEngine(r.apps, r.offers, r.notifier, log)
	r.content = NewContentEngine(r.subs, r.collabs, r.offers, r.oracle, r.lifecycle, r.notifier, log)
	return r
}

func (r *testRig) addOffer(o *models.Offer) {
	r.offers.mu.Lock()
	defer r.offers.mu.Unlock()
	cp := *o
	r.offers.offers[o.ID] = &cp
}

func (r *testRig) addCollaboration(c *models.Collaboration) {
	r.collabs.put(c)
}

func (r *testRig) addSubmission(s *models.ContentSubmission) {
	r.subs.put(s)
}
