// internal/engine/applications_test.go
package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/naalis/influfinder/internal/common/errors"
	"github.com/naalis/influfinder/internal/models"
)

func testOffer() *models.Offer {
	return &models.Offer{
		ID:         "offer-1",
		BusinessID: "biz-1",
		Title:      "Cafe launch reel",
		BudgetMin:  200,
		BudgetMax:  500,
		Requirements: map[string]interface{}{
			"deliverables": map[string]interface{}{
				"reels":     float64(1),
				"platforms": []interface{}{"instagram"},
			},
		},
	}
}

func TestSubmitApplication(t *testing.T) {
	r := newTestRig(t)
	r.addOffer(testOffer())
	ctx := context.Background()

	fee := 300.0
	app, err := r.applications.Submit(ctx, SubmitApplicationInput{
		OfferID:     "offer-1",
		CreatorID:   "creator-1",
		Message:     "I shoot food content weekly",
		ProposedFee: &fee,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationApplied, app.Status)
	assert.NotEmpty(t, app.ID)
	assert.False(t, app.AppliedAt.IsZero())

	received := r.notifier.eventsFor(models.EventApplicationReceived)
	require.Len(t, received, 1)
	assert.Equal(t, "biz-1", received[0].userID)
	assert.Equal(t, app.ID, received[0].data["applicationId"])
}

func TestSubmitApplicationValidation(t *testing.T) {
	r := newTestRig(t)
	r.addOffer(testOffer())
	ctx := context.Background()

	badFee := -5.0
	_, err := r.applications.Submit(ctx, SubmitApplicationInput{
		OfferID: "offer-1", CreatorID: "creator-1", ProposedFee: &badFee,
	})
	assert.True(t, apperrors.IsInvalidArgument(err))

	_, err = r.applications.Submit(ctx, SubmitApplicationInput{
		OfferID: "no-such-offer", CreatorID: "creator-1",
	})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSubmitDuplicateApplicationConflicts(t *testing.T) {
	r := newTestRig(t)
	r.addOffer(testOffer())
	ctx := context.Background()

	in := SubmitApplicationInput{OfferID: "offer-1", CreatorID: "creator-1"}
	_, err := r.applications.Submit(ctx, in)
	require.NoError(t, err)

	_, err = r.applications.Submit(ctx, in)
	assert.True(t, apperrors.IsConflict(err))
}

func TestWithdrawFreesSlotForReapply(t *testing.T) {
	r := newTestRig(t)
	r.addOffer(testOffer())
	ctx := context.Background()

	app, err := r.applications.Submit(ctx, SubmitApplicationInput{OfferID: "offer-1", CreatorID: "creator-1"})
	require.NoError(t, err)

	_, err = r.applications.Withdraw(ctx, app.ID, "someone-else")
	assert.True(t, apperrors.IsForbidden(err))

	withdrawn, err := r.applications.Withdraw(ctx, app.ID, "creator-1")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationWithdrawn, withdrawn.Status)

	_, err = r.applications.Submit(ctx, SubmitApplicationInput{OfferID: "offer-1", CreatorID: "creator-1"})
	assert.NoError(t, err, "withdrawn application must not block a re-apply")

	require.Len(t, r.notifier.eventsFor(models.EventApplicationWithdrawn), 1)
}

func TestReviewRequiresOfferOwner(t *testing.T) {
	r := newTestRig(t)
	r.addOffer(testOffer())
	ctx := context.Background()

	app, err := r.applications.Submit(ctx, SubmitApplicationInput{OfferID: "offer-1", CreatorID: "creator-1"})
	require.NoError(t, err)

	_, err = r.applications.Review(ctx, app.ID, "creator-1", models.ApplicationAccepted, "")
	assert.True(t, apperrors.IsForbidden(err))

	_, err = r.applications.Review(ctx, app.ID, "biz-1", models.ApplicationWithdrawn, "")
	assert.True(t, apperrors.IsInvalidArgument(err))
}

func TestReviewRejected(t *testing.T) {
	r := newTestRig(t)
	r.addOffer(testOffer())
	ctx := context.Background()

	app, err := r.applications.Submit(ctx, SubmitApplicationInput{OfferID: "offer-1", CreatorID: "creator-1"})
	require.NoError(t, err)

	rejected, err := r.applications.Review(ctx, app.ID, "biz-1", models.ApplicationRejected, "portfolio mismatch")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationRejected, rejected.Status)
	assert.Equal(t, "portfolio mismatch", rejected.RejectionReason)

	events := r.notifier.eventsFor(models.EventApplicationRejected)
	require.Len(t, events, 1)
	assert.Equal(t, "creator-1", events[0].userID)

	// Rejection is final.
	_, err = r.applications.Review(ctx, app.ID, "biz-1", models.ApplicationAccepted, "")
	assert.True(t, apperrors.IsInvalidState(err))
}

func TestReviewAcceptedSpawnsCollaboration(t *testing.T) {
	r := newTestRig(t)
	r.addOffer(testOffer())
	ctx := context.Background()

	fee := 350.0
	date := time.Now().Add(72 * time.Hour).UTC()
	app, err := r.applications.Submit(ctx, SubmitApplicationInput{
		OfferID: "offer-1", CreatorID: "creator-1",
		ProposedFee: &fee, ProposedDate: &date,
	})
	require.NoError(t, err)

	accepted, err := r.applications.Review(ctx, app.ID, "biz-1", models.ApplicationAccepted, "")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationAccepted, accepted.Status)

	collabs, err := r.collabs.ListByUser(ctx, "creator-1", models.RoleCreator, "")
	require.NoError(t, err)
	require.Len(t, collabs, 1)
	c := collabs[0]
	assert.Equal(t, app.ID, c.ApplicationID)
	assert.Equal(t, models.CollaborationAccepted, c.Status)
	assert.Equal(t, 350.0, c.AgreedFee, "proposed fee wins over budget floor")
	assert.NotNil(t, c.AgreedDeliverables)
	require.NotNil(t, c.ScheduledDate)
	assert.True(t, c.ScheduledDate.Equal(date))

	events := r.notifier.eventsFor(models.EventApplicationAccepted)
	require.Len(t, events, 1)
	assert.Equal(t, "creator-1", events[0].userID)
}

func TestReviewAcceptedFallsBackToBudgetMin(t *testing.T) {
	r := newTestRig(t)
	r.addOffer(testOffer())
	ctx := context.Background()

	app, err := r.applications.Submit(ctx, SubmitApplicationInput{OfferID: "offer-1", CreatorID: "creator-1"})
	require.NoError(t, err)

	_, err = r.applications.Review(ctx, app.ID, "biz-1", models.ApplicationAccepted, "")
	require.NoError(t, err)

	collabs, err := r.collabs.ListByUser(ctx, "creator-1", models.RoleCreator, "")
	require.NoError(t, err)
	require.Len(t, collabs, 1)
	assert.Equal(t, 200.0, collabs[0].AgreedFee)
}

func TestConcurrentReviewAcceptsOnce(t *testing.T) {
	r := newTestRig(t)
	r.addOffer(testOffer())
	ctx := context.Background()

	app, err := r.applications.Submit(ctx, SubmitApplicationInput{OfferID: "offer-1", CreatorID: "creator-1"})
	require.NoError(t, err)

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.applications.Review(ctx, app.ID, "biz-1", models.ApplicationAccepted, "")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.True(t, apperrors.IsInvalidState(err), "losers must observe the terminal state, got %v", err)
		}
	}
	assert.Equal(t, 1, wins, "exactly one accept must win")

	collabs, err := r.collabs.ListByUser(ctx, "creator-1", models.RoleCreator, "")
	require.NoError(t, err)
	assert.Len(t, collabs, 1, "exactly one collaboration per accepted application")
}

func TestStartReviewIdempotent(t *testing.T) {
	r := newTestRig(t)
	r.addOffer(testOffer())
	ctx := context.Background()

	app, err := r.applications.Submit(ctx, SubmitApplicationInput{OfferID: "offer-1", CreatorID: "creator-1"})
	require.NoError(t, err)

	first, err := r.applications.StartReview(ctx, app.ID, "biz-1")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationUnderReview, first.Status)

	again, err := r.applications.StartReview(ctx, app.ID, "biz-1")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationUnderReview, again.Status)
}

func TestGetApplicationPartyCheck(t *testing.T) {
	r := newTestRig(t)
	r.addOffer(testOffer())
	ctx := context.Background()

	app, err := r.applications.Submit(ctx, SubmitApplicationInput{OfferID: "offer-1", CreatorID: "creator-1"})
	require.NoError(t, err)

	_, err = r.applications.GetApplication(ctx, app.ID, "creator-1")
	assert.NoError(t, err)
	_, err = r.applications.GetApplication(ctx, app.ID, "biz-1")
	assert.NoError(t, err)
	_, err = r.applications.GetApplication(ctx, app.ID, "stranger")
	assert.True(t, apperrors.IsForbidden(err))
}
