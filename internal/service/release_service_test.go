package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-gate-api/internal/dto"
	"github.com/noah-isme/gema-gate-api/internal/models"
	"github.com/noah-isme/gema-gate-api/internal/realtime"
	"github.com/noah-isme/gema-gate-api/internal/repository"
)

type releaseFixture struct {
	releases      repository.ReleaseRepository
	accessRecords repository.AccessRecordRepository
	notifications repository.NotificationRepository
	hub           *realtime.Hub
	service       *releaseService
}

func newReleaseFixture(t *testing.T, notifier NotificationService) releaseFixture {
	t.Helper()
	db := setupServiceDB(t)
	hub := newTestHub()
	fixture := releaseFixture{
		releases:      repository.NewReleaseRepository(db),
		accessRecords: repository.NewAccessRecordRepository(db),
		notifications: repository.NewNotificationRepository(db),
		hub:           hub,
	}
	if notifier == nil {
		notifier = NewNotificationService(fixture.notifications, hub, newTestValidator(), zerolog.Nop())
	}
	svc := NewReleaseService(fixture.releases, fixture.accessRecords, notifier, hub, newTestLocalizer(t), zerolog.Nop()).(*releaseService)
	svc.now = func() time.Time { return time.Date(2024, 5, 10, 17, 30, 0, 0, time.UTC) }
	fixture.service = svc
	return fixture
}

func TestReleaseCompleteConfirmsAndNotifies(t *testing.T) {
	fx := newReleaseFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, fx.releases.Create(ctx, &models.AuthorizedRelease{ID: "r1", StudentID: "s1", Unit: "unit_bs", AuthorizedBy: "Coord. Lia"}))

	events := fx.hub.Subscribe(realtime.ReleasesTopic("unit_bs"))
	defer events.Stop()

	result, err := fx.service.Complete(ctx, testSession(RoleGatekeeper), "r1")
	require.NoError(t, err)
	require.Equal(t, "released", result.Release.Status)
	require.NotEmpty(t, result.NotificationID)
	require.False(t, result.AccessRecordPatched)

	stored, err := fx.releases.GetByID(ctx, "unit_bs", "r1")
	require.NoError(t, err)
	require.Equal(t, models.ReleaseStatusReleased, stored.Status)
	require.NotNil(t, stored.ReleasedAt)
	require.Equal(t, "Marta", stored.GatekeeperName)

	feed, err := fx.notifications.ListByStudent(ctx, "s1", 10, 0)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	require.Equal(t, "Saída Confirmada", feed[0].Title)
	require.Contains(t, feed[0].Message, "10/05/2024 às 14:30")
	require.Equal(t, "r1", feed[0].Data["release_id"])

	select {
	case event := <-events.C:
		require.Equal(t, realtime.ReleasesTopic("unit_bs"), event.Topic)
	case <-time.After(time.Second):
		t.Fatal("expected a release change event")
	}
}

func TestReleaseCompleteIsGuardedAgainstRepeats(t *testing.T) {
	fx := newReleaseFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, fx.releases.Create(ctx, &models.AuthorizedRelease{ID: "r1", StudentID: "s1", Unit: "unit_bs"}))

	_, err := fx.service.Complete(ctx, testSession(RoleGatekeeper), "r1")
	require.NoError(t, err)

	_, err = fx.service.Complete(ctx, testSession(RoleGatekeeper), "r1")
	require.ErrorIs(t, err, ErrReleaseNotPending)

	feed, err := fx.notifications.ListByStudent(ctx, "s1", 10, 0)
	require.NoError(t, err)
	require.Len(t, feed, 1, "a repeated completion must not notify twice")
}

func TestReleaseCompletePatchesLinkedAccessRecord(t *testing.T) {
	fx := newReleaseFixture(t, nil)
	ctx := context.Background()
	recordID := "a1"
	require.NoError(t, fx.accessRecords.Create(ctx, &models.AccessRecord{ID: recordID, StudentID: "s1", Unit: "unit_bs", EntryTime: time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)}))
	require.NoError(t, fx.releases.Create(ctx, &models.AuthorizedRelease{ID: "r1", StudentID: "s1", Unit: "unit_bs", LinkedAccessRecordID: &recordID}))

	result, err := fx.service.Complete(ctx, testSession(RoleGatekeeper), "r1")
	require.NoError(t, err)
	require.True(t, result.AccessRecordPatched)

	record, err := fx.accessRecords.GetByID(ctx, "unit_bs", recordID)
	require.NoError(t, err)
	require.NotNil(t, record.ExitTime)
	require.True(t, record.ExitTime.Equal(result.CompletedAt))
	require.Equal(t, "Marta", record.GatekeeperName)
}

func TestReleaseCompleteKeepsStatusFlipWhenAccessRecordFails(t *testing.T) {
	fx := newReleaseFixture(t, nil)
	ctx := context.Background()
	missing := "a-missing"
	require.NoError(t, fx.releases.Create(ctx, &models.AuthorizedRelease{ID: "r1", StudentID: "s1", Unit: "unit_bs", LinkedAccessRecordID: &missing}))

	result, err := fx.service.Complete(ctx, testSession(RoleGatekeeper), "r1")
	require.ErrorIs(t, err, ErrCompletionPartial)
	require.Contains(t, err.Error(), stepAccessRecord)
	require.Equal(t, "released", result.Release.Status)

	stored, err := fx.releases.GetByID(ctx, "unit_bs", "r1")
	require.NoError(t, err)
	require.Equal(t, models.ReleaseStatusReleased, stored.Status)

	feed, err := fx.notifications.ListByStudent(ctx, "s1", 10, 0)
	require.NoError(t, err)
	require.Empty(t, feed, "later steps do not run after a failed step")
}

type failingNotifier struct {
	NotificationService
}

func (failingNotifier) Publish(context.Context, dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	return dto.NotificationResponse{}, errStoreDown
}

func TestReleaseCompleteKeepsStatusFlipWhenNotificationFails(t *testing.T) {
	fx := newReleaseFixture(t, failingNotifier{})
	ctx := context.Background()
	require.NoError(t, fx.releases.Create(ctx, &models.AuthorizedRelease{ID: "r1", StudentID: "s1", Unit: "unit_bs"}))

	_, err := fx.service.Complete(ctx, testSession(RoleGatekeeper), "r1")
	require.ErrorIs(t, err, ErrCompletionPartial)
	require.ErrorIs(t, err, errStoreDown)

	stored, err := fx.releases.GetByID(ctx, "unit_bs", "r1")
	require.NoError(t, err)
	require.Equal(t, models.ReleaseStatusReleased, stored.Status)
}

func TestReleaseCompleteScopesToSessionUnit(t *testing.T) {
	fx := newReleaseFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, fx.releases.Create(ctx, &models.AuthorizedRelease{ID: "r1", StudentID: "s1", Unit: "unit_other"}))

	_, err := fx.service.Complete(ctx, testSession(RoleGatekeeper), "r1")
	require.ErrorIs(t, err, ErrReleaseNotFound)

	_, err = fx.service.Complete(ctx, Session{Unit: "unit_other"}, "r1")
	require.ErrorIs(t, err, ErrSessionRequired)

	stored, err := fx.releases.GetByID(ctx, "unit_other", "r1")
	require.NoError(t, err)
	require.Equal(t, models.ReleaseStatusPending, stored.Status)
}

func TestReleaseWatchRefreshesAfterCompletion(t *testing.T) {
	fx := newReleaseFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fx.releases.Create(ctx, &models.AuthorizedRelease{ID: "r1", StudentID: "s1", Unit: "unit_bs"}))

	snapshots := fx.service.Watch(ctx, "unit_bs")
	first := <-snapshots
	require.Len(t, first, 1)

	_, err := fx.service.Complete(ctx, testSession(RoleGatekeeper), "r1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		select {
		case snapshot := <-snapshots:
			return len(snapshot) == 0
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
