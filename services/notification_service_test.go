package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"collective-project-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPushSender struct {
	mu   sync.Mutex
	sent map[string]int
	err  error
}

func (s *stubPushSender) Send(userID, title, body string, data map[string]string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent == nil {
		s.sent = map[string]int{}
	}
	s.sent[userID]++
	if s.err != nil {
		return 0, s.err
	}
	return 1, nil
}

func (s *stubPushSender) recipients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id := range s.sent {
		ids = append(ids, id)
	}
	return ids
}

func TestNotifyNewContribution(t *testing.T) {
	db := newTestDB(t)
	push := &stubPushSender{}
	svc := NewNotificationService(db, push)

	creator := createTestUser(t, db, "creator")
	prior1 := createTestUser(t, db, "prior1")
	prior2 := createTestUser(t, db, "prior2")
	newcomer := createTestUser(t, db, "newcomer")

	project := createTestProject(t, db, func(p *models.Project) { p.CreatorID = creator.ID })
	base := time.Now().Add(-time.Hour)
	// Creator contributed too; they still get exactly one notification
	seedContribution(t, db, project.ID, creator.ID, models.MediaKindVideo, 0, base)
	seedContribution(t, db, project.ID, prior1.ID, models.MediaKindVideo, 0, base.Add(time.Minute))
	seedContribution(t, db, project.ID, prior2.ID, models.MediaKindVideo, 0, base.Add(2*time.Minute))
	seedContribution(t, db, project.ID, newcomer.ID, models.MediaKindVideo, 0, base.Add(3*time.Minute))

	svc.NotifyNewContribution(project.ID, newcomer.ID)

	assert.ElementsMatch(t, []string{creator.ID, prior1.ID, prior2.ID}, push.recipients())

	var rows []models.Notification
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 3)
	for _, n := range rows {
		assert.NotEqual(t, newcomer.ID, n.UserID)
		assert.Equal(t, "new_contribution", n.Data["type"])
		assert.Equal(t, project.ID, n.Data["project_id"])
		assert.Contains(t, n.Body, "newcomer")
	}
}

func TestNotifyProjectCompleted(t *testing.T) {
	db := newTestDB(t)
	push := &stubPushSender{}
	svc := NewNotificationService(db, push)

	a := createTestUser(t, db, "a")
	b := createTestUser(t, db, "b")
	project := createTestProject(t, db, nil)
	base := time.Now().Add(-time.Hour)
	seedContribution(t, db, project.ID, a.ID, models.MediaKindVideo, 0, base)
	seedContribution(t, db, project.ID, b.ID, models.MediaKindVideo, 0, base.Add(time.Minute))

	svc.NotifyProjectCompleted(project.ID)

	assert.ElementsMatch(t, []string{a.ID, b.ID}, push.recipients())

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

// Transport failures stay inside the notifier: the stored rows are written
// regardless.
func TestNotifyPushFailureStillStores(t *testing.T) {
	db := newTestDB(t)
	push := &stubPushSender{err: errors.New("gateway unreachable")}
	svc := NewNotificationService(db, push)

	a := createTestUser(t, db, "a")
	project := createTestProject(t, db, nil)
	seedContribution(t, db, project.ID, a.ID, models.MediaKindVideo, 0, time.Now())

	svc.NotifyProjectCompleted(project.ID)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestNotifyMissingProjectIsNoop(t *testing.T) {
	db := newTestDB(t)
	push := &stubPushSender{}
	svc := NewNotificationService(db, push)

	svc.NotifyNewContribution("3b7f7f0a-0000-0000-0000-000000000000", "whoever")
	svc.NotifyProjectCompleted("3b7f7f0a-0000-0000-0000-000000000000")

	assert.Empty(t, push.recipients())
	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	assert.Zero(t, count)
}

// With no push transport configured the constructor hands back a nil
// interface; notifications fall through to storage only.
func TestPushDisabled(t *testing.T) {
	db := newTestDB(t)
	t.Setenv("PUSH_SERVICE_URL", "")

	push := NewPushClientFromEnv(db)
	require.True(t, push == nil, "disabled transport must be a nil interface")

	svc := NewNotificationService(db, push)

	user := createTestUser(t, db, "solo")
	project := createTestProject(t, db, func(p *models.Project) { p.CreatorID = user.ID })
	seedContribution(t, db, project.ID, user.ID, models.MediaKindVideo, 0, time.Now())

	// Neither event may panic without a transport; stored rows still land
	svc.NotifyProjectCompleted(project.ID)
	svc.NotifyNewContribution(project.ID, user.ID)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
