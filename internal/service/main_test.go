package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"snapgrid/internal/models"
	"snapgrid/internal/pagination"
	"snapgrid/internal/repository"
	"snapgrid/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type emitted struct {
	UserID uint
	Event  string
	Data   any
}

// recordingEmitter captures pushed events instead of sending them.
type recordingEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (r *recordingEmitter) EmitToUser(_ context.Context, userID uint, event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, emitted{UserID: userID, Event: event, Data: data})
}

func (r *recordingEmitter) named(event string) []emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []emitted
	for _, e := range r.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type stubPresence map[uint]bool

func (p stubPresence) IsOnline(_ context.Context, userID uint) bool { return p[userID] }

// harness wires every service over one in-memory database.
type harness struct {
	db            *gorm.DB
	emitter       *recordingEmitter
	presence      stubPresence
	notifications *NotificationService
	users         *UserService
	posts         *PostService
	comments      *CommentService
	follows       *FollowService
	chat          *ChatService
	counters      *CounterService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewTestDB(t)
	emitter := &recordingEmitter{}
	presence := stubPresence{}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	followRepo := repository.NewFollowRepository(db)
	notifier := NewNotificationService(repository.NewNotificationRepository(db), userRepo, emitter)

	return &harness{
		db:            db,
		emitter:       emitter,
		presence:      presence,
		notifications: notifier,
		users:         NewUserService(userRepo, followRepo, presence),
		posts:         NewPostService(postRepo, userRepo, notifier, emitter),
		comments:      NewCommentService(commentRepo, postRepo, notifier, emitter),
		follows:       NewFollowService(followRepo, userRepo, notifier, presence),
		chat:          NewChatService(repository.NewChatRepository(db), userRepo, emitter),
		counters:      NewCounterService(repository.NewCounterRepository(db)),
	}
}

func firstPage(limit int) pagination.Params {
	return pagination.New(1, limit, limit, pagination.DefaultMax)
}

func (h *harness) notificationsFor(t *testing.T, userID uint) *NotificationList {
	t.Helper()
	list, err := h.notifications.List(context.Background(), userID, firstPage(50))
	require.NoError(t, err)
	return list
}

// assertCode asserts that err is an AppError with the given code.
func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code, appErr.Message)
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeValidation)
}

// assertForbiddenError asserts that err is an AppError with code FORBIDDEN.
func assertForbiddenError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeForbidden)
}
