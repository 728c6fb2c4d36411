// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"snapgrid/internal/models"
	"snapgrid/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password every seeded account logs in with. It
// satisfies the registration password policy.
const DefaultPassword = "Snapgrid!Demo2026"

// Options tune the generated data.
type Options struct {
	// FastHash hashes passwords at bcrypt.MinCost. Logins still work.
	FastHash bool
	// MaxDays bounds how far back created_at timestamps are spread.
	MaxDays int
	// RandSeed makes runs reproducible when non-zero.
	RandSeed int64
}

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by the seeder and tests.
type Factory struct {
	db   *gorm.DB
	opts Options
	fake *gofakeit.Faker
	chat repository.ChatRepository

	passwordHash string
	seq          int
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) (*Factory, error) {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 90
	}

	cost := bcrypt.DefaultCost
	if opts.FastHash {
		cost = bcrypt.MinCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}

	return &Factory{
		db:           db,
		opts:         opts,
		fake:         gofakeit.New(seed),
		chat:         repository.NewChatRepository(db),
		passwordHash: string(hash),
	}, nil
}

var handleUnsafe = regexp.MustCompile(`[^a-z0-9_]+`)

// handle turns a display name into a username that passes registration
// validation. The sequence suffix keeps handles unique per run.
func handle(first, last string, seq int) string {
	base := handleUnsafe.ReplaceAllString(strings.ToLower(first+"_"+last), "")
	if len(base) > 20 {
		base = base[:20]
	}
	base = strings.Trim(base, "_")
	if base == "" {
		base = "user"
	}
	return fmt.Sprintf("%s_%d", base, seq)
}

// pastTime returns a random instant within the configured window.
func (f *Factory) pastTime() time.Time {
	minutes := f.fake.Number(0, f.opts.MaxDays*24*60)
	return time.Now().Add(-time.Duration(minutes) * time.Minute)
}

// CreateUser constructs and persists a sample models.User. Optional override
// functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	f.seq++
	first, last := f.fake.FirstName(), f.fake.LastName()
	username := handle(first, last, f.seq)

	user := &models.User{
		Username:    username,
		Email:       username + "@example.com",
		Password:    f.passwordHash,
		DisplayName: first + " " + last,
		Bio:         f.fake.Sentence(f.fake.Number(4, 12)),
		Avatar:      fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.fake.UUID()),
		State:       models.StateActive,
	}
	user.CreatedAt = f.pastTime()

	for _, override := range overrides {
		override(user)
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost constructs a post with 1-4 images without persisting it.
func (f *Factory) BuildPost(user *models.User, overrides ...func(*models.Post)) *models.Post {
	post := &models.Post{
		UserID:  user.ID,
		Caption: f.fake.Sentence(f.fake.Number(3, 20)),
		State:   models.StateActive,
	}
	if f.fake.Bool() {
		post.Location = f.fake.City()
	}
	post.CreatedAt = f.pastTime()

	n := f.fake.Number(models.MinPostImages, 4)
	for i := 0; i < n; i++ {
		post.Images = append(post.Images, models.PostImage{
			Position: i,
			URL:      fmt.Sprintf("https://picsum.photos/seed/%s/1080/1080", f.fake.UUID()),
		})
	}

	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePostsBatch persists posts and their images in one call.
func (f *Factory) CreatePostsBatch(posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	return f.db.Omit("User").CreateInBatches(posts, 100).Error
}

// CreatePost builds and persists a single post.
func (f *Factory) CreatePost(user *models.User, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(user, overrides...)
	if err := f.CreatePostsBatch([]*models.Post{post}); err != nil {
		return nil, err
	}
	return post, nil
}

// CreateComment persists a comment on post. A non-nil parent makes it a
// reply; parent must itself be top-level.
func (f *Factory) CreateComment(user *models.User, post *models.Post, parent *models.Comment) (*models.Comment, error) {
	comment := &models.Comment{
		PostID:  post.ID,
		UserID:  user.ID,
		Content: f.fake.Sentence(f.fake.Number(2, 16)),
		State:   models.StateActive,
	}
	comment.CreatedAt = later(post.CreatedAt, f.fake.Number(1, 72*60))
	if parent != nil {
		comment.ParentID = &parent.ID
		comment.CreatedAt = later(parent.CreatedAt, f.fake.Number(1, 24*60))
	}
	if err := f.db.Omit("User").Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateLike records user liking post.
func (f *Factory) CreateLike(user *models.User, post *models.Post) error {
	like := &models.Like{UserID: user.ID, PostID: post.ID, CreatedAt: later(post.CreatedAt, f.fake.Number(1, 48*60))}
	return f.db.Omit("User").Create(like).Error
}

// CreateCommentLike records user liking comment.
func (f *Factory) CreateCommentLike(user *models.User, comment *models.Comment) error {
	return f.db.Create(&models.CommentLike{UserID: user.ID, CommentID: comment.ID}).Error
}

// CreateFollow records follower following followee.
func (f *Factory) CreateFollow(follower, followee *models.User) error {
	return f.db.Create(&models.Follow{FollowerID: follower.ID, FollowingID: followee.ID, CreatedAt: f.pastTime()}).Error
}

// CreateMessage sends a message from sender to recipient, opening their
// conversation on first use.
func (f *Factory) CreateMessage(ctx context.Context, sender, recipient *models.User, at time.Time) (*models.Message, error) {
	conv, _, err := f.chat.GetOrCreateConversation(ctx, sender.ID, recipient.ID)
	if err != nil {
		return nil, err
	}
	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       sender.ID,
		Content:        f.fake.Sentence(f.fake.Number(1, 14)),
		CreatedAt:      at,
	}
	if err := f.chat.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// CreateNotification stores an inbox item. Self-notifications are skipped
// and yield nil.
func (f *Factory) CreateNotification(recipientID, senderID uint, kind models.NotificationType, postID, commentID *uint) (*models.Notification, error) {
	if recipientID == senderID {
		return nil, nil
	}
	n := &models.Notification{
		RecipientID: recipientID,
		SenderID:    senderID,
		Type:        kind,
		PostID:      postID,
		CommentID:   commentID,
		IsRead:      f.fake.Number(0, 3) == 0,
		CreatedAt:   f.pastTime(),
	}
	if err := f.db.Omit("Sender").Create(n).Error; err != nil {
		return nil, err
	}
	return n, nil
}

func later(t time.Time, minutes int) time.Time {
	out := t.Add(time.Duration(minutes) * time.Minute)
	if now := time.Now(); out.After(now) {
		return now
	}
	return out
}
