package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"snapgrid/internal/models"
	"snapgrid/internal/observability"
	"snapgrid/internal/repository"

	"gorm.io/gorm"
)

// Stats counts what a run created.
type Stats struct {
	Users         int
	Follows       int
	Posts         int
	Likes         int
	Comments      int
	Replies       int
	CommentLikes  int
	Conversations int
	Messages      int
	Notifications int
	// Repaired is the counter reconcile report of the final pass.
	Repaired map[string]int64
}

// Seeder populates a database with a coherent social graph.
type Seeder struct {
	db       *gorm.DB
	factory  *Factory
	counters repository.CounterRepository
	stats    Stats
}

// NewSeeder returns a Seeder writing through db.
func NewSeeder(db *gorm.DB, opts Options) (*Seeder, error) {
	f, err := NewFactory(db, opts)
	if err != nil {
		return nil, err
	}
	return &Seeder{db: db, factory: f, counters: repository.NewCounterRepository(db)}, nil
}

// clearOrder lists tables children first so foreign keys never block.
var clearOrder = []any{
	&models.Notification{},
	&models.Message{},
	&models.Conversation{},
	&models.CommentLike{},
	&models.Like{},
	&models.Comment{},
	&models.PostImage{},
	&models.Post{},
	&models.Follow{},
	&models.User{},
}

// ClearAll deletes every row the seeder can create.
func (s *Seeder) ClearAll(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// conversations point at their last message
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Model(&models.Conversation{}).Update("last_message_id", nil).Error; err != nil {
			return fmt.Errorf("detach last messages: %w", err)
		}
		for _, m := range clearOrder {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
				return fmt.Errorf("clear %T: %w", m, err)
			}
		}
		return nil
	})
}

// Run seeds a full graph sized by p and reconciles every counter at the end.
func (s *Seeder) Run(ctx context.Context, p Preset) (Stats, error) {
	if err := p.Validate(); err != nil {
		return Stats{}, err
	}
	started := time.Now()
	s.stats = Stats{}

	users, err := s.SeedSocialMesh(ctx, p.Users, p.FollowsPerUser)
	if err != nil {
		return s.stats, fmt.Errorf("social mesh: %w", err)
	}
	if err := s.SeedEngagement(ctx, users, p); err != nil {
		return s.stats, fmt.Errorf("engagement: %w", err)
	}
	if err := s.SeedConversations(ctx, users, p.Conversations, p.MessagesPerConversation); err != nil {
		return s.stats, fmt.Errorf("conversations: %w", err)
	}

	repaired, err := s.counters.Reconcile(ctx)
	if err != nil {
		return s.stats, fmt.Errorf("reconcile counters: %w", err)
	}
	s.stats.Repaired = repaired

	observability.GlobalLogger.InfoContext(ctx, "seed completed",
		slog.Int("users", s.stats.Users),
		slog.Int("posts", s.stats.Posts),
		slog.Int("comments", s.stats.Comments+s.stats.Replies),
		slog.Int("messages", s.stats.Messages),
		slog.Int("notifications", s.stats.Notifications),
		slog.Duration("took", time.Since(started)),
	)
	return s.stats, nil
}

// SeedSocialMesh creates count users, each following up to followsPerUser
// distinct others.
func (s *Seeder) SeedSocialMesh(ctx context.Context, count, followsPerUser int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)
	for i := 0; i < count; i++ {
		u, err := s.factory.CreateUser()
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
	}
	s.stats.Users += len(users)

	for i, follower := range users {
		for _, j := range s.sample(len(users), followsPerUser, i) {
			followee := users[j]
			if err := s.factory.CreateFollow(follower, followee); err != nil {
				return nil, fmt.Errorf("create follow: %w", err)
			}
			s.stats.Follows++
			if err := s.notify(followee.ID, follower.ID, models.NotificationFollow, nil, nil); err != nil {
				return nil, err
			}
		}
	}
	observability.GlobalLogger.InfoContext(ctx, "seeded social mesh",
		slog.Int("users", len(users)), slog.Int("follows", s.stats.Follows))
	return users, nil
}

// SeedEngagement creates p.Posts posts spread across users together with
// their likes, comments, replies and comment likes.
func (s *Seeder) SeedEngagement(ctx context.Context, users []*models.User, p Preset) error {
	if len(users) == 0 || p.Posts == 0 {
		return nil
	}
	fake := s.factory.fake

	posts := make([]*models.Post, 0, p.Posts)
	authors := make(map[*models.Post]int, p.Posts)
	for i := 0; i < p.Posts; i++ {
		a := fake.Number(0, len(users)-1)
		post := s.factory.BuildPost(users[a])
		posts = append(posts, post)
		authors[post] = a
	}
	if err := s.factory.CreatePostsBatch(posts); err != nil {
		return fmt.Errorf("create posts: %w", err)
	}
	s.stats.Posts += len(posts)

	for _, post := range posts {
		author := authors[post]
		postID := post.ID

		for _, j := range s.sample(len(users), jitter(fake.Number(0, 100), p.LikesPerPost), author) {
			if err := s.factory.CreateLike(users[j], post); err != nil {
				return fmt.Errorf("create like: %w", err)
			}
			s.stats.Likes++
			if err := s.notify(post.UserID, users[j].ID, models.NotificationLike, &postID, nil); err != nil {
				return err
			}
		}

		for c := 0; c < jitter(fake.Number(0, 100), p.CommentsPerPost); c++ {
			commenter := users[fake.Number(0, len(users)-1)]
			comment, err := s.factory.CreateComment(commenter, post, nil)
			if err != nil {
				return fmt.Errorf("create comment: %w", err)
			}
			s.stats.Comments++
			commentID := comment.ID
			if err := s.notify(post.UserID, commenter.ID, models.NotificationComment, &postID, &commentID); err != nil {
				return err
			}

			if fake.Float64Range(0, 1) < p.ReplyRatio {
				replier := users[fake.Number(0, len(users)-1)]
				reply, err := s.factory.CreateComment(replier, post, comment)
				if err != nil {
					return fmt.Errorf("create reply: %w", err)
				}
				s.stats.Replies++
				replyID := reply.ID
				if err := s.notify(commenter.ID, replier.ID, models.NotificationCommentReply, &postID, &replyID); err != nil {
					return err
				}
			}

			for _, j := range s.sample(len(users), fake.Number(0, 3), -1) {
				if err := s.factory.CreateCommentLike(users[j], comment); err != nil {
					return fmt.Errorf("create comment like: %w", err)
				}
				s.stats.CommentLikes++
				if err := s.notify(commenter.ID, users[j].ID, models.NotificationCommentLike, &postID, &commentID); err != nil {
					return err
				}
			}
		}
	}

	observability.GlobalLogger.InfoContext(ctx, "seeded engagement",
		slog.Int("posts", len(posts)),
		slog.Int("likes", s.stats.Likes),
		slog.Int("comments", s.stats.Comments),
		slog.Int("replies", s.stats.Replies),
	)
	return nil
}

// SeedConversations opens up to count distinct two-party conversations and
// fills each with perConversation alternating messages.
func (s *Seeder) SeedConversations(ctx context.Context, users []*models.User, count, perConversation int) error {
	if len(users) < 2 || count == 0 || perConversation == 0 {
		return nil
	}
	fake := s.factory.fake
	seen := make(map[[2]uint]bool, count)

	for attempts := 0; len(seen) < count && attempts < count*4; attempts++ {
		picked := s.sample(len(users), 2, -1)
		a, b := users[picked[0]], users[picked[1]]
		lo, hi := models.OrderedPair(a.ID, b.ID)
		if seen[[2]uint{lo, hi}] {
			continue
		}
		seen[[2]uint{lo, hi}] = true

		at := s.factory.pastTime()
		for m := 0; m < perConversation; m++ {
			sender, recipient := a, b
			if fake.Bool() {
				sender, recipient = b, a
			}
			at = later(at, fake.Number(1, 180))
			if _, err := s.factory.CreateMessage(ctx, sender, recipient, at); err != nil {
				return fmt.Errorf("create message: %w", err)
			}
			s.stats.Messages++
		}
	}
	s.stats.Conversations += len(seen)
	return nil
}

func (s *Seeder) notify(recipientID, senderID uint, kind models.NotificationType, postID, commentID *uint) error {
	n, err := s.factory.CreateNotification(recipientID, senderID, kind, postID, commentID)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	if n != nil {
		s.stats.Notifications++
	}
	return nil
}

// sample returns up to k distinct indices in [0,n), never skip.
func (s *Seeder) sample(n, k, skip int) []int {
	out := make([]int, 0, k)
	for _, i := range s.factory.fake.Rand.Perm(n) {
		if len(out) == k {
			break
		}
		if i != skip {
			out = append(out, i)
		}
	}
	return out
}

// jitter spreads mean by up to +/-50% using roll in [0,100].
func jitter(roll, mean int) int {
	if mean <= 0 {
		return 0
	}
	v := mean/2 + roll*mean/100
	if v < 0 {
		return 0
	}
	return v
}
