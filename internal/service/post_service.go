package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"snapgrid/internal/models"
	"snapgrid/internal/observability"
	"snapgrid/internal/pagination"
	"snapgrid/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// ExploreWindow bounds how old a post may be to rank on the explore page.
const ExploreWindow = 30 * 24 * time.Hour

type PostService struct {
	postRepo repository.PostRepository
	userRepo repository.UserRepository
	notifier *NotificationService
	emitter  EventEmitter
	now      func() time.Time
}

type CreatePostInput struct {
	UserID    uint
	Caption   string
	Location  string
	ImageURLs []string
}

// UpdatePostInput changes caption and location. Nil fields are left untouched.
type UpdatePostInput struct {
	UserID   uint
	PostID   uint
	Caption  *string
	Location *string
}

// LikeEvent is the payload of post:like, post:unlike, comment:like and
// comment:unlike.
type LikeEvent struct {
	PostID     uint  `json:"post_id"`
	CommentID  *uint `json:"comment_id,omitempty"`
	UserID     uint  `json:"user_id"`
	LikesCount int   `json:"likes_count"`
}

func NewPostService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	notifier *NotificationService,
	emitter EventEmitter,
) *PostService {
	if emitter == nil {
		emitter = noopEmitter{}
	}
	return &PostService{
		postRepo: postRepo,
		userRepo: userRepo,
		notifier: notifier,
		emitter:  emitter,
		now:      time.Now,
	}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	caption := strings.TrimSpace(in.Caption)
	location := strings.TrimSpace(in.Location)

	if utf8.RuneCountInString(caption) > models.MaxCaptionLength {
		return nil, models.NewValidationError("Caption too long (max 2200 characters)")
	}
	if utf8.RuneCountInString(location) > models.MaxLocationLen {
		return nil, models.NewValidationError("Location too long (max 100 characters)")
	}
	if len(in.ImageURLs) < models.MinPostImages || len(in.ImageURLs) > models.MaxPostImages {
		return nil, models.NewValidationError("A post needs between 1 and 10 images")
	}

	images := make([]models.PostImage, 0, len(in.ImageURLs))
	for i, raw := range in.ImageURLs {
		u := strings.TrimSpace(raw)
		if u == "" {
			return nil, models.NewValidationError("Image URLs cannot be empty")
		}
		images = append(images, models.PostImage{Position: i, URL: u})
	}

	post := &models.Post{
		UserID:   in.UserID,
		Caption:  caption,
		Location: location,
		Images:   images,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, post.ID, models.VisibleOnly)
}

func (s *PostService) GetPost(ctx context.Context, viewerID, postID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID, models.VisibleOnly)
	if err != nil {
		return nil, err
	}
	if viewerID != 0 {
		liked, err := s.postRepo.IsLiked(ctx, viewerID, postID)
		if err != nil {
			return nil, err
		}
		post.Liked = liked
	}
	return post, nil
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID, models.VisibleOnly)
	if err != nil {
		return nil, err
	}
	if post.UserID != in.UserID {
		return nil, models.NewForbiddenError("You can only update your own posts")
	}

	caption, location := post.Caption, post.Location
	if in.Caption != nil {
		caption = strings.TrimSpace(*in.Caption)
		if utf8.RuneCountInString(caption) > models.MaxCaptionLength {
			return nil, models.NewValidationError("Caption too long (max 2200 characters)")
		}
	}
	if in.Location != nil {
		location = strings.TrimSpace(*in.Location)
		if utf8.RuneCountInString(location) > models.MaxLocationLen {
			return nil, models.NewValidationError("Location too long (max 100 characters)")
		}
	}

	if err := s.postRepo.UpdateDetails(ctx, post.ID, caption, location); err != nil {
		return nil, err
	}
	return s.GetPost(ctx, in.UserID, post.ID)
}

func (s *PostService) DeletePost(ctx context.Context, userID, postID uint) error {
	post, err := s.postRepo.GetByID(ctx, postID, models.VisibleOnly)
	if err != nil {
		return err
	}
	if post.UserID != userID {
		return models.NewForbiddenError("You can only delete your own posts")
	}
	return s.postRepo.SoftDelete(ctx, postID)
}

// Feed lists posts by the viewer and everyone they follow, newest first.
func (s *PostService) Feed(ctx context.Context, viewerID uint, p pagination.Params) (*pagination.Result[*models.Post], error) {
	posts, total, err := s.postRepo.Feed(ctx, viewerID, p.Limit, p.Offset())
	return s.page(ctx, viewerID, posts, total, p, err)
}

func (s *PostService) UserPosts(ctx context.Context, viewerID, userID uint, p pagination.Params) (*pagination.Result[*models.Post], error) {
	if _, err := s.userRepo.GetByID(ctx, userID, models.VisibleOnly); err != nil {
		return nil, err
	}
	posts, total, err := s.postRepo.ListByUser(ctx, userID, p.Limit, p.Offset())
	return s.page(ctx, viewerID, posts, total, p, err)
}

// Explore ranks recent posts by likes.
func (s *PostService) Explore(ctx context.Context, viewerID uint, p pagination.Params) (*pagination.Result[*models.Post], error) {
	posts, total, err := s.postRepo.Explore(ctx, s.now().Add(-ExploreWindow), p.Limit, p.Offset())
	return s.page(ctx, viewerID, posts, total, p, err)
}

func (s *PostService) Search(ctx context.Context, viewerID uint, query string, p pagination.Params) (*pagination.Result[*models.Post], error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	posts, total, err := s.postRepo.Search(ctx, query, p.Limit, p.Offset())
	return s.page(ctx, viewerID, posts, total, p, err)
}

// LikePost records the like, notifies the owner, and pushes post:like to them.
func (s *PostService) LikePost(ctx context.Context, userID, postID uint) (post *models.Post, err error) {
	ctx, span := observability.StartSpan(ctx, "post", "like",
		attribute.Int64("post.id", int64(postID)))
	defer func() { span.End(err) }()

	if err := s.postRepo.Like(ctx, userID, postID); err != nil {
		return nil, err
	}

	post, err = s.postRepo.GetByID(ctx, postID, models.VisibleOnly)
	if err != nil {
		return nil, err
	}
	post.Liked = true

	s.notifier.Notify(ctx, models.NotificationAction{
		RecipientID: post.UserID,
		SenderID:    userID,
		Type:        models.NotificationLike,
		PostID:      &post.ID,
	})
	if post.UserID != userID {
		s.emitter.EmitToUser(ctx, post.UserID, models.EventPostLike, LikeEvent{
			PostID:     post.ID,
			UserID:     userID,
			LikesCount: post.LikesCount,
		})
	}
	return post, nil
}

// UnlikePost removes the like and withdraws its notification.
func (s *PostService) UnlikePost(ctx context.Context, userID, postID uint) (post *models.Post, err error) {
	ctx, span := observability.StartSpan(ctx, "post", "unlike",
		attribute.Int64("post.id", int64(postID)))
	defer func() { span.End(err) }()

	if err := s.postRepo.Unlike(ctx, userID, postID); err != nil {
		return nil, err
	}

	post, err = s.postRepo.GetByID(ctx, postID, models.VisibleOnly)
	if err != nil {
		return nil, err
	}
	post.Liked = false

	s.notifier.Retract(ctx, models.NotificationAction{
		RecipientID: post.UserID,
		SenderID:    userID,
		Type:        models.NotificationLike,
		PostID:      &post.ID,
	})
	if post.UserID != userID {
		s.emitter.EmitToUser(ctx, post.UserID, models.EventPostUnlike, LikeEvent{
			PostID:     post.ID,
			UserID:     userID,
			LikesCount: post.LikesCount,
		})
	}
	return post, nil
}

// Likers lists the users who liked a visible post.
func (s *PostService) Likers(ctx context.Context, postID uint, p pagination.Params) (*pagination.Result[models.User], error) {
	if _, err := s.postRepo.GetByID(ctx, postID, models.VisibleOnly); err != nil {
		return nil, err
	}
	users, total, err := s.postRepo.ListLikers(ctx, postID, p.Limit, p.Offset())
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Email = ""
	}
	result := pagination.NewResult(users, total, p)
	return &result, nil
}

func (s *PostService) page(ctx context.Context, viewerID uint, posts []*models.Post, total int64, p pagination.Params, err error) (*pagination.Result[*models.Post], error) {
	if err != nil {
		return nil, err
	}
	if viewerID != 0 && len(posts) > 0 {
		ids := make([]uint, len(posts))
		for i, post := range posts {
			ids[i] = post.ID
		}
		liked, err := s.postRepo.LikedPostIDs(ctx, viewerID, ids)
		if err != nil {
			return nil, err
		}
		for _, post := range posts {
			post.Liked = liked[post.ID]
		}
	}
	for _, post := range posts {
		post.User.Email = ""
	}
	result := pagination.NewResult(posts, total, p)
	return &result, nil
}
