package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"snapgrid/internal/models"
	"snapgrid/internal/pagination"
	"snapgrid/internal/repository"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	notifier    *NotificationService
	emitter     EventEmitter
}

// CreateCommentInput creates a top-level comment, or a reply when ParentID is set.
type CreateCommentInput struct {
	UserID   uint
	PostID   uint
	ParentID *uint
	Content  string
}

type UpdateCommentInput struct {
	UserID    uint
	CommentID uint
	Content   string
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	notifier *NotificationService,
	emitter EventEmitter,
) *CommentService {
	if emitter == nil {
		emitter = noopEmitter{}
	}
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		notifier:    notifier,
		emitter:     emitter,
	}
}

func validateCommentContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", models.NewValidationError("Content is required")
	}
	if utf8.RuneCountInString(content) > models.MaxCommentLength {
		return "", models.NewValidationError("Content too long (max 1000 characters)")
	}
	return content, nil
}

func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	content, err := validateCommentContent(in.Content)
	if err != nil {
		return nil, err
	}

	post, err := s.postRepo.GetByID(ctx, in.PostID, models.VisibleOnly)
	if err != nil {
		return nil, err
	}

	var parent *models.Comment
	if in.ParentID != nil {
		parent, err = s.commentRepo.GetByID(ctx, *in.ParentID, models.VisibleOnly)
		if err != nil {
			return nil, err
		}
		if parent.IsReply() {
			return nil, models.NewValidationError("Cannot reply to a reply")
		}
		if parent.PostID != post.ID {
			return nil, models.NewValidationError("Parent comment belongs to another post")
		}
	}

	comment := &models.Comment{
		PostID:   post.ID,
		UserID:   in.UserID,
		ParentID: in.ParentID,
		Content:  content,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	for _, action := range commentActions(post, parent, comment) {
		s.notifier.Notify(ctx, action)
	}

	return s.commentRepo.GetByID(ctx, comment.ID, models.VisibleOnly)
}

// commentActions lists the notifications a new comment produces: the post
// owner hears about every comment, and a reply also reaches the parent's
// author when that is someone else.
func commentActions(post *models.Post, parent, comment *models.Comment) []models.NotificationAction {
	actions := []models.NotificationAction{{
		RecipientID: post.UserID,
		SenderID:    comment.UserID,
		Type:        models.NotificationComment,
		PostID:      &comment.PostID,
		CommentID:   &comment.ID,
	}}
	if parent != nil && parent.UserID != post.UserID {
		actions = append(actions, models.NotificationAction{
			RecipientID: parent.UserID,
			SenderID:    comment.UserID,
			Type:        models.NotificationCommentReply,
			PostID:      &comment.PostID,
			CommentID:   &comment.ID,
		})
	}
	return actions
}

// ListComments returns the top-level comments of a visible post, oldest first.
func (s *CommentService) ListComments(ctx context.Context, viewerID, postID uint, p pagination.Params) (*pagination.Result[*models.Comment], error) {
	if _, err := s.postRepo.GetByID(ctx, postID, models.VisibleOnly); err != nil {
		return nil, err
	}
	comments, total, err := s.commentRepo.ListByPost(ctx, postID, p.Limit, p.Offset())
	return s.page(ctx, viewerID, comments, total, p, err)
}

func (s *CommentService) ListReplies(ctx context.Context, viewerID, commentID uint, p pagination.Params) (*pagination.Result[*models.Comment], error) {
	parent, err := s.commentRepo.GetByID(ctx, commentID, models.VisibleOnly)
	if err != nil {
		return nil, err
	}
	replies, total, err := s.commentRepo.ListReplies(ctx, parent.ID, p.Limit, p.Offset())
	return s.page(ctx, viewerID, replies, total, p, err)
}

func (s *CommentService) UpdateComment(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	content, err := validateCommentContent(in.Content)
	if err != nil {
		return nil, err
	}

	comment, err := s.commentRepo.GetByID(ctx, in.CommentID, models.VisibleOnly)
	if err != nil {
		return nil, err
	}
	if comment.UserID != in.UserID {
		return nil, models.NewForbiddenError("You can only update your own comments")
	}

	if err := s.commentRepo.UpdateContent(ctx, comment.ID, content); err != nil {
		return nil, err
	}
	return s.commentRepo.GetByID(ctx, comment.ID, models.VisibleOnly)
}

// DeleteComment soft-deletes a comment. The author and the post owner may
// delete it; deleting a top-level comment removes its replies too.
func (s *CommentService) DeleteComment(ctx context.Context, userID, commentID uint) error {
	comment, err := s.commentRepo.GetByID(ctx, commentID, models.VisibleOnly)
	if err != nil {
		return err
	}
	post, err := s.postRepo.GetByID(ctx, comment.PostID, models.IncludeDeleted)
	if err != nil {
		return err
	}
	if comment.UserID != userID && post.UserID != userID {
		return models.NewForbiddenError("You can only delete your own comments")
	}

	replies, err := s.commentRepo.SoftDelete(ctx, comment.ID)
	if err != nil {
		return err
	}

	var parent *models.Comment
	if comment.ParentID != nil {
		parent, _ = s.commentRepo.GetByID(ctx, *comment.ParentID, models.IncludeDeleted)
	}
	for _, action := range commentActions(post, parent, comment) {
		s.notifier.Retract(ctx, action)
	}
	for i := range replies {
		for _, action := range commentActions(post, comment, &replies[i]) {
			s.notifier.Retract(ctx, action)
		}
	}
	return nil
}

// LikeComment records the like, notifies the author, and pushes comment:like to them.
func (s *CommentService) LikeComment(ctx context.Context, userID, commentID uint) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, commentID, models.VisibleOnly)
	if err != nil {
		return nil, err
	}
	if err := s.commentRepo.Like(ctx, userID, comment.ID); err != nil {
		return nil, err
	}

	comment, err = s.commentRepo.GetByID(ctx, commentID, models.VisibleOnly)
	if err != nil {
		return nil, err
	}
	comment.Liked = true

	s.notifier.Notify(ctx, commentLikeAction(userID, comment))
	if comment.UserID != userID {
		s.emitter.EmitToUser(ctx, comment.UserID, models.EventCommentLike, LikeEvent{
			PostID:     comment.PostID,
			CommentID:  &comment.ID,
			UserID:     userID,
			LikesCount: comment.LikesCount,
		})
	}
	return comment, nil
}

// UnlikeComment removes the like from a visible comment and withdraws its
// notification.
func (s *CommentService) UnlikeComment(ctx context.Context, userID, commentID uint) (*models.Comment, error) {
	if _, err := s.commentRepo.GetByID(ctx, commentID, models.VisibleOnly); err != nil {
		return nil, err
	}
	if err := s.commentRepo.Unlike(ctx, userID, commentID); err != nil {
		return nil, err
	}

	comment, err := s.commentRepo.GetByID(ctx, commentID, models.VisibleOnly)
	if err != nil {
		return nil, err
	}
	comment.Liked = false

	s.notifier.Retract(ctx, commentLikeAction(userID, comment))
	if comment.UserID != userID {
		s.emitter.EmitToUser(ctx, comment.UserID, models.EventCommentUnlike, LikeEvent{
			PostID:     comment.PostID,
			CommentID:  &comment.ID,
			UserID:     userID,
			LikesCount: comment.LikesCount,
		})
	}
	return comment, nil
}

func commentLikeAction(userID uint, comment *models.Comment) models.NotificationAction {
	return models.NotificationAction{
		RecipientID: comment.UserID,
		SenderID:    userID,
		Type:        models.NotificationCommentLike,
		PostID:      &comment.PostID,
		CommentID:   &comment.ID,
	}
}

func (s *CommentService) page(ctx context.Context, viewerID uint, comments []*models.Comment, total int64, p pagination.Params, err error) (*pagination.Result[*models.Comment], error) {
	if err != nil {
		return nil, err
	}
	if viewerID != 0 && len(comments) > 0 {
		ids := make([]uint, len(comments))
		for i, c := range comments {
			ids[i] = c.ID
		}
		liked, err := s.commentRepo.LikedCommentIDs(ctx, viewerID, ids)
		if err != nil {
			return nil, err
		}
		for _, c := range comments {
			c.Liked = liked[c.ID]
		}
	}
	for _, c := range comments {
		c.User.Email = ""
	}
	result := pagination.NewResult(comments, total, p)
	return &result, nil
}
