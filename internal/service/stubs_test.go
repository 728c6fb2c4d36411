package service

import (
	"context"
	"time"

	"snapgrid/internal/models"
)

// postRepoStub is a stub for repository.PostRepository. Unset functions
// return zero values.
type postRepoStub struct {
	createFn        func(context.Context, *models.Post) error
	getByIDFn       func(context.Context, uint, models.Visibility) (*models.Post, error)
	updateDetailsFn func(context.Context, uint, string, string) error
	softDeleteFn    func(context.Context, uint) error
	likeFn          func(context.Context, uint, uint) error
	unlikeFn        func(context.Context, uint, uint) error
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint, vis models.Visibility) (*models.Post, error) {
	if s.getByIDFn == nil {
		return &models.Post{ID: id}, nil
	}
	return s.getByIDFn(ctx, id, vis)
}
func (s *postRepoStub) ListByUser(context.Context, uint, int, int) ([]*models.Post, int64, error) {
	return nil, 0, nil
}
func (s *postRepoStub) Feed(context.Context, uint, int, int) ([]*models.Post, int64, error) {
	return nil, 0, nil
}
func (s *postRepoStub) Explore(context.Context, time.Time, int, int) ([]*models.Post, int64, error) {
	return nil, 0, nil
}
func (s *postRepoStub) Search(context.Context, string, int, int) ([]*models.Post, int64, error) {
	return nil, 0, nil
}
func (s *postRepoStub) UpdateDetails(ctx context.Context, id uint, caption, location string) error {
	if s.updateDetailsFn == nil {
		return nil
	}
	return s.updateDetailsFn(ctx, id, caption, location)
}
func (s *postRepoStub) SoftDelete(ctx context.Context, id uint) error {
	if s.softDeleteFn == nil {
		return nil
	}
	return s.softDeleteFn(ctx, id)
}
func (s *postRepoStub) Like(ctx context.Context, userID, postID uint) error {
	if s.likeFn == nil {
		return nil
	}
	return s.likeFn(ctx, userID, postID)
}
func (s *postRepoStub) Unlike(ctx context.Context, userID, postID uint) error {
	if s.unlikeFn == nil {
		return nil
	}
	return s.unlikeFn(ctx, userID, postID)
}
func (s *postRepoStub) IsLiked(context.Context, uint, uint) (bool, error) { return false, nil }
func (s *postRepoStub) LikedPostIDs(context.Context, uint, []uint) (map[uint]bool, error) {
	return map[uint]bool{}, nil
}
func (s *postRepoStub) ListLikers(context.Context, uint, int, int) ([]models.User, int64, error) {
	return nil, 0, nil
}

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn        func(context.Context, *models.Comment) error
	getByIDFn       func(context.Context, uint, models.Visibility) (*models.Comment, error)
	updateContentFn func(context.Context, uint, string) error
	softDeleteFn    func(context.Context, uint) ([]models.Comment, error)
}

func (s *commentRepoStub) Create(ctx context.Context, comment *models.Comment) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, comment)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id uint, vis models.Visibility) (*models.Comment, error) {
	if s.getByIDFn == nil {
		return &models.Comment{ID: id}, nil
	}
	return s.getByIDFn(ctx, id, vis)
}
func (s *commentRepoStub) ListByPost(context.Context, uint, int, int) ([]*models.Comment, int64, error) {
	return nil, 0, nil
}
func (s *commentRepoStub) ListReplies(context.Context, uint, int, int) ([]*models.Comment, int64, error) {
	return nil, 0, nil
}
func (s *commentRepoStub) UpdateContent(ctx context.Context, id uint, content string) error {
	if s.updateContentFn == nil {
		return nil
	}
	return s.updateContentFn(ctx, id, content)
}
func (s *commentRepoStub) SoftDelete(ctx context.Context, id uint) ([]models.Comment, error) {
	if s.softDeleteFn == nil {
		return nil, nil
	}
	return s.softDeleteFn(ctx, id)
}
func (s *commentRepoStub) Like(context.Context, uint, uint) error   { return nil }
func (s *commentRepoStub) Unlike(context.Context, uint, uint) error { return nil }
func (s *commentRepoStub) LikedCommentIDs(context.Context, uint, []uint) (map[uint]bool, error) {
	return map[uint]bool{}, nil
}
