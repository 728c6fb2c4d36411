package server

import (
	"snapgrid/internal/models"
	"snapgrid/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePostRequest is the body of POST /api/posts. Image URLs come from
// POST /api/images and keep their order.
type CreatePostRequest struct {
	Caption   string   `json:"caption"`
	Location  string   `json:"location"`
	ImageURLs []string `json:"image_urls"`
}

// UpdatePostRequest is the body of PATCH /api/posts/:id.
type UpdatePostRequest struct {
	Caption  *string `json:"caption"`
	Location *string `json:"location"`
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreatePostRequest true "Post"
// @Success 201 {object} models.SuccessResponse{data=models.Post}
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req CreatePostRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		UserID:    currentUserID(c),
		Caption:   req.Caption,
		Location:  req.Location,
		ImageURLs: req.ImageURLs,
	})
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusCreated, "Post created", post)
}

// GetPost handles GET /api/posts/:id
// @Summary Get a post
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} models.SuccessResponse{data=models.Post}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	post, err := s.postService.GetPost(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Post retrieved", post)
}

// UpdatePost handles PATCH /api/posts/:id
// @Summary Update caption or location
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body UpdatePostRequest true "Fields to change"
// @Success 200 {object} models.SuccessResponse{data=models.Post}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [patch]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req UpdatePostRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		UserID:   currentUserID(c),
		PostID:   id,
		Caption:  req.Caption,
		Location: req.Location,
	})
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Post updated", post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete a post
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := s.postService.DeletePost(c.UserContext(), currentUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Post deleted", nil)
}

// GetFeed handles GET /api/posts/feed
// @Summary Posts from followed users and self, newest first
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} models.SuccessResponse{data=pagination.Result[models.Post]}
// @Router /posts/feed [get]
func (s *Server) GetFeed(c *fiber.Ctx) error {
	posts, err := s.postService.Feed(c.UserContext(), currentUserID(c), s.pageParams(c, maxPostsPage))
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Feed retrieved", posts)
}

// GetExplore handles GET /api/posts/explore
// @Summary Most liked recent posts
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.SuccessResponse{data=pagination.Result[models.Post]}
// @Router /posts/explore [get]
func (s *Server) GetExplore(c *fiber.Ctx) error {
	posts, err := s.postService.Explore(c.UserContext(), currentUserID(c), s.pageParams(c, maxPostsPage))
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Explore retrieved", posts)
}

// SearchPosts handles GET /api/posts/search?q=
// @Summary Search posts by caption or location
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param q query string true "Query"
// @Success 200 {object} models.SuccessResponse{data=pagination.Result[models.Post]}
// @Failure 400 {object} models.ErrorResponse
// @Router /posts/search [get]
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	posts, err := s.postService.Search(c.UserContext(), currentUserID(c), c.Query("q"), s.pageParams(c, maxSearchPage))
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Posts retrieved", posts)
}

// LikePost handles POST /api/posts/:id/like
// @Summary Like a post
// @Tags likes
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 201 {object} models.SuccessResponse{data=models.Post}
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /posts/{id}/like [post]
func (s *Server) LikePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	post, err := s.postService.LikePost(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusCreated, "Post liked", post)
}

// UnlikePost handles DELETE /api/posts/:id/like
// @Summary Remove a like
// @Tags likes
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} models.SuccessResponse{data=models.Post}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/like [delete]
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	post, err := s.postService.UnlikePost(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Post unliked", post)
}

// GetPostLikers handles GET /api/posts/:id/likes
// @Summary Users who liked a post
// @Tags likes
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} models.SuccessResponse{data=pagination.Result[models.User]}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/likes [get]
func (s *Server) GetPostLikers(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	users, err := s.postService.Likers(c.UserContext(), id, s.pageParams(c, maxUsersPage))
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Likes retrieved", users)
}
