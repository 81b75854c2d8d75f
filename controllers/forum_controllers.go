package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/library-seat-app/models"
	"github.com/yeremiapane/library-seat-app/utils"
)

const (
	maxPostTags  = 5
	maxTagLength = 30
)

var (
	errPostNotFound    = errors.New("post not found")
	errCommentNotFound = errors.New("comment not found")
)

type ForumController struct {
	DB *gorm.DB
}

func NewForumController(db *gorm.DB) *ForumController {
	return &ForumController{DB: db}
}

type postRequest struct {
	Title     *string  `json:"title"`
	Content   *string  `json:"content"`
	Category  *string  `json:"category"`
	Tags      []string `json:"tags"`
	LibraryID *uint    `json:"library_id"`
}

func (r postRequest) apply(db *gorm.DB, post *models.Post, creating bool) error {
	if creating && (r.Title == nil || r.Content == nil) {
		return errors.New("title and content are required")
	}
	if r.Title != nil {
		title := strings.TrimSpace(*r.Title)
		if n := len([]rune(title)); n < 3 || n > 200 {
			return errors.New("title must be 3 to 200 characters")
		}
		post.Title = title
	}
	if r.Content != nil {
		content := strings.TrimSpace(*r.Content)
		if content == "" {
			return errors.New("content cannot be empty")
		}
		post.Content = content
	}
	if r.Category != nil {
		category := strings.ToUpper(strings.TrimSpace(*r.Category))
		if !models.IsValidPostCategory(category) {
			return fmt.Errorf("invalid category %q", category)
		}
		post.Category = category
	} else if creating {
		post.Category = models.CategoryGeneral
	}
	if r.Tags != nil || creating {
		if len(r.Tags) > maxPostTags {
			return fmt.Errorf("at most %d tags are allowed", maxPostTags)
		}
		tags := make([]string, 0, len(r.Tags))
		for _, t := range r.Tags {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if len([]rune(t)) > maxTagLength {
				return fmt.Errorf("tag %q is too long", t)
			}
			tags = append(tags, t)
		}
		if err := post.SetTags(tags); err != nil {
			return err
		}
	}
	if r.LibraryID != nil {
		var count int64
		if err := db.Model(&models.Library{}).Where("id = ?", *r.LibraryID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return errors.New("library not found")
		}
		post.LibraryID = r.LibraryID
	}
	return nil
}

// ListPosts: pinned first, then newest.
func (fc *ForumController) ListPosts(c *gin.Context) {
	page := utils.ParsePage(c, utils.DefaultPageOpts)
	q := fc.DB.Model(&models.Post{})
	if category := strings.ToUpper(c.Query("category")); category != "" {
		q = q.Where("category = ?", category)
	}
	libraryID, ok, err := parseUintQuery(c, "library_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if ok {
		q = q.Where("library_id = ?", libraryID)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := utils.ContainsPattern(search)
		q = q.Where("LOWER(title) LIKE ? ESCAPE '!' OR LOWER(content) LIKE ? ESCAPE '!'", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	posts := []models.Post{}
	if err := q.Preload("Author").Preload("Library").
		Order("is_pinned DESC, created_at DESC, id DESC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&posts).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Posts retrieved", gin.H{
		"items":      posts,
		"pagination": utils.NewPageMeta(page, total),
	})
}

func (fc *ForumController) findPost(c *gin.Context) *models.Post {
	id, ok := parseIDParam(c, "post_id")
	if !ok {
		return nil
	}
	var post models.Post
	if err := fc.DB.First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(c, http.StatusNotFound, errPostNotFound)
			return nil
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return nil
	}
	return &post
}

// GetPost counts a view and returns the post with its comment threads.
func (fc *ForumController) GetPost(c *gin.Context) {
	post := fc.findPost(c)
	if post == nil {
		return
	}
	if err := fc.DB.Model(post).UpdateColumn("view_count", gorm.Expr("view_count + ?", 1)).Error; err != nil {
		utils.ErrorLogger.Printf("Failed to count view of post %d: %v", post.ID, err)
	}

	byOldest := func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }
	if err := fc.DB.
		Preload("Author").
		Preload("Library").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return byOldest(db).Where("parent_id IS NULL")
		}).
		Preload("Comments.Author").
		Preload("Comments.Replies", byOldest).
		Preload("Comments.Replies.Author").
		First(post, post.ID).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Post retrieved", post)
}

func (fc *ForumController) CreatePost(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	post := models.Post{AuthorID: userID}
	if err := req.apply(fc.DB, &post, true); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if err := fc.DB.Create(&post).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Post created", post)
}

func (fc *ForumController) UpdatePost(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	post := fc.findPost(c)
	if post == nil {
		return
	}
	if post.AuthorID != userID {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if err := req.apply(fc.DB, post, false); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	// counters are updated atomically elsewhere
	if err := fc.DB.Model(post).Updates(map[string]interface{}{
		"title":      post.Title,
		"content":    post.Content,
		"category":   post.Category,
		"tags":       post.Tags,
		"library_id": post.LibraryID,
	}).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if err := fc.DB.First(post, post.ID).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Post updated", post)
}

// canModerate reports whether the caller may delete a post: its author, the
// admin owning the post's library, or a super admin.
func (fc *ForumController) canModerate(c *gin.Context, post *models.Post) (bool, error) {
	userID, _ := currentUserID(c)
	switch {
	case post.AuthorID == userID:
		return true, nil
	case currentRole(c) == models.RoleSuperAdmin:
		return true, nil
	case currentRole(c) == models.RoleAdmin && post.LibraryID != nil:
		var count int64
		err := fc.DB.Model(&models.Library{}).Where("id = ? AND owner_id = ?", *post.LibraryID, userID).Count(&count).Error
		return count > 0, err
	}
	return false, nil
}

func (fc *ForumController) DeletePost(c *gin.Context) {
	if _, ok := mustUserID(c); !ok {
		return
	}
	post := fc.findPost(c)
	if post == nil {
		return
	}
	allowed, err := fc.canModerate(c, post)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if !allowed {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	err = fc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.PostLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ? AND parent_id IS NOT NULL", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(post).Error
	})
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Post deleted", gin.H{"id": post.ID})
}

func (fc *ForumController) CreateComment(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	post := fc.findPost(c)
	if post == nil {
		return
	}
	var req struct {
		Content  string `json:"content" binding:"required"`
		ParentID *uint  `json:"parent_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		utils.RespondError(c, http.StatusBadRequest, errors.New("content cannot be empty"))
		return
	}

	if req.ParentID != nil {
		var parent models.Comment
		if err := fc.DB.First(&parent, *req.ParentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				utils.RespondError(c, http.StatusBadRequest, errors.New("parent comment not found"))
				return
			}
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		if parent.PostID != post.ID {
			utils.RespondError(c, http.StatusBadRequest, errors.New("parent comment belongs to another post"))
			return
		}
		if parent.ParentID != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("replies cannot be nested"))
			return
		}
	}

	comment := models.Comment{PostID: post.ID, AuthorID: userID, ParentID: req.ParentID, Content: content}
	err := fc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", post.ID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + ?", 1)).Error
	})
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if err := fc.DB.Preload("Author").First(&comment, comment.ID).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Comment created", comment)
}

// DeleteComment removes a comment and its replies.
func (fc *ForumController) DeleteComment(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "comment_id")
	if !ok {
		return
	}
	var comment models.Comment
	if err := fc.DB.First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(c, http.StatusNotFound, errCommentNotFound)
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if comment.AuthorID != userID && currentRole(c) != models.RoleSuperAdmin {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	var removed int64
	err := fc.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("parent_id = ?", comment.ID).Delete(&models.Comment{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		if err := tx.Delete(&comment).Error; err != nil {
			return err
		}
		removed++
		return tx.Model(&models.Post{}).Where("id = ?", comment.PostID).
			UpdateColumn("comment_count", gorm.Expr("CASE WHEN comment_count >= ? THEN comment_count - ? ELSE 0 END", removed, removed)).Error
	})
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Comment deleted", gin.H{"id": comment.ID, "removed": removed})
}

// ToggleLike likes the post, or removes the caller's like when present.
func (fc *ForumController) ToggleLike(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	post := fc.findPost(c)
	if post == nil {
		return
	}

	var liked bool
	err := fc.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("post_id = ? AND user_id = ?", post.ID, userID).Delete(&models.PostLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return tx.Model(&models.Post{}).Where("id = ?", post.ID).
				UpdateColumn("like_count", gorm.Expr("CASE WHEN like_count > 0 THEN like_count - 1 ELSE 0 END")).Error
		}
		liked = true
		if err := tx.Create(&models.PostLike{PostID: post.ID, UserID: userID}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", post.ID).
			UpdateColumn("like_count", gorm.Expr("like_count + ?", 1)).Error
	})
	if err != nil {
		if isDuplicateKey(err) {
			utils.RespondError(c, http.StatusConflict, errors.New("like already recorded"))
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	var likeCount int64
	if err := fc.DB.Model(&models.Post{}).Where("id = ?", post.ID).Select("like_count").Scan(&likeCount).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Like toggled", gin.H{"liked": liked, "like_count": likeCount})
}

func (fc *ForumController) PinPost(c *gin.Context) {
	post := fc.findPost(c)
	if post == nil {
		return
	}
	var req struct {
		IsPinned *bool `json:"is_pinned" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if err := fc.DB.Model(post).UpdateColumn("is_pinned", *req.IsPinned).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	post.IsPinned = *req.IsPinned
	utils.RespondJSON(c, http.StatusOK, "Post pin updated", post)
}
