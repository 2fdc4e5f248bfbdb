package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"presslite/internal/middleware"
	"presslite/internal/models"
	"presslite/internal/services"
	"presslite/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type PostHandler struct {
	db      *gorm.DB
	service *services.PostService
}

func NewPostHandler(db *gorm.DB, uploads *services.Uploader) *PostHandler {
	return &PostHandler{
		db:      db,
		service: services.NewPostService(db, uploads),
	}
}

// List renders the manage-posts page: filters, one page of posts, counts.
// GET /admin/posts
func (h *PostHandler) List(c *gin.Context) {
	filters := services.ListFilters{
		Search:     strings.TrimSpace(c.Query("search")),
		Status:     strings.TrimSpace(c.Query("status")),
		CategoryID: uint(utils.StringToInt(c.Query("category_id"))),
		AuthorID:   uint(utils.StringToInt(c.Query("author_id"))),
		DateFrom:   strings.TrimSpace(c.Query("date_from")),
		DateTo:     strings.TrimSpace(c.Query("date_to")),
	}

	page := utils.StringToInt(c.Query("paged"))
	if page < 1 {
		page = 1
	}
	perPage := utils.StringToInt(c.Query("per_page"))
	if perPage < 1 {
		perPage = defaultPerPage()
	}

	result := h.service.List(filters, page, perPage)

	Render(c, http.StatusOK, "posts/manage.html", gin.H{
		"Title":      "Manage Posts",
		"Posts":      result.Posts,
		"TotalPosts": result.TotalPosts,
		"TotalPages": result.TotalPages,
		"Page":       result.Page,
		"PerPage":    result.PerPage,
		"Filters":    filters,
		"Categories": h.service.Categories(),
		"Authors":    h.service.Authors(),
	})
}

// ShowAdd renders the add-post form, with any preserved submission from a
// failed attempt.
// GET /admin/posts/new
func (h *PostHandler) ShowAdd(c *gin.Context) {
	formData, formErrors := PopFormState(c)

	Render(c, http.StatusOK, "posts/form.html", gin.H{
		"Title":      "Add New Post",
		"Mode":       "create",
		"FormData":   formData,
		"FormErrors": formErrors,
		"Categories": h.service.Categories(),
		"Authors":    h.service.Authors(),
	})
}

// Create handles the add-post submission.
// POST /admin/posts/new
func (h *PostHandler) Create(c *gin.Context) {
	if !middleware.ValidCSRFToken(c) {
		SetFlash(c, "Invalid or missing CSRF token. Please try again.", "error")
		SaveFormState(c, formValues(c), nil)
		c.Redirect(http.StatusFound, "/admin/posts/new")
		return
	}

	form := postFormFromRequest(c)
	file, header := featuredImageFile(c)
	if file != nil {
		defer file.Close()
	}

	result := h.service.Save(services.ModeCreate, 0, form, file, header)
	switch {
	case len(result.Errors) > 0:
		SaveFormState(c, formValues(c), result.Errors)
		c.Redirect(http.StatusFound, "/admin/posts/new")
	case result.Err != nil:
		SetFlash(c, "Database error while creating the post. Check error logs.", "error")
		SaveFormState(c, formValues(c), nil)
		c.Redirect(http.StatusFound, "/admin/posts/new")
	default:
		SetFlash(c, fmt.Sprintf("Post created successfully! (ID: %d)", result.Post.ID), "success")
		c.Redirect(http.StatusFound, fmt.Sprintf("/admin/posts/%d/edit", result.Post.ID))
	}
}

// ShowEdit renders the edit-post form for one post.
// GET /admin/posts/:id/edit
func (h *PostHandler) ShowEdit(c *gin.Context) {
	id := utils.StringToInt(c.Param("id"))
	if id <= 0 {
		SetFlash(c, "Invalid or missing post ID.", "error")
		c.Redirect(http.StatusFound, "/admin/posts")
		return
	}

	var post models.Post
	if err := h.db.Preload("Author").Preload("Category").First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			SetFlash(c, fmt.Sprintf("Post not found (ID: %d).", id), "error")
		} else {
			c.Error(err)
			SetFlash(c, "Database error loading the post.", "error")
		}
		c.Redirect(http.StatusFound, "/admin/posts")
		return
	}

	formData, formErrors := PopFormState(c)

	Render(c, http.StatusOK, "posts/form.html", gin.H{
		"Title":      "Edit Post",
		"Mode":       "update",
		"Post":       post,
		"FormData":   formData,
		"FormErrors": formErrors,
		"Categories": h.service.Categories(),
		"Authors":    h.service.Authors(),
	})
}

// Update handles the edit-post submission.
// POST /admin/posts/:id/edit
func (h *PostHandler) Update(c *gin.Context) {
	id := utils.StringToInt(c.Param("id"))
	if id <= 0 {
		SetFlash(c, "Invalid or missing post ID.", "error")
		c.Redirect(http.StatusFound, "/admin/posts")
		return
	}
	editURL := fmt.Sprintf("/admin/posts/%d/edit", id)

	if !middleware.ValidCSRFToken(c) {
		SetFlash(c, "Invalid security token. Please try again.", "error")
		SaveFormState(c, formValues(c), nil)
		c.Redirect(http.StatusFound, editURL)
		return
	}

	form := postFormFromRequest(c)
	file, header := featuredImageFile(c)
	if file != nil {
		defer file.Close()
	}

	result := h.service.Save(services.ModeUpdate, uint(id), form, file, header)
	switch {
	case errors.Is(result.Err, services.ErrNotFound):
		SetFlash(c, fmt.Sprintf("Post not found (ID: %d).", id), "error")
		c.Redirect(http.StatusFound, "/admin/posts")
	case len(result.Errors) > 0:
		SaveFormState(c, formValues(c), result.Errors)
		c.Redirect(http.StatusFound, editURL)
	case result.Err != nil:
		SetFlash(c, "Database error while updating the post. Check error logs.", "error")
		SaveFormState(c, formValues(c), nil)
		c.Redirect(http.StatusFound, editURL)
	default:
		SetFlash(c, fmt.Sprintf("Post updated successfully with status: %q", result.Post.Status), "success")
		c.Redirect(http.StatusFound, "/admin/posts")
	}
}

// Bulk applies publish/draft/delete to the selected posts.
// POST /admin/posts/bulk
func (h *PostHandler) Bulk(c *gin.Context) {
	if !middleware.ValidCSRFToken(c) {
		SetFlash(c, "CSRF token validation failed. Action aborted.", "error")
		c.Redirect(http.StatusFound, "/admin/posts")
		return
	}

	action := c.PostForm("bulk_action")
	if action == "" {
		SetFlash(c, "No bulk action selected.", "error")
		c.Redirect(http.StatusFound, "/admin/posts")
		return
	}

	raw := c.PostFormArray("post_ids[]")
	if len(raw) == 0 {
		raw = c.PostFormArray("post_ids")
	}
	ids := utils.ParsePositiveIDs(raw)
	if len(ids) == 0 {
		SetFlash(c, "No valid posts selected.", "error")
		c.Redirect(http.StatusFound, "/admin/posts")
		return
	}

	outcome, err := h.service.BulkAction(action, ids)
	if err != nil {
		if errors.Is(err, services.ErrUnknownAction) {
			SetFlash(c, fmt.Sprintf("Invalid bulk action specified: %s", action), "error")
		} else {
			SetFlash(c, "No valid posts selected.", "error")
		}
		c.Redirect(http.StatusFound, "/admin/posts")
		return
	}

	msg, flashType := bulkFlash(outcome)
	SetFlash(c, msg, flashType)
	c.Redirect(http.StatusFound, "/admin/posts")
}

// Delete removes a single post. AJAX callers get a JSON body instead of the
// flash/redirect round trip.
// POST /admin/posts/delete
func (h *PostHandler) Delete(c *gin.Context) {
	isAjax := strings.EqualFold(c.GetHeader("X-Requested-With"), "xmlhttprequest")

	if !middleware.ValidCSRFToken(c) {
		respondDelete(c, isAjax, false, "Invalid security token. Please try again.", nil)
		return
	}

	id := utils.StringToInt(c.PostForm("post_id"))
	if id <= 0 {
		respondDelete(c, isAjax, false, "Invalid request: Missing post ID.", nil)
		return
	}

	outcome, err := h.service.Delete(uint(id))
	switch {
	case err != nil:
		respondDelete(c, isAjax, false, fmt.Sprintf("Error deleting post (ID: %d). Database error.", id), nil)
	case outcome.NotFound:
		respondDelete(c, isAjax, false, fmt.Sprintf("Post not found or already deleted (ID: %d).", id), nil)
	default:
		msg := fmt.Sprintf("Post %q (ID: %d) deleted successfully.", outcome.Title, id)
		respondDelete(c, isAjax, true, msg, gin.H{"deleted_id": id})
	}
}

// respondDelete ends the delete request in one of the two response modes.
// JSON mode always answers 200 and signals the outcome in the body.
func respondDelete(c *gin.Context, isAjax, success bool, message string, data gin.H) {
	if isAjax {
		var payload interface{}
		if data != nil {
			payload = data
		}
		c.JSON(http.StatusOK, gin.H{
			"success": success,
			"message": message,
			"data":    payload,
		})
		return
	}

	flashType := "error"
	if success {
		flashType = "success"
	}
	SetFlash(c, message, flashType)
	c.Redirect(http.StatusFound, "/admin/posts")
}

func bulkFlash(outcome services.BulkOutcome) (string, string) {
	switch {
	case outcome.Succeeded > 0 && outcome.Failed > 0:
		return fmt.Sprintf("%d post(s) processed. %d post(s) failed. Check error logs.", outcome.Succeeded, outcome.Failed), "warning"
	case outcome.Failed > 0:
		return fmt.Sprintf("All selected posts failed to process for action '%s'. Check error logs.", outcome.Action), "error"
	case outcome.Action == services.BulkDelete:
		return fmt.Sprintf("%d post(s) successfully deleted.", outcome.Succeeded), "success"
	default:
		return fmt.Sprintf("%d post(s) status updated to '%s'.", outcome.Succeeded, outcome.NewStatus), "success"
	}
}

// postFormFromRequest maps the submitted fields onto the service form type.
func postFormFromRequest(c *gin.Context) services.PostForm {
	return services.PostForm{
		AuthorID:            c.PostForm("post_author_id"),
		Title:               c.PostForm("post_title"),
		Slug:                c.PostForm("post_slug"),
		Content:             c.PostForm("post_content"),
		CategoryID:          c.PostForm("post_category_id"),
		Status:              c.PostForm("post_status"),
		MetaTitle:           c.PostForm("post_meta_title"),
		MetaDescription:     c.PostForm("post_meta_description"),
		MetaKeywords:        c.PostForm("post_meta_keywords"),
		OpengraphImageURL:   c.PostForm("post_opengraph_image_url"),
		Excerpt:             c.PostForm("post_excerpt"),
		RemoveFeaturedImage: c.PostForm("remove_featured_image") == "1",
	}
}

// formValues snapshots the text fields of a submission for redisplay.
func formValues(c *gin.Context) map[string]string {
	values := map[string]string{}
	if c.Request == nil {
		return values
	}
	c.Request.ParseMultipartForm(32 << 20)
	if c.Request.PostForm == nil {
		return values
	}
	for key, vals := range c.Request.PostForm {
		if len(vals) > 0 {
			values[key] = vals[0]
		}
	}
	return values
}

func featuredImageFile(c *gin.Context) (multipart.File, *multipart.FileHeader) {
	file, header, err := c.Request.FormFile("featured_image")
	if err != nil {
		return nil, nil
	}
	return file, header
}

func defaultPerPage() int {
	if v := utils.StringToInt(os.Getenv("POSTS_PER_PAGE")); v > 0 {
		return v
	}
	return 10
}
