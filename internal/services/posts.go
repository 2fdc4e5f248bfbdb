package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"mime/multipart"
	"net/url"
	"strings"
	"time"

	"presslite/internal/models"
	"presslite/internal/utils"

	"gorm.io/gorm"
)

// SaveMode selects the create or update path of the write pipeline. The two
// share all validation except the content rules.
type SaveMode int

const (
	ModeCreate SaveMode = iota
	ModeUpdate
)

// Bulk actions accepted by BulkAction.
const (
	BulkPublish = "publish"
	BulkDraft   = "draft"
	BulkDelete  = "delete"
)

var (
	ErrNotFound      = errors.New("post not found")
	ErrUnknownAction = errors.New("unknown bulk action")
)

const metaFieldMaxLen = 255

// PostForm carries the submitted post fields through validation. All values
// arrive as strings straight from the form.
type PostForm struct {
	AuthorID            string
	Title               string
	Slug                string
	Content             string
	CategoryID          string
	Status              string
	MetaTitle           string
	MetaDescription     string
	MetaKeywords        string
	OpengraphImageURL   string
	Excerpt             string
	RemoveFeaturedImage bool
}

// SaveResult is the typed outcome of a create/update submission. Exactly one
// of Post, Errors, Err is meaningful: Errors lists user-correctable
// validation failures in the order they were checked, Err is a storage
// failure whose detail stays in the server log.
type SaveResult struct {
	Post   *models.Post
	Errors []string
	Err    error
}

func (r SaveResult) OK() bool {
	return len(r.Errors) == 0 && r.Err == nil
}

// ListFilters are the optional criteria of the manage-posts query. Zero
// values impose no constraint.
type ListFilters struct {
	Search     string
	Status     string
	CategoryID uint
	AuthorID   uint
	DateFrom   string // YYYY-MM-DD, inclusive of start of day
	DateTo     string // YYYY-MM-DD, inclusive of end of day
}

// ListResult is one page of posts plus the pagination math the view needs.
type ListResult struct {
	Posts      []models.Post
	TotalPosts int64
	TotalPages int
	Page       int
	PerPage    int
}

// BulkOutcome reports per-batch accounting. A batch statement either applies
// to all matching rows or fails entirely; there is no partial accounting
// within one statement.
type BulkOutcome struct {
	Action    string
	NewStatus string
	Requested int
	Succeeded int64
	Failed    int
}

// DeleteOutcome reports a single-post delete. NotFound is benign: the post
// may have been removed concurrently.
type DeleteOutcome struct {
	ID       uint
	Title    string
	Deleted  bool
	NotFound bool
}

// PostService implements the post write pipeline, the filtered list query
// and the bulk/single delete processors on top of the posts table.
type PostService struct {
	db        *gorm.DB
	sanitizer *Sanitizer
	uploads   *Uploader
}

func NewPostService(db *gorm.DB, uploads *Uploader) *PostService {
	return &PostService{
		db:        db,
		sanitizer: NewSanitizer(),
		uploads:   uploads,
	}
}

// Save runs the full validation sequence, collecting every failure before
// aborting, then persists the post in a single insert or full-row update.
// postID is only used in update mode. file may be nil when no new image was
// submitted.
func (s *PostService) Save(mode SaveMode, postID uint, form PostForm, file multipart.File, header *multipart.FileHeader) SaveResult {
	var errs []string

	// The old row is needed up front on update: existence check, previous
	// image for cleanup, and the row receiving the full update.
	var existing models.Post
	if mode == ModeUpdate {
		if err := s.db.First(&existing, postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return SaveResult{Err: ErrNotFound}
			}
			log.Printf("DB error loading post %d for update: %v", postID, err)
			return SaveResult{Err: err}
		}
	}

	// 1. Author: required, positive integer, must exist.
	authorID := utils.StringToInt(form.AuthorID)
	if authorID <= 0 {
		errs = append(errs, "A valid author must be selected.")
	} else {
		var author models.AdminUser
		if err := s.db.First(&author, authorID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				errs = append(errs, "Selected author is invalid.")
			} else {
				log.Printf("DB error validating author %d: %v", authorID, err)
				errs = append(errs, "Database error validating author.")
			}
		}
	}

	// 2. Open Graph image URL, when present, must parse as an absolute URL.
	ogURL := strings.TrimSpace(form.OpengraphImageURL)
	if ogURL != "" && !isValidURL(ogURL) {
		errs = append(errs, "Open Graph Image URL is not a valid URL.")
	}

	// 3. Title.
	title := strings.TrimSpace(form.Title)
	if title == "" {
		errs = append(errs, "Post title is required.")
	}

	// 4. Content. Creating with a new featured image may leave it empty;
	// updates always need non-trivial content.
	plain := s.sanitizer.PlainText(form.Content)
	hasNewFile := file != nil && header != nil
	switch mode {
	case ModeCreate:
		if plain == "" && !hasNewFile {
			errs = append(errs, "Post content is required if no featured image is provided.")
		}
	case ModeUpdate:
		if len(plain) < 2 {
			errs = append(errs, "Post content is required.")
		}
	}

	// 5. Meta fields capped at 255 characters on both paths.
	metaDescription := strings.TrimSpace(form.MetaDescription)
	metaKeywords := strings.TrimSpace(form.MetaKeywords)
	if len(metaDescription) > metaFieldMaxLen {
		errs = append(errs, "Meta Description should not exceed 255 characters.")
	}
	if len(metaKeywords) > metaFieldMaxLen {
		errs = append(errs, "Meta Keywords should not exceed 255 characters.")
	}

	// 6. Slug: user-supplied field wins, else derived from the title. The
	// pre-check gives a friendly error; the unique index on the column is
	// what actually guarantees it under concurrency.
	slugInput := strings.TrimSpace(form.Slug)
	if slugInput == "" {
		slugInput = title
	}
	slug := utils.Slugify(slugInput)
	if slug == "" && title != "" {
		errs = append(errs, "Slug could not be generated. Ensure the title is not made of only special characters.")
	} else if slug != "" {
		if taken, err := s.slugTaken(slug, postID); err != nil {
			log.Printf("DB error checking slug %q: %v", slug, err)
			errs = append(errs, "Database error checking slug uniqueness.")
		} else if taken {
			errs = append(errs, fmt.Sprintf("This slug (%q) is already in use. Please provide a unique slug or modify the title.", slug))
		}
	}

	// 7. Featured image. The remove flag clears the current file before any
	// new upload is considered.
	featuredImage := ""
	if mode == ModeUpdate && existing.FeaturedImage != nil {
		featuredImage = *existing.FeaturedImage
	}
	if form.RemoveFeaturedImage && featuredImage != "" {
		s.uploads.Remove(featuredImage)
		featuredImage = ""
	}

	uploadedFile := ""
	if hasNewFile {
		stored, uploadErrs := s.uploads.Save(file, header)
		if len(uploadErrs) > 0 {
			errs = append(errs, uploadErrs...)
		} else {
			uploadedFile = stored
		}
	}

	if len(errs) > 0 {
		// Don't orphan a file that was stored before another check failed.
		if uploadedFile != "" {
			s.uploads.Remove(uploadedFile)
		}
		return SaveResult{Errors: errs}
	}

	if uploadedFile != "" {
		// A replaced image is cleaned up best-effort once the new one is in.
		if featuredImage != "" && featuredImage != uploadedFile {
			s.uploads.Remove(featuredImage)
		}
		featuredImage = uploadedFile
	}

	// Persist: sanitize, derive the excerpt, normalize empty optionals to NULL.
	content := s.sanitizer.Sanitize(form.Content)
	excerpt := strings.TrimSpace(form.Excerpt)
	if excerpt == "" && content != "" {
		excerpt = utils.Excerpt(s.sanitizer.PlainText(content), 155)
	}

	status := models.StatusDraft
	if form.Status == models.StatusPublished {
		status = models.StatusPublished
	}

	var categoryID *uint
	if id := utils.StringToInt(form.CategoryID); id > 0 {
		v := uint(id)
		categoryID = &v
	}

	post := &existing
	if mode == ModeCreate {
		post = &models.Post{ViewCount: 0}
	}
	post.AuthorID = uint(authorID)
	post.Title = title
	post.Slug = slug
	post.Content = content
	post.CategoryID = categoryID
	post.Status = status
	post.FeaturedImage = nilIfEmpty(featuredImage)
	post.MetaTitle = nilIfEmpty(strings.TrimSpace(form.MetaTitle))
	post.MetaDescription = nilIfEmpty(metaDescription)
	post.MetaKeywords = nilIfEmpty(metaKeywords)
	post.OpengraphImageURL = nilIfEmpty(ogURL)
	post.Excerpt = nilIfEmpty(excerpt)
	post.UpdatedAt = time.Now()

	var err error
	if mode == ModeCreate {
		err = s.db.Create(post).Error
	} else {
		err = s.db.Save(post).Error
	}
	if err != nil {
		if isDuplicateKey(err) {
			// Lost the race between the pre-check and the insert; surface it
			// as the same clean validation message.
			return SaveResult{Errors: []string{fmt.Sprintf("This slug (%q) is already in use. Please provide a unique slug or modify the title.", slug)}}
		}
		log.Printf("DB error saving post (mode=%d, id=%d): %v", mode, postID, err)
		return SaveResult{Err: err}
	}

	return SaveResult{Post: post}
}

// List returns the filtered, paginated manage-posts page with its total
// count. Query failures degrade to an empty result and are logged.
func (s *PostService) List(filters ListFilters, page, perPage int) ListResult {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}

	result := ListResult{Page: page, PerPage: perPage}

	query := s.db.Model(&models.Post{})
	query = applyFilters(query, filters)

	if err := query.Count(&result.TotalPosts).Error; err != nil {
		log.Printf("DB error counting posts: %v", err)
		return result
	}

	result.TotalPages = int(math.Ceil(float64(result.TotalPosts) / float64(perPage)))

	offset := (page - 1) * perPage
	fetch := applyFilters(s.db.Model(&models.Post{}), filters).
		Preload("Author").
		Preload("Category").
		Order("created_at DESC, id DESC").
		Limit(perPage).
		Offset(offset)

	if err := fetch.Find(&result.Posts).Error; err != nil {
		log.Printf("DB error fetching posts: %v", err)
		result.Posts = nil
	}

	return result
}

// BulkAction applies a status change or deletion to every id in one batch
// statement. Bulk deletes cascade featured-image cleanup the same way single
// deletes do.
func (s *PostService) BulkAction(action string, ids []uint) (BulkOutcome, error) {
	outcome := BulkOutcome{Action: action, Requested: len(ids)}
	if len(ids) == 0 {
		return outcome, errors.New("no valid posts selected")
	}

	switch action {
	case BulkPublish, BulkDraft:
		newStatus := models.StatusPublished
		if action == BulkDraft {
			newStatus = models.StatusDraft
		}
		outcome.NewStatus = newStatus

		res := s.db.Model(&models.Post{}).Where("id IN ?", ids).Update("status", newStatus)
		if res.Error != nil {
			log.Printf("Bulk action (%s) DB error: %v", action, res.Error)
			outcome.Failed = len(ids)
			return outcome, nil
		}
		outcome.Succeeded = res.RowsAffected

	case BulkDelete:
		images := s.featuredImagesFor(ids)

		res := s.db.Where("id IN ?", ids).Delete(&models.Post{})
		if res.Error != nil {
			log.Printf("Bulk delete DB error: %v", res.Error)
			outcome.Failed = len(ids)
			return outcome, nil
		}
		outcome.Succeeded = res.RowsAffected

		for _, img := range images {
			s.uploads.Remove(img)
		}

	default:
		return outcome, ErrUnknownAction
	}

	return outcome, nil
}

// Delete removes one post and best-effort removes its stored image. A zero
// affected-row count is reported as NotFound, not an error.
func (s *PostService) Delete(id uint) (DeleteOutcome, error) {
	outcome := DeleteOutcome{ID: id, Title: fmt.Sprintf("Post #%d", id)}

	var post models.Post
	image := ""
	if err := s.db.Select("id", "title", "featured_image").First(&post, id).Error; err == nil {
		outcome.Title = post.Title
		if post.FeaturedImage != nil {
			image = *post.FeaturedImage
		}
	}

	res := s.db.Delete(&models.Post{}, id)
	if res.Error != nil {
		log.Printf("DB error deleting post %d: %v", id, res.Error)
		return outcome, res.Error
	}
	if res.RowsAffected == 0 {
		outcome.NotFound = true
		return outcome, nil
	}

	outcome.Deleted = true
	if image != "" {
		s.uploads.Remove(image)
	}
	return outcome, nil
}

// Categories returns all categories for the filter dropdown, cached briefly.
func (s *PostService) Categories() []models.Category {
	const cacheKey = "posts:filter:categories"
	if cached := utils.GetCache().Get(cacheKey); cached != nil {
		if categories, ok := cached.([]models.Category); ok {
			return categories
		}
	}

	var categories []models.Category
	if err := s.db.Order("name ASC").Find(&categories).Error; err != nil {
		log.Printf("DB error fetching categories: %v", err)
		return nil
	}
	utils.GetCache().Set(cacheKey, categories, time.Minute)
	return categories
}

// Authors returns all admin users for the filter dropdown, cached briefly.
func (s *PostService) Authors() []models.AdminUser {
	const cacheKey = "posts:filter:authors"
	if cached := utils.GetCache().Get(cacheKey); cached != nil {
		if authors, ok := cached.([]models.AdminUser); ok {
			return authors
		}
	}

	var authors []models.AdminUser
	if err := s.db.Order("username ASC").Find(&authors).Error; err != nil {
		log.Printf("DB error fetching authors: %v", err)
		return nil
	}
	utils.GetCache().Set(cacheKey, authors, time.Minute)
	return authors
}

func (s *PostService) slugTaken(slug string, excludeID uint) (bool, error) {
	var count int64
	query := s.db.Model(&models.Post{}).Where("slug = ?", slug)
	if excludeID > 0 {
		query = query.Where("id != ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *PostService) featuredImagesFor(ids []uint) []string {
	var images []string
	err := s.db.Model(&models.Post{}).
		Where("id IN ? AND featured_image IS NOT NULL", ids).
		Pluck("featured_image", &images).Error
	if err != nil {
		log.Printf("DB error collecting featured images for bulk delete: %v", err)
		return nil
	}
	return images
}

func applyFilters(query *gorm.DB, filters ListFilters) *gorm.DB {
	if search := strings.TrimSpace(filters.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("(LOWER(title) LIKE ? OR LOWER(content) LIKE ?)", pattern, pattern)
	}
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.CategoryID > 0 {
		query = query.Where("category_id = ?", filters.CategoryID)
	}
	if filters.AuthorID > 0 {
		query = query.Where("author_id = ?", filters.AuthorID)
	}
	if filters.DateFrom != "" {
		if from, err := time.ParseInLocation("2006-01-02", filters.DateFrom, time.Local); err == nil {
			query = query.Where("created_at >= ?", from)
		}
	}
	if filters.DateTo != "" {
		if to, err := time.ParseInLocation("2006-01-02", filters.DateTo, time.Local); err == nil {
			// Inclusive of the whole final day, sub-second timestamps included
			query = query.Where("created_at < ?", to.AddDate(0, 0, 1))
		}
	}
	return query
}

func isValidURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
