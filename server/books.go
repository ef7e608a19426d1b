package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/aluiziolira/librosync/client"
	"github.com/aluiziolira/librosync/library"
	"github.com/aluiziolira/librosync/models"
	"github.com/aluiziolira/librosync/pipeline"
	"github.com/gin-gonic/gin"
)

// BookHandler serves the catalog and announcement collections.
type BookHandler struct {
	svc *library.Service
}

func NewBookHandler(svc *library.Service) *BookHandler {
	return &BookHandler{svc: svc}
}

func (h *BookHandler) RegisterRoutes(r *gin.RouterGroup) {
	books := r.Group("/books")
	books.GET("", h.List)
	books.GET("/categories", h.Categories)
	books.GET("/:id", h.Get)
	books.POST("/:id/view", h.View)

	r.GET("/announcements", h.Announcements)
	r.POST("/refetch/:collection", h.Refetch)
}

type listBooksQuery struct {
	Search       string `form:"search" binding:"omitempty,max=200"`
	Availability string `form:"availability" binding:"omitempty,oneof=all available unavailable"`
	Genre        string `form:"genre" binding:"omitempty,max=100"`
	Sort         string `form:"sort" binding:"omitempty,oneof=title-asc title-desc author-asc author-desc"`
	Page         int    `form:"page" binding:"omitempty,min=1"`
	PageSize     int    `form:"pageSize" binding:"omitempty,min=1,max=100"`
}

func (q listBooksQuery) criteria() pipeline.Criteria {
	c := pipeline.DefaultCriteria()
	c.Search = q.Search
	c.Availability = pipeline.ParseAvailability(q.Availability)
	if q.Genre != "" {
		c.Genre = q.Genre
	}
	c.Sort = pipeline.ParseSort(q.Sort)
	if q.Page > 0 {
		c.Page = q.Page
	}
	c.PageSize = q.PageSize
	return c
}

type pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	Total      int   `json:"total"`
	TotalPages int   `json:"totalPages"`
	Pages      []int `json:"pages"`
	Reset      bool  `json:"reset"`
}

type listBooksResponse struct {
	Data       []models.Book  `json:"data"`
	Pagination pagination     `json:"pagination"`
	Genres     []string       `json:"genres"`
	Categories []string       `json:"categories"`
	Status     library.Status `json:"status"`
}

// List returns one filtered, sorted page of the catalog.
func (h *BookHandler) List(c *gin.Context) {
	var q listBooksQuery
	if !bindAndValidateQuery(c, &q) {
		return
	}

	page, err := h.svc.BooksPage(c.Request.Context(), q.criteria())
	if err != nil {
		writeContextError(c, err)
		return
	}
	if !page.Status.Ready && page.Status.Error != "" {
		writeError(c, http.StatusBadGateway, page.Status.ErrorClass, page.Status.Error)
		return
	}

	c.JSON(http.StatusOK, listBooksResponse{
		Data: nonNil(page.Items),
		Pagination: pagination{
			Page:       page.Page,
			PageSize:   page.PageSize,
			Total:      page.TotalMatching,
			TotalPages: page.TotalPages,
			Pages:      nonNil(page.Pages),
			Reset:      page.Reset,
		},
		Genres:     nonNil(page.Genres),
		Categories: nonNil(page.Categories),
		Status:     page.Status,
	})
}

// Categories returns the catalog grouped by category.
func (h *BookHandler) Categories(c *gin.Context) {
	groups, status, err := h.svc.Categories(c.Request.Context())
	if err != nil {
		writeContextError(c, err)
		return
	}
	if !status.Ready && status.Error != "" {
		writeError(c, http.StatusBadGateway, status.ErrorClass, status.Error)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": nonNil(groups), "status": status})
}

func (h *BookHandler) Get(c *gin.Context) {
	b, status, err := h.svc.Book(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeBookError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":     b,
		"favorite": h.svc.Favorites.IsFavorite(b.ID),
		"status":   status,
	})
}

// View returns the book and records it in the reading history.
func (h *BookHandler) View(c *gin.Context) {
	b, err := h.svc.ViewBook(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeBookError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": b})
}

type announcementsQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"pageSize" binding:"omitempty,min=1,max=50"`
}

func (h *BookHandler) Announcements(c *gin.Context) {
	var q announcementsQuery
	if !bindAndValidateQuery(c, &q) {
		return
	}

	page, err := h.svc.AnnouncementsPage(c.Request.Context(), q.Page, q.PageSize)
	if err != nil {
		writeContextError(c, err)
		return
	}
	if !page.Status.Ready && page.Status.Error != "" {
		writeError(c, http.StatusBadGateway, page.Status.ErrorClass, page.Status.Error)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": nonNil(page.Items),
		"pagination": pagination{
			Page:       page.Page,
			PageSize:   page.PageSize,
			Total:      page.Total,
			TotalPages: page.TotalPages,
			Pages:      nonNil(pipeline.PageNumbers(page.Page, page.TotalPages)),
		},
		"status": page.Status,
	})
}

// Refetch forces a reload of one collection.
func (h *BookHandler) Refetch(c *gin.Context) {
	status, err := h.svc.Refetch(c.Request.Context(), c.Param("collection"))
	switch {
	case errors.Is(err, library.ErrUnknownCollection):
		writeError(c, http.StatusNotFound, "unknown_collection", err.Error())
		return
	case err != nil:
		writeContextError(c, err)
		return
	}
	if status.Error != "" {
		writeError(c, http.StatusBadGateway, status.ErrorClass, status.Error)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func writeBookError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, library.ErrBookNotFound):
		writeError(c, http.StatusNotFound, "not_found", "Book not found.")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeContextError(c, err)
	default:
		writeError(c, http.StatusBadGateway, client.Classify(err).String(), client.UserMessage(err))
	}
}

func writeContextError(c *gin.Context, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		writeError(c, http.StatusGatewayTimeout, "timeout", client.UserMessage(client.ErrTimeout{Err: err}))
		return
	}
	writeError(c, http.StatusServiceUnavailable, "canceled", err.Error())
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
