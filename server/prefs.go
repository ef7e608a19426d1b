package server

import (
	"errors"
	"net/http"

	"github.com/aluiziolira/librosync/library"
	"github.com/aluiziolira/librosync/prefs"
	"github.com/gin-gonic/gin"
)

// PrefsHandler serves favorites, reading history and the language setting.
type PrefsHandler struct {
	svc *library.Service
}

func NewPrefsHandler(svc *library.Service) *PrefsHandler {
	return &PrefsHandler{svc: svc}
}

func (h *PrefsHandler) RegisterRoutes(r *gin.RouterGroup) {
	favorites := r.Group("/favorites")
	favorites.GET("", h.ListFavorites)
	favorites.POST("/:id/toggle", h.ToggleFavorite)
	favorites.DELETE("", h.ClearFavorites)

	history := r.Group("/history")
	history.GET("", h.ListHistory)
	history.DELETE("/:id", h.RemoveHistory)
	history.DELETE("", h.ClearHistory)

	r.GET("/language", h.GetLanguage)
	r.PUT("/language", h.SetLanguage)
}

// ListFavorites returns the favorite IDs and the catalog books they resolve to.
func (h *PrefsHandler) ListFavorites(c *gin.Context) {
	books, status, err := h.svc.FavoriteBooks(c.Request.Context())
	if err != nil {
		writeContextError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ids":    nonNil(h.svc.Favorites.List()),
		"data":   nonNil(books),
		"status": status,
	})
}

func (h *PrefsHandler) ToggleFavorite(c *gin.Context) {
	id := c.Param("id")
	on, err := h.svc.ToggleFavorite(id)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "storage", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "favorite": on})
}

func (h *PrefsHandler) ClearFavorites(c *gin.Context) {
	if err := h.svc.Favorites.Clear(); err != nil {
		writeError(c, http.StatusInternalServerError, "storage", err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PrefsHandler) ListHistory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": nonNil(h.svc.History.List())})
}

func (h *PrefsHandler) RemoveHistory(c *gin.Context) {
	if err := h.svc.History.Remove(c.Param("id")); err != nil {
		writeError(c, http.StatusInternalServerError, "storage", err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PrefsHandler) ClearHistory(c *gin.Context) {
	if err := h.svc.History.Clear(); err != nil {
		writeError(c, http.StatusInternalServerError, "storage", err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

type languageRequest struct {
	Language string `json:"language" binding:"required,max=16"`
}

func (h *PrefsHandler) GetLanguage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"language":  h.svc.Language.Get(),
		"supported": prefs.SupportedLanguages,
	})
}

func (h *PrefsHandler) SetLanguage(c *gin.Context) {
	var req languageRequest
	if !bindAndValidateJSON(c, &req) {
		return
	}
	if err := h.svc.Language.Set(req.Language); err != nil {
		if errors.Is(err, prefs.ErrUnsupportedLanguage) {
			writeError(c, http.StatusBadRequest, "unsupported_language", err.Error())
			return
		}
		writeError(c, http.StatusInternalServerError, "storage", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"language": h.svc.Language.Get()})
}
