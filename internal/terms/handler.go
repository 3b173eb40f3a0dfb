package terms

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	defaultLimit = 20
	maxLimit     = 200
)

type Handler struct {
	Repo *Repo
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{Repo: repo}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.list)            // GET /terms
	rg.GET("/:term", h.getByTerm) // GET /terms/:term
}

func (h *Handler) list(c *gin.Context) {
	q := ListQuery{
		Q:       c.Query("q"),
		Initial: strings.TrimSpace(c.Query("initial")),
		Limit:   parseInt(c.Query("limit"), defaultLimit),
		Offset:  parseInt(c.Query("offset"), 0),
	}
	if q.Limit <= 0 || q.Limit > maxLimit {
		q.Limit = defaultLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	items, total, err := h.Repo.List(c.Request.Context(), q)
	if err != nil {
		log.Printf("[terms] list: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  q.Limit,
		"offset": q.Offset,
		"items":  items,
	})
}

func (h *Handler) getByTerm(c *gin.Context) {
	e, err := h.Repo.GetByTerm(c.Request.Context(), c.Param("term"))
	if err != nil {
		log.Printf("[terms] get: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if e == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, e)
}

// Initials handles GET /initials.
func (h *Handler) Initials(c *gin.Context) {
	counts, err := h.Repo.Initials(c.Request.Context())
	if err != nil {
		log.Printf("[terms] initials: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "initials failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": counts})
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
