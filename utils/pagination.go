package utils

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const DefaultPage = 1

type PageOptions struct {
	DefaultLimit int
	MaxLimit     int
}

var (
	DefaultPageOpts = PageOptions{DefaultLimit: 20, MaxLimit: 100}
	AdminPageOpts   = PageOptions{DefaultLimit: 50, MaxLimit: 200}
)

type PageParams struct {
	Page  int
	Limit int
}

func (p PageParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

type PageMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// ParsePage reads page and limit (or per_page) from the query string.
func ParsePage(c *gin.Context, opt PageOptions) PageParams {
	page := atoiDefault(c.Query("page"), DefaultPage)
	if page < 1 {
		page = DefaultPage
	}
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		raw = strings.TrimSpace(c.Query("per_page"))
	}
	limit := atoiDefault(raw, opt.DefaultLimit)
	if limit < 1 {
		limit = opt.DefaultLimit
	}
	if opt.MaxLimit > 0 && limit > opt.MaxLimit {
		limit = opt.MaxLimit
	}
	return PageParams{Page: page, Limit: limit}
}

func NewPageMeta(p PageParams, total int64) PageMeta {
	pages := 0
	if p.Limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	return PageMeta{Page: p.Page, Limit: p.Limit, Total: total, TotalPages: pages}
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
