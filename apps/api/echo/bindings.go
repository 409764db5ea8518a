package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

var (
	pageParam    = "page"
	perPageParam = "perPage"
)

// Pagination binds the page/perPage query params; values are left at zero
// when absent or malformed and services fall back to their defaults.
type Pagination struct {
	Page    int
	PerPage int
}

func (p *Pagination) Bind(ctx echo.Context) {
	if val := ctx.QueryParam(pageParam); val != "" {
		if page, err := strconv.Atoi(val); err == nil {
			p.Page = page
		}
	}
	if val := ctx.QueryParam(perPageParam); val != "" {
		if perPage, err := strconv.Atoi(val); err == nil {
			p.PerPage = perPage
		}
	}
}
