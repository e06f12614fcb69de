package handlers

import (
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"

	"github.com/anikchand/videotube/internal/service/search"
	"github.com/anikchand/videotube/internal/util"
)

type SearchHandler struct {
	ES    *elasticsearch.Client
	Index string
}

func (h *SearchHandler) Search(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter q is required")
	}
	if h.ES == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search is not configured")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	from, limit := util.Paginate(page, size)

	total, profiles, err := search.Search(c.Request().Context(), h.ES, h.Index, query, from, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "search failed")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total":   total,
		"results": profiles,
	})
}
