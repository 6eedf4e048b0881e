package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/florentd35/teachly/internal/query"
	"github.com/florentd35/teachly/pkg/response"
)

// listParams extracts the generic collection query options from the request.
func listParams(c *gin.Context) query.Params {
	return query.Parse(c.Request.URL.Query())
}

// pageMeta converts a query result into response pagination metadata.
func pageMeta[T any](result *query.Result[T]) *response.Meta {
	return &response.Meta{
		Page:       result.Page,
		PerPage:    result.PerPage,
		Total:      result.Total,
		TotalPages: result.TotalPages,
	}
}
