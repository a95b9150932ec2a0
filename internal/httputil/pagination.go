package httputil

import (
	"strconv"

	"github.com/gin-gonic/gin"
	validation "github.com/jellydator/validation"
)

// PageLimits bounds the limit query parameter of one listing endpoint.
type PageLimits struct {
	Default int
	Max     int
}

var (
	errNotInteger = validation.NewError("validation_is_int", "must be an integer")
	// Min skips zero values, so a zero limit is caught by Required.
	errLimitBelowOne = validation.NewError("validation_min_greater_equal_than_required", "must be no less than 1")
)

// ParsePagination reads offset and limit from the query string. offset defaults to 0
// and limit to limits.Default; limit must lie in [1, limits.Max].
func ParsePagination(c *gin.Context, limits PageLimits) (offset, limit int, err error) {
	offset, offsetErr := queryInt(c, "offset", 0)
	limit, limitErr := queryInt(c, "limit", limits.Default)

	if offsetErr == nil {
		offsetErr = validation.Validate(offset, validation.Min(0))
	}
	if limitErr == nil {
		limitErr = validation.Validate(limit,
			validation.Required.ErrorObject(errLimitBelowOne),
			validation.Min(1),
			validation.Max(limits.Max),
		)
	}

	err = validation.Errors{"offset": offsetErr, "limit": limitErr}.Filter()
	if err != nil {
		return 0, 0, err
	}
	return offset, limit, nil
}

// ParseQueryInt reads the integer query parameter key, using fallback when it is
// absent or empty, and applies rules to it. Errors are keyed by the parameter name.
func ParseQueryInt(c *gin.Context, key string, fallback int, rules ...validation.Rule) (int, error) {
	n, err := queryInt(c, key, fallback)
	if err == nil {
		err = validation.Validate(n, rules...)
	}
	if err != nil {
		return 0, validation.Errors{key: err}
	}
	return n, nil
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errNotInteger
	}
	return n, nil
}
