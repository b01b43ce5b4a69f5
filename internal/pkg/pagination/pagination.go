package pagination

import (
	"strconv"

	"loanbook/internal/core/domain"

	"github.com/gofiber/fiber/v2"
)

// Params represents pagination parameters
type Params struct {
	Page   int `json:"page"`
	Limit  int `json:"limit"`
	Offset int `json:"-"`
}

// Meta represents pagination metadata
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
	// MaxPage keeps offsets inside int range on 32-bit builds
	MaxPage = 100000
)

// GetParams reads page and limit from the query string. Missing values take
// the defaults, malformed ones are a validation error, and a limit above
// MaxLimit is clamped.
func GetParams(c *fiber.Ctx) (*Params, error) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return nil, err
	}
	limit, err := queryInt(c, "limit", DefaultLimit)
	if err != nil {
		return nil, err
	}

	if page > MaxPage {
		return nil, domain.NewValidationError("page", "page is too large")
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return &Params{Page: page, Limit: limit, Offset: (page - 1) * limit}, nil
}

func queryInt(c *fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, domain.NewValidationError(key, key+" must be a positive integer")
	}
	return n, nil
}

// GetMeta calculates pagination metadata
func GetMeta(params *Params, total int64) *Meta {
	totalPages := int((total + int64(params.Limit) - 1) / int64(params.Limit))

	return &Meta{
		Page:       params.Page,
		Limit:      params.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    params.Page < totalPages,
		HasPrev:    params.Page > 1,
	}
}

// Response is a page of items with its metadata
type Response struct {
	Data interface{} `json:"data"`
	Meta *Meta       `json:"meta"`
}

// NewResponse creates a new paginated response
func NewResponse(data interface{}, params *Params, total int64) *Response {
	return &Response{
		Data: data,
		Meta: GetMeta(params, total),
	}
}
