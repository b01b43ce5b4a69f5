package pagination

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"loanbook/internal/core/domain"

	"github.com/gofiber/fiber/v2"
)

func TestGetParams(t *testing.T) {
	tests := []struct {
		query     string
		want      Params
		wantField string
	}{
		{query: "", want: Params{Page: 1, Limit: DefaultLimit, Offset: 0}},
		{query: "?page=3&limit=10", want: Params{Page: 3, Limit: 10, Offset: 20}},
		{query: "?limit=500", want: Params{Page: 1, Limit: MaxLimit, Offset: 0}},
		{query: "?page=0", wantField: "page"},
		{query: "?page=abc", wantField: "page"},
		{query: "?limit=-5", wantField: "limit"},
		{query: "?page=100001", wantField: "page"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				params, err := GetParams(c)
				if err != nil {
					var field string
					if de, ok := err.(*domain.Error); ok {
						field = de.Field
					}
					return c.Status(fiber.StatusBadRequest).SendString(field)
				}
				return c.JSON(params)
			})

			resp, err := app.Test(httptest.NewRequest("GET", "/"+tt.query, nil))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if tt.wantField != "" {
				if resp.StatusCode != fiber.StatusBadRequest {
					t.Fatalf("status = %d, want 400", resp.StatusCode)
				}
				buf := make([]byte, 32)
				n, _ := resp.Body.Read(buf)
				if got := string(buf[:n]); got != tt.wantField {
					t.Errorf("field = %q, want %q", got, tt.wantField)
				}
				return
			}

			var got Params
			if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
				t.Fatal(err)
			}
			// Offset is not serialized
			got.Offset = (got.Page - 1) * got.Limit
			if got != tt.want {
				t.Errorf("params = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestGetMeta(t *testing.T) {
	meta := GetMeta(&Params{Page: 2, Limit: 10}, 25)
	if meta.TotalPages != 3 || !meta.HasNext || !meta.HasPrev {
		t.Errorf("meta = %+v", meta)
	}

	empty := GetMeta(&Params{Page: 1, Limit: 10}, 0)
	if empty.TotalPages != 0 || empty.HasNext || empty.HasPrev {
		t.Errorf("empty meta = %+v", empty)
	}
}
