package backend

import (
	"context"
	"fmt"
	"strings"

	"calixo/internal/domain"
)

// LookupNutrition resolves one portion. Responses with negative macros are
// rejected.
func (c *Client) LookupNutrition(ctx context.Context, query domain.NutritionQuery) (domain.Nutrition, error) {
	if strings.TrimSpace(query.FoodName) == "" {
		return domain.Nutrition{}, fmt.Errorf("%w: food name is required", domain.ErrInvalidInput)
	}
	if query.Grams <= 0 && strings.TrimSpace(query.Quantity) == "" {
		return domain.Nutrition{}, fmt.Errorf("%w: grams or quantity is required", domain.ErrInvalidInput)
	}

	var nutrition domain.Nutrition
	if err := c.postJSON(ctx, "/api/food-nutrition", query, &nutrition); err != nil {
		return domain.Nutrition{}, err
	}
	if err := c.checker().Struct(nutrition); err != nil {
		return domain.Nutrition{}, fmt.Errorf("invalid nutrition response: %w", err)
	}
	if strings.TrimSpace(nutrition.Name) == "" {
		nutrition.Name = query.FoodName
	}
	return nutrition, nil
}
