package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/openlabtz/lims-backend/internal/model"
	"github.com/openlabtz/lims-backend/internal/repository"
	"github.com/openlabtz/lims-backend/internal/workflow"
)

// CatalogHandler serves the ingredient catalog.  The list is public so
// the submission form can render it; mutations are Admin-only.
type CatalogHandler struct {
	Ingredients *repository.IngredientRepo
}

func NewCatalogHandler(in *repository.IngredientRepo) *CatalogHandler {
	return &CatalogHandler{Ingredients: in}
}

type ingredientReq struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	TestType   string `json:"test_type"`
}

type ingredientPart struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	TestType   string `json:"test_type"`
}

func toIngredientPart(i model.Ingredient) ingredientPart {
	return ingredientPart{ID: i.ID, Name: i.Name, PriceCents: i.PriceCents, TestType: string(i.TestType)}
}

func validateIngredient(req ingredientReq) string {
	if strings.TrimSpace(req.Name) == "" {
		return "name is required."
	}
	if req.PriceCents < 0 {
		return "price_cents must not be negative."
	}
	if !workflow.ValidTestType(req.TestType) {
		return "test_type must be Chemistry or Microbiology."
	}
	return ""
}

// List handles GET /v1/ingredients.
func (h *CatalogHandler) List(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	ingredients, err := h.Ingredients.List(ctx)
	if err != nil {
		return internalError(c, err)
	}
	out := make([]ingredientPart, 0, len(ingredients))
	for _, i := range ingredients {
		out = append(out, toIngredientPart(i))
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "ingredients": out})
}

// Create handles POST /v1/ingredients.
func (h *CatalogHandler) Create(c echo.Context) error {
	var req ingredientReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body.")
	}
	if msg := validateIngredient(req); msg != "" {
		return fail(c, http.StatusBadRequest, msg)
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	id, err := h.Ingredients.Create(ctx, strings.TrimSpace(req.Name), req.PriceCents, workflow.TestType(req.TestType))
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fail(c, http.StatusConflict, "An ingredient with that name already exists.")
		}
		return internalError(c, err)
	}
	ing, err := h.Ingredients.GetByID(ctx, id)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "message": "Ingredient created.", "ingredient": toIngredientPart(ing)})
}

// Get handles GET /v1/ingredients/:id.
func (h *CatalogHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid ingredient id.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	ing, err := h.Ingredients.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Ingredient not found.")
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "ingredient": toIngredientPart(ing)})
}

// Update handles PUT /v1/ingredients/:id.  Price changes affect future
// submissions only; existing tests keep their snapshotted price.
func (h *CatalogHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid ingredient id.")
	}
	var req ingredientReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body.")
	}
	if msg := validateIngredient(req); msg != "" {
		return fail(c, http.StatusBadRequest, msg)
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Ingredients.Update(ctx, id, strings.TrimSpace(req.Name), req.PriceCents, workflow.TestType(req.TestType)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Ingredient not found.")
		}
		if errors.Is(err, repository.ErrConflict) {
			return fail(c, http.StatusConflict, "An ingredient with that name already exists.")
		}
		return internalError(c, err)
	}
	ing, err := h.Ingredients.GetByID(ctx, id)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Ingredient updated.", "ingredient": toIngredientPart(ing)})
}

// Delete handles DELETE /v1/ingredients/:id.  Ingredients referenced by
// existing tests cannot be removed.
func (h *CatalogHandler) Delete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid ingredient id.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Ingredients.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Ingredient not found.")
		}
		if errors.Is(err, repository.ErrConflict) {
			return fail(c, http.StatusConflict, "Ingredient is referenced by existing tests.")
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Ingredient deleted."})
}
