package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/economato/go-order-desk/internal/api"
	"github.com/economato/go-order-desk/internal/recipes"
)

type estimateResp struct {
	Cost decimal.Decimal `json:"cost"`
}

func (s *Server) registerRecipes(r chi.Router) {
	r.Get("/recipes", s.listRecipes)
	r.Get("/recipes/options", s.recipeOptions)
	r.Post("/recipes/estimate", s.estimateRecipe)
	r.Get("/recipes/{id}", s.getRecipe)
	r.Post("/recipes", s.saveRecipe)
	r.Put("/recipes/{id}", s.saveRecipe)
	r.Delete("/recipes/{id}", s.deleteRecipe)
}

func (s *Server) recipeBoard() *recipes.Board {
	return recipes.New(s.Recipes, s.Allergens, s.Products, s.publisher())
}

func (s *Server) listRecipes(w http.ResponseWriter, r *http.Request) {
	q := recipes.Query{Name: r.URL.Query().Get("name"), Sort: r.URL.Query().Get("sort")}
	if raw := r.URL.Query().Get("maxCost"); raw != "" {
		limit, err := decimal.NewFromString(raw)
		if err != nil || limit.IsNegative() {
			badRequest(w, "Costo máximo inválido")
			return
		}
		q.MaxCost = decimal.NewNullDecimal(limit)
	}
	list, err := s.recipeBoard().List(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) recipeOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := s.recipeBoard().Options(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

// estimateRecipe prices the components against the current product list.
func (s *Server) estimateRecipe(w http.ResponseWriter, r *http.Request) {
	var req api.RecipeRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "JSON inválido")
		return
	}
	b := s.recipeBoard()
	if _, err := b.Options(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, estimateResp{Cost: b.EstimateCost(req)})
}

func (s *Server) getRecipe(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "ID de receta inválido")
		return
	}
	rec, err := s.recipeBoard().Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// saveRecipe creates on POST and replaces on PUT /recipes/{id}.
func (s *Server) saveRecipe(w http.ResponseWriter, r *http.Request) {
	id := 0
	if chi.URLParam(r, "id") != "" {
		var ok bool
		if id, ok = idParam(r, "id"); !ok {
			badRequest(w, "ID de receta inválido")
			return
		}
	}
	var req api.RecipeRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "JSON inválido")
		return
	}
	res, err := s.recipeBoard().Save(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	code := http.StatusOK
	if id == 0 {
		code = http.StatusCreated
	}
	writeJSON(w, code, res)
}

func (s *Server) deleteRecipe(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "ID de receta inválido")
		return
	}
	msg, err := s.recipeBoard().Delete(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message{Message: msg})
}
