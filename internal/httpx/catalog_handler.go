package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-shop-orders/internal/auth"
	"github.com/ariefcatur/go-shop-orders/internal/catalog"
	"github.com/ariefcatur/go-shop-orders/internal/describe"
	"github.com/ariefcatur/go-shop-orders/internal/logx"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Describer writes marketing copy for a product.
type Describer interface {
	Describe(ctx context.Context, p catalog.Product) (string, error)
}

type CatalogHandler struct {
	Catalog       *catalog.Service
	Describer     Describer // optional
	Authenticator *Authenticator
	Log           *logrus.Entry
}

type ProductReq struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
	Weight      *float64         `json:"weight"`
	CategoryID  *int64           `json:"categoryId"`
}

const maxSeedUpload = 10 << 20

func (h *CatalogHandler) Register(r *chi.Mux) {
	employee := []func(http.Handler) http.Handler{
		h.Authenticator.Authenticate,
		h.Authenticator.RequireRole(auth.RoleEmployee),
	}

	r.Get("/categories", h.listCategories)
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Get("/{id}", h.getProduct)
		r.Get("/{id}/seo-description", h.seoDescription)
		r.With(employee...).Post("/", h.createProduct)
		r.With(employee...).Put("/{id}", h.updateProduct)
	})
	r.With(employee...).Post("/init", h.seed)
}

func (h *CatalogHandler) listCategories(w http.ResponseWriter, r *http.Request) {
	list, err := h.Catalog.Categories(r.Context())
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": list})
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.Catalog.Products(r.Context())
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": list})
}

func (h *CatalogHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "validation_error", "product id has to be an integer greater than 0")
		return
	}
	p, err := h.Catalog.Product(r.Context(), id)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": p})
}

func (h *CatalogHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "request body must be valid JSON")
		return
	}
	in := catalog.ProductInput{UnitPrice: req.UnitPrice, Weight: req.Weight}
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	if req.CategoryID != nil {
		in.CategoryID = *req.CategoryID
	}

	p, err := h.Catalog.CreateProduct(r.Context(), in)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"product": p})
}

func (h *CatalogHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid product id")
		return
	}
	var req ProductReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "request body must be valid JSON")
		return
	}

	p, err := h.Catalog.UpdateProduct(r.Context(), id, catalog.ProductPatch{
		Name:        req.Name,
		Description: req.Description,
		UnitPrice:   req.UnitPrice,
		Weight:      req.Weight,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": p})
}

func (h *CatalogHandler) seoDescription(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid product id")
		return
	}
	if h.Describer == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "description generator is not configured")
		return
	}
	p, err := h.Catalog.Product(r.Context(), id)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}

	ctx := r.Context()
	html, err := h.Describer.Describe(ctx, p)
	if err != nil {
		logx.FromContext(ctx, h.Log).WithError(err).WithField("product_id", id).Error("generate SEO description")
		status := http.StatusInternalServerError
		if errors.Is(err, describe.ErrUpstream) {
			status = http.StatusBadGateway
		}
		writeError(w, status, "upstream_error", "failed to generate SEO description")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

func (h *CatalogHandler) seed(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSeedUpload)
	if err := r.ParseMultipartForm(maxSeedUpload); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "expected a multipart form with a JSON file")
		return
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "no file uploaded")
		return
	}
	defer f.Close()

	n, err := h.Catalog.SeedProducts(r.Context(), f)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "products initialized", "count": n})
}
