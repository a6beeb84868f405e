package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"

	"github.com/crumbcraft/bakehouse-golang/internal/models"
)

//
// --- Product Handlers (Storefront) ---
//

// ListProducts is the handler for GET /v1/products
// Supports ?category= and ?eggless=true filters.
func (h *Handlers) ListProducts(c *gin.Context) {
	// 1. --- Build Query ---
	query := `
		SELECT id, slug, name, description, category, price, image_url, is_eggless, is_available, created_at, updated_at
		FROM products
		WHERE is_available = 1`
	args := []interface{}{}

	if category := c.Query("category"); category != "" {
		query += " AND category = ?"
		args = append(args, category)
	}
	if c.Query("eggless") == "true" {
		query += " AND is_eggless = 1"
	}
	query += " ORDER BY name ASC"

	// 2. --- Execute & Scan ---
	rows, err := h.DB.Query(query, args...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(
			&p.ID, &p.Slug, &p.Name, &p.Description, &p.Category, &p.Price,
			&p.ImageURL, &p.IsEggless, &p.IsAvailable, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan product"})
			return
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating products"})
		return
	}

	if products == nil {
		products = []models.Product{}
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// GetProductBySlug is the handler for GET /v1/products/:slug
// Returns the product with its size/weight variants.
func (h *Handlers) GetProductBySlug(c *gin.Context) {
	productSlug := c.Param("slug")

	// 1. --- Fetch Product ---
	var p models.Product
	err := h.DB.QueryRow(`
		SELECT id, slug, name, description, category, price, image_url, is_eggless, is_available, created_at, updated_at
		FROM products WHERE slug = ?`, productSlug).Scan(
		&p.ID, &p.Slug, &p.Name, &p.Description, &p.Category, &p.Price,
		&p.ImageURL, &p.IsEggless, &p.IsAvailable, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		return
	}

	// 2. --- Fetch Variants ---
	rows, err := h.DB.Query(
		"SELECT id, product_id, name, price FROM product_variants WHERE product_id = ? ORDER BY price ASC", p.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch variants"})
		return
	}
	defer rows.Close()

	for rows.Next() {
		var v models.ProductVariant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Name, &v.Price); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan variant"})
			return
		}
		p.Variants = append(p.Variants, v)
	}

	c.JSON(http.StatusOK, gin.H{"product": p})
}

//
// --- Product Handlers (Admin) ---
//

// ProductInput defines the JSON for creating/updating a product.
type ProductInput struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	Category    string  `json:"category" binding:"required"`
	Price       float64 `json:"price" binding:"required,gt=0"`
	ImageURL    *string `json:"imageUrl"`
	IsEggless   bool    `json:"isEggless"`
	IsAvailable bool    `json:"isAvailable"`
}

// CreateProduct is the handler for POST /v1/admin/products
func (h *Handlers) CreateProduct(c *gin.Context) {
	var input ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()
	result, err := h.DB.Exec(`
		INSERT INTO products (slug, name, description, category, price, image_url, is_eggless, is_available, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		slug.Make(input.Name), input.Name, input.Description, input.Category,
		input.Price, input.ImageURL, input.IsEggless, input.IsAvailable, now, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
		return
	}

	productID, _ := result.LastInsertId()
	c.JSON(http.StatusCreated, gin.H{
		"message":   "Product created",
		"productId": productID,
		"slug":      slug.Make(input.Name),
	})
}

// UpdateProduct is the handler for PUT /v1/admin/products/:id
// Editing a product never touches historical orders: order items carry
// their own name/price snapshots.
func (h *Handlers) UpdateProduct(c *gin.Context) {
	productID := c.Param("id")

	var input ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.DB.Exec(`
		UPDATE products
		SET name = ?, description = ?, category = ?, price = ?, image_url = ?,
		    is_eggless = ?, is_available = ?, updated_at = ?
		WHERE id = ?`,
		input.Name, input.Description, input.Category, input.Price, input.ImageURL,
		input.IsEggless, input.IsAvailable, time.Now(), productID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update product"})
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product updated"})
}

// DeleteProduct is the handler for DELETE /v1/admin/products/:id
// It soft-deletes by marking the product unavailable so existing carts
// degrade gracefully.
func (h *Handlers) DeleteProduct(c *gin.Context) {
	productID := c.Param("id")

	result, err := h.DB.Exec("UPDATE products SET is_available = 0, updated_at = ? WHERE id = ?", time.Now(), productID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete product"})
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product removed from storefront"})
}
