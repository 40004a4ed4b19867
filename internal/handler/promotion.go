package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sportshop/api/internal/dto"
	"github.com/sportshop/api/internal/middleware"
	"github.com/sportshop/api/internal/model"
	"github.com/sportshop/api/internal/service"
)

type PromotionHandler struct {
	promoService *service.PromotionService
}

func NewPromotionHandler(promoService *service.PromotionService) *PromotionHandler {
	return &PromotionHandler{promoService: promoService}
}

// Validate is the public dry-run endpoint the storefront calls while the
// customer types a code. It never mutates usage counters.
func (h *PromotionHandler) Validate(c *gin.Context) {
	var req dto.ValidatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap := service.CartSnapshot{CartTotal: req.CartTotal}
	for _, item := range req.Items {
		snap.Items = append(snap.Items, service.SnapshotItem{
			ProductID:  item.ProductID,
			CategoryID: item.CategoryID,
			Price:      item.Price,
			Quantity:   item.Quantity,
		})
	}

	result, err := h.promoService.Validate(c.Request.Context(), req.Code, middleware.GetOptionalUserID(c), snap)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, dto.ValidatePromoResponse{
		Valid:    result.Valid,
		Discount: result.Discount,
		Type:     string(result.Type),
		Message:  result.Message,
	})
}

func (h *PromotionHandler) List(c *gin.Context) {
	promos, err := h.promoService.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	items := make([]dto.PromotionResponse, 0, len(promos))
	for i := range promos {
		items = append(items, toPromotionResponse(&promos[i]))
	}
	c.JSON(http.StatusOK, gin.H{"promotions": items})
}

func (h *PromotionHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid promotion ID"})
		return
	}

	promo, err := h.promoService.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrPromoNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "promotion not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, toPromotionResponse(promo))
}

func (h *PromotionHandler) Create(c *gin.Context) {
	var req dto.CreatePromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	promo, err := h.promoService.Create(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPromoCodeExists):
			c.JSON(http.StatusConflict, gin.H{"error": "promotion code already exists"})
		case errors.Is(err, service.ErrPromoBadValue):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	c.JSON(http.StatusCreated, toPromotionResponse(promo))
}

func (h *PromotionHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid promotion ID"})
		return
	}

	var req dto.UpdatePromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	promo, err := h.promoService.Update(c.Request.Context(), id, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPromoNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "promotion not found"})
		case errors.Is(err, service.ErrPromoCodeExists):
			c.JSON(http.StatusConflict, gin.H{"error": "promotion code already exists"})
		case errors.Is(err, service.ErrPromoBadValue):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, toPromotionResponse(promo))
}

func (h *PromotionHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid promotion ID"})
		return
	}

	if err := h.promoService.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrPromoNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "promotion not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.Status(http.StatusNoContent)
}

func toPromotionResponse(p *model.Promotion) dto.PromotionResponse {
	return dto.PromotionResponse{
		ID:                p.ID,
		Code:              p.Code,
		Name:              p.Name,
		Description:       p.Description,
		Type:              string(p.Type),
		Value:             p.Value,
		MinOrderAmount:    p.MinOrderAmount,
		MaxDiscount:       p.MaxDiscount,
		UsageLimit:        p.UsageLimit,
		UsageLimitPerUser: p.UsageLimitPerUser,
		UsedCount:         p.UsedCount,
		CategoryIDs:       p.CategoryIDs,
		ProductIDs:        p.ProductIDs,
		ExcludeProductIDs: p.ExcludeProductIDs,
		StartDate:         p.StartDate,
		EndDate:           p.EndDate,
		IsActive:          p.IsActive,
	}
}
