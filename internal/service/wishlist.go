package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/sportshop/api/internal/dto"
	"github.com/sportshop/api/internal/model"
	"github.com/sportshop/api/internal/repository"
)

type WishlistService struct {
	users    repository.UserRepository
	products repository.ProductRepository
	carts    *CartService
}

func NewWishlistService(users repository.UserRepository, products repository.ProductRepository, carts *CartService) *WishlistService {
	return &WishlistService{users: users, products: products, carts: carts}
}

// Get resolves the stored product ids against the live catalog. Products
// that were deleted or archived since being saved are skipped.
func (s *WishlistService) Get(ctx context.Context, userID uuid.UUID) (*dto.WishlistResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	resp := &dto.WishlistResponse{Items: []dto.WishlistItem{}}
	for _, id := range user.Wishlist {
		product, err := s.products.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if product == nil || product.Status != model.ProductActive {
			continue
		}
		inStock := false
		for _, v := range product.Variants {
			if v.Stock > 0 {
				inStock = true
				break
			}
		}
		resp.Items = append(resp.Items, dto.WishlistItem{
			ID:      product.ID,
			Name:    product.Name,
			Slug:    product.Slug,
			Price:   product.Price,
			Image:   product.MainImage(),
			InStock: inStock,
		})
	}
	resp.Total = len(resp.Items)
	return resp, nil
}

func (s *WishlistService) Add(ctx context.Context, userID, productID uuid.UUID) (*dto.WishlistResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	for _, id := range user.Wishlist {
		if id == productID {
			return s.Get(ctx, userID)
		}
	}
	user.Wishlist = append(user.Wishlist, productID)
	if err := s.users.UpdateWishlist(ctx, userID, user.Wishlist); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *WishlistService) Remove(ctx context.Context, userID, productID uuid.UUID) (*dto.WishlistResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	kept := user.Wishlist[:0]
	for _, id := range user.Wishlist {
		if id != productID {
			kept = append(kept, id)
		}
	}
	user.Wishlist = kept
	if err := s.users.UpdateWishlist(ctx, userID, user.Wishlist); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

// MoveToCart adds one unit of the chosen variant to the user's cart and
// removes the product from the wishlist. Cart-side failures (out of
// stock, missing variant) surface unchanged and leave the wishlist as is.
func (s *WishlistService) MoveToCart(ctx context.Context, userID, productID uuid.UUID, variantID string) (*dto.WishlistResponse, error) {
	_, err := s.carts.AddItem(ctx, UserOwner(userID), dto.AddCartItemRequest{
		ProductID: productID,
		VariantID: variantID,
		Quantity:  1,
	})
	if err != nil {
		return nil, err
	}
	return s.Remove(ctx, userID, productID)
}
