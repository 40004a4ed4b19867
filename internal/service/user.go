package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/sportshop/api/internal/dto"
	"github.com/sportshop/api/internal/model"
	"github.com/sportshop/api/internal/repository"
)

var ErrAddressMissing = errors.New("address not found")

// UserService owns the profile side of a user: the address book that
// orders resolve shipping addresses from.
type UserService struct {
	users repository.UserRepository
}

func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

func (s *UserService) get(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *UserService) ListAddresses(ctx context.Context, userID uuid.UUID) ([]model.Address, error) {
	user, err := s.get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Addresses, nil
}

// AddAddress appends an address. The first address, or one flagged as
// default, becomes the default and clears the flag elsewhere.
func (s *UserService) AddAddress(ctx context.Context, userID uuid.UUID, req dto.AddressRequest) ([]model.Address, error) {
	user, err := s.get(ctx, userID)
	if err != nil {
		return nil, err
	}

	address := addressFromRequest(req)
	address.ID = uuid.NewString()
	if len(user.Addresses) == 0 {
		address.IsDefault = true
	}
	if address.IsDefault {
		for i := range user.Addresses {
			user.Addresses[i].IsDefault = false
		}
	}
	user.Addresses = append(user.Addresses, address)

	if err := s.users.UpdateAddresses(ctx, userID, user.Addresses); err != nil {
		return nil, err
	}
	return user.Addresses, nil
}

func (s *UserService) UpdateAddress(ctx context.Context, userID uuid.UUID, addressID string, req dto.AddressRequest) ([]model.Address, error) {
	user, err := s.get(ctx, userID)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range user.Addresses {
		if user.Addresses[i].ID == addressID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, ErrAddressMissing
	}

	updated := addressFromRequest(req)
	updated.ID = addressID
	if updated.IsDefault {
		for i := range user.Addresses {
			user.Addresses[i].IsDefault = false
		}
	}
	user.Addresses[idx] = updated

	if err := s.users.UpdateAddresses(ctx, userID, user.Addresses); err != nil {
		return nil, err
	}
	return user.Addresses, nil
}

func (s *UserService) DeleteAddress(ctx context.Context, userID uuid.UUID, addressID string) ([]model.Address, error) {
	user, err := s.get(ctx, userID)
	if err != nil {
		return nil, err
	}

	kept := user.Addresses[:0]
	removed := false
	wasDefault := false
	for _, addr := range user.Addresses {
		if addr.ID == addressID {
			removed = true
			wasDefault = addr.IsDefault
			continue
		}
		kept = append(kept, addr)
	}
	if !removed {
		return nil, ErrAddressMissing
	}
	if wasDefault && len(kept) > 0 {
		kept[0].IsDefault = true
	}
	user.Addresses = kept

	if err := s.users.UpdateAddresses(ctx, userID, user.Addresses); err != nil {
		return nil, err
	}
	return user.Addresses, nil
}

func addressFromRequest(req dto.AddressRequest) model.Address {
	return model.Address{
		Title:      req.Title,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Phone:      req.Phone,
		City:       req.City,
		Street:     req.Street,
		Building:   req.Building,
		Apartment:  req.Apartment,
		PostalCode: req.PostalCode,
		IsDefault:  req.IsDefault,
	}
}
