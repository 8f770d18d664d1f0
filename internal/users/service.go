package users

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("users: database handle is required")
	// ErrUnknownUser indicates the key does not belong to a registered user.
	ErrUnknownUser = errors.New("users: unknown user")
)

var defaultTeam = []User{
	{Key: "maria", Name: "Maria Santos", Email: "maria.santos@generallab.example"},
	{Key: "carlos", Name: "Carlos Oliveira", Email: "carlos.oliveira@generallab.example"},
	{Key: "ana", Name: "Ana Ferreira", Email: "ana.ferreira@generallab.example"},
}

// Service manages the dashboard user directory.
type Service struct {
	db *gorm.DB
}

// NewService constructs the user service.
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	return &Service{db: db}, nil
}

// EnsureDefaultTeam seeds the built-in trio when the directory is empty.
func (s *Service) EnsureDefaultTeam(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	team := make([]User, len(defaultTeam))
	copy(team, defaultTeam)
	return s.db.WithContext(ctx).Create(&team).Error
}

// List returns all users ordered by key.
func (s *Service) List(ctx context.Context) ([]User, error) {
	var results []User
	if err := s.db.WithContext(ctx).Order("user_key ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// Find resolves a user by key.
func (s *Service) Find(ctx context.Context, key string) (User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("user_key = ?", key).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, fmt.Errorf("%w: %s", ErrUnknownUser, key)
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// ResponsibleNames returns the display names used for the default
// responsible rotation on new leads.
func (s *Service) ResponsibleNames(ctx context.Context) ([]string, error) {
	members, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(members))
	for _, member := range members {
		names = append(names, member.Name)
	}
	return names, nil
}
