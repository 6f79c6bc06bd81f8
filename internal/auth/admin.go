package auth

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Admin is one dental-clinic desktop account: the identity a pair code's
// mobile-inherited token is issued against.
type Admin struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex"`
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var ErrEmailAlreadyExists = errors.New("auth: email already registered")

// AdminStore persists clinic accounts. Only the Service talks to it; HTTP
// handlers go through Service.
type AdminStore interface {
	Create(admin *Admin) error
	GetByEmail(email string) (*Admin, error)
	GetByID(id string) (*Admin, error)
}

type gormAdminStore struct {
	db *gorm.DB
}

func NewGormAdminStore(db *gorm.DB) AdminStore {
	return &gormAdminStore{db: db}
}

func (s *gormAdminStore) Create(admin *Admin) error {
	err := s.db.Create(admin).Error
	if err != nil {
		return fmt.Errorf("auth: create admin: %w", err)
	}
	return nil
}

func (s *gormAdminStore) GetByEmail(email string) (*Admin, error) {
	var a Admin
	err := s.db.Where("email = ?", email).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("auth: load admin by email: %w", err)
	}
	return &a, nil
}

func (s *gormAdminStore) GetByID(id string) (*Admin, error) {
	var a Admin
	err := s.db.Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("auth: load admin by id: %w", err)
	}
	return &a, nil
}

// Login verifies email/password and, on success, issues a desktop session
// token. It does not distinguish "no such email" from "wrong password" in
// its returned error, matching the teacher's login handler.
func (s *Service) Login(store AdminStore, email, password string) (*Admin, string, time.Time, error) {
	admin, err := store.GetByEmail(email)
	if err != nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.IssueDesktopToken(admin.ID)
	if err != nil {
		return nil, "", time.Time{}, fmt.Errorf("auth: issue session token: %w", err)
	}
	return admin, token, expiresAt, nil
}

// HashPassword wraps bcrypt for admin provisioning (there is no public
// self-registration endpoint; accounts are provisioned out of band).
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hashed), nil
}
