package store

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// User is an account. Accounts are never updated after creation.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"column:usuario;uniqueIndex;not null"`
	PasswordHash string `gorm:"column:contrasena;not null"`
}

// TableName implements gorm's tabler interface.
func (User) TableName() string { return "usuarios" }

// CreateAccount creates an account unless the username is already taken.
// An existing username is not an error; created reports whether a row was
// inserted. The password is stored as a bcrypt hash.
func (s *Store) CreateAccount(ctx context.Context, username, password string) (created bool, err error) {
	if username == "" || password == "" {
		return false, fmt.Errorf("store: username and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return false, fmt.Errorf("store: hashing password: %w", err)
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "usuario"}}, DoNothing: true}).
		Create(&User{Username: username, PasswordHash: string(hash)})
	if res.Error != nil {
		return false, fmt.Errorf("%w: creating account: %w", ErrStorage, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Authenticate reports whether password matches the account's hash.
// Unknown usernames authenticate as false without error.
func (s *Store) Authenticate(ctx context.Context, username, password string) (bool, error) {
	var u User
	err := s.db.WithContext(ctx).Where("usuario = ?", username).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: looking up account: %w", ErrStorage, err)
	}

	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil, nil
}

// AccountExists reports whether username has an account.
func (s *Store) AccountExists(ctx context.Context, username string) (bool, error) {
	return accountExists(s.db.WithContext(ctx), username)
}

func accountExists(db *gorm.DB, username string) (bool, error) {
	var n int64
	if err := db.Model(&User{}).Where("usuario = ?", username).Count(&n).Error; err != nil {
		return false, fmt.Errorf("%w: looking up account: %w", ErrStorage, err)
	}
	return n > 0, nil
}
