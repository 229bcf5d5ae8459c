package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt cost factor (12 is a good balance of security and performance)
const bcryptCost = 12

// ErrAccountNotFound is returned when an account lookup fails.
var ErrAccountNotFound = errors.New("account not found")

// ErrAccountExists is returned when trying to create a duplicate account.
var ErrAccountExists = errors.New("account already exists")

// ErrInvalidCredentials is returned when login credentials are incorrect.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrAccountBanned is returned when a banned account tries to login.
var ErrAccountBanned = errors.New("account is banned")

// Account represents a user account.
type Account struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	LastLogin    *time.Time
	LastIP       string
	Banned       bool
	IsAdmin      bool
}

// CreateAccount creates a new account with the given username and password.
// The password is hashed with bcrypt before storage.
func (d *Database) CreateAccount(username, password string) (*Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	query := d.qb.BuildWithReturning(
		"INSERT INTO accounts (username, password_hash) VALUES (?, ?)", "id")

	var id int64
	if d.dialect.SupportsLastInsertID() {
		result, err := d.db.Exec(query, username, string(hash))
		if err != nil {
			if d.dialect.IsDuplicateKeyError(err) {
				return nil, ErrAccountExists
			}
			return nil, fmt.Errorf("failed to create account: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to get account ID: %w", err)
		}
	} else {
		if err := d.db.QueryRow(query, username, string(hash)).Scan(&id); err != nil {
			if d.dialect.IsDuplicateKeyError(err) {
				return nil, ErrAccountExists
			}
			return nil, fmt.Errorf("failed to create account: %w", err)
		}
	}

	return &Account{
		ID:           id,
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}, nil
}

// ValidateLogin checks the username and password, records the login time and
// IP on success, and returns the account. Banned accounts cannot log in.
func (d *Database) ValidateLogin(username, password, ipAddress string) (*Account, error) {
	account, err := d.GetAccountByUsername(username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if account.Banned {
		return nil, ErrAccountBanned
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	// Best effort; a failed timestamp update shouldn't block the login.
	_ = d.UpdateLastLoginAndIP(account.ID, ipAddress)

	return account, nil
}

// GetAccountByUsername retrieves an account by username (case-insensitive).
func (d *Database) GetAccountByUsername(username string) (*Account, error) {
	var account Account
	var lastLogin sql.NullTime
	var lastIP sql.NullString
	var banned int
	var isAdmin int

	query := d.qb.Build(
		"SELECT id, username, password_hash, created_at, last_login, last_ip, banned, is_admin FROM accounts WHERE username = ?")

	err := d.db.QueryRow(query, username).Scan(
		&account.ID, &account.Username, &account.PasswordHash, &account.CreatedAt,
		&lastLogin, &lastIP, &banned, &isAdmin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if lastLogin.Valid {
		account.LastLogin = &lastLogin.Time
	}
	if lastIP.Valid {
		account.LastIP = lastIP.String
	}
	account.Banned = banned != 0
	account.IsAdmin = isAdmin != 0

	return &account, nil
}

// AccountExists reports whether a username is already taken.
func (d *Database) AccountExists(username string) (bool, error) {
	var count int
	query := d.qb.Build("SELECT COUNT(*) FROM accounts WHERE username = ?")
	if err := d.db.QueryRow(query, username).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check account: %w", err)
	}
	return count > 0, nil
}

// UpdateLastLoginAndIP updates the last_login timestamp and IP for an account.
func (d *Database) UpdateLastLoginAndIP(accountID int64, ipAddress string) error {
	query := d.qb.Build(
		"UPDATE accounts SET last_login = CURRENT_TIMESTAMP, last_ip = ? WHERE id = ?")
	if _, err := d.db.Exec(query, ipAddress, accountID); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// UpdatePassword replaces the account's password after verifying the old one.
func (d *Database) UpdatePassword(accountID int64, oldPassword, newPassword string) error {
	var hash string
	query := d.qb.Build("SELECT password_hash FROM accounts WHERE id = ?")
	if err := d.db.QueryRow(query, accountID).Scan(&hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("failed to get account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(oldPassword)); err != nil {
		return ErrInvalidCredentials
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	query = d.qb.Build("UPDATE accounts SET password_hash = ? WHERE id = ?")
	if _, err := d.db.Exec(query, string(newHash), accountID); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// SetBanned sets or clears the banned flag on an account.
func (d *Database) SetBanned(accountID int64, banned bool) error {
	value := 0
	if banned {
		value = 1
	}
	query := d.qb.Build("UPDATE accounts SET banned = ? WHERE id = ?")
	if _, err := d.db.Exec(query, value, accountID); err != nil {
		return fmt.Errorf("failed to update banned flag: %w", err)
	}
	return nil
}

// SetAdmin sets or clears the admin flag on an account.
func (d *Database) SetAdmin(accountID int64, isAdmin bool) error {
	value := 0
	if isAdmin {
		value = 1
	}
	query := d.qb.Build("UPDATE accounts SET is_admin = ? WHERE id = ?")
	if _, err := d.db.Exec(query, value, accountID); err != nil {
		return fmt.Errorf("failed to update admin flag: %w", err)
	}
	return nil
}
