package database

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() returned error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateAccount(t *testing.T) {
	db := openTestDB(t)

	account, err := db.CreateAccount("alice", "hunter22")
	if err != nil {
		t.Fatalf("CreateAccount() returned error: %v", err)
	}
	if account.ID == 0 {
		t.Error("CreateAccount() returned zero ID")
	}
	if account.Username != "alice" {
		t.Errorf("username = %q, expected %q", account.Username, "alice")
	}
}

func TestCreateAccountDuplicate(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.CreateAccount("alice", "hunter22"); err != nil {
		t.Fatalf("CreateAccount() returned error: %v", err)
	}
	if _, err := db.CreateAccount("alice", "other"); !errors.Is(err, ErrAccountExists) {
		t.Errorf("duplicate CreateAccount() error = %v, expected ErrAccountExists", err)
	}
	// Usernames are case-insensitive.
	if _, err := db.CreateAccount("ALICE", "other"); !errors.Is(err, ErrAccountExists) {
		t.Errorf("case-variant CreateAccount() error = %v, expected ErrAccountExists", err)
	}
}

func TestCreateAccountEmptyUsername(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.CreateAccount("   ", "hunter22"); err == nil {
		t.Error("CreateAccount() accepted blank username, expected error")
	}
}

func TestValidateLogin(t *testing.T) {
	db := openTestDB(t)

	created, err := db.CreateAccount("bob", "correcthorse")
	if err != nil {
		t.Fatalf("CreateAccount() returned error: %v", err)
	}

	account, err := db.ValidateLogin("bob", "correcthorse", "10.0.0.1")
	if err != nil {
		t.Fatalf("ValidateLogin() returned error: %v", err)
	}
	if account.ID != created.ID {
		t.Errorf("account ID = %d, expected %d", account.ID, created.ID)
	}

	// Login updates last_login and last_ip.
	refreshed, err := db.GetAccountByUsername("bob")
	if err != nil {
		t.Fatalf("GetAccountByUsername() returned error: %v", err)
	}
	if refreshed.LastLogin == nil {
		t.Error("last_login not set after login")
	}
	if refreshed.LastIP != "10.0.0.1" {
		t.Errorf("last_ip = %q, expected %q", refreshed.LastIP, "10.0.0.1")
	}
}

func TestValidateLoginWrongPassword(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.CreateAccount("bob", "correcthorse"); err != nil {
		t.Fatalf("CreateAccount() returned error: %v", err)
	}

	if _, err := db.ValidateLogin("bob", "wrong", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v, expected ErrInvalidCredentials", err)
	}
	if _, err := db.ValidateLogin("nobody", "whatever", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user error = %v, expected ErrInvalidCredentials", err)
	}
}

func TestValidateLoginBanned(t *testing.T) {
	db := openTestDB(t)

	account, err := db.CreateAccount("mallory", "password123")
	if err != nil {
		t.Fatalf("CreateAccount() returned error: %v", err)
	}
	if err := db.SetBanned(account.ID, true); err != nil {
		t.Fatalf("SetBanned() returned error: %v", err)
	}

	if _, err := db.ValidateLogin("mallory", "password123", ""); !errors.Is(err, ErrAccountBanned) {
		t.Errorf("banned login error = %v, expected ErrAccountBanned", err)
	}

	if err := db.SetBanned(account.ID, false); err != nil {
		t.Fatalf("SetBanned() returned error: %v", err)
	}
	if _, err := db.ValidateLogin("mallory", "password123", ""); err != nil {
		t.Errorf("unbanned login returned error: %v", err)
	}
}

func TestSetAdmin(t *testing.T) {
	db := openTestDB(t)

	account, err := db.CreateAccount("carol", "password123")
	if err != nil {
		t.Fatalf("CreateAccount() returned error: %v", err)
	}
	if account.IsAdmin {
		t.Error("new account is admin by default")
	}

	if err := db.SetAdmin(account.ID, true); err != nil {
		t.Fatalf("SetAdmin() returned error: %v", err)
	}
	refreshed, err := db.GetAccountByUsername("carol")
	if err != nil {
		t.Fatalf("GetAccountByUsername() returned error: %v", err)
	}
	if !refreshed.IsAdmin {
		t.Error("is_admin not set after SetAdmin")
	}
}

func TestUpdatePassword(t *testing.T) {
	db := openTestDB(t)

	account, err := db.CreateAccount("dave", "oldpassword")
	if err != nil {
		t.Fatalf("CreateAccount() returned error: %v", err)
	}

	if err := db.UpdatePassword(account.ID, "wrong", "newpassword"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("UpdatePassword with wrong old password error = %v, expected ErrInvalidCredentials", err)
	}

	if err := db.UpdatePassword(account.ID, "oldpassword", "newpassword"); err != nil {
		t.Fatalf("UpdatePassword() returned error: %v", err)
	}

	if _, err := db.ValidateLogin("dave", "oldpassword", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Error("old password still valid after update")
	}
	if _, err := db.ValidateLogin("dave", "newpassword", ""); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}

func TestRecordAndRecentRolls(t *testing.T) {
	db := openTestDB(t)

	account, err := db.CreateAccount("erin", "password123")
	if err != nil {
		t.Fatalf("CreateAccount() returned error: %v", err)
	}

	rolls := []struct {
		expr   string
		total  int
		blocks int
	}{
		{"4d6kh3r1", 15, 1},
		{"d20+5", 17, 1},
		{"2d6 + 1d4", 11, 2},
	}
	for _, r := range rolls {
		if err := db.RecordRoll(account.ID, r.expr, r.total, r.blocks); err != nil {
			t.Fatalf("RecordRoll(%q) returned error: %v", r.expr, err)
		}
	}

	records, err := db.RecentRolls(account.ID, 2)
	if err != nil {
		t.Fatalf("RecentRolls() returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("RecentRolls() returned %d records, expected 2", len(records))
	}
	// Newest first.
	if records[0].Expression != "2d6 + 1d4" {
		t.Errorf("first record = %q, expected %q", records[0].Expression, "2d6 + 1d4")
	}
	if records[0].Total != 11 || records[0].Blocks != 2 {
		t.Errorf("first record total/blocks = %d/%d, expected 11/2", records[0].Total, records[0].Blocks)
	}
}

func TestRecentRollsEmpty(t *testing.T) {
	db := openTestDB(t)

	account, err := db.CreateAccount("frank", "password123")
	if err != nil {
		t.Fatalf("CreateAccount() returned error: %v", err)
	}

	records, err := db.RecentRolls(account.ID, 10)
	if err != nil {
		t.Fatalf("RecentRolls() returned error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("RecentRolls() returned %d records, expected 0", len(records))
	}
}

func TestGetRollStats(t *testing.T) {
	db := openTestDB(t)

	account, err := db.CreateAccount("grace", "password123")
	if err != nil {
		t.Fatalf("CreateAccount() returned error: %v", err)
	}

	stats, err := db.GetRollStats(account.ID)
	if err != nil {
		t.Fatalf("GetRollStats() returned error: %v", err)
	}
	if stats.Count != 0 {
		t.Errorf("empty stats count = %d, expected 0", stats.Count)
	}

	totals := []int{10, 20, 6}
	for _, total := range totals {
		if err := db.RecordRoll(account.ID, "3d6", total, 1); err != nil {
			t.Fatalf("RecordRoll() returned error: %v", err)
		}
	}

	stats, err = db.GetRollStats(account.ID)
	if err != nil {
		t.Fatalf("GetRollStats() returned error: %v", err)
	}
	if stats.Count != 3 {
		t.Errorf("count = %d, expected 3", stats.Count)
	}
	if stats.Highest != 20 {
		t.Errorf("highest = %d, expected 20", stats.Highest)
	}
	if stats.Lowest != 6 {
		t.Errorf("lowest = %d, expected 6", stats.Lowest)
	}
	if stats.Average != 12 {
		t.Errorf("average = %f, expected 12", stats.Average)
	}
	if stats.LastRoll == nil {
		t.Error("last roll timestamp not set")
	}
}

func TestQueryBuilderPostgres(t *testing.T) {
	qb := NewQueryBuilder(&PostgresDialect{})

	got := qb.Build("SELECT id FROM accounts WHERE username = ? AND banned = ?")
	expected := "SELECT id FROM accounts WHERE username = $1 AND banned = $2"
	if got != expected {
		t.Errorf("Build() = %q, expected %q", got, expected)
	}

	got = qb.BuildWithReturning("INSERT INTO accounts (username) VALUES (?)", "id")
	expected = "INSERT INTO accounts (username) VALUES ($1) RETURNING id"
	if got != expected {
		t.Errorf("BuildWithReturning() = %q, expected %q", got, expected)
	}
}

func TestQueryBuilderSQLitePassthrough(t *testing.T) {
	qb := NewQueryBuilder(&SQLiteDialect{})

	query := "SELECT id FROM accounts WHERE username = ?"
	if got := qb.Build(query); got != query {
		t.Errorf("Build() = %q, expected passthrough %q", got, query)
	}
}
