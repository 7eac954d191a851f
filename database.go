package main

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn         *sql.DB
	startBalance int
}

// UserRow is a registered login bound to a ledger account
type UserRow struct {
	ID         int64
	Username   string
	PassHash   string
	AccountKey string
	CreatedAt  time.Time
}

// OpenDB opens (or creates) the SQLite database. New accounts start with
// startBalance.
func OpenDB(path string, startBalance int) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection serialises writers and keeps :memory: databases shared
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn, startBalance: startBalance}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		key TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
		kills INTEGER NOT NULL DEFAULT 0,
		deaths INTEGER NOT NULL DEFAULT 0,
		wins INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		pass_hash TEXT NOT NULL,
		account_key TEXT NOT NULL REFERENCES accounts(key),
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_balance ON accounts(balance);
	`
	_, err := db.conn.Exec(schema)
	if err != nil {
		Log.Errorw("db migration failed", "err", err)
	}
	return err
}

// GetOrCreate returns the account for key, creating it with the start
// balance on first use
func (db *DB) GetOrCreate(key, name string) (Account, error) {
	_, err := db.conn.Exec(
		"INSERT INTO accounts (key, name, balance) VALUES (?, ?, ?) ON CONFLICT(key) DO NOTHING",
		key, name, db.startBalance,
	)
	if err != nil {
		return Account{}, fmt.Errorf("create account: %w", err)
	}
	return db.account(key)
}

func (db *DB) account(key string) (Account, error) {
	var a Account
	err := db.conn.QueryRow(
		"SELECT key, name, balance, kills, deaths, wins FROM accounts WHERE key = ?", key,
	).Scan(&a.Key, &a.Name, &a.Balance, &a.Kills, &a.Deaths, &a.Wins)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, fmt.Errorf("%w: %s", ErrUnknownAccount, key)
	}
	return a, err
}

// Balance returns the star balance of key
func (db *DB) Balance(key string) (int, error) {
	a, err := db.account(key)
	return a.Balance, err
}

// AddBalance adds delta to the balance, never going below zero
func (db *DB) AddBalance(key string, delta int) (int, error) {
	res, err := db.conn.Exec("UPDATE accounts SET balance = MAX(0, balance + ?) WHERE key = ?", delta, key)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAccount, key)
	}
	return db.Balance(key)
}

// ChargeEntry takes fee from the balance only if it is covered
func (db *DB) ChargeEntry(key string, fee int) (int, error) {
	res, err := db.conn.Exec(
		"UPDATE accounts SET balance = balance - ? WHERE key = ? AND balance >= ?", fee, key, fee,
	)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := db.account(key); err != nil {
			return 0, err
		}
		return 0, ErrInsufficientFunds
	}
	return db.Balance(key)
}

// Refund returns a previously charged fee
func (db *DB) Refund(key string, fee int) (int, error) {
	return db.AddBalance(key, fee)
}

func (db *DB) bump(column, key string) error {
	_, err := db.conn.Exec("UPDATE accounts SET "+column+" = "+column+" + 1 WHERE key = ?", key)
	return err
}

// RecordKill increments the kill counter
func (db *DB) RecordKill(key string) error { return db.bump("kills", key) }

// RecordDeath increments the death counter
func (db *DB) RecordDeath(key string) error { return db.bump("deaths", key) }

// RecordWin increments the win counter
func (db *DB) RecordWin(key string) error { return db.bump("wins", key) }

// Top returns the n richest accounts. n < 0 returns all.
func (db *DB) Top(n int) ([]Account, error) {
	rows, err := db.conn.Query(
		"SELECT key, name, balance, kills, deaths, wins FROM accounts ORDER BY balance DESC, kills DESC, key LIMIT ?", n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]Account, 0, max(n, 0))
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.Key, &a.Name, &a.Balance, &a.Kills, &a.Deaths, &a.Wins); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// CreateUser registers a login for an existing account
func (db *DB) CreateUser(username, passHash, accountKey string) (int64, error) {
	res, err := db.conn.Exec(
		"INSERT INTO users (username, pass_hash, account_key) VALUES (?, ?, ?)",
		username, passHash, accountKey,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetUserByUsername returns a user, or nil if none exists
func (db *DB) GetUserByUsername(username string) (*UserRow, error) {
	u := &UserRow{}
	err := db.conn.QueryRow(
		"SELECT id, username, pass_hash, account_key, created_at FROM users WHERE username = ?",
		username,
	).Scan(&u.ID, &u.Username, &u.PassHash, &u.AccountKey, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// UsernameExists checks if a username is taken
func (db *DB) UsernameExists(username string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM users WHERE username = ?", username).Scan(&count)
	return count > 0, err
}

// GetSetting returns a stored setting or ""
func (db *DB) GetSetting(key string) string {
	var v string
	if err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&v); err != nil {
		return ""
	}
	return v
}

// SetSetting stores a setting
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}
