package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	jwtExpiry        = 7 * 24 * time.Hour
	bcryptCost       = 12
	minPasswordLen   = 4
	minUsernameLen   = 2
	maxUsernameLen   = 16
	loginRateWindow  = 60 * time.Second
	maxLoginAttempts = 10
)

var (
	ErrBadCredentials = errors.New("invalid username or password")
	ErrLoginRate      = errors.New("too many login attempts, try again later")
	ErrUsernameTaken  = errors.New("username already taken")
	ErrInvalidToken   = errors.New("invalid token")
)

// Auth handles account registration and tokens. Each user owns one
// ledger account, and tokens carry its key.
type Auth struct {
	db        *DB
	jwtSecret []byte

	rateMu  sync.Mutex
	rateMap map[string]*rateEntry
}

type rateEntry struct {
	Count   int
	ResetAt time.Time
}

// NewAuth creates an Auth handler. An empty secret is loaded from or
// persisted to the settings table.
func NewAuth(db *DB, secret string) *Auth {
	var key []byte
	if secret != "" {
		key = []byte(secret)
	} else {
		key = loadOrCreateSecret(db)
	}
	return &Auth{
		db:        db,
		jwtSecret: key,
		rateMap:   make(map[string]*rateEntry),
	}
}

func loadOrCreateSecret(db *DB) []byte {
	if h := db.GetSetting("jwt_secret"); h != "" {
		if b, err := hex.DecodeString(h); err == nil && len(b) == 32 {
			return b
		}
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic("failed to generate JWT secret: " + err.Error())
	}
	if err := db.SetSetting("jwt_secret", hex.EncodeToString(secret)); err != nil {
		Log.Warnw("could not persist JWT secret", "err", err)
	}
	return secret
}

// Register creates a user with a fresh ledger account
func (a *Auth) Register(username, password string) (Account, string, error) {
	username = strings.TrimSpace(username)
	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return Account{}, "", fmt.Errorf("username must be %d-%d characters", minUsernameLen, maxUsernameLen)
	}
	if len(password) < minPasswordLen {
		return Account{}, "", fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}

	exists, err := a.db.UsernameExists(username)
	if err != nil {
		return Account{}, "", fmt.Errorf("check username: %w", err)
	}
	if exists {
		return Account{}, "", ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return Account{}, "", fmt.Errorf("hash password: %w", err)
	}

	acct, err := a.db.GetOrCreate("user-"+GenerateUUID(), username)
	if err != nil {
		return Account{}, "", err
	}
	if _, err := a.db.CreateUser(username, string(hash), acct.Key); err != nil {
		return Account{}, "", fmt.Errorf("create user: %w", err)
	}

	token, err := a.generateToken(acct.Key, username)
	if err != nil {
		return Account{}, "", err
	}
	Log.Infow("account registered", "user", username, "key", acct.Key)
	return acct, token, nil
}

// Login checks credentials and returns a fresh token
func (a *Auth) Login(username, password, ip string) (Account, string, error) {
	if !a.checkRate(ip) {
		return Account{}, "", ErrLoginRate
	}

	u, err := a.db.GetUserByUsername(username)
	if err != nil {
		return Account{}, "", fmt.Errorf("lookup user: %w", err)
	}
	if u == nil {
		return Account{}, "", ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PassHash), []byte(password)); err != nil {
		return Account{}, "", ErrBadCredentials
	}

	acct, err := a.db.GetOrCreate(u.AccountKey, u.Username)
	if err != nil {
		return Account{}, "", err
	}
	token, err := a.generateToken(acct.Key, u.Username)
	if err != nil {
		return Account{}, "", err
	}
	return acct, token, nil
}

// ValidateToken returns the account key and username carried by a token
func (a *Auth) ValidateToken(tokenStr string) (string, string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", ErrInvalidToken
	}
	key, ok := claims["key"].(string)
	if !ok || key == "" {
		return "", "", ErrInvalidToken
	}
	username, ok := claims["usr"].(string)
	if !ok {
		return "", "", ErrInvalidToken
	}
	return key, username, nil
}

func (a *Auth) generateToken(key, username string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"key": key,
		"usr": username,
		"exp": now.Add(jwtExpiry).Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(a.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

func (a *Auth) checkRate(ip string) bool {
	a.rateMu.Lock()
	defer a.rateMu.Unlock()

	now := time.Now()
	entry, ok := a.rateMap[ip]
	if !ok || now.After(entry.ResetAt) {
		a.rateMap[ip] = &rateEntry{Count: 1, ResetAt: now.Add(loginRateWindow)}
		return true
	}
	entry.Count++
	return entry.Count <= maxLoginAttempts
}

// GuestKey returns a new ledger key for an unauthenticated player
func GuestKey() string {
	return "guest-" + GenerateUUID()
}
