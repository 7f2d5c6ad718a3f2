package controllers

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func getJWTSecret() string {
	secret := getenv("JWT_SECRET", "")
	if secret == "" {
		secret = getenv("VALERIA_JWT_SECRET", "")
	}
	if secret == "" {
		secret = "CHANGE_ME"
	}
	return secret
}

// signAccessToken emite o JWT de acesso do tenant.
// Claims: { "sub": <clientId>, "email": "...", "iat": ..., "exp": ... }
func signAccessToken(secret string, clientID int64, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   strconv.FormatInt(clientID, 10),
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// parseAccessToken valida assinatura e expiração e devolve o client id do "sub".
func parseAccessToken(tokenString string, secret string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return 0, err
	}
	if !token.Valid {
		return 0, fmt.Errorf("invalid token")
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid sub claim")
	}
	return id, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	s := getenv(k, "")
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
