package models

import (
	"time"
)

// Kind of the token. Access and refresh tokens are never interchangeable
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

func (k TokenKind) Valid() bool {
	return k == TokenKindAccess || k == TokenKindRefresh
}

// Token issued by codec: value is the bearer material itself
type IssuedToken struct {
	Value     string
	Kind      TokenKind
	ExpiresAt time.Time
}

// Token pair issued by TokenManager on login or refresh
type TokenPair struct {
	Subject   string
	Access    IssuedToken
	Refresh   IssuedToken
	TokenType string
}

// Claims decoded from a signed token
type Claims struct {
	ID        string
	Subject   string
	Kind      TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time
}
