package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"parkadmin/internal/domain"
)

// Claims are the parts of a backend token the dashboard reads. The
// signature is not verified; the claims gate navigation only
type Claims struct {
	Subject   string
	UserID    string
	Scopes    []string
	ExpiresAt time.Time
}

// ParseClaims decodes token without verifying it
func ParseClaims(token string) (Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return Claims{}, fmt.Errorf("session: decode token: %w", err)
	}

	var c Claims
	c.Subject, _ = mc.GetSubject()
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}

	switch v := mc["userId"].(type) {
	case string:
		c.UserID = v
	case float64:
		c.UserID = strconv.FormatFloat(v, 'f', -1, 64)
	}
	if c.UserID == "" {
		c.UserID = c.Subject
	}

	switch v := mc["scope"].(type) {
	case string:
		c.Scopes = strings.Fields(v)
	case []any:
		for _, s := range v {
			if s, ok := s.(string); ok {
				c.Scopes = append(c.Scopes, s)
			}
		}
	}
	return c, nil
}

// Role returns ADMIN or STAFF when the scope grants it, ADMIN winning, and
// "" for any other account
func (c Claims) Role() string {
	role := ""
	for _, scope := range c.Scopes {
		switch strings.TrimPrefix(strings.ToUpper(scope), "ROLE_") {
		case domain.RoleAdmin:
			return domain.RoleAdmin
		case domain.RoleStaff:
			role = domain.RoleStaff
		}
	}
	return role
}
