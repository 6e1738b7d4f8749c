package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/meja-pos/api/internal/enum"
)

// DefaultTTL is used by GenerateToken when ttl is zero.
const DefaultTTL = 12 * time.Hour

// Claims identify a staff member. Sign-in happens upstream; this service
// only verifies the tokens it is handed.
type Claims struct {
	UserID       string `json:"user_id"`
	RestaurantID string `json:"restaurant_id"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	jwt.RegisteredClaims
}

// Staff is the identity carried in a token.
type Staff struct {
	UserID       string
	RestaurantID string
	Name         string
	Role         string
}

func GenerateToken(secret string, s Staff, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now()
	claims := Claims{
		UserID:       s.UserID,
		RestaurantID: s.RestaurantID,
		Name:         s.Name,
		Role:         s.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no user")
	}
	return claims, nil
}

// CanAccessRestaurant reports whether claims may act in restaurantID.
// Owners may act in any restaurant.
func (c *Claims) CanAccessRestaurant(restaurantID string) bool {
	return strings.EqualFold(c.Role, enum.RoleOwner) || c.RestaurantID == restaurantID
}
