// Package identity verifies the opaque tokens presented by callers and
// resolves them to a principal id and role. Token issuance belongs to the
// marketplace's auth service; this package only consumes its tokens.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tradiehub/messaging-api/internal/normalize"
)

// ErrInvalidToken is returned when a token cannot be resolved to a live principal.
var ErrInvalidToken = errors.New("invalid token")

// Principal is the verified caller identity attached to every request.
type Principal struct {
	ID   string
	Role string
}

// Claims is the JWT payload shared with the issuing auth service.
type Claims struct {
	PrincipalID          string `json:"principal_id"`
	Role                 string `json:"role"`
	jwt.RegisteredClaims        // ExpiresAt, IssuedAt, etc.
}

// Verifier validates JWT tokens. It supports either a single shared secret
// or a set of keyed secrets so the issuer can rotate keys without
// invalidating outstanding tokens.
type Verifier struct {
	secretKey string
	keys      map[string]string // kid -> secret
	activeKid string
	duration  time.Duration
}

// NewVerifier returns a Verifier using a single shared secret.
func NewVerifier(secretKey string, duration time.Duration) *Verifier {
	return &Verifier{secretKey: secretKey, duration: duration}
}

// NewVerifierFromKeys returns a Verifier that accepts tokens signed with any
// of the provided keys, selected by the token's kid header. activeKid names
// the key used when this process issues tokens (tests, tooling).
func NewVerifierFromKeys(keys map[string]string, activeKid string, duration time.Duration) *Verifier {
	return &Verifier{keys: keys, activeKid: activeKid, duration: duration}
}

// ParseKeys parses the kid:secret,kid2:secret2 format used by the JWT_KEYS
// environment variable.
func ParseKeys(raw string) (map[string]string, error) {
	keys := map[string]string{}
	for _, p := range strings.Split(raw, ",") {
		if p == "" {
			continue
		}
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid JWT_KEYS entry: %s", p)
		}
		keys[parts[0]] = parts[1]
	}
	if len(keys) == 0 {
		return nil, errors.New("JWT_KEYS is empty")
	}
	return keys, nil
}

// GenerateToken issues a signed token for a principal. The service itself
// never issues tokens to clients; this exists for tests and local tooling.
func (v *Verifier) GenerateToken(principalID, role string) (string, time.Time, error) {
	expiresAt := time.Now().Add(v.duration)
	claims := &Claims{
		PrincipalID: normalize.ID(principalID),
		Role:        role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	secret := v.secretKey
	if v.keys != nil {
		token.Header["kid"] = v.activeKid
		secret = v.keys[v.activeKid]
	}
	if secret == "" {
		return "", time.Time{}, errors.New("no signing key configured")
	}

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a token and returns the principal it carries.
func (v *Verifier) Verify(tokenString string) (*Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		if v.keys != nil {
			kid, _ := token.Header["kid"].(string)
			if secret, ok := v.keys[kid]; ok {
				return []byte(secret), nil
			}
			return nil, fmt.Errorf("unknown signing key id: %q", kid)
		}
		return []byte(v.secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	id := normalize.ID(claims.PrincipalID)
	if id == "" {
		return nil, fmt.Errorf("%w: missing principal id", ErrInvalidToken)
	}
	return &Principal{ID: id, Role: claims.Role}, nil
}
