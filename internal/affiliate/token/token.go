package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"affinet/pkg/domain"
	dErrors "affinet/pkg/domain-errors"
)

// Claims carries the referring upline inside a signed referral token.
type Claims struct {
	Upline string `json:"upline"`
	jwt.RegisteredClaims
}

// Service signs and verifies referral tokens. Tokens are HMAC-signed and
// short-lived; the upline claim is the only payload.
type Service struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

const DefaultTTL = 30 * 24 * time.Hour

func NewService(signingKey string, issuer string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ttl:        ttl,
	}
}

// Issue returns a signed referral token naming upline as the referrer.
func (s *Service) Issue(upline domain.UIN, now time.Time) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Upline: upline.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})

	signed, err := tok.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign referral token")
	}
	return signed, nil
}

// Verify checks the signature and expiry and returns the upline UIN the
// token was issued for.
func (s *Service) Verify(tokenString string) (domain.UIN, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.UIN(""), dErrors.New(dErrors.CodeValidation, "referral token has expired")
		}
		return domain.UIN(""), dErrors.New(dErrors.CodeValidation, "invalid referral token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return domain.UIN(""), dErrors.New(dErrors.CodeValidation, "invalid referral token claims")
	}

	upline, err := domain.ParseUIN(claims.Upline)
	if err != nil {
		return domain.UIN(""), dErrors.New(dErrors.CodeValidation, "referral token names a malformed upline")
	}
	return upline, nil
}
