package authority

import (
	"crypto/ed25519"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest accepted HS256 shared secret.
const MinSecretLength = 32

// Signer signs access token claims and supplies the key used to verify them.
type Signer interface {
	// Algorithm returns the JWS alg header value.
	Algorithm() string
	// Sign serialises claims as a compact JWS.
	Sign(claims Claims) (string, error)
	// Keyfunc resolves the verification key for a parsed token.
	Keyfunc() jwt.Keyfunc
	// VerificationKey is the key a third party needs to verify tokens.
	VerificationKey() any
}

// HMACSigner signs with HS256 and a shared secret.
type HMACSigner struct {
	secret []byte
}

// NewHMACSigner returns an HS256 signer. The secret must be at least
// MinSecretLength bytes.
func NewHMACSigner(secret []byte) (*HMACSigner, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: hs256 secret must be at least %d bytes", ErrWeakSigningKey, MinSecretLength)
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &HMACSigner{secret: key}, nil
}

// Algorithm returns "HS256".
func (s *HMACSigner) Algorithm() string {
	return jwt.SigningMethodHS256.Alg()
}

// Sign serialises claims.
func (s *HMACSigner) Sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Keyfunc returns the shared secret for HS256 tokens.
func (s *HMACSigner) Keyfunc() jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}
}

// VerificationKey returns the shared secret.
func (s *HMACSigner) VerificationKey() any {
	return s.secret
}

// Ed25519Signer signs with EdDSA so that the public key alone verifies tokens.
type Ed25519Signer struct {
	private ed25519.PrivateKey
	public  ed25519.PublicKey
}

// NewEd25519Signer derives a key pair from a 32 byte seed.
func NewEd25519Signer(seed []byte) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: ed25519 seed must be %d bytes", ErrWeakSigningKey, ed25519.SeedSize)
	}
	private := ed25519.NewKeyFromSeed(seed)
	return &Ed25519Signer{private: private, public: private.Public().(ed25519.PublicKey)}, nil
}

// Algorithm returns "EdDSA".
func (s *Ed25519Signer) Algorithm() string {
	return jwt.SigningMethodEdDSA.Alg()
}

// Sign serialises claims.
func (s *Ed25519Signer) Sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(s.private)
}

// Keyfunc returns the public key for EdDSA tokens.
func (s *Ed25519Signer) Keyfunc() jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.public, nil
	}
}

// VerificationKey returns the ed25519 public key.
func (s *Ed25519Signer) VerificationKey() any {
	return s.public
}

var (
	_ Signer = (*HMACSigner)(nil)
	_ Signer = (*Ed25519Signer)(nil)
)
