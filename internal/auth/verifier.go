// Package auth provides JWT verification helpers.
package auth

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fieldcrm/internal/config"
)

// Verifier validates bearer tokens and extracts the caller's user id.
// Supports modes: dev (token is the numeric user id), hmac (HS256), jwks (RS256 from JWKS URL).
type Verifier struct {
	Mode       string
	HMACSecret []byte
	JWKSURL    string
	UserClaim  string
	http       *http.Client
	mu         sync.RWMutex
	keys       map[string]*rsa.PublicKey
	lastFetch  time.Time
	cacheTTL   time.Duration
}

type jwks struct {
	Keys []jwk `json:"keys"`
}
type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
	Alg string `json:"alg"`
}

// Principal is the identity carried by a verified token. The role is not trusted from
// tokens; callers resolve it from the user record.
type Principal struct {
	UserID int64
}

func NewVerifier(cfg config.Config) *Verifier {
	mode := cfg.AuthMode
	if mode == "" {
		mode = "dev"
	}
	claim := cfg.AuthUserClaim
	if claim == "" {
		claim = "sub"
	}
	return &Verifier{
		Mode:       mode,
		HMACSecret: []byte(cfg.AuthHMACSecret),
		JWKSURL:    cfg.AuthJWKSURL,
		UserClaim:  claim,
		http:       &http.Client{Timeout: 5 * time.Second},
		cacheTTL:   10 * time.Minute,
	}
}

func (v *Verifier) Verify(token string) (Principal, error) {
	if v.Mode == "dev" {
		id, err := strconv.ParseInt(strings.TrimSpace(token), 10, 64)
		if err != nil {
			return Principal{}, errors.New("invalid dev token; expected numeric user id")
		}
		return Principal{UserID: id}, nil
	}
	var opts []jwt.ParserOption
	var keyFn jwt.Keyfunc
	switch v.Mode {
	case "hmac":
		opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		keyFn = func(*jwt.Token) (any, error) { return v.HMACSecret, nil }
	case "jwks":
		opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
		keyFn = func(t *jwt.Token) (any, error) {
			kid, _ := t.Header["kid"].(string)
			return v.getRSAPublicKey(kid)
		}
	default:
		return Principal{}, errors.New("unsupported auth mode")
	}
	claims := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(token, claims, keyFn, opts...); err != nil {
		return Principal{}, err
	}
	id, err := userID(claims[v.UserClaim])
	if err != nil {
		return Principal{}, fmt.Errorf("claim %s: %w", v.UserClaim, err)
	}
	return Principal{UserID: id}, nil
}

// userID accepts the claim as a JSON string or number.
func userID(raw any) (int64, error) {
	switch x := raw.(type) {
	case string:
		return strconv.ParseInt(x, 10, 64)
	case float64:
		if x != float64(int64(x)) {
			return 0, errors.New("not an integer")
		}
		return int64(x), nil
	case json.Number:
		return x.Int64()
	case nil:
		return 0, errors.New("missing")
	}
	return 0, fmt.Errorf("unexpected type %T", raw)
}

// get RSAPublicKey from JWKS cache/fetch
func (v *Verifier) getRSAPublicKey(kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	stale := time.Since(v.lastFetch) > v.cacheTTL
	v.mu.RUnlock()
	if ok && !stale {
		return key, nil
	}
	if err := v.fetchJWKS(); err != nil {
		return nil, err
	}
	v.mu.RLock()
	key, ok = v.keys[kid]
	v.mu.RUnlock()
	if !ok {
		return nil, errors.New("kid not found in JWKS")
	}
	return key, nil
}

func (v *Verifier) fetchJWKS() error {
	if v.JWKSURL == "" {
		return errors.New("auth_jwks_url not set")
	}
	req, _ := http.NewRequest(http.MethodGet, v.JWKSURL, nil)
	resp, err := v.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks fetch: status %d", resp.StatusCode)
	}
	var j jwks
	if err := json.NewDecoder(resp.Body).Decode(&j); err != nil {
		return err
	}
	keys := map[string]*rsa.PublicKey{}
	for _, k := range j.Keys {
		if !strings.EqualFold(k.Kty, "RSA") {
			continue
		}
		pub, err := k.rsaKey()
		if err != nil {
			return fmt.Errorf("jwk %s: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}
	v.mu.Lock()
	v.keys = keys
	v.lastFetch = time.Now()
	v.mu.Unlock()
	return nil
}

func (k jwk) rsaKey() (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, err
	}
	// e is big-endian, typically 0x010001
	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() || e.Int64() < 2 {
		return nil, errors.New("bad exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: int(e.Int64())}, nil
}
