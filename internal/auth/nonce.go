package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"time"
)

// NonceLifetime is the tick length for checkout nonces. A nonce verifies
// during its own tick and the next one, so it lives between one and two ticks.
const NonceLifetime = 12 * time.Hour

// nonceLength is the number of hex characters kept from the MAC.
const nonceLength = 20

// NonceService issues stateless, action-bound nonces. Each is an HMAC of the
// action and the current time tick, so nothing needs storing server-side.
type NonceService struct {
	secret []byte
	now    func() time.Time
}

// NewNonceService creates a NonceService keyed by secret.
func NewNonceService(secret string) *NonceService {
	return &NonceService{secret: []byte(secret), now: time.Now}
}

// Issue returns a nonce for action, valid for up to two ticks.
func (s *NonceService) Issue(action string) string {
	return s.compute(action, s.tick())
}

// Verify reports whether nonce was issued for action in this tick or the previous one.
func (s *NonceService) Verify(action, nonce string) bool {
	if len(s.secret) == 0 || len(nonce) != nonceLength {
		return false
	}
	tick := s.tick()
	for _, t := range []int64{tick, tick - 1} {
		if subtle.ConstantTimeCompare([]byte(s.compute(action, t)), []byte(nonce)) == 1 {
			return true
		}
	}
	return false
}

func (s *NonceService) tick() int64 {
	return s.now().Unix() / int64(NonceLifetime/time.Second)
}

func (s *NonceService) compute(action string, tick int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(action))
	mac.Write([]byte{0})
	mac.Write([]byte(strconv.FormatInt(tick, 10)))
	return hex.EncodeToString(mac.Sum(nil))[:nonceLength]
}
