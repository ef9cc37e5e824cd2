package filesystem

import (
	"crypto/hmac"
	"fmt"
	"net/url"
	"strconv"
	"time"

	stowrysign "github.com/sagarc03/stowry-go"

	"github.com/lines-of-codes/litestore"
)

// MaxExpires is the longest validity of a signed URL.
const MaxExpires = 7 * 24 * time.Hour

// presign returns the query that authorizes method on urlPath until now+expires.
func (k *Keyring) presign(method, urlPath string, now time.Time, expires time.Duration) url.Values {
	timestamp := now.Unix()
	seconds := int64(expires / time.Second)

	query := url.Values{}
	query.Set(stowrysign.StowryCredentialParam, k.active.AccessKey)
	query.Set(stowrysign.StowryDateParam, strconv.FormatInt(timestamp, 10))
	query.Set(stowrysign.StowryExpiresParam, strconv.FormatInt(seconds, 10))
	query.Set(stowrysign.StowrySignatureParam, stowrysign.Sign(k.active.SecretKey, method, urlPath, timestamp, seconds))
	return query
}

// Verify checks a signed request for method on urlPath at time now.
// Every failure wraps litestore.ErrUnauthorized.
func (k *Keyring) Verify(method, urlPath string, query url.Values, now time.Time) error {
	credential := query.Get(stowrysign.StowryCredentialParam)
	date := query.Get(stowrysign.StowryDateParam)
	expiresParam := query.Get(stowrysign.StowryExpiresParam)
	signature := query.Get(stowrysign.StowrySignatureParam)

	if credential == "" || date == "" || expiresParam == "" || signature == "" {
		return fmt.Errorf("missing required signature parameters: %w", litestore.ErrUnauthorized)
	}

	timestamp, err := strconv.ParseInt(date, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid date: %w", litestore.ErrUnauthorized)
	}

	expires, err := strconv.ParseInt(expiresParam, 10, 64)
	if err != nil || expires <= 0 || expires > int64(MaxExpires/time.Second) {
		return fmt.Errorf("invalid expires: must be between 1 and %d: %w", int64(MaxExpires/time.Second), litestore.ErrUnauthorized)
	}

	if now.Unix() > timestamp+expires {
		return fmt.Errorf("signature expired: %w", litestore.ErrUnauthorized)
	}

	secret, err := k.Lookup(credential)
	if err != nil {
		return err
	}

	expected := stowrysign.Sign(secret, method, urlPath, timestamp, expires)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("signature mismatch: %w", litestore.ErrUnauthorized)
	}

	return nil
}
