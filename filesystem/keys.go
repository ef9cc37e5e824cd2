package filesystem

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/lines-of-codes/litestore"
)

// ErrKeyNotFound is returned when the access key of a signed URL is unknown.
var ErrKeyNotFound = errors.New("access key not found")

// KeyPair is an access key and the secret used to sign URLs with it.
type KeyPair struct {
	AccessKey string `json:"access_key" mapstructure:"access_key"`
	SecretKey string `json:"secret_key" mapstructure:"secret_key"`
}

// KeysConfig lists the signing keys of the local backend. The first inline
// key, or else the first key in File, signs new URLs; all keys verify.
type KeysConfig struct {
	Inline []KeyPair `mapstructure:"inline"`
	File   string    `mapstructure:"file"`
}

// LoadKeysFromFile reads a JSON array of key pairs:
//
//	[{"access_key": "local", "secret_key": "..."}]
func LoadKeysFromFile(path string) ([]KeyPair, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is from trusted config file
	if err != nil {
		return nil, fmt.Errorf("read keys file: %w", err)
	}

	var pairs []KeyPair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("parse keys file: %w", err)
	}

	return pairs, nil
}

// Keyring signs URLs with one active key and verifies them against all keys,
// so old keys can be retired without breaking URLs already handed out.
type Keyring struct {
	active  KeyPair
	secrets map[string]string
}

// NewKeyring builds a keyring from inline keys and the keys file. Pairs with
// an empty half are skipped. File keys win over inline keys with the same
// access key.
func NewKeyring(cfg KeysConfig) (*Keyring, error) {
	pairs := append([]KeyPair(nil), cfg.Inline...)

	if cfg.File != "" {
		fileKeys, err := LoadKeysFromFile(cfg.File)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, fileKeys...)
	}

	k := &Keyring{secrets: make(map[string]string, len(pairs))}
	for _, p := range pairs {
		if p.AccessKey == "" || p.SecretKey == "" {
			continue
		}
		if k.active.AccessKey == "" {
			k.active = p
		}
		k.secrets[p.AccessKey] = p.SecretKey
	}

	if k.active.AccessKey == "" {
		return nil, errors.New("new keyring: at least one signing key is required")
	}
	if secret := k.secrets[k.active.AccessKey]; secret != k.active.SecretKey {
		k.active.SecretKey = secret
	}

	return k, nil
}

// Lookup returns the secret of accessKey.
func (k *Keyring) Lookup(accessKey string) (string, error) {
	secret, found := k.secrets[accessKey]
	if !found {
		return "", fmt.Errorf("%w: %w", ErrKeyNotFound, litestore.ErrUnauthorized)
	}
	return secret, nil
}

// ActiveKey returns the access key that signs new URLs.
func (k *Keyring) ActiveKey() string {
	return k.active.AccessKey
}
