package account

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

var validID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Keystore stores encrypted keys as <dir>/<id>.json in the Web3 secret
// storage format.
type Keystore struct {
	dir    string
	scrypt struct{ n, p int }
}

// KeystoreOption configures a Keystore.
type KeystoreOption func(*Keystore)

// WithLightScrypt trades brute force resistance for speed. Tests only.
func WithLightScrypt() KeystoreOption {
	return func(k *Keystore) {
		k.scrypt.n, k.scrypt.p = keystore.LightScryptN, keystore.LightScryptP
	}
}

// NewKeystore creates a keystore rooted at dir.
func NewKeystore(dir string, opts ...KeystoreOption) *Keystore {
	k := &Keystore{dir: dir}
	k.scrypt.n, k.scrypt.p = keystore.StandardScryptN, keystore.StandardScryptP
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Entry is one stored account.
type Entry struct {
	ID      string
	Address common.Address
}

// Path returns the file backing id.
func (k *Keystore) Path(id string) string {
	return filepath.Join(k.dir, id+".json")
}

// List returns the stored accounts sorted by id. A missing directory is empty.
func (k *Keystore) List() ([]Entry, error) {
	files, err := os.ReadDir(k.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}

	var entries []Entry
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(k.dir, f.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name(), err)
		}
		var head struct {
			Address string `json:"address"`
		}
		if err := json.Unmarshal(data, &head); err != nil || !common.IsHexAddress(head.Address) {
			continue
		}
		entries = append(entries, Entry{
			ID:      strings.TrimSuffix(f.Name(), ".json"),
			Address: common.HexToAddress(head.Address),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

// Load decrypts the account stored under id.
func (k *Keystore) Load(id, password string) (*Account, error) {
	if !validID.MatchString(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAccountID, id)
	}
	data, err := os.ReadFile(k.Path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read keystore file: %w", err)
	}

	key, err := keystore.DecryptKey(data, password)
	if err != nil {
		return nil, fmt.Errorf("decrypt %s: %w", id, err)
	}
	return FromKey(key.PrivateKey, "keystore:"+id), nil
}

// New generates a fresh key and stores it under id.
func (k *Keystore) New(id, password string) (*Account, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return k.save(id, key, password)
}

// Import stores an existing hex private key under id.
func (k *Keystore) Import(id, hexKey, password string) (*Account, error) {
	a, err := FromHex(hexKey, "")
	if err != nil {
		return nil, err
	}
	return k.save(id, a.key, password)
}

func (k *Keystore) save(id string, priv *ecdsa.PrivateKey, password string) (*Account, error) {
	if !validID.MatchString(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAccountID, id)
	}
	path := k.Path(id)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountExists, id)
	}

	key := &keystore.Key{
		Id:         uuid.New(),
		Address:    crypto.PubkeyToAddress(priv.PublicKey),
		PrivateKey: priv,
	}
	data, err := keystore.EncryptKey(key, password, k.scrypt.n, k.scrypt.p)
	if err != nil {
		return nil, fmt.Errorf("encrypt key: %w", err)
	}

	if err := os.MkdirAll(k.dir, 0o700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("write keystore file: %w", err)
	}
	return FromKey(priv, "keystore:"+id), nil
}
