// Package secret implements the encrypted profile store: a passphrase
// protected file of connection profiles, one AES-256-CBC record per
// profile with a per-record salt and IV. The store never logs plaintext
// or key material, and a record that fails to decrypt is reported as
// unreadable rather than silently dropped from listings.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/scrypt"

	"github.com/justapithecus/strata/errs"
	"github.com/justapithecus/strata/types"
)

const (
	scryptN      = 1 << 14
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 16
	ivLen        = 16
)

// Profile is the plaintext shape of a single stored record.
type Profile struct {
	ID          string          `json:"id"`
	Scheme      types.Scheme    `json:"scheme"`
	DisplayName string          `json:"displayName"`
	Enabled     bool            `json:"enabled"`
	Cred        types.Credential `json:"cred"`
	Settings    map[string]string `json:"settings,omitempty"`
	Version     int             `json:"version"`
}

// record is the on-disk JSON layout: a salt and IV in hex plus the AES
// ciphertext of the UTF-8 JSON Profile, also in hex.
type record struct {
	Salt   string `json:"salt"`
	IV     string `json:"iv"`
	Cipher string `json:"cipher"`
}

// Store persists one encrypted record per profile under Dir, named
// "<profileID>.json". Every call derives its own key from Passphrase and
// the record's embedded salt; KeyCache, when set, additionally caches the
// derived key for the most recently used passphrase+salt pair so repeated
// calls against the same profile don't repeat the (deliberately slow)
// scrypt derivation.
type Store struct {
	Dir        string
	Passphrase string

	mu       sync.Mutex
	cacheKey string
	cacheVal []byte
}

// NewStore returns a Store rooted at dir, creating the directory if it
// does not already exist.
func NewStore(dir, passphrase string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errs.Wrap(err, "secretStoreInit", dir)
	}
	return &Store{Dir: dir, Passphrase: passphrase}, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.Dir, id+".json")
}

// Save encrypts p and atomically writes it to disk, replacing any
// existing record for the same ID.
func (s *Store) Save(p Profile) error {
	plaintext, err := json.Marshal(p)
	if err != nil {
		return errs.Wrap(err, "secretSave", p.ID)
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return errs.Wrap(err, "secretSave", p.ID)
	}
	iv := make([]byte, ivLen)
	if _, err := rand.Read(iv); err != nil {
		return errs.Wrap(err, "secretSave", p.ID)
	}

	key, err := s.derive(salt)
	if err != nil {
		return errs.Wrap(err, "secretSave", p.ID)
	}

	ciphertext, err := encryptCBC(key, iv, plaintext)
	if err != nil {
		return errs.Wrap(err, "secretSave", p.ID)
	}

	rec := record{Salt: hex.EncodeToString(salt), IV: hex.EncodeToString(iv), Cipher: hex.EncodeToString(ciphertext)}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errs.Wrap(err, "secretSave", p.ID)
	}

	tmp := s.path(p.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errs.Wrap(err, "secretSave", p.ID)
	}
	if err := os.Rename(tmp, s.path(p.ID)); err != nil {
		os.Remove(tmp)
		return errs.Wrap(err, "secretSave", p.ID)
	}
	return nil
}

// Load decrypts and returns the profile stored under id. A missing file
// surfaces as errs.KindNotFound; a file that exists but fails to decrypt
// (wrong passphrase, truncated ciphertext) surfaces as errs.KindInternal
// with the hint "unreadable" rather than being silently skipped.
func (s *Store) Load(id string) (Profile, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return Profile{}, errs.New(errs.KindNotFound, "secretLoad", id, err)
		}
		return Profile{}, errs.Wrap(err, "secretLoad", id)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Profile{}, unreadable(id, err)
	}

	salt, err := hex.DecodeString(rec.Salt)
	if err != nil {
		return Profile{}, unreadable(id, err)
	}
	iv, err := hex.DecodeString(rec.IV)
	if err != nil {
		return Profile{}, unreadable(id, err)
	}
	ciphertext, err := hex.DecodeString(rec.Cipher)
	if err != nil {
		return Profile{}, unreadable(id, err)
	}

	key, err := s.derive(salt)
	if err != nil {
		return Profile{}, unreadable(id, err)
	}

	plaintext, err := decryptCBC(key, iv, ciphertext)
	if err != nil {
		return Profile{}, unreadable(id, err)
	}

	var p Profile
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return Profile{}, unreadable(id, err)
	}
	return p, nil
}

// Status reports whether a stored profile currently decrypts.
type Status struct {
	ID         string
	Unreadable bool
}

// List enumerates every record under Dir, reporting each one's status
// without failing the whole call when one record is unreadable.
func (s *Store) List() ([]Status, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, errs.Wrap(err, "secretList", s.Dir)
	}

	var statuses []Status
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		id := entry.Name()[:len(entry.Name())-len(".json")]
		_, err := s.Load(id)
		statuses = append(statuses, Status{ID: id, Unreadable: err != nil && errs.KindOf(err) != errs.KindNotFound})
	}
	return statuses, nil
}

// Delete removes the record for id. Deleting an absent record is not an
// error.
func (s *Store) Delete(id string) error {
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(err, "secretDelete", id)
	}
	return nil
}

func unreadable(id string, cause error) error {
	e := errs.New(errs.KindInternal, "secretLoad", id, cause)
	e.Hint = "unreadable"
	return e
}

func (s *Store) derive(salt []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cacheKey := hex.EncodeToString(salt)
	if cacheKey == s.cacheKey && s.cacheVal != nil {
		return s.cacheVal, nil
	}

	key, err := scrypt.Key([]byte(s.Passphrase), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, err
	}
	s.cacheKey = cacheKey
	s.cacheVal = key
	return key, nil
}

func encryptCBC(key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plaintext, block.BlockSize())
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return ciphertext, nil
}

func decryptCBC(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("ciphertext is not a multiple of the block size")
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return pkcs7Unpad(plaintext)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := make([]byte, padLen)
	for i := range padding {
		padding[i] = byte(padLen)
	}
	return append(data, padding...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty plaintext")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, fmt.Errorf("invalid padding")
	}
	return data[:len(data)-padLen], nil
}
