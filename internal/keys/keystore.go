package keys

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// keystoreFile is the on-disk JSON format for the encrypted admin seed.
type keystoreFile struct {
	Version       int       `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	Address       string    `json:"address"` // hex, for display without decrypting
	EncryptedSeed []byte    `json:"encrypted_seed"`
}

// Keystore manages encrypted key storage on disk.
type Keystore struct {
	path string
}

// NewKeystore creates a keystore that reads/writes to the given directory.
// The directory is created if it doesn't exist.
func NewKeystore(path string) (*Keystore, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &Keystore{path: path}, nil
}

// adminPath returns the file path of the admin key file.
func (ks *Keystore) adminPath() string {
	return filepath.Join(ks.path, "admin.key")
}

// Exists reports whether an admin key file is present.
func (ks *Keystore) Exists() bool {
	_, err := os.Stat(ks.adminPath())
	return err == nil
}

// Create encrypts and stores the admin seed. Fails if a key file
// already exists.
func (ks *Keystore) Create(seed, password []byte, params EncryptionParams) error {
	path := ks.adminPath()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("admin key file already exists at %s", path)
	}

	encrypted, err := Encrypt(seed, password, params)
	if err != nil {
		return fmt.Errorf("encrypt seed: %w", err)
	}

	addr, err := AdminAddressFromSeed(seed)
	if err != nil {
		return err
	}

	kf := keystoreFile{
		Version:       1,
		CreatedAt:     time.Now().UTC(),
		Address:       addr.String(),
		EncryptedSeed: encrypted,
	}

	data, err := json.MarshalIndent(&kf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal keystore: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write keystore: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("finalize keystore: %w", err)
	}
	return nil
}

// Load decrypts the admin key file and returns the seed bytes.
func (ks *Keystore) Load(password []byte) ([]byte, error) {
	kf, err := ks.readFile()
	if err != nil {
		return nil, err
	}

	seed, err := Decrypt(kf.EncryptedSeed, password)
	if err != nil {
		return nil, fmt.Errorf("decrypt admin key: %w", err)
	}
	return seed, nil
}

// Address returns the stored admin address without decrypting the seed.
func (ks *Keystore) Address() (string, error) {
	kf, err := ks.readFile()
	if err != nil {
		return "", err
	}
	return kf.Address, nil
}

func (ks *Keystore) readFile() (*keystoreFile, error) {
	data, err := os.ReadFile(ks.adminPath())
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}
	var kf keystoreFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse keystore: %w", err)
	}
	return &kf, nil
}
