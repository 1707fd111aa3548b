package credstore

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sethnakola1/healthcare-mvp-v2-sub000/identity"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const credentialsFilename = "hc_admin_credentials.json"

// hkdf context string; changing it invalidates previously written files.
const keyDerivationInfo = "healthcare-admin credential store v1"

var _ Store = (*FileStore)(nil)

// FileStore persists credentials as a single document under a state
// directory, written atomically (temp file + rename). With an encryption
// secret configured the document is sealed with XChaCha20-Poly1305 using an
// HKDF-derived key. Any storage failure flips the store into degraded
// in-memory mode; callers never see the error.
type FileStore struct {
	path   string
	logger zerolog.Logger

	cipherKey []byte // nil means plaintext storage

	mu       sync.Mutex
	doc      document
	degraded bool
}

type document struct {
	Credentials
	Identity *identity.Identity `json:"identity,omitempty"`
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithLogger sets the logger used to report storage failures.
func WithLogger(logger zerolog.Logger) FileStoreOption {
	return func(fs *FileStore) {
		fs.logger = logger
	}
}

// WithEncryptionSecret enables at-rest encryption of the credential file.
// The secret is stretched with HKDF-SHA256; an empty secret leaves the
// file in plaintext.
func WithEncryptionSecret(secret string) FileStoreOption {
	return func(fs *FileStore) {
		if secret == "" {
			return
		}
		key := make([]byte, chacha20poly1305.KeySize)
		kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(keyDerivationInfo))
		if _, err := io.ReadFull(kdf, key); err != nil {
			// ReadFull on hkdf only fails once the entropy pool is
			// exhausted, far beyond one key's worth.
			return
		}
		fs.cipherKey = key
	}
}

// NewFileStore opens (or creates) the credential file under dir and loads
// whatever is present. A dir that cannot be created yields a degraded,
// in-memory-only store.
func NewFileStore(dir string, options ...FileStoreOption) *FileStore {
	fs := &FileStore{
		path:   filepath.Join(dir, credentialsFilename),
		logger: zerolog.Nop(),
	}
	for _, opt := range options {
		opt(fs)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		fs.logger.Warn().Err(err).Str("dir", dir).Msg("credential store unavailable, using in-memory fallback")
		fs.degraded = true
		return fs
	}

	fs.doc = fs.read()
	return fs
}

// Degraded reports whether the store has fallen back to in-memory mode.
func (fs *FileStore) Degraded() bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.degraded
}

func (fs *FileStore) Save(accessToken, refreshToken string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.doc.Credentials = Credentials{AccessToken: accessToken, RefreshToken: refreshToken}
	fs.persist()
}

func (fs *FileStore) Load() Credentials {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.doc.Credentials
}

func (fs *FileStore) SaveIdentitySnapshot(id *identity.Identity) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if id == nil {
		fs.doc.Identity = nil
	} else {
		copied := *id
		fs.doc.Identity = &copied
	}
	fs.persist()
}

func (fs *FileStore) LoadIdentitySnapshot() *identity.Identity {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.doc.Identity == nil {
		return nil
	}
	copied := *fs.doc.Identity
	return &copied
}

func (fs *FileStore) Clear() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.doc = document{}
	if fs.degraded {
		return
	}
	if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
		fs.logger.Warn().Err(err).Msg("failed to remove credential file")
	}
}

// read loads the on-disk document. Missing or unreadable files are treated
// as absent credentials, never as an error.
func (fs *FileStore) read() document {
	raw, err := os.ReadFile(fs.path)
	if err != nil {
		if !os.IsNotExist(err) {
			fs.logger.Warn().Err(err).Msg("failed to read credential file")
		}
		return document{}
	}

	if fs.cipherKey != nil {
		raw, err = fs.open(raw)
		if err != nil {
			fs.logger.Warn().Err(err).Msg("failed to decrypt credential file, treating as empty")
			return document{}
		}
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		fs.logger.Warn().Err(err).Msg("corrupt credential file, treating as empty")
		return document{}
	}
	return doc
}

// persist writes the current document atomically. Failure degrades the
// store to in-memory mode.
func (fs *FileStore) persist() {
	if fs.degraded {
		return
	}

	raw, err := json.Marshal(fs.doc)
	if err != nil {
		fs.logger.Warn().Err(err).Msg("failed to encode credentials")
		return
	}

	if fs.cipherKey != nil {
		raw, err = fs.seal(raw)
		if err != nil {
			fs.logger.Warn().Err(err).Msg("failed to encrypt credentials")
			return
		}
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		fs.logger.Warn().Err(err).Msg("credential store write failed, degrading to in-memory")
		fs.degraded = true
		return
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		fs.logger.Warn().Err(err).Msg("credential store rename failed, degrading to in-memory")
		fs.degraded = true
	}
}

func (fs *FileStore) seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(fs.cipherKey)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (fs *FileStore) open(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(fs.cipherKey)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, io.ErrUnexpectedEOF
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, nil)
}
