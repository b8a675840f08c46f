// Package loader reads note text from the vault, transparently decrypting
// encrypted notes when a key is configured.
package loader

import (
	"fmt"
	"log/slog"

	"github.com/awnumar/memguard"

	"github.com/starford/notegraph/internal/storage"
)

// Cipher recognises and decrypts encrypted note payloads.
type Cipher interface {
	IsEncrypted(data []byte) bool
	Decrypt(data, key []byte) ([]byte, error)
}

// Loader reads notes through a storage provider.
type Loader struct {
	provider storage.Provider
	cipher   Cipher
	key      *memguard.Enclave
	log      *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithCipher sets the cipher used to detect and decrypt encrypted notes.
func WithCipher(c Cipher) Option {
	return func(l *Loader) { l.cipher = c }
}

// WithKey seals the decryption key into an encrypted enclave.
// The passed slice is wiped.
func WithKey(key []byte) Option {
	return func(l *Loader) {
		if len(key) > 0 {
			l.key = memguard.NewEnclave(key)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Loader) { l.log = log }
}

// New creates a Loader.
func New(p storage.Provider, opts ...Option) *Loader {
	l := &Loader{provider: p, log: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Read returns the plaintext of a note. Missing files surface as an error
// satisfying errors.Is(err, fs.ErrNotExist).
func (l *Loader) Read(filename string) (string, error) {
	data, err := l.provider.Read(filename)
	if err != nil {
		return "", fmt.Errorf("loader: %w", err)
	}
	if l.cipher == nil || !l.cipher.IsEncrypted(data) {
		return string(data), nil
	}
	plain, err := l.decrypt(data)
	if err != nil {
		l.log.Warn("decrypt failed, using raw content",
			slog.String("file", filename), slog.String("error", err.Error()))
		return string(data), nil
	}
	return string(plain), nil
}

func (l *Loader) decrypt(data []byte) ([]byte, error) {
	if l.key == nil {
		return nil, fmt.Errorf("no key configured")
	}
	buf, err := l.key.Open()
	if err != nil {
		return nil, fmt.Errorf("open key: %w", err)
	}
	defer buf.Destroy()
	return l.cipher.Decrypt(data, buf.Bytes())
}
