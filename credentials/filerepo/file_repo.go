package filerepo

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/go-vehicle-market/credentials"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// FileName is the name of the credential file inside the data folder.
const FileName = "credentials.json"

const (
	envelopeVersion = 1
	saltLength      = 16

	// Argon2id parameters, OWASP minimum profile.
	argonTime    = 2
	argonMemory  = 19 * 1024
	argonThreads = 1
)

var ErrWrongPassphrase = errors.New("credential file cannot be opened with this passphrase")

var _ credentials.Repo = (*Repo)(nil)

// Repo persists credentials as a JSON object in a single file. With a
// passphrase the object is sealed with XChaCha20-Poly1305 under an Argon2id
// derived key. Writes replace the file atomically.
type Repo struct {
	path       string
	passphrase []byte
	mu         sync.Mutex
}

type Option func(*Repo)

// WithPassphrase seals the file contents.
func WithPassphrase(passphrase string) Option {
	return func(r *Repo) {
		if passphrase != "" {
			r.passphrase = []byte(passphrase)
		}
	}
}

// New stores credentials in folder/credentials.json, creating folder if needed.
func New(folder string, opts ...Option) (*Repo, error) {
	if err := os.MkdirAll(folder, 0o700); err != nil {
		return nil, fmt.Errorf("create credential folder: %w", err)
	}
	r := &Repo{path: filepath.Join(folder, FileName)}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Path returns the location of the credential file.
func (r *Repo) Path() string {
	return r.path
}

func (r *Repo) Get(_ context.Context, key credentials.Key) (*string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	values, err := r.load()
	if err != nil {
		return nil, err
	}
	v, ok := values[key]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (r *Repo) Upsert(_ context.Context, key credentials.Key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	values, err := r.load()
	if err != nil {
		return err
	}
	values[key] = value
	return r.save(values)
}

func (r *Repo) Delete(_ context.Context, key credentials.Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	values, err := r.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	if len(values) == 0 {
		if err := os.Remove(r.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove credential file: %w", err)
		}
		return nil
	}
	return r.save(values)
}

type envelope struct {
	Version int    `json:"v"`
	Salt    []byte `json:"salt"`
	Nonce   []byte `json:"nonce"`
	Data    []byte `json:"data"`
}

func (r *Repo) load() (map[credentials.Key]string, error) {
	values := make(map[credentials.Key]string)
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credential file: %w", err)
	}

	if r.passphrase != nil {
		if data, err = r.open(data); err != nil {
			return nil, err
		}
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode credential file: %w", err)
	}
	return values, nil
}

func (r *Repo) save(values map[credentials.Key]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if r.passphrase != nil {
		if data, err = r.seal(data); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("create temp credential file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write credential file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close credential file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace credential file: %w", err)
	}
	return nil
}

func (r *Repo) deriveKey(salt []byte) []byte {
	return argon2.IDKey(r.passphrase, salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}

func (r *Repo) seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	aead, err := chacha20poly1305.NewX(r.deriveKey(salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return json.Marshal(envelope{
		Version: envelopeVersion,
		Salt:    salt,
		Nonce:   nonce,
		Data:    aead.Seal(nil, nonce, plaintext, nil),
	})
}

func (r *Repo) open(data []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Version != envelopeVersion {
		return nil, fmt.Errorf("credential file is not sealed: %w", ErrWrongPassphrase)
	}
	aead, err := chacha20poly1305.NewX(r.deriveKey(env.Salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	if len(env.Nonce) != aead.NonceSize() {
		return nil, ErrWrongPassphrase
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Data, nil)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plaintext, nil
}
