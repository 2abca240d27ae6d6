package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
	"gopkg.in/yaml.v3"
)

const sealedPrefix = "sealed:"

// FileKV stores entries as a flat YAML mapping in a single file.
// Every mutation rewrites the file through a temp file + rename, so readers
// never observe a half-written document.
type FileKV struct {
	mu   sync.Mutex
	path string
	key  *[32]byte // nil: values stored in clear
}

// NewFileKV returns a file store at path. sealKey, when set, must be the
// base64 encoding of 32 random bytes; values are then sealed with secretbox.
func NewFileKV(path, sealKey string) (*FileKV, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("empty token file path")
	}
	kv := &FileKV{path: path}
	if sealKey != "" {
		raw, err := base64.StdEncoding.DecodeString(sealKey)
		if err != nil || len(raw) != 32 {
			return nil, errors.New("TOKEN_SEAL_KEY must be base64 of 32 bytes")
		}
		var k [32]byte
		copy(k[:], raw)
		kv.key = &k
	}
	return kv, nil
}

func (f *FileKV) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := entries[key]
	if !ok {
		return "", false, nil
	}
	plain, err := f.open(v)
	if err != nil {
		return "", false, fmt.Errorf("token file %s key %s: %w", f.path, key, err)
	}
	return plain, true, nil
}

func (f *FileKV) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := f.load()
	if err != nil {
		return err
	}
	sealed, err := f.seal(value)
	if err != nil {
		return err
	}
	entries[key] = sealed
	return f.store(entries)
}

func (f *FileKV) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := f.load()
	if err != nil {
		return err
	}
	changed := false
	for _, k := range keys {
		if _, ok := entries[k]; ok {
			delete(entries, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.store(entries)
}

func (f *FileKV) Close() error { return nil }

func (f *FileKV) load() (map[string]string, error) {
	entries := map[string]string{}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return entries, nil
	}
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse token file %s: %w", f.path, err)
	}
	if entries == nil {
		entries = map[string]string{}
	}
	return entries, nil
}

func (f *FileKV) store(entries map[string]string) error {
	data, err := yaml.Marshal(entries)
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create token dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.yaml")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *FileKV) seal(value string) (string, error) {
	if f.key == nil {
		return value, nil
	}
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	box := secretbox.Seal(nonce[:], []byte(value), &nonce, f.key)
	return sealedPrefix + base64.StdEncoding.EncodeToString(box), nil
}

func (f *FileKV) open(stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		if f.key != nil {
			return "", errors.New("value is not sealed")
		}
		return stored, nil
	}
	if f.key == nil {
		return "", errors.New("value is sealed but no TOKEN_SEAL_KEY is configured")
	}
	box, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil || len(box) < 24+secretbox.Overhead {
		return "", errors.New("malformed sealed value")
	}
	var nonce [24]byte
	copy(nonce[:], box[:24])
	plain, ok := secretbox.Open(nil, box[24:], &nonce, f.key)
	if !ok {
		return "", errors.New("sealed value failed authentication")
	}
	return string(plain), nil
}
