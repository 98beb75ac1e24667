// Package archive persists devtools session recordings as zstd-compressed
// JSON, either to a local directory or to S3.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/vango-dev/eventreduce/pkg/devtools"
)

// Extension is appended to every archived recording key.
const Extension = ".json.zst"

// windowSize keeps decoder memory small; recordings are modest in size.
const windowSize = 64 << 10

// Store saves archived recordings.
type Store interface {
	Put(ctx context.Context, key string, body []byte) error
}

// Archiver compresses recordings and writes them to a Store.
type Archiver struct {
	store  Store
	prefix string
}

// New creates an archiver writing keys under prefix.
func New(store Store, prefix string) *Archiver {
	return &Archiver{store: store, prefix: strings.Trim(prefix, "/")}
}

// Key returns the key a recording is stored under.
func (a *Archiver) Key(rec devtools.Recording) string {
	return path.Join(a.prefix, rec.ID+Extension)
}

// Archive compresses rec and stores it, returning its key.
func (a *Archiver) Archive(ctx context.Context, rec devtools.Recording) (string, error) {
	if rec.ID == "" {
		return "", errors.New("archive: recording has no id")
	}
	body, err := Encode(rec)
	if err != nil {
		return "", err
	}
	key := a.Key(rec)
	if err := a.store.Put(ctx, key, body); err != nil {
		return "", fmt.Errorf("archive: put %s: %w", key, err)
	}
	return key, nil
}

// Encode returns rec as zstd-compressed JSON.
func Encode(rec devtools.Recording) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf,
		zstd.WithEncoderConcurrency(1),
		zstd.WithWindowSize(windowSize),
		zstd.WithZeroFrames(true),
	)
	if err != nil {
		return nil, err
	}
	if err := json.NewEncoder(enc).Encode(rec); err != nil {
		enc.Close()
		return nil, fmt.Errorf("archive: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("archive: compress: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reads a recording written by Encode.
func Decode(r io.Reader) (devtools.Recording, error) {
	var rec devtools.Recording
	dec, err := zstd.NewReader(r,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true),
	)
	if err != nil {
		return rec, err
	}
	defer dec.Close()
	if err := json.NewDecoder(dec).Decode(&rec); err != nil {
		return rec, fmt.Errorf("archive: decode: %w", err)
	}
	return rec, nil
}

// DirStore stores recordings as files below a directory.
type DirStore struct {
	Dir string
}

// Put writes body to Dir/key, creating parent directories.
func (s DirStore) Put(_ context.Context, key string, body []byte) error {
	name := filepath.Join(s.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}
	return os.WriteFile(name, body, 0o644)
}
