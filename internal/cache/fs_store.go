package cache

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	bodySuffix = ".body"
	metaSuffix = ".meta"
)

// NewDiskRegistry 以 basePath 为根目录构建磁盘缓存注册表，每个缓存仓对应一个子目录。
func NewDiskRegistry(basePath string) (*DiskRegistry, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	return &DiskRegistry{
		basePath: abs,
		locks:    make(map[string]*entryLock),
	}, nil
}

// DiskRegistry 的磁盘布局：
//
//	<StoragePath>/<CacheName>/<sha1(key)>.body   # 响应正文
//	<StoragePath>/<CacheName>/<sha1(key)>.meta   # JSON: key/status/header/stored_at
//
// meta 文件最后落盘，存在即代表条目完整；两者均通过临时文件 + rename 写入。
type DiskRegistry struct {
	basePath string

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

type entryMeta struct {
	Key      Key         `json:"key"`
	Status   int         `json:"status"`
	Header   http.Header `json:"header,omitempty"`
	StoredAt time.Time   `json:"stored_at"`
}

func (r *DiskRegistry) Open(ctx context.Context, name string) (Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := r.storeDir(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache %s: %w", name, err)
	}
	return &diskStore{registry: r, name: name, dir: dir}, nil
}

func (r *DiskRegistry) Names(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(r.basePath)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (r *DiskRegistry) Has(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	dir, err := r.storeDir(name)
	if err != nil {
		return false, nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

func (r *DiskRegistry) Delete(ctx context.Context, name string) (bool, error) {
	exists, err := r.Has(ctx, name)
	if err != nil || !exists {
		return false, err
	}
	dir, _ := r.storeDir(name)
	if err := os.RemoveAll(dir); err != nil {
		return false, err
	}
	return true, nil
}

func (r *DiskRegistry) storeDir(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	dir := filepath.Join(r.basePath, name)
	if filepath.Dir(dir) != r.basePath {
		return "", ErrInvalidName
	}
	return dir, nil
}

func (r *DiskRegistry) lockEntry(id string) func() {
	r.mu.Lock()
	lock := r.locks[id]
	if lock == nil {
		lock = &entryLock{}
		r.locks[id] = lock
	}
	lock.refs++
	r.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		r.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(r.locks, id)
		}
		r.mu.Unlock()
	}
}

type diskStore struct {
	registry *DiskRegistry
	name     string
	dir      string
}

func (s *diskStore) Name() string {
	return s.name
}

func (s *diskStore) Get(ctx context.Context, key Key) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	id := entryID(key)
	unlock := s.registry.lockEntry(s.name + "::" + id)
	defer unlock()

	meta, err := readMeta(filepath.Join(s.dir, id+metaSuffix))
	if err != nil {
		return Response{}, err
	}
	if meta.Key != key {
		return Response{}, ErrNotFound
	}
	body, err := os.ReadFile(filepath.Join(s.dir, id+bodySuffix))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Response{}, ErrNotFound
		}
		return Response{}, err
	}
	return Response{Status: meta.Status, Header: meta.Header, Body: body}, nil
}

func (s *diskStore) Put(ctx context.Context, key Key, resp Response) error {
	id := entryID(key)
	unlock := s.registry.lockEntry(s.name + "::" + id)
	defer unlock()

	// 缓存仓被删除后不再接受写入，避免旧版本目录被重新创建。
	if err := writeAtomic(ctx, s.dir, id+bodySuffix, bytes.NewReader(resp.Body)); err != nil {
		return err
	}
	meta := entryMeta{
		Key:      key,
		Status:   resp.Status,
		Header:   resp.Header.Clone(),
		StoredAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return writeAtomic(ctx, s.dir, id+metaSuffix, bytes.NewReader(payload))
}

func (s *diskStore) Keys(ctx context.Context) ([]Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	keys := make([]Key, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), metaSuffix) {
			continue
		}
		meta, err := readMeta(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		keys = append(keys, meta.Key)
	}
	sortKeys(keys)
	return keys, nil
}

func readMeta(path string) (entryMeta, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entryMeta{}, ErrNotFound
		}
		return entryMeta{}, err
	}
	var meta entryMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return entryMeta{}, fmt.Errorf("decode cache meta %s: %w", filepath.Base(path), err)
	}
	return meta, nil
}

func writeAtomic(ctx context.Context, dir, name string, body io.Reader) error {
	tempFile, err := os.CreateTemp(dir, ".cache-*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	_, err = copyWithContext(ctx, tempFile, body)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return err
	}

	if err := os.Rename(tempName, filepath.Join(dir, name)); err != nil {
		os.Remove(tempName)
		return err
	}
	return nil
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}

func entryID(key Key) string {
	sum := sha1.Sum([]byte(key.String()))
	return hex.EncodeToString(sum[:])
}
