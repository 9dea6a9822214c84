package cache

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Backend 名称，与配置项 StorageBackend 对应。
const (
	BackendMemory = "memory"
	BackendDisk   = "disk"
	BackendSQLite = "sqlite"
)

// SQLiteFileName 是 sqlite 后端在 StoragePath 下使用的数据库文件名。
const SQLiteFileName = "caches.db"

// OpenRegistry 根据后端名称创建注册表。返回的 io.Closer 在进程退出前调用即可。
func OpenRegistry(backend, storagePath string) (Registry, io.Closer, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendMemory:
		return NewMemoryRegistry(), nopCloser{}, nil
	case BackendDisk, "":
		reg, err := NewDiskRegistry(storagePath)
		if err != nil {
			return nil, nil, err
		}
		return reg, nopCloser{}, nil
	case BackendSQLite:
		reg, err := NewSQLiteRegistry(filepath.Join(storagePath, SQLiteFileName))
		if err != nil {
			return nil, nil, err
		}
		return reg, reg, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage backend: %s", backend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
