// Package main implements the kv kernel: an on-disk/in-memory key-value
// store exposed to sxs programs via open-memory, open-disk, set, and get.
//
// Grounded on original_source/kernels/kv/kv.cpp and
// original_source/libs/std/kv/kv.cpp's distributor/store split (a named
// store is either backed by a map or a disk file, looked up later by the
// "store:key" symbol convention parse_symbol_key implements in the
// original). The disk backend here is modernc.org/sqlite rather than the
// original's bespoke on-disk format — a teacher go.mod dependency never
// actually imported by the teacher's own source, given a real, exercised
// home here.
package main

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/bosley/sxs/pkg/kernelapi"
)

type store interface {
	get(key string) (string, bool)
	set(key, value string) bool
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]string)}
}

func (s *memoryStore) get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *memoryStore) set(key, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return true
}

type diskStore struct {
	db *sql.DB
}

func openDiskStore(path string) (*diskStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value TEXT)`); err != nil {
		db.Close()
		return nil, err
	}
	return &diskStore{db: db}, nil
}

func (s *diskStore) get(key string) (string, bool) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", false
	}
	return value, true
}

func (s *diskStore) set(key, value string) bool {
	_, err := s.db.Exec(`INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err == nil
}

var (
	mu      sync.Mutex
	diskDBs = make(map[string]*diskStore)
	stores  = make(map[string]store)
)

// parseSymbolKey splits a "store:key" dispatch symbol into its two parts,
// matching parse_symbol_key in the grounded C++.
func parseSymbolKey(s string) (string, string, bool) {
	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		return "", "", false
	}
	return s[:idx], s[idx+1:], true
}

func valueToString(api kernelapi.APITable, obj kernelapi.Object) string {
	switch api.GetKind(obj) {
	case kernelapi.KindInteger:
		return strconv.FormatInt(api.AsInt(obj), 10)
	case kernelapi.KindReal:
		return strconv.FormatFloat(api.AsReal(obj), 'f', -1, 64)
	case kernelapi.KindString:
		return api.AsString(obj)
	default:
		return ""
	}
}

func stringToValue(api kernelapi.APITable, s string) kernelapi.Object {
	if s == "" {
		return api.CreateString("")
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return api.CreateReal(f)
		}
		return api.CreateString(s)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return api.CreateInt(i)
	}
	return api.CreateString(s)
}

func kernelError(api kernelapi.APITable, message string) kernelapi.Object {
	return api.CreateError(api.CreateString(message))
}

// KernelInit is the plugin entry point the sxs runtime looks up via
// plugin.Lookup after plugin.Open.
func KernelInit(registry kernelapi.Registry, api kernelapi.APITable) {
	registry.Register("open-memory", func(args []kernelapi.Object) kernelapi.Object {
		if len(args) < 1 {
			return kernelError(api, "open-memory requires 1 argument")
		}
		name := api.AsSymbol(args[0])
		if name == "" {
			return kernelError(api, "open-memory: invalid symbol")
		}

		mu.Lock()
		defer mu.Unlock()
		if _, ok := stores[name]; !ok {
			stores[name] = newMemoryStore()
		}
		return api.CreateInt(0)
	}, []kernelapi.Kind{kernelapi.KindSymbol}, kernelapi.KindInteger, false)

	registry.Register("open-disk", func(args []kernelapi.Object) kernelapi.Object {
		if len(args) < 2 {
			return kernelError(api, "open-disk requires 2 arguments")
		}
		name := api.AsSymbol(args[0])
		path := api.AsString(args[1])
		if name == "" || path == "" {
			return kernelError(api, "open-disk requires symbol and string arguments")
		}

		mu.Lock()
		defer mu.Unlock()
		if _, ok := stores[name]; ok {
			return api.CreateInt(0)
		}
		ds, ok := diskDBs[path]
		if !ok {
			opened, err := openDiskStore(path)
			if err != nil {
				return kernelError(api, fmt.Sprintf("open-disk: %s", err))
			}
			diskDBs[path] = opened
			ds = opened
		}
		stores[name] = ds
		return api.CreateInt(0)
	}, []kernelapi.Kind{kernelapi.KindSymbol, kernelapi.KindString}, kernelapi.KindInteger, false)

	registry.Register("set", func(args []kernelapi.Object) kernelapi.Object {
		if len(args) < 2 {
			return kernelError(api, "set requires 2 arguments")
		}
		destSymbol := api.AsSymbol(args[0])
		storeName, key, ok := parseSymbolKey(destSymbol)
		if !ok || storeName == "" || key == "" {
			return kernelError(api, "set requires symbol:key format")
		}

		mu.Lock()
		st, ok := stores[storeName]
		mu.Unlock()
		if !ok {
			return kernelError(api, "set: store not found")
		}

		valueStr := valueToString(api, args[1])
		if !st.set(key, valueStr) {
			return kernelError(api, "set: failed to store value")
		}
		return api.CreateInt(0)
	}, []kernelapi.Kind{kernelapi.KindSymbol, kernelapi.KindNone}, kernelapi.KindInteger, false)

	registry.Register("get", func(args []kernelapi.Object) kernelapi.Object {
		if len(args) < 1 {
			return kernelError(api, "get requires 1 argument")
		}
		sourceSymbol := api.AsSymbol(args[0])
		storeName, key, ok := parseSymbolKey(sourceSymbol)
		if !ok || storeName == "" || key == "" {
			return kernelError(api, "get requires symbol:key format")
		}

		mu.Lock()
		st, ok := stores[storeName]
		mu.Unlock()
		if !ok {
			return kernelError(api, "get: store not found")
		}

		value, ok := st.get(key)
		if !ok {
			return kernelError(api, "get: key not found")
		}
		return stringToValue(api, value)
	}, []kernelapi.Kind{kernelapi.KindSymbol}, kernelapi.KindNone, false)
}
