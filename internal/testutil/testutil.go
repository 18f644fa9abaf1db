// Package testutil provides shared helpers for package tests.
package testutil

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

// RedisAddrEnv names a real Redis used by RealRedis instead of skipping.
const RedisAddrEnv = "NFVPACK_TEST_REDIS_ADDR"

// Redis starts an in-memory Redis for the test and returns it with a
// connected client. Both are closed on cleanup.
func Redis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

// RealRedis returns a client for the Redis named by NFVPACK_TEST_REDIS_ADDR,
// flushed before and after the test. The test is skipped when the variable is
// unset or the server does not answer.
func RealRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv(RedisAddrEnv)
	if addr == "" {
		t.Skipf("%s not set", RedisAddrEnv)
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("test Redis not reachable at %s: %v", addr, err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flushing test Redis: %v", err)
	}
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

// KeyCount returns the number of keys the client's database holds.
func KeyCount(t *testing.T, client *redis.Client) int {
	t.Helper()
	n, err := client.DBSize(context.Background()).Result()
	if err != nil {
		t.Fatalf("failed to get key count: %v", err)
	}
	return int(n)
}

// Context returns a context with a reasonable timeout for tests.
// The cancel function is registered via t.Cleanup.
func Context(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// ProjectRoot returns the absolute path to the module root.
func ProjectRoot() string {
	_, thisFile, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(thisFile), "..", "..")
}

// SamplePackageDir is the unpacked sample CSAR shared by package tests.
func SamplePackageDir() string {
	return filepath.Join(ProjectRoot(), "pkg", "csar", "testdata", "vnffg")
}

// ZipFiles builds an in-memory ZIP archive. Names are written in sorted
// order so equal inputs give equal bytes.
func ZipFiles(t *testing.T, files map[string]string) []byte {
	t.Helper()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("adding %s: %v", name, err)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing archive: %v", err)
	}
	return buf.Bytes()
}
