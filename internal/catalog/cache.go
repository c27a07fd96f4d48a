package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	cachePrefix = "catalog_"
	cacheSuffix = ".yaml"
)

// ErrCacheEmpty is returned by Load when no readable catalog is cached.
var ErrCacheEmpty = errors.New("no cached catalog")

// Cache keeps validated catalogs on disk, one YAML document per fetch,
// named by fetch time.
type Cache struct {
	dir      string
	maxFiles int
	logger   *slog.Logger
}

// NewCache creates a Cache in dir that keeps the newest maxFiles catalogs.
func NewCache(dir string, maxFiles int, logger *slog.Logger) *Cache {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &Cache{dir: dir, maxFiles: maxFiles, logger: logger}
}

type cachedDocument struct {
	Eclipses []Eclipse `yaml:"eclipses"`
}

// Save writes the validated records fetched at ts and prunes old files.
// Only records that passed Parse reach the disk, so a cached file always
// reloads to the same catalog. The file appears atomically.
func (c *Cache) Save(eclipses []Eclipse, ts time.Time) error {
	if len(eclipses) == 0 {
		return ErrEmptyCatalog
	}
	data, err := yaml.Marshal(cachedDocument{Eclipses: eclipses})
	if err != nil {
		return fmt.Errorf("encoding catalog: %w", err)
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, ".catalog-*.tmp")
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	name := cachePrefix + strconv.FormatInt(ts.Unix(), 10) + cacheSuffix
	if err := os.Rename(tmp.Name(), filepath.Join(c.dir, name)); err != nil {
		return fmt.Errorf("installing cache file: %w", err)
	}
	return c.prune()
}

// Load returns the newest cached catalog that still parses to at least
// one valid eclipse, and its fetch time. Unreadable files are skipped.
func (c *Cache) Load() ([]Eclipse, time.Time, error) {
	files, err := c.listFiles()
	if err != nil {
		return nil, time.Time{}, err
	}

	for _, f := range slices.Backward(files) {
		data, err := os.ReadFile(filepath.Join(c.dir, f.name))
		if err != nil {
			c.logger.Warn("skipping unreadable catalog cache file", "file", f.name, "error", err)
			continue
		}
		eclipses, err := Parse(bytes.NewReader(data), c.logger)
		if err != nil || len(eclipses) == 0 {
			c.logger.Warn("skipping unusable catalog cache file", "file", f.name, "error", err)
			continue
		}
		return eclipses, f.ts, nil
	}
	return nil, time.Time{}, ErrCacheEmpty
}

type cacheFile struct {
	name string
	ts   time.Time
}

// listFiles returns the cache files oldest first.
func (c *Cache) listFiles() ([]cacheFile, error) {
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	var files []cacheFile
	for _, e := range entries {
		stamp, ok := strings.CutPrefix(e.Name(), cachePrefix)
		if e.IsDir() || !ok {
			continue
		}
		stamp, ok = strings.CutSuffix(stamp, cacheSuffix)
		if !ok {
			continue
		}
		unix, err := strconv.ParseInt(stamp, 10, 64)
		if err != nil {
			continue
		}
		files = append(files, cacheFile{name: e.Name(), ts: time.Unix(unix, 0)})
	}

	slices.SortFunc(files, func(a, b cacheFile) int { return a.ts.Compare(b.ts) })
	return files, nil
}

func (c *Cache) prune() error {
	files, err := c.listFiles()
	if err != nil {
		return err
	}
	for len(files) > c.maxFiles {
		if err := os.Remove(filepath.Join(c.dir, files[0].name)); err != nil {
			return fmt.Errorf("pruning cache file %s: %w", files[0].name, err)
		}
		files = files[1:]
	}
	return nil
}
