package collab

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketImages = []byte("images")
	bucketMeta   = []byte("meta")

	keyOrder     = []byte("order")
	keyStats     = []byte("statistics")
	keyClasses   = []byte("dangerous_classes")
	keyFetchedAt = []byte("fetched_at")
)

// Cache keeps the last fetched gallery and alert classes in a local bbolt file,
// so lookups by id work without another round trip.
type Cache struct {
	db *bbolt.DB
}

// OpenCache opens (or creates) the cache file at path.
func OpenCache(path string) (*Cache, error) {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open gallery cache: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketImages, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init gallery cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the file lock.
func (c *Cache) Close() error {
	return c.db.Close()
}

// StoreGallery replaces the cached gallery.
func (c *Cache) StoreGallery(g Gallery, at time.Time) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketImages); err != nil {
			return err
		}
		b, err := tx.CreateBucket(bucketImages)
		if err != nil {
			return err
		}
		order := make([]string, 0, len(g.Images))
		for _, img := range g.Images {
			v, err := json.Marshal(img)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(img.ID), v); err != nil {
				return err
			}
			order = append(order, img.ID)
		}
		meta := tx.Bucket(bucketMeta)
		if err := putJSON(meta, keyOrder, order); err != nil {
			return err
		}
		if err := putJSON(meta, keyStats, g.Statistics); err != nil {
			return err
		}
		return meta.Put(keyFetchedAt, []byte(at.UTC().Format(time.RFC3339Nano)))
	})
}

// Gallery returns the cached gallery in server order and when it was fetched.
// ok is false when nothing was cached yet.
func (c *Cache) Gallery() (g Gallery, fetched time.Time, ok bool, err error) {
	err = c.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		raw := meta.Get(keyFetchedAt)
		if raw == nil {
			return nil
		}
		t, perr := time.Parse(time.RFC3339Nano, string(raw))
		if perr != nil {
			return perr
		}
		var order []string
		if err := getJSON(meta, keyOrder, &order); err != nil {
			return err
		}
		if err := getJSON(meta, keyStats, &g.Statistics); err != nil {
			return err
		}
		images := tx.Bucket(bucketImages)
		for _, id := range order {
			v := images.Get([]byte(id))
			if v == nil {
				continue // removed since the fetch
			}
			var img Image
			if err := json.Unmarshal(v, &img); err != nil {
				return err
			}
			g.Images = append(g.Images, img)
		}
		fetched, ok = t, true
		return nil
	})
	return g, fetched, ok, err
}

// Image looks one cached image up by id.
func (c *Cache) Image(id string) (Image, bool, error) {
	var (
		img Image
		ok  bool
	)
	err := c.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketImages).Get([]byte(id))
		if v == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(v, &img)
	})
	return img, ok, err
}

// RemoveImage drops one image after a successful delete.
func (c *Cache) RemoveImage(id string) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketImages).Delete([]byte(id))
	})
}

// StoreClasses replaces the cached alert classes.
func (c *Cache) StoreClasses(classes []string) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket(bucketMeta), keyClasses, classes)
	})
}

// Classes returns the cached alert classes, or nil.
func (c *Cache) Classes() ([]string, error) {
	var classes []string
	err := c.db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx.Bucket(bucketMeta), keyClasses, &classes)
	})
	return classes, err
}

func putJSON(b *bbolt.Bucket, key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, raw)
}

// getJSON leaves v untouched when key is absent.
func getJSON(b *bbolt.Bucket, key []byte, v any) error {
	raw := b.Get(key)
	if raw == nil {
		return nil
	}
	return json.Unmarshal(raw, v)
}
