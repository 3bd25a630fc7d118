package services

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var (
	settingsBucket = []byte("settings")
	apiKeyKey      = []byte("api_key")
)

// BoltDB persists local settings in a BoltDB file. Today that is only the
// optional API key the user stored for the chatbot service; the conversation
// core reads it at submit time and never writes it.
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB opens the settings database at the specified file path. The
// database file is created with 0600 permissions if it doesn't exist, and
// the settings bucket is created on first open.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(settingsBucket)
		return err
	})

	return BoltDB{db: db}, err
}

// APIKey returns the stored API key, or an empty string when none was set.
func (b BoltDB) APIKey() (string, error) {
	var key string
	err := b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket(settingsBucket)
		if bk == nil {
			return nil
		}
		key = string(bk.Get(apiKeyKey))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to read api key: %w", err)
	}
	return key, nil
}

// SetAPIKey stores the API key. An empty key clears the stored value.
func (b BoltDB) SetAPIKey(key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(settingsBucket)
		if bk == nil {
			return nil
		}
		if key == "" {
			return bk.Delete(apiKeyKey)
		}
		return bk.Put(apiKeyKey, []byte(key))
	})
}

// Close closes the underlying database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}
