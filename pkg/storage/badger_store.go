package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/conf-crawler/pkg/log"
	"github.com/Sriram-PR/conf-crawler/pkg/models"
	"github.com/Sriram-PR/conf-crawler/pkg/utils"
)

const (
	paperKeyPrefix = "paper:"   // paper:<year>/<pdf_name>
	yearKeyPrefix  = "year:"    // year:<year>
	crawlDBDir     = "crawl_db" // Suffix of the Badger directory within stateDir
)

var errNotOpen = fmt.Errorf("%w: crawl state DB not initialized", utils.ErrDatabase)

// BadgerStore implements CrawlStore using BadgerDB
type BadgerStore struct {
	db       *badger.DB
	log      *logrus.Entry
	ctx      context.Context // Parent context
	keyCount atomic.Int64    // Cached key count for O(1) GetVisitedCount
}

// DBPath returns the directory NewBadgerStore opens for siteHost
func DBPath(stateDir, siteHost string) string {
	return filepath.Join(stateDir, utils.SanitizeFilename(siteHost)+"_"+crawlDBDir)
}

// NewBadgerStore opens (or creates) the crawl state DB of siteHost under stateDir
func NewBadgerStore(ctx context.Context, stateDir, siteHost string, logger *logrus.Entry) (*BadgerStore, error) {
	dbPath := DBPath(stateDir, siteHost)
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}

	opts := badger.DefaultOptions(dbPath).
		WithLogger(log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}
	store := &BadgerStore{db: db, log: logger, ctx: ctx}

	count, err := store.countKeys()
	if err != nil {
		logger.Warnf("Failed to count existing keys: %v", err)
	} else {
		store.keyCount.Store(int64(count))
	}
	logger.WithFields(logrus.Fields{"path": dbPath, "keys": count}).Info("Crawl state database opened")
	return store, nil
}

// countKeys performs a one-time full key scan at open
func (s *BadgerStore) countKeys() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
// Concurrent detail workers may write the same year key; conflicts resolve in microseconds.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

func paperKey(year, pdfName string) []byte {
	return []byte(paperKeyPrefix + year + "/" + pdfName)
}

func yearKey(year string) []byte {
	return []byte(yearKeyPrefix + year)
}

// getJSON decodes the value at key into dst. found is false when the key is absent
// or holds an undecodable value.
func (s *BadgerStore) getJSON(key []byte, dst any) (found bool, err error) {
	if s.db == nil {
		return false, errNotOpen
	}
	err = s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return fmt.Errorf("%w: failed getting key '%s': %w", utils.ErrDatabase, key, errGet)
		}
		return item.Value(func(val []byte) error {
			if errJSON := json.Unmarshal(val, dst); errJSON != nil {
				s.log.Warnf("Failed to unmarshal entry for key '%s': %v. Treating as not found.", key, errJSON)
				return nil
			}
			found = true
			return nil
		})
	})
	return found, err
}

// putJSON stores v at key, overwriting any previous entry
func (s *BadgerStore) putJSON(key []byte, v any) error {
	if s.db == nil {
		return errNotOpen
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal entry for key '%s': %w", utils.ErrParsing, key, err)
	}

	isNew := false
	err = s.dbUpdate(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		isNew = errors.Is(errGet, badger.ErrKeyNotFound)
		return txn.SetEntry(badger.NewEntry(key, data))
	})
	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB Update error: %v", err)
		return fmt.Errorf("%w: failed setting key '%s': %w", utils.ErrDatabase, key, err)
	}
	if isNew {
		s.keyCount.Add(1)
	}
	return nil
}

// CheckPaperStatus implements PaperStore
func (s *BadgerStore) CheckPaperStatus(year, pdfName string) (models.PaperStatus, *models.PaperDBEntry, error) {
	var entry models.PaperDBEntry
	found, err := s.getJSON(paperKey(year, pdfName), &entry)
	if err != nil {
		return models.PaperStatusDBError, nil, err
	}
	if !found {
		return models.PaperStatusNotFound, nil, nil
	}
	return entry.Status, &entry, nil
}

// UpdatePaperStatus implements PaperStore
func (s *BadgerStore) UpdatePaperStatus(year, pdfName string, entry *models.PaperDBEntry) error {
	if err := s.putJSON(paperKey(year, pdfName), entry); err != nil {
		return err
	}
	s.log.Debugf("Paper %s/%s marked %s", year, pdfName, entry.Status)
	return nil
}

// FailedPapers implements PaperStore
func (s *BadgerStore) FailedPapers(ctx context.Context, year string) ([]string, error) {
	if s.db == nil {
		return nil, errNotOpen
	}
	prefix := []byte(paperKeyPrefix + year + "/")
	var failed []string

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			name := string(item.Key()[len(prefix):])
			errValue := item.Value(func(val []byte) error {
				var entry models.PaperDBEntry
				if errJSON := json.Unmarshal(val, &entry); errJSON != nil {
					s.log.Warnf("Skipping undecodable entry for paper '%s': %v", name, errJSON)
					return nil
				}
				if entry.Status == models.PaperStatusFailure {
					failed = append(failed, name)
				}
				return nil
			})
			if errValue != nil {
				return fmt.Errorf("%w: reading paper '%s': %w", utils.ErrDatabase, name, errValue)
			}
		}
		return nil
	})
	return failed, err
}

// CheckYearStatus implements YearStore
func (s *BadgerStore) CheckYearStatus(year string) (models.YearStatus, *models.YearDBEntry, error) {
	var entry models.YearDBEntry
	found, err := s.getJSON(yearKey(year), &entry)
	if err != nil {
		return models.YearStatusDBError, nil, err
	}
	if !found {
		return models.YearStatusNotFound, nil, nil
	}
	return entry.Status, &entry, nil
}

// UpdateYearStatus implements YearStore
func (s *BadgerStore) UpdateYearStatus(year string, entry *models.YearDBEntry) error {
	if err := s.putJSON(yearKey(year), entry); err != nil {
		return err
	}
	s.log.Debugf("Year %s marked %s", year, entry.Status)
	return nil
}

// GetVisitedCount implements StoreAdmin.
// Returns the cached key count maintained by atomic increments on writes.
func (s *BadgerStore) GetVisitedCount() (int, error) {
	return int(s.keyCount.Load()), nil
}

// RunGC runs BadgerDB's value log garbage collection periodically
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				continue
			}
			var err error
			for err == nil {
				// Rewrite while at least half of a value log file is reclaimable
				err = s.db.RunValueLogGC(0.5)
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}
		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB garbage collection: %v", ctx.Err())
			return
		}
	}
}

// WriteVisitedLog implements StoreAdmin
func (s *BadgerStore) WriteVisitedLog(filePath string) error {
	if s.db == nil {
		return errNotOpen
	}
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("%w: create visited log '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	written := 0

	iterErr := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := s.ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := string(item.Key())

			var kind, name, status string
			errValue := item.Value(func(val []byte) error {
				switch {
				case strings.HasPrefix(key, paperKeyPrefix):
					var e models.PaperDBEntry
					kind, name = "paper", key[len(paperKeyPrefix):]
					err := json.Unmarshal(val, &e)
					status = e.Status.String()
					return err
				case strings.HasPrefix(key, yearKeyPrefix):
					var e models.YearDBEntry
					kind, name = "year", key[len(yearKeyPrefix):]
					err := json.Unmarshal(val, &e)
					status = e.Status.String()
					return err
				}
				return nil
			})
			if kind == "" {
				s.log.Warnf("Skipping unexpected key in DB: %s", key)
				continue
			}
			if errValue != nil {
				s.log.Warnf("Skipping undecodable entry '%s': %v", key, errValue)
				continue
			}
			if _, err := fmt.Fprintf(writer, "%s\t%s\t%s\n", kind, name, status); err != nil {
				return fmt.Errorf("%w: write visited log: %w", utils.ErrFilesystem, err)
			}
			written++
		}
		return nil
	})
	if iterErr != nil {
		return iterErr
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("%w: flush visited log '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("%w: sync visited log '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	s.log.Infof("Wrote %d entries to visited log: %s", written, filePath)
	return nil
}

// Close implements StoreAdmin; closing twice is safe
func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	if err := s.db.Close(); err != nil {
		s.log.Errorf("Error closing crawl state DB: %v", err)
		return fmt.Errorf("%w: close: %w", utils.ErrDatabase, err)
	}
	s.log.Debug("Crawl state DB closed")
	return nil
}
