package receipt

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	receiptBucketName = "receipts"
	reportBucketName  = "reports"
)

// ErrNotFound is returned when a receipt or report does not exist
var ErrNotFound = errors.New("not found")

// DB defines the interface for database operations
type DB interface {
	// SaveReceipt saves a receipt to the database
	SaveReceipt(receipt *Receipt) error

	// GetReceipt retrieves a receipt by ID
	GetReceipt(id string) (*Receipt, error)

	// ListReceipts returns all receipts
	ListReceipts() ([]*Receipt, error)

	// DeleteReceipt removes a receipt from the database
	DeleteReceipt(id string) error

	// SaveReport saves an expense report to the database
	SaveReport(report *ExpenseReport) error

	// GetReport retrieves an expense report by ID
	GetReport(id string) (*ExpenseReport, error)

	// ListReports returns all expense reports
	ListReports() ([]*ExpenseReport, error)

	// DeleteReport removes an expense report
	DeleteReport(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{receiptBucketName, reportBucketName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

func (b *BoltDB) put(bucketName, id string, v any) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshaling %s: %w", bucketName, err)
		}
		return tx.Bucket([]byte(bucketName)).Put([]byte(id), data)
	})
}

func (b *BoltDB) get(bucketName, id string, v any) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%s %s: %w", bucketName, id, ErrNotFound)
		}
		return json.Unmarshal(data, v)
	})
}

// list decodes every value of a bucket with decode
func (b *BoltDB) list(bucketName string, decode func(v []byte) error) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			return decode(v)
		})
	})
}

// SaveReceipt saves a receipt to the database
func (b *BoltDB) SaveReceipt(receipt *Receipt) error {
	return b.put(receiptBucketName, receipt.ID, receipt)
}

// GetReceipt retrieves a receipt by ID
func (b *BoltDB) GetReceipt(id string) (*Receipt, error) {
	var receipt Receipt
	if err := b.get(receiptBucketName, id, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// ListReceipts returns all receipts
func (b *BoltDB) ListReceipts() ([]*Receipt, error) {
	receipts := make([]*Receipt, 0)
	err := b.list(receiptBucketName, func(v []byte) error {
		var receipt Receipt
		if err := json.Unmarshal(v, &receipt); err != nil {
			return fmt.Errorf("unmarshaling receipt: %w", err)
		}
		receipts = append(receipts, &receipt)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

// DeleteReceipt removes a receipt from the database
func (b *BoltDB) DeleteReceipt(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(receiptBucketName)).Delete([]byte(id))
	})
}

// SaveReport saves an expense report to the database
func (b *BoltDB) SaveReport(report *ExpenseReport) error {
	return b.put(reportBucketName, report.ID, report)
}

// GetReport retrieves an expense report by ID
func (b *BoltDB) GetReport(id string) (*ExpenseReport, error) {
	var report ExpenseReport
	if err := b.get(reportBucketName, id, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// ListReports returns all expense reports
func (b *BoltDB) ListReports() ([]*ExpenseReport, error) {
	reports := make([]*ExpenseReport, 0)
	err := b.list(reportBucketName, func(v []byte) error {
		var report ExpenseReport
		if err := json.Unmarshal(v, &report); err != nil {
			return fmt.Errorf("unmarshaling report: %w", err)
		}
		reports = append(reports, &report)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reports, nil
}

// DeleteReport removes an expense report from the database
func (b *BoltDB) DeleteReport(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(reportBucketName)).Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
