package ha

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/crc32"
	"time"

	"gorm.io/gorm"
)

// MigrationLocker serializes a critical section across replicas sharing a database.
type MigrationLocker interface {
	// WithLock executes fn while holding the lock.
	// It blocks until the lock is acquired, then releases it after fn returns.
	WithLock(ctx context.Context, fn func() error) error
}

// NewMigrationLocker picks a lock strategy for the database dialect:
// PostgreSQL advisory locks, MySQL named locks, or a lock table elsewhere.
func NewMigrationLocker(db *gorm.DB, cfg *HAConfig) (MigrationLocker, error) {
	if cfg == nil {
		cfg = DefaultHAConfig()
	}
	if db == nil || !cfg.MigrationLockEnabled {
		return noopMigrationLock{}, nil
	}

	switch db.Dialector.Name() {
	case "postgres":
		return &pgAdvisoryLock{
			db:     db,
			lockID: int64(crc32.ChecksumIEEE([]byte(cfg.LockName))),
		}, nil
	case "mysql":
		return &mysqlNamedLock{
			db:      db,
			name:    cfg.LockName,
			timeout: cfg.AcquireTimeout,
		}, nil
	}

	if err := db.AutoMigrate(&migrationLockRecord{}); err != nil {
		return nil, fmt.Errorf("create migration lock table: %w", err)
	}
	return &tableLock{
		db:            db,
		name:          cfg.LockName,
		holder:        cfg.Identity,
		timeout:       cfg.AcquireTimeout,
		staleAfter:    cfg.StaleAfter,
		retryInterval: cfg.RetryInterval,
		now:           time.Now,
	}, nil
}

type noopMigrationLock struct{}

func (noopMigrationLock) WithLock(_ context.Context, fn func() error) error {
	return fn()
}

// pgAdvisoryLock holds a session-level advisory lock on one pooled connection
// for the duration of fn.
type pgAdvisoryLock struct {
	db     *gorm.DB
	lockID int64
}

func (l *pgAdvisoryLock) WithLock(ctx context.Context, fn func() error) error {
	return l.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		if err := conn.Exec("SELECT pg_advisory_lock(?)", l.lockID).Error; err != nil {
			return fmt.Errorf("acquire migration advisory lock: %w", err)
		}
		defer conn.WithContext(context.WithoutCancel(ctx)).Exec("SELECT pg_advisory_unlock(?)", l.lockID)
		return fn()
	})
}

// mysqlNamedLock uses GET_LOCK/RELEASE_LOCK, which are scoped to a connection.
type mysqlNamedLock struct {
	db      *gorm.DB
	name    string
	timeout time.Duration
}

func (l *mysqlNamedLock) WithLock(ctx context.Context, fn func() error) error {
	return l.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		var got sql.NullInt64
		seconds := int(l.timeout / time.Second)
		if err := conn.Raw("SELECT GET_LOCK(?, ?)", l.name, seconds).Row().Scan(&got); err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		if !got.Valid || got.Int64 != 1 {
			return fmt.Errorf("acquire migration lock %q: timed out after %s", l.name, l.timeout)
		}
		defer conn.WithContext(context.WithoutCancel(ctx)).Exec("SELECT RELEASE_LOCK(?)", l.name)
		return fn()
	})
}

// migrationLockRecord is the lock row for databases without native named locks.
type migrationLockRecord struct {
	ID       string    `gorm:"primaryKey;column:id"`
	LockedAt time.Time `gorm:"column:locked_at"`
	LockedBy string    `gorm:"column:locked_by"`
}

func (migrationLockRecord) TableName() string { return "migration_lock" }

// tableLock relies on the primary key: only one replica can insert the lock
// row. Rows older than staleAfter are removed before each attempt.
type tableLock struct {
	db            *gorm.DB
	name          string
	holder        string
	timeout       time.Duration
	staleAfter    time.Duration
	retryInterval time.Duration
	now           func() time.Time
}

// ErrLockTimeout is returned when the table lock could not be taken in time.
var ErrLockTimeout = errors.New("migration lock timeout")

func (l *tableLock) WithLock(ctx context.Context, fn func() error) error {
	deadline := l.now().Add(l.timeout)
	for {
		if err := l.tryAcquire(ctx); err == nil {
			break
		}
		if !l.now().Before(deadline) {
			return fmt.Errorf("%w: %q held by another replica", ErrLockTimeout, l.name)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.retryInterval):
		}
	}

	defer l.db.WithContext(context.WithoutCancel(ctx)).
		Where("id = ?", l.name).Delete(&migrationLockRecord{})

	return fn()
}

func (l *tableLock) tryAcquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := l.now()
	db := l.db.WithContext(ctx)
	if l.staleAfter > 0 {
		db.Where("id = ? AND locked_at < ?", l.name, now.Add(-l.staleAfter)).Delete(&migrationLockRecord{})
	}
	return db.Create(&migrationLockRecord{ID: l.name, LockedAt: now, LockedBy: l.holder}).Error
}
