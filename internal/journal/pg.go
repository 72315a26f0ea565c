package journal

import (
	"context"
	"fmt"
	"net/url"

	"github.com/yanun0323/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	defaultPGHost    = "localhost"
	defaultPGPort    = 5432
	defaultPGSSLMode = "disable"
)

// PGOption defines the Postgres connection for the journal sink.
type PGOption struct {
	Host       string
	Port       int
	User       string
	Password   string
	Database   string
	SSLMode    string
	ConnString string
}

// PGJournal appends entries to a Postgres table through GORM.
type PGJournal struct {
	db *gorm.DB
}

// OpenPG connects and migrates the journal table.
func OpenPG(opt PGOption) (*PGJournal, error) {
	db, err := gorm.Open(postgres.Open(opt.dsn()), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, errors.Wrap(err, "migrate trade journal")
	}
	return &PGJournal{db: db}, nil
}

// Append inserts one entry.
func (j *PGJournal) Append(ctx context.Context, e Entry) error {
	if err := j.db.WithContext(ctx).Create(&e).Error; err != nil {
		return errors.Wrap(err, "insert journal entry")
	}
	return nil
}

// Close releases the underlying connection pool.
func (j *PGJournal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (opt PGOption) dsn() string {
	if opt.ConnString != "" {
		return opt.ConnString
	}

	host := opt.Host
	if host == "" {
		host = defaultPGHost
	}
	port := opt.Port
	if port == 0 {
		port = defaultPGPort
	}
	sslMode := opt.SSLMode
	if sslMode == "" {
		sslMode = defaultPGSSLMode
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
	}
	if opt.User != "" {
		if opt.Password != "" {
			u.User = url.UserPassword(opt.User, opt.Password)
		} else {
			u.User = url.User(opt.User)
		}
	}
	if opt.Database != "" {
		u.Path = "/" + opt.Database
	}
	query := url.Values{}
	query.Set("sslmode", sslMode)
	u.RawQuery = query.Encode()
	return u.String()
}
