// Package storage persists the services database: accounts, grouped nicks,
// metadata tuples, registered channels, and channel access entries.
package storage

import (
	"log"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/presbrey/services/account"
	"github.com/presbrey/services/chanacs"
	"github.com/presbrey/services/metadata"
)

// AccountRow is the persisted form of a registered account.
type AccountRow struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"uniqueIndex;size:64"`
	Email        string `gorm:"size:256"`
	PasswordHash string `gorm:"size:128"`
	Flags        uint
	Registered   time.Time
	LastLogin    time.Time
}

// NickRow is one grouped nickname belonging to an account.
type NickRow struct {
	ID      uint   `gorm:"primaryKey"`
	Nick    string `gorm:"uniqueIndex;size:64"`
	Account string `gorm:"index;size:64"`
}

// MetadataRow is one metadata tuple attached to an account or channel.
type MetadataRow struct {
	ID        uint   `gorm:"primaryKey"`
	Namespace string `gorm:"index:idx_meta_owner;size:16"`
	Owner     string `gorm:"index:idx_meta_owner;size:128"`
	Key       string `gorm:"size:128"`
	Value     string `gorm:"size:512"`
}

// ChannelRow is the persisted form of a registered channel.
type ChannelRow struct {
	ID         uint   `gorm:"primaryKey"`
	Name       string `gorm:"uniqueIndex;size:128"`
	Flags      uint
	Registered time.Time
	UsedAt     time.Time
}

// AccessRow is one channel access entry.
type AccessRow struct {
	ID      uint   `gorm:"primaryKey"`
	Channel string `gorm:"index;size:128"`
	Account string `gorm:"index;size:128"`
	Flags   uint
}

// DB wraps the gorm handle with load/snapshot operations for the in-memory
// services state.
type DB struct {
	orm *gorm.DB
}

// Open opens (or creates) the sqlite database at path and migrates the schema.
func Open(path string) (*DB, error) {
	orm, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := orm.AutoMigrate(&AccountRow{}, &NickRow{}, &MetadataRow{}, &ChannelRow{}, &AccessRow{}); err != nil {
		return nil, err
	}
	return &DB{orm: orm}, nil
}

// OpenWith wraps an existing gorm handle, migrating the schema. Tests use this
// with an in-memory sqlite DSN.
func OpenWith(orm *gorm.DB) (*DB, error) {
	if err := orm.AutoMigrate(&AccountRow{}, &NickRow{}, &MetadataRow{}, &ChannelRow{}, &AccessRow{}); err != nil {
		return nil, err
	}
	return &DB{orm: orm}, nil
}

// Load populates the in-memory state from the database.
func (db *DB) Load(dir *account.Directory, meta *metadata.Store, access *chanacs.List) error {
	var accts []AccountRow
	if err := db.orm.Find(&accts).Error; err != nil {
		return err
	}
	for _, row := range accts {
		a := &account.Account{
			Name:         row.Name,
			Email:        row.Email,
			PasswordHash: row.PasswordHash,
			Flags:        account.Flags(row.Flags),
			Registered:   row.Registered,
			LastLogin:    row.LastLogin,
		}
		if err := dir.Add(a); err != nil {
			log.Printf("[storage] skipping account row %q: %v", row.Name, err)
		}
	}

	var nicks []NickRow
	if err := db.orm.Find(&nicks).Error; err != nil {
		return err
	}
	for _, row := range nicks {
		a := dir.FindByName(row.Account)
		if a == nil {
			log.Printf("[storage] skipping nick row %q: account %q not loaded", row.Nick, row.Account)
			continue
		}
		// designated names are added by dir.Add; re-adding is a no-op error
		if err := dir.AddNick(a, row.Nick, 0, true); err != nil && !a.HasNick(row.Nick) {
			log.Printf("[storage] skipping nick row %q: %v", row.Nick, err)
		}
	}

	var tuples []MetadataRow
	if err := db.orm.Find(&tuples).Error; err != nil {
		return err
	}
	for _, row := range tuples {
		meta.Set(metadata.Owner{Namespace: row.Namespace, Name: row.Owner}, row.Key, row.Value)
	}

	var chans []ChannelRow
	if err := db.orm.Find(&chans).Error; err != nil {
		return err
	}
	for _, row := range chans {
		mc := access.AddChannel(row.Name, row.Registered)
		mc.SetFlags(chanacs.ChanFlags(row.Flags), 0)
		mc.TouchUsed(row.UsedAt)
	}

	var entries []AccessRow
	if err := db.orm.Find(&entries).Error; err != nil {
		return err
	}
	for _, row := range entries {
		access.Grant(row.Channel, row.Account, chanacs.Flags(row.Flags))
	}

	return nil
}

// Snapshot replaces the database contents with the current in-memory state,
// in one transaction.
func (db *DB) Snapshot(dir *account.Directory, meta *metadata.Store, access *chanacs.List) error {
	return db.orm.Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&AccountRow{}, &NickRow{}, &MetadataRow{}, &ChannelRow{}, &AccessRow{}} {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return err
			}
		}

		var err error
		dir.Each(func(a *account.Account) {
			if err != nil {
				return
			}
			row := AccountRow{
				Name:         a.Name,
				Email:        a.Email,
				PasswordHash: a.PasswordHash,
				Flags:        uint(a.Flags),
				Registered:   a.Registered,
				LastLogin:    a.LastLogin,
			}
			if e := tx.Create(&row).Error; e != nil {
				err = e
				return
			}
			for _, nick := range a.Nicks {
				if e := tx.Create(&NickRow{Nick: nick, Account: a.Name}).Error; e != nil {
					err = e
					return
				}
			}
		})
		if err != nil {
			return err
		}

		meta.Each(func(owner metadata.Owner, key, value string) {
			if err != nil {
				return
			}
			row := MetadataRow{Namespace: owner.Namespace, Owner: owner.Name, Key: key, Value: value}
			if e := tx.Create(&row).Error; e != nil {
				err = e
			}
		})
		if err != nil {
			return err
		}

		access.EachChannel(func(mc *chanacs.Channel) {
			if err != nil {
				return
			}
			row := ChannelRow{
				Name:       mc.Name,
				Flags:      uint(mc.Flags()),
				Registered: mc.Registered,
				UsedAt:     mc.UsedAt(),
			}
			if e := tx.Create(&row).Error; e != nil {
				err = e
				return
			}
			for _, entry := range mc.Entries() {
				row := AccessRow{Channel: mc.Name, Account: entry.Account, Flags: uint(entry.Flags)}
				if e := tx.Create(&row).Error; e != nil {
					err = e
					return
				}
			}
		})
		return err
	})
}
