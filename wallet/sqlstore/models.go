package sqlstore

import "time"

type profileRow struct {
	ID        string `gorm:"primaryKey"`
	StoreID   string `gorm:"uniqueIndex"`
	Sealed    []byte
	CreatedAt time.Time
}

func (profileRow) TableName() string { return "profiles" }

type keyRow struct {
	ID        string `gorm:"primaryKey"`
	KID       string `gorm:"column:kid;uniqueIndex"`
	Sealed    []byte
	CreatedAt time.Time
}

func (keyRow) TableName() string { return "keys" }

type documentRow struct {
	ID        string `gorm:"primaryKey"`
	DID       string `gorm:"column:did;uniqueIndex"`
	CID       string `gorm:"column:cid;index"`
	Body      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (documentRow) TableName() string { return "documents" }
