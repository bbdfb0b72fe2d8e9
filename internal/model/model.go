// Package model defines domain entities used by services and repositories.
package model

import "time"

// DefaultBottleSize is the bottle size (litres) assumed when a request omits it.
const DefaultBottleSize = 0.75

// Tokens collects an issued access token and its metadata.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
	Scopes      []string  // scopes actually granted
}

// User is a cellar owner. PwdHash is a bcrypt hash and must never leave the service layer.
type User struct {
	ID        int64  // server-assigned PK
	Name      string // display name
	Username  string // unique
	PwdHash   string
	Scopes    string // space-separated granted scopes
	IsAdmin   bool   // bypasses scope intersection
	Enabled   bool   // disabled users cannot log in or use tokens
	CreatedAt time.Time
}

// NewUser is the input for creating an owner; Password is plaintext and hashed by the service.
type NewUser struct {
	Name     string
	Username string
	Password string
	Scopes   string
	IsAdmin  bool
	Enabled  bool
}

// UserUpdate is a partial update; nil fields are left unchanged.
type UserUpdate struct {
	Name     *string
	Password *string // plaintext; hashed by the service
	Scopes   *string
	IsAdmin  *bool
	Enabled  *bool
}

// Storage is a physical location (fridge, rack, ...) owned by exactly one user.
type Storage struct {
	ID          int64
	OwnerID     int64
	Location    string
	Description string
}

// Wine is a beverage identified by (Name, Vintage).
type Wine struct {
	ID               int64
	Name             string
	Vintage          int
	Grapes           string
	Type             string
	DrinkFrom        *int // first year of the drinking window
	DrinkBefore      *int // last year of the drinking window
	Alcohol          *float64
	GeographicInfo   string
	QualitySignature string
}

// BottleKey is the logical key of a cellar entry.
type BottleKey struct {
	WineID     int64
	StorageID  int64
	BottleSize float64
}

// CellarEntry is a quantity of one bottle size of one wine in one storage unit.
type CellarEntry struct {
	ID         int64
	OwnerID    int64
	WineID     int64
	StorageID  int64
	BottleSize float64
	Quantity   int // always > 0 for persisted rows
}

// Key returns the logical key of the entry.
func (e CellarEntry) Key() BottleKey {
	return BottleKey{WineID: e.WineID, StorageID: e.StorageID, BottleSize: e.BottleSize}
}

// AddBottles is a request to put Quantity bottles of Wine into a storage unit.
type AddBottles struct {
	StorageID  int64
	BottleSize float64
	Quantity   int
	Wine       Wine // looked up by (Name, Vintage); inserted when absent
}

// NewRating is the input for a tasting note.
type NewRating struct {
	WineID       int64
	Rating       float64
	DrinkingDate time.Time
	Comment      string
}

// Consume is a request to take bottles out of the cellar, optionally rating them.
type Consume struct {
	Key      BottleKey
	Quantity int
	Rating   *NewRating
}

// Transfer moves bottles between two storage units of the same owner.
type Transfer struct {
	WineID        int64
	FromStorageID int64
	ToStorageID   int64
	BottleSize    float64
	Quantity      int
}

// Rating is a tasting note recorded per consumption event.
type Rating struct {
	ID           int64
	RaterID      int64
	WineID       int64
	Rating       float64
	DrinkingDate time.Time
	Comment      string
}

// StockItem is a read-only projection of a cellar entry joined with its wine and storage.
type StockItem struct {
	EntryID    int64
	BottleSize float64
	Quantity   int
	Wine       Wine
	Storage    Storage
}
