// Package convert maps domain models to JSON views and request bodies to domain inputs.
package convert

import (
	"fmt"
	"time"

	"github.com/and161185/winecellar/internal/errs"
	"github.com/and161185/winecellar/internal/model"
)

// DateLayout is the wire format of drinking dates.
const DateLayout = "2006-01-02"

// --- owners ---

// OwnerView is an owner without its password hash.
type OwnerView struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	Scopes    string    `json:"scopes"`
	IsAdmin   bool      `json:"is_admin"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

func ToOwnerView(u model.User) OwnerView {
	return OwnerView{
		ID:        u.ID,
		Name:      u.Name,
		Username:  u.Username,
		Scopes:    u.Scopes,
		IsAdmin:   u.IsAdmin,
		Enabled:   u.Enabled,
		CreatedAt: u.CreatedAt,
	}
}

func ToOwnerViews(us []model.User) []OwnerView {
	out := make([]OwnerView, 0, len(us))
	for _, u := range us {
		out = append(out, ToOwnerView(u))
	}
	return out
}

// NewOwnerRequest is the body of POST /users/add.
type NewOwnerRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
	Scopes   string `json:"scopes"`
	IsAdmin  bool   `json:"is_admin"`
	Enabled  *bool  `json:"enabled"`
}

// ToNewUser defaults Enabled to true when omitted.
func (r NewOwnerRequest) ToNewUser() model.NewUser {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return model.NewUser{
		Name:     r.Name,
		Username: r.Username,
		Password: r.Password,
		Scopes:   r.Scopes,
		IsAdmin:  r.IsAdmin,
		Enabled:  enabled,
	}
}

// UpdateOwnerRequest is the body of PUT /users/{username}; absent fields are unchanged.
type UpdateOwnerRequest struct {
	Name     *string `json:"name"`
	Password *string `json:"password"`
	Scopes   *string `json:"scopes"`
	IsAdmin  *bool   `json:"is_admin"`
	Enabled  *bool   `json:"enabled"`
}

func (r UpdateOwnerRequest) ToUserUpdate() model.UserUpdate {
	return model.UserUpdate(r)
}

// TokenView is the OAuth2 password-grant response.
type TokenView struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func ToTokenView(t model.Tokens) TokenView {
	return TokenView{AccessToken: t.AccessToken, TokenType: "bearer"}
}

// --- storages ---

type StorageView struct {
	ID          int64  `json:"id"`
	OwnerID     int64  `json:"owner_id"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

func ToStorageView(s model.Storage) StorageView {
	return StorageView(s)
}

func ToStorageViews(ss []model.Storage) []StorageView {
	out := make([]StorageView, 0, len(ss))
	for _, s := range ss {
		out = append(out, ToStorageView(s))
	}
	return out
}

type NewStorageRequest struct {
	Location    string `json:"location"`
	Description string `json:"description"`
}

// --- wines and bottles ---

type WineView struct {
	ID               int64    `json:"id,omitempty"`
	Name             string   `json:"name"`
	Vintage          int      `json:"vintage"`
	Grapes           string   `json:"grapes,omitempty"`
	Type             string   `json:"type,omitempty"`
	DrinkFrom        *int     `json:"drink_from,omitempty"`
	DrinkBefore      *int     `json:"drink_before,omitempty"`
	Alcohol          *float64 `json:"alcohol,omitempty"`
	GeographicInfo   string   `json:"geographic_info,omitempty"`
	QualitySignature string   `json:"quality_signature,omitempty"`
}

func ToWineView(w model.Wine) WineView {
	return WineView(w)
}

func (w WineView) toModel() model.Wine {
	m := model.Wine(w)
	m.ID = 0
	return m
}

type EntryView struct {
	ID         int64   `json:"id"`
	WineID     int64   `json:"wine_id"`
	StorageID  int64   `json:"storage_id"`
	BottleSize float64 `json:"bottle_size"`
	Quantity   int     `json:"quantity"`
}

func ToEntryView(e model.CellarEntry) EntryView {
	return EntryView{ID: e.ID, WineID: e.WineID, StorageID: e.StorageID, BottleSize: e.BottleSize, Quantity: e.Quantity}
}

// StockView is one in-stock line joined with its wine and storage.
type StockView struct {
	ID         int64       `json:"id"`
	BottleSize float64     `json:"bottle_size"`
	Quantity   int         `json:"quantity"`
	Wine       WineView    `json:"wine"`
	Storage    StorageView `json:"storage"`
}

func ToStockViews(items []model.StockItem) []StockView {
	out := make([]StockView, 0, len(items))
	for _, it := range items {
		out = append(out, StockView{
			ID:         it.EntryID,
			BottleSize: it.BottleSize,
			Quantity:   it.Quantity,
			Wine:       ToWineView(it.Wine),
			Storage:    ToStorageView(it.Storage),
		})
	}
	return out
}

type AddBottlesRequest struct {
	StorageID  int64    `json:"storage_id"`
	BottleSize float64  `json:"bottle_size"`
	Quantity   int      `json:"quantity"`
	Wine       WineView `json:"wine"`
}

func (r AddBottlesRequest) ToModel() model.AddBottles {
	return model.AddBottles{
		StorageID:  r.StorageID,
		BottleSize: r.BottleSize,
		Quantity:   r.Quantity,
		Wine:       r.Wine.toModel(),
	}
}

type ConsumeRequest struct {
	WineID     int64          `json:"wine_id"`
	StorageID  int64          `json:"storage_id"`
	BottleSize float64        `json:"bottle_size"`
	Quantity   int            `json:"quantity"`
	Rating     *RatingRequest `json:"rating,omitempty"`
}

func (r ConsumeRequest) ToModel() (model.Consume, error) {
	c := model.Consume{
		Key:      model.BottleKey{WineID: r.WineID, StorageID: r.StorageID, BottleSize: r.BottleSize},
		Quantity: r.Quantity,
	}
	if r.Rating != nil {
		r.Rating.WineID = r.WineID
		nr, err := r.Rating.ToModel()
		if err != nil {
			return model.Consume{}, err
		}
		c.Rating = &nr
	}
	return c, nil
}

type TransferRequest struct {
	WineID        int64   `json:"wine_id"`
	FromStorageID int64   `json:"from_storage_id"`
	ToStorageID   int64   `json:"to_storage_id"`
	BottleSize    float64 `json:"bottle_size"`
	Quantity      int     `json:"quantity"`
}

func (r TransferRequest) ToModel() model.Transfer {
	return model.Transfer(r)
}

type ConsumeView struct {
	Remaining int         `json:"remaining"`
	Rating    *RatingView `json:"rating,omitempty"`
}

// --- ratings ---

type RatingView struct {
	ID           int64   `json:"id"`
	RaterID      int64   `json:"rater_id"`
	WineID       int64   `json:"wine_id"`
	Rating       float64 `json:"rating"`
	DrinkingDate string  `json:"drinking_date"`
	Comment      string  `json:"comment"`
}

func ToRatingView(r model.Rating) RatingView {
	return RatingView{
		ID:           r.ID,
		RaterID:      r.RaterID,
		WineID:       r.WineID,
		Rating:       r.Rating,
		DrinkingDate: r.DrinkingDate.Format(DateLayout),
		Comment:      r.Comment,
	}
}

func ToRatingViews(rs []model.Rating) []RatingView {
	out := make([]RatingView, 0, len(rs))
	for _, r := range rs {
		out = append(out, ToRatingView(r))
	}
	return out
}

// RatingRequest is a tasting note; an empty DrinkingDate means today.
type RatingRequest struct {
	WineID       int64   `json:"wine_id"`
	Rating       float64 `json:"rating"`
	DrinkingDate string  `json:"drinking_date"`
	Comment      string  `json:"comment"`
}

func (r RatingRequest) ToModel() (model.NewRating, error) {
	nr := model.NewRating{WineID: r.WineID, Rating: r.Rating, Comment: r.Comment}
	if r.DrinkingDate != "" {
		d, err := time.Parse(DateLayout, r.DrinkingDate)
		if err != nil {
			return model.NewRating{}, fmt.Errorf("drinking_date %q is not YYYY-MM-DD: %w", r.DrinkingDate, errs.ErrValidation)
		}
		nr.DrinkingDate = d
	}
	return nr, nil
}
