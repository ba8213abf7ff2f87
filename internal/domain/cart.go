package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const (
	KindPredefined = "predefined"
	KindCustom     = "custom"
)

// ProductID is carried as a string but storefront pages send numeric ids, so both decode.
type ProductID string

func (p *ProductID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*p = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = ProductID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("product_id must be a string or number: %w", err)
	}
	*p = ProductID(n.String())
	return nil
}

func (p ProductID) String() string { return string(p) }

// LineItem is one cart entry as exchanged with the cart API.
type LineItem struct {
	ID            int64     `json:"id" bson:"id"`
	ProductID     ProductID `json:"product_id" bson:"product_id"`
	ProductType   string    `json:"product_type,omitempty" bson:"product_type"`
	Name          string    `json:"nom" bson:"nom"`
	UnitPrice     float64   `json:"prix" bson:"prix"`
	Quantity      int       `json:"quantite" bson:"quantite"`
	Image         string    `json:"image,omitempty" bson:"image,omitempty"`
	ContainerType string    `json:"contenant,omitempty" bson:"contenant,omitempty"`
	Kind          string    `json:"type,omitempty" bson:"type,omitempty"`
	AddedAt       time.Time `json:"-" bson:"added_at"`
}

// AddItemRequest is the POST /cart body.
type AddItemRequest struct {
	ProductID     ProductID `json:"product_id"`
	Name          string    `json:"nom"`
	UnitPrice     float64   `json:"prix"`
	Image         string    `json:"image"`
	ContainerType string    `json:"contenant"`
	Kind          string    `json:"type"`
	Quantity      int       `json:"quantite"`
}

// CartResponse wraps the cart returned by mutating endpoints.
type CartResponse struct {
	Message string     `json:"message,omitempty"`
	Cart    []LineItem `json:"cart"`
}

type LoginStatus struct {
	LoggedIn  bool   `json:"logged_in"`
	UserEmail string `json:"user_email,omitempty"`
}

// Cart is the server-side document for one user.
type Cart struct {
	ID         string     `bson:"_id,omitempty" json:"-"`
	UserID     string     `bson:"user_id" json:"user_id"`
	Items      []LineItem `bson:"items" json:"items"`
	NextItemID int64      `bson:"next_item_id" json:"next_item_id"`
	CreatedAt  time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `bson:"updated_at" json:"updated_at"`
}
