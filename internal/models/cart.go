package models

import (
	"fmt"
)

// ProductType identifies what a cart line sells.
type ProductType string

const (
	ProductSong  ProductType = "SONG"
	ProductAlbum ProductType = "ALBUM"
)

// Valid reports whether p is a known product type.
func (p ProductType) Valid() bool {
	return p == ProductSong || p == ProductAlbum
}

// ParseProductType accepts the English names and the backend's wire names.
func ParseProductType(s string) (ProductType, error) {
	switch s {
	case "SONG", "song", "CANCION", "cancion":
		return ProductSong, nil
	case "ALBUM", "album":
		return ProductAlbum, nil
	default:
		return "", fmt.Errorf("unknown product type %q", s)
	}
}

// CartLine is one product in the cart. Line IDs are assigned by the server and change when a line is re-added.
type CartLine struct {
	ID          int         `json:"id"`
	ProductType ProductType `json:"productType"`
	ProductID   int         `json:"productId"`
	UnitPrice   Price       `json:"unitPrice"`
}

// Request returns the re-insertable shape of the line.
func (l CartLine) Request() CartLineRequest {
	return CartLineRequest{ProductType: l.ProductType, ProductID: l.ProductID}
}

// CartLineRequest is the minimal shape needed to add a line back.
type CartLineRequest struct {
	ProductType ProductType `json:"productType"`
	ProductID   int         `json:"productId"`
}

// Cart is the server's view of the user's cart.
type Cart struct {
	ID        int        `json:"id"`
	Lines     []CartLine `json:"lines"`
	LineCount int        `json:"lineCount"`
	Total     Price      `json:"totalPrice"`
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Lines) == 0
}

// Has reports whether a line for the product exists.
func (c *Cart) Has(pt ProductType, productID int) bool {
	if c == nil {
		return false
	}
	for _, l := range c.Lines {
		if l.ProductType == pt && l.ProductID == productID {
			return true
		}
	}
	return false
}

// Requests converts every line into a [CartLineRequest], preserving order.
func (c *Cart) Requests() []CartLineRequest {
	if c == nil {
		return []CartLineRequest{}
	}
	out := make([]CartLineRequest, 0, len(c.Lines))
	for _, l := range c.Lines {
		out = append(out, l.Request())
	}
	return out
}

// Clone returns a deep copy.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Lines = append([]CartLine(nil), c.Lines...)
	return &cp
}

// Validate checks that the count and total agree with the lines.
func (c *Cart) Validate() error {
	if c.LineCount != len(c.Lines) {
		return fmt.Errorf("line count %d does not match %d lines", c.LineCount, len(c.Lines))
	}
	var sum Price
	for _, l := range c.Lines {
		sum += l.UnitPrice
	}
	if sum != c.Total {
		return fmt.Errorf("total %s does not match line sum %s", c.Total, sum)
	}
	return nil
}
