package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/desertthunder/tuneshop/internal/models"
	"github.com/desertthunder/tuneshop/internal/shared"
)

// Wire names of product types.
const (
	wireSong  = "CANCION"
	wireAlbum = "ALBUM"
)

// CartItem is a cart line as the backend sends it.
type CartItem struct {
	ID          int          `json:"idItem"`
	ProductType string       `json:"tipoProducto"`
	SongID      *int         `json:"idCancion,omitempty"`
	AlbumID     *int         `json:"idAlbum,omitempty"`
	Price       models.Price `json:"precio"`
}

// CartPayload is the backend cart document.
type CartPayload struct {
	ID         int          `json:"idCarrito"`
	Items      []CartItem   `json:"items"`
	ItemCount  int          `json:"cantidadItems"`
	TotalPrice models.Price `json:"precioTotal"`
}

type addItemRequest struct {
	ProductType string `json:"tipoProducto"`
	SongID      *int   `json:"idCancion,omitempty"`
	AlbumID     *int   `json:"idAlbum,omitempty"`
}

func toWire(pt models.ProductType) (string, error) {
	switch pt {
	case models.ProductSong:
		return wireSong, nil
	case models.ProductAlbum:
		return wireAlbum, nil
	}
	return "", fmt.Errorf("%w: unknown product type %q", shared.ErrInvalidInput, pt)
}

func fromWire(s string) (models.ProductType, error) {
	switch s {
	case wireSong, "SONG":
		return models.ProductSong, nil
	case wireAlbum, "ÁLBUM":
		return models.ProductAlbum, nil
	}
	return "", fmt.Errorf("unknown wire product type %q", s)
}

// Model converts the wire document into a [models.Cart].
func (p CartPayload) Model() (*models.Cart, error) {
	cart := &models.Cart{
		ID:        p.ID,
		Lines:     make([]models.CartLine, 0, len(p.Items)),
		LineCount: p.ItemCount,
		Total:     p.TotalPrice,
	}

	for _, item := range p.Items {
		pt, err := fromWire(item.ProductType)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", shared.ErrAPIRequest, item.ID, err)
		}

		var productID *int
		if pt == models.ProductSong {
			productID = item.SongID
		} else {
			productID = item.AlbumID
		}
		if productID == nil {
			return nil, fmt.Errorf("%w: item %d has no product id", shared.ErrAPIRequest, item.ID)
		}

		cart.Lines = append(cart.Lines, models.CartLine{
			ID:          item.ID,
			ProductType: pt,
			ProductID:   *productID,
			UnitPrice:   item.Price,
		})
	}
	return cart, nil
}

// CartService talks to the /carrito endpoints.
type CartService struct {
	api *APIService
}

// NewCartService creates a cart client on top of api.
func NewCartService(api *APIService) *CartService {
	return &CartService{api: api}
}

func (s *CartService) cart(ctx context.Context, req Request) (*models.Cart, error) {
	var payload CartPayload
	if err := s.api.Do(ctx, req, &payload); err != nil {
		return nil, err
	}
	return payload.Model()
}

// Get returns the user's cart.
func (s *CartService) Get(ctx context.Context) (*models.Cart, error) {
	return s.cart(ctx, Request{Method: http.MethodGet, Path: "/carrito"})
}

// AddItem adds one product and returns the updated cart.
func (s *CartService) AddItem(ctx context.Context, line models.CartLineRequest) (*models.Cart, error) {
	wire, err := toWire(line.ProductType)
	if err != nil {
		return nil, err
	}

	id := line.ProductID
	body := addItemRequest{ProductType: wire}
	if line.ProductType == models.ProductSong {
		body.SongID = &id
	} else {
		body.AlbumID = &id
	}

	return s.cart(ctx, Request{Method: http.MethodPost, Path: "/carrito/items", Body: body})
}

// RemoveItem deletes a line by its server id and returns the updated cart.
func (s *CartService) RemoveItem(ctx context.Context, lineID int) (*models.Cart, error) {
	return s.cart(ctx, Request{
		Method: http.MethodDelete,
		Path:   "/carrito/items/" + strconv.Itoa(lineID),
	})
}

// Clear empties the cart. A bodiless answer yields an empty cart.
func (s *CartService) Clear(ctx context.Context) (*models.Cart, error) {
	return s.cart(ctx, Request{Method: http.MethodDelete, Path: "/carrito"})
}

// Checkout finalizes the purchase of everything in the cart.
// A nil paymentMethodID omits the query parameter (free checkout).
func (s *CartService) Checkout(ctx context.Context, paymentMethodID *int) (*models.Cart, error) {
	req := Request{Method: http.MethodPost, Path: "/carrito/checkout"}
	if paymentMethodID != nil {
		req.Query = url.Values{"idMetodoPago": {strconv.Itoa(*paymentMethodID)}}
	}
	return s.cart(ctx, req)
}
