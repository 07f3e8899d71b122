package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/tuneshop/internal/models"
)

var _ list.Item = lineItem{}

// lineItem wraps [models.CartLine] to implement [list.Item].
type lineItem struct {
	line models.CartLine
}

func (i lineItem) FilterValue() string { return i.Title() }
func (i lineItem) Title() string {
	return fmt.Sprintf("%s #%d", productLabel(i.line.ProductType), i.line.ProductID)
}
func (i lineItem) Description() string { return "$" + i.line.UnitPrice.String() }

func productLabel(pt models.ProductType) string {
	switch pt {
	case models.ProductSong:
		return "Song"
	case models.ProductAlbum:
		return "Album"
	default:
		return string(pt)
	}
}

func lineItems(cart *models.Cart) []list.Item {
	if cart == nil {
		return []list.Item{}
	}
	items := make([]list.Item, len(cart.Lines))
	for i, l := range cart.Lines {
		items[i] = lineItem{line: l}
	}
	return items
}
