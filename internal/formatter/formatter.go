// package formatter renders carts and receipts as plain text, Markdown, CSV or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/desertthunder/tuneshop/internal/models"
	"github.com/desertthunder/tuneshop/internal/shared"
	"github.com/desertthunder/tuneshop/internal/tasks"
)

// Output formats accepted by [FormatCart].
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
	FormatJSON     = "json"
)

// ProductLabel returns the display name of a product type.
func ProductLabel(pt models.ProductType) string {
	switch pt {
	case models.ProductSong:
		return "Song"
	case models.ProductAlbum:
		return "Album"
	default:
		return string(pt)
	}
}

// FormatCart renders cart in the named format.
func FormatCart(cart *models.Cart, format string) ([]byte, error) {
	if cart == nil {
		cart = &models.Cart{}
	}

	switch format {
	case FormatText, "":
		return ExportCartToText(cart)
	case FormatMarkdown, "md":
		return ExportCartToMarkdown(cart)
	case FormatCSV:
		return ExportCartToCSV(cart)
	case FormatJSON:
		data, err := json.MarshalIndent(cart, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("%w: unknown format %q (text, markdown, csv, json)", shared.ErrInvalidArgument, format)
	}
}

// ExportCartToCSV converts a cart to CSV with columns: Line, Type, Product, Price
func ExportCartToCSV(cart *models.Cart) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Line", "Type", "Product", "Price"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, line := range cart.Lines {
		record := []string{
			strconv.Itoa(line.ID),
			string(line.ProductType),
			strconv.Itoa(line.ProductID),
			line.UnitPrice.String(),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportCartToMarkdown converts a cart to a Markdown table
func ExportCartToMarkdown(cart *models.Cart) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Cart\n\n")
	fmt.Fprintf(&buf, "**Items**: %d\n", cart.LineCount)
	fmt.Fprintf(&buf, "**Total**: $%s\n\n", cart.Total)

	if len(cart.Lines) == 0 {
		buf.WriteString("_Your cart is empty._\n")
		return buf.Bytes(), nil
	}

	buf.WriteString("| # | Type | Product | Price |\n")
	buf.WriteString("|---|------|---------|------:|\n")
	for i, line := range cart.Lines {
		fmt.Fprintf(&buf, "| %d | %s | %d | $%s |\n", i+1, ProductLabel(line.ProductType), line.ProductID, line.UnitPrice)
	}

	return buf.Bytes(), nil
}

// ExportCartToText converts a cart to plain text
func ExportCartToText(cart *models.Cart) ([]byte, error) {
	var buf bytes.Buffer

	if len(cart.Lines) == 0 {
		buf.WriteString("Your cart is empty.\n")
		return buf.Bytes(), nil
	}

	fmt.Fprintf(&buf, "Cart #%d: %d items\n\n", cart.ID, cart.LineCount)
	for i, line := range cart.Lines {
		fmt.Fprintf(&buf, "%d. %s #%d  $%s  (line %d)\n", i+1, ProductLabel(line.ProductType), line.ProductID, line.UnitPrice, line.ID)
	}
	fmt.Fprintf(&buf, "\nTotal: $%s\n", cart.Total)

	return buf.Bytes(), nil
}

// ExportReceiptToText summarizes a confirmed purchase.
func ExportReceiptToText(receipt *tasks.Receipt) ([]byte, error) {
	if receipt == nil {
		return nil, fmt.Errorf("%w: no receipt", shared.ErrInvalidArgument)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Purchase %s (%s)\n", receipt.AttemptID, receipt.Origin)
	if receipt.PaymentMethodID != nil {
		fmt.Fprintf(&buf, "Payment method: %d\n", *receipt.PaymentMethodID)
	} else {
		buf.WriteString("Payment method: none (free)\n")
	}

	if p := receipt.Purchased; p != nil {
		buf.WriteString("\n")
		for i, line := range p.Lines {
			fmt.Fprintf(&buf, "%d. %s #%d  $%s\n", i+1, ProductLabel(line.ProductType), line.ProductID, line.UnitPrice)
		}
		fmt.Fprintf(&buf, "\nTotal: $%s\n", p.Total)
	}

	if r := receipt.Restore; r != nil {
		if r.Complete() {
			fmt.Fprintf(&buf, "Cart restored: %d/%d lines\n", r.Restored, r.Requested)
		} else {
			fmt.Fprintf(&buf, "Cart partially restored: %d/%d lines\n", r.Restored, r.Requested)
			for _, f := range r.Failed {
				fmt.Fprintf(&buf, "  - %s #%d: %v\n", ProductLabel(f.Line.ProductType), f.Line.ProductID, f.Err)
			}
		}
	}

	return buf.Bytes(), nil
}

// WriteExport writes rendered output to path.
func WriteExport(data []byte, path string) error {
	if path == "" {
		return fmt.Errorf("%w: output path", shared.ErrMissingArgument)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}
