package formatter

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/tuneshop/internal/models"
	"github.com/desertthunder/tuneshop/internal/shared"
	"github.com/desertthunder/tuneshop/internal/tasks"
)

func sampleCart() *models.Cart {
	return &models.Cart{
		ID: 4,
		Lines: []models.CartLine{
			{ID: 10, ProductType: models.ProductSong, ProductID: 1, UnitPrice: 149},
			{ID: 11, ProductType: models.ProductAlbum, ProductID: 12, UnitPrice: 999},
		},
		LineCount: 2,
		Total:     1148,
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportCartToCSV", func(t *testing.T) {
		data, err := ExportCartToCSV(sampleCart())
		if err != nil {
			t.Fatalf("ExportCartToCSV failed: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
		}
		if lines[0] != "Line,Type,Product,Price" {
			t.Errorf("CSV missing headers, got: %s", lines[0])
		}
		if lines[1] != "10,SONG,1,1.49" {
			t.Errorf("unexpected first row %q", lines[1])
		}
		if lines[2] != "11,ALBUM,12,9.99" {
			t.Errorf("unexpected second row %q", lines[2])
		}
	})

	t.Run("ExportCartToMarkdown", func(t *testing.T) {
		t.Run("with lines", func(t *testing.T) {
			data, err := ExportCartToMarkdown(sampleCart())
			if err != nil {
				t.Fatalf("ExportCartToMarkdown failed: %v", err)
			}

			output := string(data)
			for _, want := range []string{
				"# Cart",
				"**Items**: 2",
				"**Total**: $11.48",
				"| 1 | Song | 1 | $1.49 |",
				"| 2 | Album | 12 | $9.99 |",
			} {
				if !strings.Contains(output, want) {
					t.Errorf("Markdown missing %q, got: %s", want, output)
				}
			}
		})

		t.Run("empty", func(t *testing.T) {
			data, _ := ExportCartToMarkdown(&models.Cart{})
			if !strings.Contains(string(data), "_Your cart is empty._") {
				t.Errorf("expected empty note, got: %s", data)
			}
		})
	})

	t.Run("ExportCartToText", func(t *testing.T) {
		data, err := ExportCartToText(sampleCart())
		if err != nil {
			t.Fatalf("ExportCartToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Cart #4: 2 items") {
			t.Errorf("Text missing header")
		}
		if !strings.Contains(output, "1. Song #1  $1.49  (line 10)") {
			t.Errorf("Text missing first line, got: %s", output)
		}
		if !strings.Contains(output, "Total: $11.48") {
			t.Errorf("Text missing total")
		}
	})

	t.Run("ExportReceiptToText", func(t *testing.T) {
		method := 7
		receipt := &tasks.Receipt{
			AttemptID:       "a1",
			Origin:          models.OriginDirect,
			PaymentMethodID: &method,
			Purchased:       &models.Cart{Lines: []models.CartLine{{ProductType: models.ProductSong, ProductID: 3, UnitPrice: 149}}, LineCount: 1, Total: 149},
			Restore: &tasks.RestoreReport{
				Requested: 2,
				Restored:  1,
				Failed: []tasks.RestoreFailure{
					{Line: models.CartLineRequest{ProductType: models.ProductAlbum, ProductID: 12}, Err: errors.New("gone")},
				},
			},
		}

		data, err := ExportReceiptToText(receipt)
		if err != nil {
			t.Fatalf("ExportReceiptToText failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"Purchase a1 (DIRECT)",
			"Payment method: 7",
			"1. Song #3  $1.49",
			"Total: $1.49",
			"Cart partially restored: 1/2 lines",
			"Album #12: gone",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("receipt missing %q, got: %s", want, output)
			}
		}

		if _, err := ExportReceiptToText(nil); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for nil receipt, got %v", err)
		}
	})
}

func TestFormatCart(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{format: "", want: "Cart #4"},
		{format: FormatText, want: "Cart #4"},
		{format: FormatMarkdown, want: "# Cart"},
		{format: "md", want: "# Cart"},
		{format: FormatCSV, want: "Line,Type,Product,Price"},
	}

	for _, tt := range tests {
		t.Run("format "+tt.format, func(t *testing.T) {
			data, err := FormatCart(sampleCart(), tt.format)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(string(data), tt.want) {
				t.Errorf("expected %q in output, got: %s", tt.want, data)
			}
		})
	}

	t.Run("json", func(t *testing.T) {
		data, err := FormatCart(sampleCart(), FormatJSON)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var decoded models.Cart
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if decoded.Total != 1148 || len(decoded.Lines) != 2 {
			t.Errorf("unexpected decoded cart: %+v", decoded)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if _, err := FormatCart(sampleCart(), "xml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("nil cart", func(t *testing.T) {
		data, err := FormatCart(nil, FormatText)
		if err != nil || !strings.Contains(string(data), "empty") {
			t.Errorf("expected empty cart text, got %q (%v)", data, err)
		}
	})
}

func TestWriteExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart.csv")

	if err := WriteExport([]byte("a,b\n"), path); err != nil {
		t.Fatalf("WriteExport failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}
	if string(got) != "a,b\n" {
		t.Errorf("unexpected file content %q", got)
	}

	if err := WriteExport(nil, ""); !errors.Is(err, shared.ErrMissingArgument) {
		t.Errorf("expected ErrMissingArgument, got %v", err)
	}
}
