package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/desertthunder/tuneshop/internal/formatter"
	"github.com/desertthunder/tuneshop/internal/models"
	"github.com/desertthunder/tuneshop/internal/shared"
	"github.com/urfave/cli/v3"
)

// parseProduct reads the product type and id arguments shared by cart add and checkout buy.
func parseProduct(cmd *cli.Command) (models.ProductType, int, error) {
	rawType := cmd.StringArg("type")
	rawID := cmd.StringArg("id")
	if rawType == "" || rawID == "" {
		return "", 0, fmt.Errorf("%w: <type> <id>", shared.ErrMissingArgument)
	}

	pt, err := models.ParseProductType(rawType)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
	}

	id, err := parsePositive(rawID, "product id")
	if err != nil {
		return "", 0, err
	}
	return pt, id, nil
}

func parsePositive(raw, name string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %q", shared.ErrInvalidArgument, name, raw)
	}
	return n, nil
}

// CartShow prints the server cart in the requested format.
func (r *Runner) CartShow(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSession(); err != nil {
		return err
	}

	c, err := r.cart.Fetch(ctx)
	if err != nil {
		return err
	}

	data, err := formatter.FormatCart(c, cmd.String("format"))
	if err != nil {
		return err
	}

	if output := cmd.String("output"); output != "" {
		if err := formatter.WriteExport(data, output); err != nil {
			return err
		}
		r.logger.Info("cart exported", "path", output)
		return r.writePlain("✓ Cart written to %s\n", output)
	}

	_, err = r.output.Write(data)
	return err
}

// CartAdd adds a song or album to the cart.
func (r *Runner) CartAdd(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSession(); err != nil {
		return err
	}

	pt, id, err := parseProduct(cmd)
	if err != nil {
		return err
	}

	c, err := r.cart.AddLine(ctx, pt, id)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Added %s #%d · %d items, total %s\n",
		formatter.ProductLabel(pt), id, c.LineCount, styles.Price("$"+c.Total.String()))
}

// CartRemove removes a line by its server line id.
func (r *Runner) CartRemove(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSession(); err != nil {
		return err
	}

	lineID, err := parsePositive(cmd.StringArg("line"), "line id")
	if err != nil {
		return err
	}

	c, err := r.cart.RemoveLine(ctx, lineID)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Removed line %d · %d items, total %s\n",
		lineID, c.LineCount, styles.Price("$"+c.Total.String()))
}

// CartClear empties the cart.
func (r *Runner) CartClear(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSession(); err != nil {
		return err
	}

	if err := r.cart.Clear(ctx); err != nil {
		return err
	}
	return r.writePlain("✓ Cart cleared\n")
}
