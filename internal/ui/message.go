package ui

import (
	"github.com/desertthunder/tuneshop/internal/models"
	"github.com/desertthunder/tuneshop/internal/tasks"
)

type cartFetchedMsg struct {
	cart *models.Cart
	err  error
}

type progressUpdateMsg tasks.ProgressUpdate

type checkoutCompleteMsg struct {
	receipt *tasks.Receipt
	err     error
}
