package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tuneshop/internal/models"
	"github.com/desertthunder/tuneshop/internal/tasks"
)

type fakeCart struct {
	cart    *models.Cart
	err     error
	removed []int
}

func (f *fakeCart) Fetch(ctx context.Context) (*models.Cart, error) {
	return f.cart, f.err
}

func (f *fakeCart) RemoveLine(ctx context.Context, lineID int) (*models.Cart, error) {
	f.removed = append(f.removed, lineID)
	next := &models.Cart{ID: f.cart.ID}
	for _, l := range f.cart.Lines {
		if l.ID != lineID {
			next.Lines = append(next.Lines, l)
			next.Total += l.UnitPrice
		}
	}
	next.LineCount = len(next.Lines)
	f.cart = next
	return next, nil
}

type fakeCheckout struct {
	began   int
	method  int
	receipt *tasks.Receipt
	err     error
}

func (f *fakeCheckout) BeginFromCart(ctx context.Context) (models.CheckoutContext, error) {
	f.began++
	return models.CheckoutContext{AttemptID: "a1", Origin: models.OriginCart}, nil
}

func (f *fakeCheckout) Run(ctx context.Context, selector tasks.PaymentSelector) (*tasks.Receipt, error) {
	choice, err := selector.SelectPayment(ctx, models.CheckoutContext{}, nil)
	if err != nil {
		return nil, err
	}
	f.method = choice.MethodID
	return f.receipt, f.err
}

func sampleCart() *models.Cart {
	return &models.Cart{
		ID: 1,
		Lines: []models.CartLine{
			{ID: 10, ProductType: models.ProductSong, ProductID: 1, UnitPrice: 199},
			{ID: 11, ProductType: models.ProductAlbum, ProductID: 2, UnitPrice: 199},
		},
		LineCount: 2,
		Total:     398,
	}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// step applies msg and returns the resulting command.
func step(m *Model, msg tea.Msg) tea.Cmd {
	_, cmd := m.Update(msg)
	return cmd
}

func loaded(t *testing.T, cart *fakeCart, checkout *fakeCheckout) *Model {
	t.Helper()
	m := NewModel(context.Background(), cart, checkout, nil)
	step(m, tea.WindowSizeMsg{Width: 80, Height: 24})
	step(m, m.Init()())
	return m
}

func TestModel(t *testing.T) {
	t.Run("Loads Cart", func(t *testing.T) {
		m := loaded(t, &fakeCart{cart: sampleCart()}, &fakeCheckout{})

		if m.ViewState() != CartView {
			t.Fatalf("expected cart view, got %v", m.ViewState())
		}
		if len(m.lineList.Items()) != 2 {
			t.Errorf("expected 2 items, got %d", len(m.lineList.Items()))
		}
		if view := m.View(); !strings.Contains(view, "3.98") {
			t.Errorf("expected total in view, got:\n%s", view)
		}
	})

	t.Run("Fetch Error Shows Notice", func(t *testing.T) {
		m := loaded(t, &fakeCart{err: errors.New("backend down")}, &fakeCheckout{})
		if !strings.Contains(m.View(), "backend down") {
			t.Errorf("expected notice in view, got:\n%s", m.View())
		}
	})

	t.Run("Empty Cart Blocks Checkout", func(t *testing.T) {
		m := loaded(t, &fakeCart{cart: &models.Cart{}}, &fakeCheckout{})

		step(m, tea.KeyMsg{Type: tea.KeyEnter})
		if m.ViewState() != CartView {
			t.Errorf("expected to stay on cart view, got %v", m.ViewState())
		}
		if !strings.Contains(m.View(), "Your cart is empty.") {
			t.Errorf("expected empty cart notice, got:\n%s", m.View())
		}
	})

	t.Run("Remove Selected Line", func(t *testing.T) {
		cart := &fakeCart{cart: sampleCart()}
		m := loaded(t, cart, &fakeCheckout{})

		cmd := step(m, keyRunes("d"))
		if cmd == nil {
			t.Fatal("expected a remove command")
		}
		step(m, cmd())

		if len(cart.removed) != 1 || cart.removed[0] != 10 {
			t.Errorf("expected line 10 removed, got %v", cart.removed)
		}
		if len(m.lineList.Items()) != 1 {
			t.Errorf("expected 1 item left, got %d", len(m.lineList.Items()))
		}
	})

	t.Run("Checkout Flow", func(t *testing.T) {
		checkout := &fakeCheckout{receipt: &tasks.Receipt{AttemptID: "a1", Origin: models.OriginCart, Purchased: sampleCart()}}
		m := loaded(t, &fakeCart{cart: sampleCart()}, checkout)

		step(m, tea.KeyMsg{Type: tea.KeyEnter})
		if m.ViewState() != PaymentView {
			t.Fatalf("expected payment view, got %v", m.ViewState())
		}

		step(m, keyRunes("abc"))
		step(m, tea.KeyMsg{Type: tea.KeyEnter})
		if m.ViewState() != PaymentView || m.inputErr == "" {
			t.Fatalf("expected invalid input to be rejected")
		}

		m.method.SetValue("7")
		if cmd := step(m, tea.KeyMsg{Type: tea.KeyEnter}); cmd == nil {
			t.Fatal("expected checkout command")
		}
		if m.ViewState() != CheckoutView {
			t.Fatalf("expected checkout view, got %v", m.ViewState())
		}

		step(m, progressUpdateMsg(tasks.ProgressUpdate{State: models.StateProcessing, Message: "Processing purchase..."}))
		if !strings.Contains(m.View(), "Processing purchase...") {
			t.Errorf("expected progress message in view, got:\n%s", m.View())
		}

		step(m, m.startCheckout(7)())
		if checkout.began != 1 || checkout.method != 7 {
			t.Errorf("expected one checkout with method 7, got began=%d method=%d", checkout.began, checkout.method)
		}
		if m.ViewState() != ResultView {
			t.Fatalf("expected result view, got %v", m.ViewState())
		}
		if !strings.Contains(m.View(), "Purchase confirmed") {
			t.Errorf("expected confirmation, got:\n%s", m.View())
		}
	})

	t.Run("Failed Checkout Shows Reason", func(t *testing.T) {
		m := loaded(t, &fakeCart{cart: sampleCart()}, &fakeCheckout{})
		step(m, checkoutCompleteMsg{err: &tasks.FinalizeError{Message: "Fondos insuficientes", Err: errors.New("402")}})

		view := m.View()
		if !strings.Contains(view, "Checkout failed") || !strings.Contains(view, "Fondos insuficientes") {
			t.Errorf("expected failure reason, got:\n%s", view)
		}

		step(m, keyRunes("r"))
		if m.ViewState() != CartView {
			t.Errorf("expected back on cart view, got %v", m.ViewState())
		}
	})
}
