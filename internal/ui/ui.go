package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tuneshop/internal/models"
	"github.com/desertthunder/tuneshop/internal/shared"
	"github.com/desertthunder/tuneshop/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	CartView ViewState = iota
	PaymentView
	CheckoutView
	ResultView
)

// CartSource reads and edits the server cart.
type CartSource interface {
	Fetch(ctx context.Context) (*models.Cart, error)
	RemoveLine(ctx context.Context, lineID int) (*models.Cart, error)
}

// Checkout starts and runs a cart checkout.
type Checkout interface {
	BeginFromCart(ctx context.Context) (models.CheckoutContext, error)
	Run(ctx context.Context, selector tasks.PaymentSelector) (*tasks.Receipt, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	cart     CartSource
	checkout Checkout
	width    int
	height   int

	lineList list.Model
	current  *models.Cart
	notice   string

	method   textinput.Model
	inputErr string

	spinner      spinner.Model
	progressChan <-chan tasks.ProgressUpdate
	progress     tasks.ProgressUpdate

	receipt *tasks.Receipt
	err     error
	help    help.Model
	keys    keyMap
}

// NewModel creates a TUI over the cart and checkout. progress is the orchestrator's update channel.
func NewModel(ctx context.Context, cart CartSource, checkout Checkout, progress <-chan tasks.ProgressUpdate) *Model {
	method := textinput.New()
	method.Placeholder = "payment method id"
	method.CharLimit = 9
	method.Validate = func(s string) error {
		if s == "" {
			return nil
		}
		_, err := strconv.Atoi(s)
		return err
	}

	lines := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	lines.Title = "Your Cart"

	return &Model{
		ctx:          ctx,
		view:         CartView,
		cart:         cart,
		checkout:     checkout,
		lineList:     lines,
		method:       method,
		spinner:      spinner.New(spinner.WithSpinner(spinner.Dot)),
		progressChan: progress,
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// ViewState returns the view being shown.
func (m *Model) ViewState() ViewState {
	return m.view
}

// Init initializes the TUI by fetching the cart.
func (m *Model) Init() tea.Cmd {
	return m.fetchCart()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.lineList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case CartView:
			return m.handleCartKeys(msg)
		case PaymentView:
			return m.handlePaymentKeys(msg)
		case CheckoutView:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case cartFetchedMsg:
		if msg.err != nil {
			m.notice = shared.UserMessage(msg.err)
			return m, nil
		}
		m.current = msg.cart
		return m, m.lineList.SetItems(lineItems(msg.cart))

	case progressUpdateMsg:
		m.progress = tasks.ProgressUpdate(msg)
		if m.view == CheckoutView {
			return m, m.waitForProgress()
		}
		return m, nil

	case spinner.TickMsg:
		if m.view != CheckoutView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case checkoutCompleteMsg:
		m.receipt = msg.receipt
		m.err = msg.err
		m.view = ResultView
		return m, nil
	}

	if m.view == CartView {
		var cmd tea.Cmd
		m.lineList, cmd = m.lineList.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case CartView:
		return m.renderCart()
	case PaymentView:
		return m.renderPayment()
	case CheckoutView:
		return m.renderCheckout()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleCartKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.lineList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.lineList, cmd = m.lineList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.refresh):
		m.notice = ""
		return m, m.fetchCart()
	case key.Matches(msg, m.keys.remove):
		if item, ok := m.lineList.SelectedItem().(lineItem); ok {
			return m, m.removeLine(item.line.ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.checkout):
		if m.current.IsEmpty() {
			m.notice = shared.UserMessage(shared.ErrEmptyCart)
			return m, nil
		}
		m.notice = ""
		m.inputErr = ""
		m.view = PaymentView
		m.method.SetValue("")
		return m, m.method.Focus()
	}

	var cmd tea.Cmd
	m.lineList, cmd = m.lineList.Update(msg)
	return m, cmd
}

func (m *Model) handlePaymentKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.method.Blur()
		m.view = CartView
		return m, nil
	case "enter":
		id, err := strconv.Atoi(strings.TrimSpace(m.method.Value()))
		if err != nil || id <= 0 {
			m.inputErr = "Enter a positive payment method id."
			return m, nil
		}
		m.method.Blur()
		m.view = CheckoutView
		m.progress = tasks.ProgressUpdate{}
		return m, tea.Batch(m.startCheckout(id), m.waitForProgress(), m.spinner.Tick)
	}

	var cmd tea.Cmd
	m.method, cmd = m.method.Update(msg)
	return m, cmd
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r", "esc":
		m.view = CartView
		m.receipt = nil
		m.err = nil
		return m, m.fetchCart()
	}
	return m, nil
}

func (m *Model) fetchCart() tea.Cmd {
	return func() tea.Msg {
		cart, err := m.cart.Fetch(m.ctx)
		return cartFetchedMsg{cart: cart, err: err}
	}
}

func (m *Model) removeLine(lineID int) tea.Cmd {
	return func() tea.Msg {
		cart, err := m.cart.RemoveLine(m.ctx, lineID)
		return cartFetchedMsg{cart: cart, err: err}
	}
}

func (m *Model) startCheckout(methodID int) tea.Cmd {
	return func() tea.Msg {
		if _, err := m.checkout.BeginFromCart(m.ctx); err != nil {
			return checkoutCompleteMsg{err: err}
		}
		selector := tasks.PaymentSelectorFunc(func(context.Context, models.CheckoutContext, *models.Cart) (tasks.PaymentChoice, error) {
			return tasks.PaymentChoice{MethodID: methodID}, nil
		})
		receipt, err := m.checkout.Run(m.ctx, selector)
		return checkoutCompleteMsg{receipt: receipt, err: err}
	}
}

func (m *Model) waitForProgress() tea.Cmd {
	if m.progressChan == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case update := <-m.progressChan:
			return progressUpdateMsg(update)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) renderCart() string {
	var b strings.Builder
	b.WriteString(m.lineList.View())

	if m.current != nil {
		fmt.Fprintf(&b, "\n\n%d items · total %s", m.current.LineCount, styles.Price("$"+m.current.Total.String()))
	}
	if m.notice != "" {
		fmt.Fprintf(&b, "\n%s", styles.Warn(m.notice))
	}

	helpKeys := []key.Binding{m.keys.checkout, m.keys.remove, m.keys.refresh, m.keys.quit}
	fmt.Fprintf(&b, "\n\n%s", m.help.ShortHelpView(helpKeys))
	return b.String()
}

func (m *Model) renderPayment() string {
	title := styles.Title("Checkout")
	summary := ""
	if m.current != nil {
		summary = fmt.Sprintf("%d items · total %s\n\n", m.current.LineCount, styles.Price("$"+m.current.Total.String()))
	}

	errLine := ""
	if m.inputErr != "" {
		errLine = "\n" + styles.Err(m.inputErr)
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.confirm, m.keys.back})
	return fmt.Sprintf("%s\n%sPayment method: %s%s\n\n%s", title, summary, m.method.View(), errLine, helpView)
}

func (m *Model) renderCheckout() string {
	title := styles.Title("Processing Checkout")

	message := m.progress.Message
	if message == "" {
		message = "Starting checkout..."
	}
	return fmt.Sprintf("%s\n\n%s %s", title, m.spinner.View(), message)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.refresh, m.keys.quit})

	if m.err != nil {
		return fmt.Sprintf("%s\n%s\n\n%s", styles.Err("✗ Checkout failed"), shared.UserMessage(m.err), helpView)
	}
	if m.receipt == nil {
		return styles.Err("No result available") + "\n\n" + helpView
	}

	var b strings.Builder
	b.WriteString(styles.OK("✓ Purchase confirmed"))
	if p := m.receipt.Purchased; p != nil {
		fmt.Fprintf(&b, "\n\n%d items · total %s", p.LineCount, styles.Price("$"+p.Total.String()))
		for _, l := range p.Lines {
			fmt.Fprintf(&b, "\n  • %s #%d  $%s", productLabel(l.ProductType), l.ProductID, l.UnitPrice)
		}
	}
	if r := m.receipt.Restore; r != nil && !r.Complete() {
		fmt.Fprintf(&b, "\n\n%s", styles.Warn(fmt.Sprintf("Cart partially restored (%d/%d lines)", r.Restored, r.Requested)))
	}

	fmt.Fprintf(&b, "\n\n%s", helpView)
	return b.String()
}
