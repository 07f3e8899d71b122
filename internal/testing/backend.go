package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/tuneshop/internal/models"
)

// DefaultPrice is charged for products without a configured price, in cents.
const DefaultPrice int64 = 99

// BackendLine is a cart line held by [FakeBackend].
type BackendLine struct {
	ID        int
	Type      models.ProductType
	ProductID int
	Price     int64
}

// Purchase records one successful checkout.
type Purchase struct {
	PaymentMethod string
	Lines         []BackendLine
}

// FakeBackend emulates the storefront's /api/usuarios and /api/carrito endpoints.
//
// Tokens are issued per generation ("access-1", "refresh-1", ...). Any token from an
// older generation, or the current one after [FakeBackend.ExpireAccessToken], is
// answered with 401 TOKEN_EXPIRED.
type FakeBackend struct {
	server *httptest.Server

	mu           sync.Mutex
	generation   int
	accessToken  string
	refreshToken string
	expired      bool

	cartID     int
	nextLineID int
	lines      []BackendLine
	prices     map[string]int64
	purchases  []Purchase

	refreshStatus   int
	refreshGate     chan struct{}
	checkoutStatus  int
	checkoutMessage string
	failAdd         map[string]int
	failClear       bool
	mutationDelay   time.Duration

	refreshCalls     int
	checkoutCalls    int
	logoutCalls      int
	expiredResponses int
	inFlight         int
	maxInFlight      int
	calls            []string
}

// NewFakeBackend starts a fake backend that is closed when the test ends.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()

	b := &FakeBackend{
		cartID:     1,
		nextLineID: 1,
		prices:     map[string]int64{},
		failAdd:    map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/usuarios/login", b.handleLogin)
	mux.HandleFunc("POST /api/usuarios/login/google", b.handleGoogleLogin)
	mux.HandleFunc("POST /api/usuarios/refresh", b.handleRefresh)
	mux.HandleFunc("POST /api/usuarios/logout", b.handleLogout)
	mux.HandleFunc("GET /api/carrito", b.handleGetCart)
	mux.HandleFunc("DELETE /api/carrito", b.handleClearCart)
	mux.HandleFunc("POST /api/carrito/items", b.handleAddItem)
	mux.HandleFunc("DELETE /api/carrito/items/{id}", b.handleRemoveItem)
	mux.HandleFunc("POST /api/carrito/checkout", b.handleCheckout)

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

// URL returns the API root, suitable as the client base URL.
func (b *FakeBackend) URL() string {
	return b.server.URL + "/api"
}

// IssueSession mints a fresh token generation and returns it as a session.
func (b *FakeBackend) IssueSession() models.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.issue()
	return models.Session{
		AccessToken:  b.accessToken,
		RefreshToken: b.refreshToken,
		TokenType:    models.DefaultTokenType,
		User:         json.RawMessage(`{"id":1,"email":"ana@example.com"}`),
	}
}

func (b *FakeBackend) issue() {
	b.generation++
	b.accessToken = fmt.Sprintf("access-%d", b.generation)
	b.refreshToken = fmt.Sprintf("refresh-%d", b.generation)
	b.expired = false
}

// ExpireAccessToken makes the current access token answer TOKEN_EXPIRED.
func (b *FakeBackend) ExpireAccessToken() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expired = true
}

// FailRefresh makes the refresh endpoint answer status; zero restores normal behavior.
func (b *FakeBackend) FailRefresh(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshStatus = status
}

// GateRefresh holds every refresh call until the returned channel is closed.
func (b *FakeBackend) GateRefresh() chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshGate = make(chan struct{})
	return b.refreshGate
}

// FailCheckout makes the checkout endpoint answer status with message.
func (b *FakeBackend) FailCheckout(status int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkoutStatus = status
	b.checkoutMessage = message
}

// FailAdd makes adding the given product answer status; zero restores it.
func (b *FakeBackend) FailAdd(pt models.ProductType, productID int, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failAdd[productKey(pt, productID)] = status
}

// FailClear makes emptying the cart fail.
func (b *FakeBackend) FailClear(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failClear = fail
}

// SetMutationDelay slows every cart mutation so overlapping calls become observable.
func (b *FakeBackend) SetMutationDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mutationDelay = d
}

// SetPrice sets a product's price in cents.
func (b *FakeBackend) SetPrice(pt models.ProductType, productID int, cents int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prices[productKey(pt, productID)] = cents
}

// Seed puts a product straight into the cart, bypassing auth, and returns its line id.
func (b *FakeBackend) Seed(pt models.ProductType, productID int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.appendLine(pt, productID)
}

// Lines returns a copy of the cart lines.
func (b *FakeBackend) Lines() []BackendLine {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]BackendLine{}, b.lines...)
}

// Products returns the cart contents as line requests, in cart order.
func (b *FakeBackend) Products() []models.CartLineRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.CartLineRequest, 0, len(b.lines))
	for _, l := range b.lines {
		out = append(out, models.CartLineRequest{ProductType: l.Type, ProductID: l.ProductID})
	}
	return out
}

// Purchases returns every successful checkout.
func (b *FakeBackend) Purchases() []Purchase {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Purchase{}, b.purchases...)
}

// RefreshCalls counts refresh requests, including failed ones.
func (b *FakeBackend) RefreshCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshCalls
}

func (b *FakeBackend) CheckoutCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.checkoutCalls
}

func (b *FakeBackend) LogoutCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.logoutCalls
}

func (b *FakeBackend) ExpiredResponses() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.expiredResponses
}

func (b *FakeBackend) MaxInFlight() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxInFlight
}

// Calls returns "METHOD path" for every request received, in order.
func (b *FakeBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string{}, b.calls...)
}

// CountCalls returns how many received requests equal call.
func (b *FakeBackend) CountCalls(call string) int {
	n := 0
	for _, c := range b.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func productKey(pt models.ProductType, productID int) string {
	return string(pt) + ":" + strconv.Itoa(productID)
}

func wireType(pt models.ProductType) string {
	if pt == models.ProductSong {
		return "CANCION"
	}
	return "ALBUM"
}

func (b *FakeBackend) appendLine(pt models.ProductType, productID int) int {
	price, ok := b.prices[productKey(pt, productID)]
	if !ok {
		price = DefaultPrice
	}
	line := BackendLine{ID: b.nextLineID, Type: pt, ProductID: productID, Price: price}
	b.nextLineID++
	b.lines = append(b.lines, line)
	return line.ID
}

func (b *FakeBackend) record(r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, r.Method+" "+r.URL.Path)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	body := map[string]string{}
	if code != "" {
		body["error"] = code
	}
	if message != "" {
		body["mensaje"] = message
	}
	writeJSON(w, status, body)
}

// authorize answers the request itself and returns false when the caller is not allowed in.
func (b *FakeBackend) authorize(w http.ResponseWriter, r *http.Request) bool {
	header := r.Header.Get("Authorization")

	b.mu.Lock()
	current := models.DefaultTokenType + " " + b.accessToken
	valid := b.accessToken != "" && header == current && !b.expired
	expired := !valid && strings.HasPrefix(header, models.DefaultTokenType+" access-")
	if expired {
		b.expiredResponses++
	}
	b.mu.Unlock()

	switch {
	case valid:
		return true
	case expired:
		writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "")
	default:
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "No autenticado")
	}
	return false
}

// mutate runs fn and tracks how many cart mutations overlap.
func (b *FakeBackend) mutate(fn func()) {
	b.mu.Lock()
	b.inFlight++
	b.maxInFlight = max(b.maxInFlight, b.inFlight)
	delay := b.mutationDelay
	b.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	b.mu.Lock()
	fn()
	b.inFlight--
	b.mu.Unlock()
}

func (b *FakeBackend) cartDoc() map[string]any {
	return linesDoc(b.cartID, b.lines)
}

func linesDoc(cartID int, lines []BackendLine) map[string]any {
	items := make([]map[string]any, 0, len(lines))
	var total int64
	for _, l := range lines {
		item := map[string]any{
			"idItem":       l.ID,
			"tipoProducto": wireType(l.Type),
			"precio":       json.Number(fmt.Sprintf("%d.%02d", l.Price/100, l.Price%100)),
		}
		if l.Type == models.ProductSong {
			item["idCancion"] = l.ProductID
		} else {
			item["idAlbum"] = l.ProductID
		}
		items = append(items, item)
		total += l.Price
	}
	return map[string]any{
		"idCarrito":     cartID,
		"items":         items,
		"cantidadItems": len(lines),
		"precioTotal":   json.Number(fmt.Sprintf("%d.%02d", total/100, total%100)),
	}
}

func (b *FakeBackend) loginResponse() map[string]any {
	b.issue()
	return map[string]any{
		"token":        b.accessToken,
		"refreshToken": b.refreshToken,
		"tipo":         models.DefaultTokenType,
		"usuario":      map[string]any{"id": 1, "email": "ana@example.com"},
	}
}

func (b *FakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	b.record(r)

	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Password != "secret" {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Credenciales inválidas")
		return
	}

	b.mu.Lock()
	resp := b.loginResponse()
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (b *FakeBackend) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	b.record(r)

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Token == "" {
		writeError(w, http.StatusUnauthorized, "INVALID_GOOGLE_TOKEN", "Token de Google inválido")
		return
	}

	b.mu.Lock()
	resp := b.loginResponse()
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (b *FakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.record(r)

	b.mu.Lock()
	b.refreshCalls++
	gate := b.refreshGate
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.refreshStatus != 0 {
		writeError(w, b.refreshStatus, "REFRESH_FAILED", "Refresh token inválido")
		return
	}
	if body.RefreshToken == "" || body.RefreshToken != b.refreshToken {
		writeError(w, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Refresh token inválido")
		return
	}

	b.issue()
	writeJSON(w, http.StatusOK, map[string]string{
		"accessToken":  b.accessToken,
		"refreshToken": b.refreshToken,
		"tipo":         models.DefaultTokenType,
	})
}

func (b *FakeBackend) handleLogout(w http.ResponseWriter, r *http.Request) {
	b.record(r)

	b.mu.Lock()
	b.logoutCalls++
	b.refreshToken = ""
	b.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (b *FakeBackend) handleGetCart(w http.ResponseWriter, r *http.Request) {
	b.record(r)
	if !b.authorize(w, r) {
		return
	}

	b.mu.Lock()
	doc := b.cartDoc()
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, doc)
}

func (b *FakeBackend) handleClearCart(w http.ResponseWriter, r *http.Request) {
	b.record(r)
	if !b.authorize(w, r) {
		return
	}

	var failed bool
	var doc map[string]any
	b.mutate(func() {
		if b.failClear {
			failed = true
			return
		}
		b.lines = nil
		doc = b.cartDoc()
	})

	if failed {
		writeError(w, http.StatusInternalServerError, "", "No se pudo vaciar el carrito")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (b *FakeBackend) handleAddItem(w http.ResponseWriter, r *http.Request) {
	b.record(r)
	if !b.authorize(w, r) {
		return
	}

	var body struct {
		ProductType string `json:"tipoProducto"`
		SongID      *int   `json:"idCancion"`
		AlbumID     *int   `json:"idAlbum"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "", "Cuerpo inválido")
		return
	}

	var pt models.ProductType
	var id *int
	switch body.ProductType {
	case "CANCION":
		pt, id = models.ProductSong, body.SongID
	case "ALBUM":
		pt, id = models.ProductAlbum, body.AlbumID
	}
	if pt == "" || id == nil {
		writeError(w, http.StatusBadRequest, "", "Producto inválido")
		return
	}

	status := http.StatusCreated
	var message string
	var doc map[string]any
	b.mutate(func() {
		if code := b.failAdd[productKey(pt, *id)]; code != 0 {
			status, message = code, "No se pudo agregar el producto"
			return
		}
		for _, l := range b.lines {
			if l.Type == pt && l.ProductID == *id {
				status, message = http.StatusConflict, "El producto ya está en el carrito"
				return
			}
		}
		b.appendLine(pt, *id)
		doc = b.cartDoc()
	})

	if doc == nil {
		writeError(w, status, "", message)
		return
	}
	writeJSON(w, status, doc)
}

func (b *FakeBackend) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	b.record(r)
	if !b.authorize(w, r) {
		return
	}

	lineID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "", "Id inválido")
		return
	}

	var doc map[string]any
	b.mutate(func() {
		for i, l := range b.lines {
			if l.ID == lineID {
				b.lines = append(b.lines[:i], b.lines[i+1:]...)
				doc = b.cartDoc()
				return
			}
		}
	})

	if doc == nil {
		writeError(w, http.StatusNotFound, "", "Item no encontrado")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (b *FakeBackend) handleCheckout(w http.ResponseWriter, r *http.Request) {
	b.record(r)
	if !b.authorize(w, r) {
		return
	}

	method := r.URL.Query().Get("idMetodoPago")

	b.mu.Lock()
	b.checkoutCalls++
	status, message := b.checkoutStatus, b.checkoutMessage
	if status != 0 {
		b.mu.Unlock()
		writeError(w, status, "", message)
		return
	}
	if len(b.lines) == 0 {
		b.mu.Unlock()
		writeError(w, http.StatusBadRequest, "", "El carrito está vacío")
		return
	}

	bought := append([]BackendLine{}, b.lines...)
	b.purchases = append(b.purchases, Purchase{PaymentMethod: method, Lines: bought})
	b.lines = nil
	doc := linesDoc(b.cartID, bought)
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, doc)
}
