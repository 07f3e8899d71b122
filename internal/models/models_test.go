package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestPrice(t *testing.T) {
	t.Run("ParsePrice", func(t *testing.T) {
		tests := []struct {
			in      string
			want    Price
			wantErr bool
		}{
			{in: "1.49", want: 149},
			{in: "10", want: 1000},
			{in: "2.5", want: 250},
			{in: "-1.25", want: -125},
			{in: "", want: 0},
			{in: "abc", wantErr: true},
		}

		for _, tt := range tests {
			t.Run(tt.in, func(t *testing.T) {
				got, err := ParsePrice(tt.in)
				if (err != nil) != tt.wantErr {
					t.Fatalf("ParsePrice(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
				}
				if got != tt.want {
					t.Errorf("ParsePrice(%q) = %d, want %d", tt.in, got, tt.want)
				}
			})
		}
	})

	t.Run("String", func(t *testing.T) {
		for p, want := range map[Price]string{0: "0.00", 5: "0.05", 149: "1.49", 1000: "10.00", -125: "-1.25"} {
			if got := p.String(); got != want {
				t.Errorf("Price(%d).String() = %q, want %q", int64(p), got, want)
			}
		}
	})

	t.Run("JSON", func(t *testing.T) {
		var line CartLine
		if err := json.Unmarshal([]byte(`{"id":1,"productType":"SONG","productId":3,"unitPrice":1.49}`), &line); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if line.UnitPrice != 149 {
			t.Errorf("expected 149 cents, got %d", line.UnitPrice)
		}

		for _, raw := range []string{`"0.99"`, `null`} {
			var p Price
			if err := json.Unmarshal([]byte(raw), &p); err != nil {
				t.Errorf("unmarshal %s failed: %v", raw, err)
			}
		}

		data, err := json.Marshal(Cart{Total: 398})
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		if want := `"totalPrice":3.98`; !strings.Contains(string(data), want) {
			t.Errorf("expected %s in %s", want, data)
		}
	})
}

func TestCart(t *testing.T) {
	cart := &Cart{
		ID: 1,
		Lines: []CartLine{
			{ID: 10, ProductType: ProductSong, ProductID: 1, UnitPrice: 199},
			{ID: 11, ProductType: ProductAlbum, ProductID: 2, UnitPrice: 999},
		},
		LineCount: 2,
		Total:     1198,
	}

	t.Run("Validate", func(t *testing.T) {
		if err := cart.Validate(); err != nil {
			t.Errorf("expected valid cart, got %v", err)
		}

		bad := cart.Clone()
		bad.Total = 1
		if err := bad.Validate(); err == nil {
			t.Error("expected total mismatch error")
		}

		bad = cart.Clone()
		bad.LineCount = 3
		if err := bad.Validate(); err == nil {
			t.Error("expected line count mismatch error")
		}
	})

	t.Run("Requests keeps order", func(t *testing.T) {
		reqs := cart.Requests()
		if len(reqs) != 2 || reqs[0] != (CartLineRequest{ProductSong, 1}) || reqs[1] != (CartLineRequest{ProductAlbum, 2}) {
			t.Errorf("unexpected requests %v", reqs)
		}
	})

	t.Run("Clone is deep", func(t *testing.T) {
		cp := cart.Clone()
		cp.Lines[0].ProductID = 99
		if cart.Lines[0].ProductID != 1 {
			t.Error("expected original lines untouched")
		}
	})

	t.Run("nil cart", func(t *testing.T) {
		var c *Cart
		if !c.IsEmpty() || c.Has(ProductSong, 1) || c.Clone() != nil || len(c.Requests()) != 0 {
			t.Error("expected nil cart to behave as empty")
		}
	})

	t.Run("Has", func(t *testing.T) {
		if !cart.Has(ProductAlbum, 2) || cart.Has(ProductSong, 2) {
			t.Error("Has should match on type and id")
		}
	})
}

func TestParseProductType(t *testing.T) {
	tests := []struct {
		in      string
		want    ProductType
		wantErr bool
	}{
		{in: "song", want: ProductSong},
		{in: "CANCION", want: ProductSong},
		{in: "ALBUM", want: ProductAlbum},
		{in: "video", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProductType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSession(t *testing.T) {
	if err := (Session{AccessToken: "a"}).Validate(); err == nil {
		t.Error("expected partial session to be rejected")
	}
	if err := (Session{AccessToken: "a", RefreshToken: "r"}).Validate(); err != nil {
		t.Errorf("expected complete session to be valid, got %v", err)
	}
	if !(Session{}).IsZero() {
		t.Error("expected empty session to be zero")
	}
	if got := (Session{}).Prefix(); got != DefaultTokenType {
		t.Errorf("expected default prefix, got %q", got)
	}
}

func TestCheckoutState(t *testing.T) {
	tests := []struct {
		from, to CheckoutState
		want     bool
	}{
		{StateIdle, StateEnsureContext, true},
		{StateIdle, StateProcessing, false},
		{StateEnsureContext, StateCaptureSnapshot, true},
		{StateCaptureSnapshot, StateSelectPayment, false},
		{StatePrepareCart, StateProcessing, true},
		{StateSelectPayment, StateSelectPayment, true},
		{StateProcessing, StateConfirmed, true},
		{StateProcessing, StateSelectPayment, false},
		{StateFailed, StateProcessing, true},
		{StateFailed, StateSelectPayment, false},
		{StateConfirmed, StateFailed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo = %v, want %v", got, tt.want)
			}
		})
	}

	if !StateConfirmed.IsTerminal() || !StateFailed.IsTerminal() || StateProcessing.IsTerminal() {
		t.Error("only CONFIRMED and FAILED are terminal")
	}
}

func TestCheckoutContext(t *testing.T) {
	t.Run("Validate", func(t *testing.T) {
		tests := []struct {
			name    string
			ctx     CheckoutContext
			wantErr bool
		}{
			{name: "cart", ctx: CheckoutContext{Origin: OriginCart}},
			{name: "cart with target", ctx: CheckoutContext{Origin: OriginCart, TargetType: ProductSong, TargetID: 1}, wantErr: true},
			{name: "direct", ctx: CheckoutContext{Origin: OriginDirect, TargetType: ProductAlbum, TargetID: 4}},
			{name: "direct without target", ctx: CheckoutContext{Origin: OriginDirect}, wantErr: true},
			{name: "unknown origin", ctx: CheckoutContext{Origin: "SHELF"}, wantErr: true},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if err := tt.ctx.Validate(); (err != nil) != tt.wantErr {
					t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				}
			})
		}
	})

	t.Run("Clone is deep", func(t *testing.T) {
		method := 7
		orig := CheckoutContext{
			Origin:          OriginDirect,
			TargetType:      ProductSong,
			TargetID:        1,
			PaymentMethodID: &method,
			CartSnapshot:    []CartLineRequest{{ProductAlbum, 2}},
		}

		cp := orig.Clone()
		*cp.PaymentMethodID = 8
		cp.CartSnapshot[0].ProductID = 3

		if *orig.PaymentMethodID != 7 || orig.CartSnapshot[0].ProductID != 2 {
			t.Error("expected original context untouched")
		}
		if orig.Target() != (CartLineRequest{ProductSong, 1}) {
			t.Errorf("unexpected target %v", orig.Target())
		}
	})
}
