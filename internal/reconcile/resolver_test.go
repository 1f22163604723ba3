package reconcile

import (
	"context"
	"testing"

	"github.com/notelay/notelay-backend/pkg/enums"
	pkgerrors "github.com/notelay/notelay-backend/pkg/errors"
	"github.com/notelay/notelay-backend/pkg/mollie"
)

type resolverGateway struct {
	payment       *mollie.Payment
	paymentErr    error
	customer      *mollie.Customer
	customerErr   error
	customerCalls int
}

func (g *resolverGateway) GetPayment(context.Context, string) (*mollie.Payment, error) {
	return g.payment, g.paymentErr
}

func (g *resolverGateway) GetCustomer(context.Context, string) (*mollie.Customer, error) {
	g.customerCalls++
	return g.customer, g.customerErr
}

func (g *resolverGateway) GetPaymentLink(context.Context, string) (*mollie.PaymentLink, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not used")
}

func (g *resolverGateway) CreatePayment(context.Context, mollie.CreatePaymentInput) (*mollie.Payment, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not used")
}

func TestResolveMetadataEmailSkipsCustomerLookup(t *testing.T) {
	gateway := &resolverGateway{payment: &mollie.Payment{
		ID:         "pay_1",
		Status:     "paid",
		Amount:     mollie.Amount{Value: "9.00", Currency: "EUR"},
		Metadata:   map[string]string{"email": "ada@example.com"},
		CustomerID: "cst_1",
	}}
	resolver, err := NewResolver(gateway, nil)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	event, err := resolver.Resolve(context.Background(), "pay_1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if event.Email != "ada@example.com" {
		t.Fatalf("email = %q", event.Email)
	}
	if event.Status != enums.PaymentStatusPaid {
		t.Fatalf("status = %s", event.Status)
	}
	if gateway.customerCalls != 0 {
		t.Fatalf("customer lookup made despite metadata email")
	}
}

func TestResolveFallsBackToCustomerEmail(t *testing.T) {
	gateway := &resolverGateway{
		payment:  &mollie.Payment{ID: "pay_1", Status: "paid", CustomerID: "cst_1"},
		customer: &mollie.Customer{ID: "cst_1", Email: "ada@example.com"},
	}
	resolver, err := NewResolver(gateway, nil)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	event, err := resolver.Resolve(context.Background(), "pay_1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if event.Email != "ada@example.com" {
		t.Fatalf("email = %q", event.Email)
	}
}

func TestResolveCustomerLookupFailureDegrades(t *testing.T) {
	gateway := &resolverGateway{
		payment:     &mollie.Payment{ID: "pay_1", Status: "paid", CustomerID: "cst_1"},
		customerErr: pkgerrors.New(pkgerrors.CodeDependency, "timeout"),
	}
	resolver, err := NewResolver(gateway, nil)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	event, err := resolver.Resolve(context.Background(), "pay_1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if event.Email != "" {
		t.Fatalf("email = %q, want empty on lookup failure", event.Email)
	}
}

func TestResolveUnknownStatusTreatedAsPending(t *testing.T) {
	gateway := &resolverGateway{payment: &mollie.Payment{ID: "pay_1", Status: "authorized"}}
	resolver, err := NewResolver(gateway, nil)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	event, err := resolver.Resolve(context.Background(), "pay_1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if event.Status != enums.PaymentStatusPending {
		t.Fatalf("status = %s, want %s", event.Status, enums.PaymentStatusPending)
	}
}

func TestResolveGatewayErrorPassesThrough(t *testing.T) {
	gateway := &resolverGateway{paymentErr: pkgerrors.New(pkgerrors.CodeNotFound, "no such payment")}
	resolver, err := NewResolver(gateway, nil)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	_, err = resolver.Resolve(context.Background(), "pay_3")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("err = %v, want %s", err, pkgerrors.CodeNotFound)
	}
}
