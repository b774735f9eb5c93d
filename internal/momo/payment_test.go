package momo

import (
	"strings"
	"testing"
)

func TestPaymentRequestValidate(t *testing.T) {
	base := PaymentRequest{
		Amount:        1000,
		CustomerPhone: "0341234567",
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPaymentRequestValidateAmountBelowMinimum(t *testing.T) {
	req := PaymentRequest{Amount: 50, CustomerPhone: "0341234567"}

	err := req.Validate()
	if err == nil {
		t.Fatalf("expected error for amount below minimum")
	}
	if KindOf(err) != KindUpstreamValidation {
		t.Fatalf("kind = %s, want %s", KindOf(err), KindUpstreamValidation)
	}
}

func TestPaymentRequestValidateBounds(t *testing.T) {
	cases := []struct {
		name string
		req  PaymentRequest
	}{
		{"long description", PaymentRequest{Amount: 1000, Description: strings.Repeat("x", MaxDescriptionLen+1)}},
		{"long reference", PaymentRequest{Amount: 1000, Reference: strings.Repeat("x", MaxReferenceLen+1)}},
		{"long metadata value", PaymentRequest{Amount: 1000, Metadata: map[string]string{"k": strings.Repeat("x", MaxMetadataValLen+1)}}},
		{"long metadata key", PaymentRequest{Amount: 1000, Metadata: map[string]string{strings.Repeat("k", MaxMetadataKeyLen+1): "v"}}},
	}

	for _, c := range cases {
		if err := c.req.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", c.name)
		}
	}
}

func TestPaymentRequestValidateMetadataCount(t *testing.T) {
	md := make(map[string]string)
	for i := 0; i < MaxMetadataEntries+1; i++ {
		md[strings.Repeat("k", i+1)] = "v"
	}
	req := PaymentRequest{Amount: 1000, Metadata: md}
	if err := req.Validate(); err == nil {
		t.Fatalf("expected validation error for oversized metadata")
	}
}
