package billingprovider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyEvent(t *testing.T) {
	secret := "whsec_test_secret"
	body := []byte(`{"id":"evt_1","type":"invoice.payment_succeeded","data":{"object":{}}}`)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		body    []byte
		header  string
		at      time.Time
		wantErr bool
	}{
		{
			name:   "valid signature",
			body:   body,
			header: SignPayload(body, secret, now),
			at:     now,
		},
		{
			name:   "signature slightly old but within tolerance",
			body:   body,
			header: SignPayload(body, secret, now.Add(-2*time.Minute)),
			at:     now,
		},
		{
			name:    "tampered body",
			body:    []byte(`{"id":"evt_1","type":"customer.subscription.deleted","data":{"object":{}}}`),
			header:  SignPayload(body, secret, now),
			at:      now,
			wantErr: true,
		},
		{
			name:    "wrong secret",
			body:    body,
			header:  SignPayload(body, "whsec_other", now),
			at:      now,
			wantErr: true,
		},
		{
			name:    "stale timestamp",
			body:    body,
			header:  SignPayload(body, secret, now.Add(-time.Hour)),
			at:      now,
			wantErr: true,
		},
		{
			name:    "missing header",
			body:    body,
			header:  "",
			at:      now,
			wantErr: true,
		},
		{
			name:    "garbage header",
			body:    body,
			header:  "t=abc,v1=zzzz",
			at:      now,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyEvent(tt.body, tt.header, secret, tt.at, DefaultTolerance)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrSignatureInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseEvent_TypedVariants(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Event
	}{
		{
			name: "checkout completed",
			body: `{"id":"evt_1","type":"checkout.session.completed",
				"data":{"object":{"customer":"cus_123","customer_details":{"email":"user@example.com"}}}}`,
			want: CheckoutCompleted{CustomerRef: "cus_123", CustomerEmail: "user@example.com"},
		},
		{
			name: "subscription created",
			body: `{"id":"evt_2","type":"customer.subscription.created",
				"data":{"object":{"id":"sub_1","customer":"cus_123","status":"active",
				"current_period_start":1748736000,"current_period_end":1751328000,"cancel_at_period_end":false}}}`,
			want: SubscriptionCreated{
				SubscriptionRef: "sub_1",
				CustomerRef:     "cus_123",
				Status:          "active",
				PeriodStart:     time.Unix(1748736000, 0).UTC(),
				PeriodEnd:       time.Unix(1751328000, 0).UTC(),
			},
		},
		{
			name: "subscription deleted",
			body: `{"id":"evt_3","type":"customer.subscription.deleted","data":{"object":{"id":"sub_1"}}}`,
			want: SubscriptionDeleted{SubscriptionRef: "sub_1"},
		},
		{
			name: "payment failed without subscription ref",
			body: `{"id":"evt_4","type":"invoice.payment_failed","data":{"object":{"subscription":""}}}`,
			want: PaymentFailed{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEvent([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEvent_UnhandledType(t *testing.T) {
	body := []byte(`{"id":"evt_5","type":"customer.created","data":{"object":{}}}`)
	_, err := ParseEvent(body)
	assert.ErrorIs(t, err, ErrUnhandledEvent)
}

func TestParseEvent_BadJSON(t *testing.T) {
	_, err := ParseEvent([]byte(`not json`))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnhandledEvent)
}
