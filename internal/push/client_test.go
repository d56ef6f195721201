package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testMessage() *Message {
	return &Message{
		Data: map[string]string{
			"orderId": "order-1",
			"type":    "new_order",
		},
		Android: &AndroidConfig{
			Priority: "high",
			Notification: AndroidNotification{
				Title:     "New order from Ana!",
				Body:      "Total: $25.50 - Items: 2",
				ChannelID: "orders_urgent",
				Sound:     "order_alert",
			},
		},
		Token: "fcm-token-1",
	}
}

func TestSend_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/v1/messages:send" {
			t.Fatalf("path = %s, want /v1/messages:send", r.URL.Path)
		}

		var req sendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Message == nil || req.Message.Token != "fcm-token-1" {
			t.Fatalf("unexpected message: %+v", req.Message)
		}
		if req.Message.Android == nil || req.Message.Android.Notification.ChannelID != "orders_urgent" {
			t.Fatalf("android block lost in transit: %+v", req.Message.Android)
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := client.Send(ctx, testMessage()); err != nil {
		t.Fatalf("Send error: %v", err)
	}
}

func TestSend_TokenNotRegistered(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusGone} {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		client := NewClient(ts.URL)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)

		err := client.Send(ctx, testMessage())
		if !errors.Is(err, ErrTokenNotRegistered) {
			t.Fatalf("status %d: err = %v, want ErrTokenNotRegistered", status, err)
		}

		cancel()
		ts.Close()
	}
}

func TestSend_UnexpectedStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := client.Send(ctx, testMessage())
	if err == nil {
		t.Fatalf("expected error for status 500")
	}
	if errors.Is(err, ErrTokenNotRegistered) {
		t.Fatalf("500 must not be treated as a dead token: %v", err)
	}
}

func TestSend_NotConfigured(t *testing.T) {
	client := NewClient("")

	if err := client.Send(context.Background(), testMessage()); err == nil {
		t.Fatalf("expected error for unconfigured client")
	}
}
