// Package push предоставляет клиент для внешнего шлюза пуш-уведомлений.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrTokenNotRegistered возвращается, если шлюз сообщил, что токен получателя
// отозван или никогда не был зарегистрирован.
var ErrTokenNotRegistered = errors.New("delivery token is not registered")

// Message — кроссплатформенное пуш-сообщение: обезличенный блок данных для
// клиентской логики, платформенный блок отображения и токен назначения.
type Message struct {
	Data    map[string]string `json:"data"`
	Android *AndroidConfig    `json:"android,omitempty"`
	Token   string            `json:"token"`
}

// AndroidConfig — платформенная часть сообщения для системного трея Android.
type AndroidConfig struct {
	Priority     string              `json:"priority"`
	Notification AndroidNotification `json:"notification"`
}

// AndroidNotification описывает отображаемый блок уведомления.
type AndroidNotification struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	ChannelID   string `json:"channel_id"`
	Sound       string `json:"sound"`
	ClickAction string `json:"click_action"`
	Visibility  string `json:"visibility"`
	Icon        string `json:"icon"`
}

// Client инкапсулирует HTTP-взаимодействие со шлюзом доставки уведомлений.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт HTTP-клиент для обращения к шлюзу по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type sendRequest struct {
	Message *Message `json:"message"`
}

// Send отправляет сообщение шлюзу ровно один раз, без повторов.
func (c *Client) Send(ctx context.Context, msg *Message) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("push client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	body, err := json.Marshal(sendRequest{Message: msg})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	url := base + "/v1/messages:send"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound, http.StatusGone:
		return fmt.Errorf("%w: status %d", ErrTokenNotRegistered, resp.StatusCode)
	default:
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
}
