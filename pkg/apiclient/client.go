// Package apiclient はイベント登録APIのGoクライアント
// 登録・キャンセルの応答に含まれる更新後のイベント状態で
// ローカルキャッシュを即時に整合させ、不要な再フェッチを避ける
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Event はAPIが返すイベント表現
type Event struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Description          string `json:"description"`
	Type                 string `json:"type"`
	Status               string `json:"status"`
	MaxParticipants      int    `json:"max_participants"`
	RegistrationCount    int    `json:"registration_count"`
	WaitlistCount        int    `json:"waitlist_count"`
	AllowWaitlist        bool   `json:"allow_waitlist"`
	RegistrationDeadline string `json:"registration_deadline,omitempty"`
	StartAt              string `json:"start_at"`
	EndAt                string `json:"end_at"`
	Price                int    `json:"price"`
	MemberPrice          int    `json:"member_price"`
	Currency             string `json:"currency"`
	CanRegister          bool   `json:"can_register"`
	IsRegistered         bool   `json:"is_registered"`
}

// Registration はAPIが返す参加登録表現
type Registration struct {
	ID            string `json:"id"`
	EventID       string `json:"event_id"`
	UserID        string `json:"user_id"`
	Status        string `json:"status"`
	Type          string `json:"type"`
	Position      *int   `json:"position,omitempty"`
	AmountDue     int    `json:"amount_due"`
	Currency      string `json:"currency,omitempty"`
	PaymentStatus string `json:"payment_status"`
	CreatedAt     string `json:"created_at"`
}

// Admission は登録要求の結果
type Admission struct {
	Registration *Registration `json:"registration"`
	Event        *Event        `json:"event"`
}

// RegisterOptions は登録時の任意入力
type RegisterOptions struct {
	SpecialRequests  string `json:"special_requests,omitempty"`
	Dietary          string `json:"dietary,omitempty"`
	EmergencyContact string `json:"emergency_contact,omitempty"`
}

// APIError はAPIが返したエラー応答
type APIError struct {
	StatusCode int
	Message    string `json:"error"`
	Details    string `json:"details"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("APIエラー (%d): %s", e.StatusCode, e.Message)
}

// Client はイベント登録APIのクライアント
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
	cache      *cache
}

// Option はClientの設定オプション
type Option func(*Client)

// WithHTTPClient は使用する http.Client を差し替える
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New はClientを作成する
func New(baseURL, userID string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		userID:     userID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      newCache(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetEvent はイベントを取得する（キャッシュ優先）
func (c *Client) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	if e, ok := c.cache.getEvent(eventID); ok {
		return e, nil
	}
	var event Event
	if err := c.do(ctx, http.MethodGet, "/api/v1/events/"+eventID, nil, &event); err != nil {
		return nil, err
	}
	c.cache.putEvent(&event)
	return &event, nil
}

// ListEvents はイベント一覧を取得する（常にサーバーから取得してキャッシュを温める）
func (c *Client) ListEvents(ctx context.Context) ([]*Event, error) {
	var events []*Event
	if err := c.do(ctx, http.MethodGet, "/api/v1/events", nil, &events); err != nil {
		return nil, err
	}
	for _, e := range events {
		c.cache.putEvent(e)
	}
	c.cache.clearListStale()
	return events, nil
}

// MyRegistrations は自分の参加登録一覧を取得する（キャッシュ優先）
func (c *Client) MyRegistrations(ctx context.Context) ([]*Registration, error) {
	if regs, ok := c.cache.getMyRegistrations(); ok {
		return regs, nil
	}
	var regs []*Registration
	if err := c.do(ctx, http.MethodGet, "/api/v1/registrations", nil, &regs); err != nil {
		return nil, err
	}
	c.cache.setMyRegistrations(regs)
	return regs, nil
}

// Register はイベントに参加登録し、応答でキャッシュを整合させる
//   - 新しい登録を自分の登録一覧の先頭に追加
//   - キャッシュ済みのイベントを更新後のカウントで差し替え
//   - イベント一覧はstale扱いにして次回の表示で再取得させる
func (c *Client) Register(ctx context.Context, eventID string, opts RegisterOptions) (*Admission, error) {
	body := struct {
		EventID string `json:"event_id"`
		RegisterOptions
	}{EventID: eventID, RegisterOptions: opts}

	var admission Admission
	if err := c.do(ctx, http.MethodPost, "/api/v1/registrations", body, &admission); err != nil {
		return nil, err
	}

	c.cache.prependMyRegistration(admission.Registration)
	if admission.Event != nil {
		c.cache.patchEvent(admission.Event)
	}
	c.cache.markListStale()

	return &admission, nil
}

// Cancel は参加登録をキャンセルする
// キャンセル後は昇格でカウントが変わりうるため、イベントのキャッシュを破棄する
func (c *Client) Cancel(ctx context.Context, registrationID, eventID string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/v1/registrations/"+registrationID, nil, nil); err != nil {
		return err
	}
	c.cache.removeMyRegistration(registrationID)
	c.cache.invalidateEvent(eventID)
	c.cache.markListStale()
	return nil
}

// NeedsRefresh はイベント一覧の再取得が必要かを返す
func (c *Client) NeedsRefresh() bool {
	return c.cache.isListStale()
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストのエンコードに失敗: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", c.userID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("リクエスト送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, _ := io.ReadAll(resp.Body)
		if len(data) > 0 {
			_ = json.Unmarshal(data, apiErr)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("レスポンスのデコードに失敗: %w", err)
	}
	return nil
}
