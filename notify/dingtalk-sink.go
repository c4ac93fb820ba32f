package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spooky-finn/cryptowave/domain"
)

type DingTalkConfig struct {
	Webhook string
	// Secret enables request signing when set.
	Secret  string
	Timeout time.Duration
}

// DingTalkSink posts alerts to a DingTalk robot webhook as text messages.
type DingTalkSink struct {
	cfg    DingTalkConfig
	client *http.Client
	now    func() time.Time
}

func NewDingTalkSink(cfg DingTalkConfig) *DingTalkSink {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &DingTalkSink{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}
}

type dingTalkText struct {
	Content string `json:"content"`
}

type dingTalkRequest struct {
	MsgType string       `json:"msgtype"`
	Text    dingTalkText `json:"text"`
}

type dingTalkResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// Sign returns the value of the sign query parameter for the given unix
// millisecond timestamp.
func Sign(secret string, timestampMs int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestampMs, 10) + "\n" + secret))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (s *DingTalkSink) endpoint() (string, error) {
	u, err := url.Parse(s.cfg.Webhook)
	if err != nil {
		return "", err
	}
	if s.cfg.Secret == "" {
		return u.String(), nil
	}

	ts := s.now().UnixMilli()
	q := u.Query()
	q.Set("timestamp", strconv.FormatInt(ts, 10))
	q.Set("sign", Sign(s.cfg.Secret, ts))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *DingTalkSink) Send(ctx context.Context, a *domain.Alert) error {
	endpoint, err := s.endpoint()
	if err != nil {
		return fmt.Errorf("%w: dingtalk webhook: %v", domain.ErrNotificationFailure, err)
	}

	body, err := json.Marshal(dingTalkRequest{
		MsgType: "text",
		Text:    dingTalkText{Content: FormatAlert(a)},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: dingtalk: %v", domain.ErrNotificationFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: dingtalk: %v", domain.ErrNotificationFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("%w: dingtalk: read response: %v", domain.ErrNotificationFailure, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: dingtalk: status %d: %s", domain.ErrNotificationFailure, resp.StatusCode, raw)
	}

	var out dingTalkResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("%w: dingtalk: decode response: %v", domain.ErrNotificationFailure, err)
	}
	if out.ErrCode != 0 {
		return fmt.Errorf("%w: dingtalk: errcode %d: %s", domain.ErrNotificationFailure, out.ErrCode, out.ErrMsg)
	}
	return nil
}
