// 本文件用于通过钉钉机器人推送新打开的预警工单
package dingtalk

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"prod-watch/internal/logger"
	"prod-watch/internal/models"
)

// maxTicketsPerMessage 为单条消息列出的工单上限 其余只给出数量
const maxTicketsPerMessage = 10

// Robot 钉钉机器人
type Robot struct {
	webhook string
	secret  string
	loc     *time.Location
	client  *http.Client
	now     func() time.Time
}

type message struct {
	MsgType  string   `json:"msgtype"`
	Markdown markdown `json:"markdown"`
}

type markdown struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type response struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// NewRobot 创建钉钉机器人 loc 用于消息中的时间展示
func NewRobot(webhook, secret string, loc *time.Location) *Robot {
	if loc == nil {
		loc = time.Local
	}
	return &Robot{
		webhook: strings.TrimSpace(webhook),
		secret:  strings.TrimSpace(secret),
		loc:     loc,
		client:  &http.Client{Timeout: 10 * time.Second},
		now:     time.Now,
	}
}

// NotifyTickets 把一批新打开的工单合成一条 markdown 消息发送
func (r *Robot) NotifyTickets(ctx context.Context, records []models.WarningTicketRecord) error {
	if r.webhook == "" {
		return fmt.Errorf("钉钉 webhook 为空")
	}
	if len(records) == 0 {
		return nil
	}

	payload, err := json.Marshal(buildTicketMessage(records, r.loc))
	if err != nil {
		return fmt.Errorf("序列化钉钉消息失败: %w", err)
	}
	webhookURL, err := r.buildWebhookURL()
	if err != nil {
		return fmt.Errorf("构建钉钉 webhook URL 失败: %w", err)
	}
	if err := r.postMessage(ctx, webhookURL, payload); err != nil {
		return err
	}

	logger.Info("钉钉工单通知发送成功: %d 张", len(records))
	return nil
}

func buildTicketMessage(records []models.WarningTicketRecord, loc *time.Location) message {
	title := fmt.Sprintf("产线预警 %d 条", len(records))
	var b strings.Builder
	fmt.Fprintf(&b, "### %s\n\n", title)
	for i, rec := range records {
		if i == maxTicketsPerMessage {
			fmt.Fprintf(&b, "\n另有 %d 条未列出", len(records)-maxTicketsPerMessage)
			break
		}
		fmt.Fprintf(&b, "- **[%s] %s** %s~%s\n  %s\n",
			rec.Level,
			defaultValue(rec.RuleName, rec.RuleID),
			rec.StartTime.In(loc).Format("01-02 15:04"),
			rec.EndTime.In(loc).Format("15:04"),
			defaultValue(rec.Summary, rec.MetricName),
		)
	}
	return message{
		MsgType: "markdown",
		Markdown: markdown{
			Title: title,
			Text:  b.String(),
		},
	}
}

func (r *Robot) postMessage(ctx context.Context, webhookURL string, payload []byte) error {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("钉钉机器人 HTTP 状态码异常: %d", resp.StatusCode)
	}

	var responseBody response
	if err := json.NewDecoder(resp.Body).Decode(&responseBody); err != nil {
		return fmt.Errorf("解析钉钉响应失败: %w", err)
	}
	if responseBody.ErrCode != 0 {
		return fmt.Errorf("钉钉机器人返回错误: %d %s", responseBody.ErrCode, responseBody.ErrMsg)
	}
	return nil
}

// 配置了 secret 时 钉钉要求把 timestamp 与 sign 作为 query 参数拼到 webhook 上
func (r *Robot) buildWebhookURL() (string, error) {
	if r.secret == "" {
		return r.webhook, nil
	}

	timestamp := r.now().UnixMilli()
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, r.secret)

	mac := hmac.New(sha256.New, []byte(r.secret))
	_, _ = mac.Write([]byte(stringToSign))
	sign := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	parsedURL, err := url.Parse(r.webhook)
	if err != nil {
		return "", err
	}

	query := parsedURL.Query()
	query.Set("timestamp", strconv.FormatInt(timestamp, 10))
	query.Set("sign", sign)
	parsedURL.RawQuery = query.Encode()
	return parsedURL.String(), nil
}

func defaultValue(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
