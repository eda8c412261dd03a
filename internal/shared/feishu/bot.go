package feishu

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// =============================================================================
// BotClient 飞书群自定义机器人
// 通过webhook地址推送消息卡片，配置了签名密钥时附带签名
// =============================================================================

// BotClient 自定义机器人客户端
type BotClient struct {
	webhookURL string
	secret     string
	httpClient *http.Client
	now        func() time.Time
}

// NewBotClient 创建机器人客户端. secret 为空表示机器人未开启签名校验.
func NewBotClient(webhookURL, secret string) *BotClient {
	return &BotClient{
		webhookURL: webhookURL,
		secret:     secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
}

// sign 计算签名: HmacSHA256(key = timestamp+"\n"+secret, data = 空), 再Base64
func sign(timestamp int64, secret string) string {
	stringToSign := strconv.FormatInt(timestamp, 10) + "\n" + secret
	h := hmac.New(sha256.New, []byte(stringToSign))
	h.Write(nil)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// SendCard 推送消息卡片
func (c *BotClient) SendCard(ctx context.Context, card InteractiveCard) error {
	msg := botMessage{MsgType: "interactive", Card: card}
	if c.secret != "" {
		ts := c.now().Unix()
		msg.Timestamp = strconv.FormatInt(ts, 10)
		msg.Sign = sign(ts, c.secret)
	}

	bodyBytes, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化卡片内容失败: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("推送机器人消息失败: %w", err)
	}
	defer resp.Body.Close()

	var result botResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("解析机器人响应失败 (HTTP %d): %w", resp.StatusCode, err)
	}
	if result.Code != 0 {
		return fmt.Errorf("飞书机器人错误[%d]: %s", result.Code, result.Msg)
	}
	return nil
}
