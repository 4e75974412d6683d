// Package tts 提供了一个与外部语音合成服务交互的瘦客户端，供 Interview
// Orchestrator 的语音面试变体把面试官的下一题渲染成音频字节。一个 HTTP
// 端点、一次调用、无重试逻辑，因为它是面试主链路之外的外部协作方（§6 非目标）。
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"mockinterview-go/internal/config"
)

// Client 是文本转语音服务的客户端。
type Client struct {
	baseURL string
	apiKey  string
	voice   string
	http    *http.Client
}

// NewClient 基于配置创建一个 TTS 客户端。
func NewClient(cfg config.TTSConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		voice:   cfg.Voice,
		http:    &http.Client{},
	}
}

type synthesizeRequest struct {
	Input string `json:"input"`
	Voice string `json:"voice"`
}

// Synthesize 把一段文本渲染为音频字节流（内容类型由服务端响应头决定）。
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	reqBody, err := json.Marshal(synthesizeRequest{Input: text, Voice: c.voice})
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/synthesize", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("build tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call tts service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tts service returned [%d]: %s", resp.StatusCode, string(body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts response: %w", err)
	}
	return audio, nil
}
