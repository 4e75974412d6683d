package modelgateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"mockinterview-go/internal/apperr"
	"mockinterview-go/internal/config"
	"mockinterview-go/pkg/log"
)

// MessageWriter 允许 websocket.Conn 及其拦截器承接 StreamGenerate 的流式分块。
// Interview Orchestrator（包括语音变体）不使用它。
type MessageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// Message 表示一条角色消息，与 OpenAI 兼容 chat/completions 接口对齐。
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams 控制单次生成调用的采样参数。
type GenerationParams struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Client 是 Model Gateway 对外暴露的能力：Embed、Generate、StreamGenerate、Transcribe。
type Client interface {
	// Embed 计算一段文本的稠密向量，维度恒等于 EmbeddingDim()。
	Embed(ctx context.Context, text string) ([]float32, error)
	// Generate 发出一次结构化请求，响应必须满足 schema，否则在 N 次
	// 确定性重排版重试后返回 ModelSchemaError。
	Generate(ctx context.Context, prompt string, schema Schema, gen *GenerationParams) (json.RawMessage, error)
	// StreamGenerate 与 Generate 语义相同的非结构化变体，将增量分块写入 writer。
	// 本仓库中没有调用方（语音面试变体走 Generate + TTS）。
	StreamGenerate(ctx context.Context, messages []Message, gen *GenerationParams, writer MessageWriter) error
	// Transcribe 委托给语音转写能力。
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
	// EmbeddingDim 返回向量维度，进程生命周期内恒定。
	EmbeddingDim() int
}

type gatewayClient struct {
	llmCfg   config.LLMConfig
	embedCfg config.EmbeddingConfig
	http     *http.Client
	sem      chan struct{}
}

// NewClient 基于配置创建一个 OpenAI 兼容的 Model Gateway 客户端。sem 是一个
// 带缓冲 channel 实现的全局并发上限（§5：避免压垮供应商），与老师仓库
// Kafka 消费者的串行-带重试循环同构，只是把"至多一个在途请求"换成
// "至多 N 个在途请求"。Embed/Generate/Transcribe/StreamGenerate 共享同一个
// 令牌池，因为它们打到同一个供应商。
func NewClient(llmCfg config.LLMConfig, embedCfg config.EmbeddingConfig) Client {
	timeout := time.Duration(llmCfg.Retry.CallTimeoutMs) * time.Millisecond
	maxConcurrency := llmCfg.Retry.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 8
	}
	return &gatewayClient{
		llmCfg:   llmCfg,
		embedCfg: embedCfg,
		http:     &http.Client{Timeout: timeout},
		sem:      make(chan struct{}, maxConcurrency),
	}
}

// acquire 占用一个并发槽位，若 ctx 先被取消则放弃排队。
func (c *gatewayClient) acquire(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *gatewayClient) release() {
	<-c.sem
}

// ---- Embed ----

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (c *gatewayClient) EmbeddingDim() int {
	if c.embedCfg.Dimensions == 0 {
		return 768
	}
	return c.embedCfg.Dimensions
}

func (c *gatewayClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, apperr.Cancelled("embed cancelled waiting for a concurrency slot")
	}
	defer c.release()

	var out []float32
	err := c.withTransportRetry(ctx, "embed", func() error {
		reqBody := embeddingRequest{
			Model:      c.embedCfg.Model,
			Input:      []string{text},
			Dimensions: c.embedCfg.Dimensions,
		}
		reqBytes, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal embedding request: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.embedCfg.BaseURL+"/embeddings", bytes.NewReader(reqBytes))
		if err != nil {
			return fmt.Errorf("build embedding request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.embedCfg.APIKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return transientErr(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			body, _ := io.ReadAll(resp.Body)
			return transientErr(fmt.Errorf("embedding api %s: %s", resp.Status, string(body)))
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("embedding api returned %s: %s", resp.Status, string(body))
		}
		var embResp embeddingResponse
		if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
			return fmt.Errorf("decode embedding response: %w", err)
		}
		if len(embResp.Data) == 0 || len(embResp.Data[0].Embedding) == 0 {
			return fmt.Errorf("embedding api returned an empty vector")
		}
		out = embResp.Data[0].Embedding
		return nil
	})
	return out, err
}

// ---- Generate (structured, schema-validated) ----

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *gatewayClient) Generate(ctx context.Context, prompt string, schema Schema, gen *GenerationParams) (json.RawMessage, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, apperr.Cancelled("generate cancelled waiting for a concurrency slot")
	}
	defer c.release()

	messages := []Message{{Role: "user", Content: prompt}}

	var lastErr error
	maxRetries := c.llmCfg.Retry.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	for attempt := 0; attempt <= maxRetries; attempt++ {
		content, err := c.chatCompletionOnce(ctx, messages, gen)
		if err != nil {
			// 传输错误已经在 chatCompletionOnce 内部按退避重试过；到这里意味着
			// 已耗尽传输重试预算，直接冒泡。
			return nil, err
		}
		raw := extractJSON(content)
		if verr := schema.Validate(raw); verr != nil {
			lastErr = verr
			log.Warnf("[ModelGateway] schema %s validation failed on attempt %d/%d: %v", schema.Name, attempt+1, maxRetries+1, verr)
			messages = append(messages,
				Message{Role: "assistant", Content: content},
				Message{Role: "user", Content: fmt.Sprintf(
					"你的上一条回复没有满足要求的 JSON 结构（错误：%v）。请只输出一个满足所有必填字段与类型的 JSON，不要包含任何解释文字。", verr)},
			)
			continue
		}
		return raw, nil
	}
	return nil, apperr.ModelSchema(fmt.Sprintf("structured output for %s invalid after %d retries", schema.Name, maxRetries), lastErr)
}

func (c *gatewayClient) chatCompletionOnce(ctx context.Context, messages []Message, gen *GenerationParams) (string, error) {
	var content string
	err := c.withTransportRetry(ctx, "generate", func() error {
		reqBody := chatRequest{Model: c.llmCfg.Model, Messages: messages, Stream: false}
		applyGenerationParams(&reqBody, gen, c.llmCfg.Generation)

		reqBytes, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal chat request: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.llmCfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
		if err != nil {
			return fmt.Errorf("build chat request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.llmCfg.APIKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return transientErr(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			body, _ := io.ReadAll(resp.Body)
			return transientErr(fmt.Errorf("chat api %s: %s", resp.Status, string(body)))
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("chat api returned %s: %s", resp.Status, string(body))
		}
		var chatResp chatCompletionResponse
		if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
			return fmt.Errorf("decode chat response: %w", err)
		}
		if len(chatResp.Choices) == 0 {
			return fmt.Errorf("chat api returned no choices")
		}
		content = chatResp.Choices[0].Message.Content
		return nil
	})
	return content, err
}

// extractJSON 从模型可能带有 Markdown 代码块围栏的回复中取出裸 JSON。
func extractJSON(content string) []byte {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return []byte(strings.TrimSpace(trimmed))
}

func applyGenerationParams(req *chatRequest, gen *GenerationParams, fallback config.LLMGenerationConfig) {
	if gen != nil {
		req.Temperature, req.TopP, req.MaxTokens = gen.Temperature, gen.TopP, gen.MaxTokens
		return
	}
	if fallback.Temperature != 0 {
		t := fallback.Temperature
		req.Temperature = &t
	}
	if fallback.TopP != 0 {
		p := fallback.TopP
		req.TopP = &p
	}
	if fallback.MaxTokens != 0 {
		m := fallback.MaxTokens
		req.MaxTokens = &m
	}
}

// ---- StreamGenerate (used by the audio interview variant's live channel) ----

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c *gatewayClient) StreamGenerate(ctx context.Context, messages []Message, gen *GenerationParams, writer MessageWriter) error {
	if err := c.acquire(ctx); err != nil {
		return apperr.Cancelled("stream generate cancelled waiting for a concurrency slot")
	}
	defer c.release()

	reqBody := chatRequest{Model: c.llmCfg.Model, Messages: messages, Stream: true}
	applyGenerationParams(&reqBody, gen, c.llmCfg.Generation)

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.llmCfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.llmCfg.APIKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call chat api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chat api returned %s: %s", resp.Status, string(body))
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("read stream: %w", err)
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if strings.TrimSpace(data) == "[DONE]" {
			break
		}
		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if err := writer.WriteMessage(websocket.TextMessage, []byte(chunk.Choices[0].Delta.Content)); err != nil {
			return fmt.Errorf("write stream chunk: %w", err)
		}
	}
	return nil
}

// ---- Transcribe ----

func (c *gatewayClient) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if err := c.acquire(ctx); err != nil {
		return "", apperr.Cancelled("transcribe cancelled waiting for a concurrency slot")
	}
	defer c.release()

	var text string
	err := c.withTransportRetry(ctx, "transcribe", func() error {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("file", "audio")
		if err != nil {
			return fmt.Errorf("build multipart form: %w", err)
		}
		if _, err := part.Write(audio); err != nil {
			return fmt.Errorf("write audio bytes: %w", err)
		}
		_ = mw.WriteField("model", "whisper-1")
		if err := mw.Close(); err != nil {
			return fmt.Errorf("close multipart writer: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.llmCfg.BaseURL+"/audio/transcriptions", &body)
		if err != nil {
			return fmt.Errorf("build transcription request: %w", err)
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+c.llmCfg.APIKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return transientErr(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			respBody, _ := io.ReadAll(resp.Body)
			return transientErr(fmt.Errorf("transcription api %s: %s", resp.Status, string(respBody)))
		}
		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("transcription api returned %s: %s", resp.Status, string(respBody))
		}
		var out struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("decode transcription response: %w", err)
		}
		text = out.Text
		return nil
	})
	return text, err
}

// ---- shared transport retry ----

type transientTransportErr struct{ err error }

func (t *transientTransportErr) Error() string { return t.err.Error() }
func (t *transientTransportErr) Unwrap() error { return t.err }

func transientErr(err error) error { return &transientTransportErr{err: err} }

// withTransportRetry 对幂等的外部调用执行满抖动指数退避重试，仅对
// transientErr 标记过的失败重试；其余错误立即返回。
func (c *gatewayClient) withTransportRetry(ctx context.Context, op string, fn func() error) error {
	maxRetries := c.llmCfg.Retry.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		var transient *transientTransportErr
		if !isTransient(err, &transient) {
			return err
		}
		lastErr = transient.err
		if attempt == maxRetries {
			break
		}
		wait := backoffWithFullJitter(attempt, c.llmCfg.Retry.BackoffBaseMs, c.llmCfg.Retry.BackoffMaxMs)
		log.Warnf("[ModelGateway] %s transient error (attempt %d/%d), retrying in %s: %v", op, attempt+1, maxRetries+1, wait, err)
		if serr := sleepOrDone(ctx, wait); serr != nil {
			return apperr.Cancelled(fmt.Sprintf("%s cancelled during backoff", op))
		}
	}
	return apperr.ModelTransient(fmt.Sprintf("%s failed after %d retries", op, maxRetries), lastErr)
}

func isTransient(err error, target **transientTransportErr) bool {
	te, ok := err.(*transientTransportErr)
	if ok {
		*target = te
	}
	return ok
}
