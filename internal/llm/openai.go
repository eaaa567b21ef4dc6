package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"

	app_errors "openchat/assistant/internal/errors"
	"openchat/assistant/internal/model"
)

var errUnexpectedEnd = errors.New("stream ended before completion")

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

type openaiProvider struct {
	httpClient *http.Client
}

// NewOpenAIProvider returns a Provider backed by go-openai. A nil client uses
// http.DefaultClient.
func NewOpenAIProvider(httpClient *http.Client) Provider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &openaiProvider{httpClient: httpClient}
}

// BaseURL joins the account host and path. A host without scheme is reached
// over https.
func BaseURL(account model.Account) string {
	host := strings.TrimRight(account.Host, "/")
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	if path := strings.Trim(account.Path, "/"); path != "" {
		return host + "/" + path
	}
	return host
}

func (p *openaiProvider) client(account model.Account) *openai.Client {
	cfg := openai.DefaultConfig(account.Key)
	cfg.BaseURL = BaseURL(account)
	cfg.HTTPClient = p.httpClient
	return openai.NewClientWithConfig(cfg)
}

func (p *openaiProvider) Check(ctx context.Context, account model.Account) error {
	_, err := p.client(account).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    account.Model,
		Messages: []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "Hello"}},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", app_errors.ErrTransport, err)
	}
	return nil
}

func (p *openaiProvider) GenerateStream(ctx context.Context, account model.Account, req *GenerateRequest, ch chan<- StreamResponse) error {
	defer close(ch)

	fail := func(err error) error {
		err = fmt.Errorf("%w: %w", app_errors.ErrTransport, err)
		select {
		case ch <- StreamResponse{Err: err}:
		case <-ctx.Done():
		}
		return err
	}

	modelName := req.Model
	if modelName == "" {
		modelName = account.Model
	}
	stream, err := p.client(account).CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    modelName,
		Messages: toOpenAIMessages(req.Messages),
		Stream:   true,
	})
	if err != nil {
		return fail(err)
	}
	defer stream.Close()

	var finished bool
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			if !finished {
				return fail(errUnexpectedEnd)
			}
			select {
			case ch <- StreamResponse{Done: true}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		}
		if err != nil {
			return fail(err)
		}

		var delta string
		for _, choice := range resp.Choices {
			delta += choice.Delta.Content
			if choice.FinishReason != "" {
				finished = true
			}
		}
		if delta == "" {
			continue
		}
		select {
		case ch <- StreamResponse{Content: delta}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *openaiProvider) ListModels(ctx context.Context, account model.Account) ([]string, error) {
	list, err := p.client(account).ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", app_errors.ErrTransport, err)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{Role: m.Role}
		if m.Name != "" {
			msg.Name = strings.Trim(invalidNameChars.ReplaceAllString(m.Name, "_"), "_")
		}
		if m.Image == nil {
			msg.Content = m.Content
			out = append(out, msg)
			continue
		}
		msg.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: m.Content},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURL(m.Image),
					Detail: openai.ImageURLDetailAuto,
				},
			},
		}
		slog.Debug("Attaching inline image", "mime", m.Image.MIME, "bytes", len(m.Image.Data))
		out = append(out, msg)
	}
	return out
}

func dataURL(img *Image) string {
	return "data:" + img.MIME + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
