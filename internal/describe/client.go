// Package describe asks an OpenAI-compatible chat completions endpoint for an
// SEO product description.
package describe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/catalog"
	"github.com/tidwall/gjson"
)

var ErrUpstream = errors.New("describe: upstream failure")

const systemPrompt = "You are an expert assistant that creates SEO-friendly product descriptions in HTML format."

type Client struct {
	url    string
	apiKey string
	model  string
	http   *http.Client
}

func New(url, apiKey, model string) *Client {
	return &Client{
		url:    url,
		apiKey: apiKey,
		model:  model,
		http:   &http.Client{Timeout: 15 * time.Second},
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

func prompt(p catalog.Product) string {
	return "Create an SEO-friendly product description in HTML format. Do not use backticks, print raw HTML code. " +
		"The description should be marketing-friendly, unique and optimized for search engines. " +
		"Include all product details. Do not include any hyperlinks or images.\n" +
		"Product:\n" +
		fmt.Sprintf("Name: %s\n", p.Name) +
		fmt.Sprintf("Description: %s\n", p.Description) +
		fmt.Sprintf("Price: %s PLN\n", p.UnitPrice.StringFixed(2)) +
		fmt.Sprintf("Weight: %g kg\n", p.Weight) +
		fmt.Sprintf("Category: %s\n", p.Category.Name) +
		"Return ONLY a valid HTML page."
}

// Describe returns the generated HTML for p.
func (c *Client) Describe(ctx context.Context, p catalog.Product) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt(p)},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(raw, "error.message").String()
		return "", fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, msg)
	}

	content := gjson.GetBytes(raw, "choices.0.message.content")
	if !content.Exists() || content.String() == "" {
		return "", fmt.Errorf("%w: empty completion", ErrUpstream)
	}
	return content.String(), nil
}
