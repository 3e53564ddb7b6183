package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marklens/marklens/internal/common"
	"github.com/marklens/marklens/internal/llm"
)

// ExtractMarksheet implements llm.MarksheetExtractor using chat/completions
// with the image attached as a base64 data URL content part.
func (c *Client) ExtractMarksheet(ctx context.Context, req llm.ExtractRequest) (llm.MarksheetFields, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	if len(req.Image) == 0 {
		return llm.MarksheetFields{}, nil, fmt.Errorf("empty image payload")
	}
	if int64(len(req.Image)) > c.cfg.MaxImageMB*1024*1024 {
		return llm.MarksheetFields{}, nil, fmt.Errorf("image exceeds %dMB limit", c.cfg.MaxImageMB)
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = llm.DetectMimeType(req.FilenameHint, req.Image)
	}
	dataURL := llm.EncodeDataURL(req.Image, mimeType)

	c.log.Info("extract.start",
		"req_id", rid,
		"batch_id", common.BatchIDFromContext(ctx),
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"image_bytes", len(req.Image),
		"mime_type", mimeType,
		"filename", req.FilenameHint,
	)

	schema := llm.BuildMarksheetJSONSchema()

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt()},
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": userPrompt()},
				{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
			}},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, httpErr := c.post(ctx, endpoint, body)
	if httpErr != nil {
		c.log.Error("extract.http_error",
			"req_id", rid, "error", httpErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.MarksheetFields{}, nil, httpErr
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.MarksheetFields{}, raw, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("extract.no_choices",
			"req_id", rid, "raw", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.MarksheetFields{}, raw, fmt.Errorf("no choices in openai response")
	}
	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	rawContent := []byte(content)

	// Validate strictly first.
	if err := llm.ValidateMarksheetJSON(rawContent); err != nil {
		if !c.cfg.Lenient {
			c.log.Error("extract.schema_validation_failed",
				"req_id", rid, "error", err, "content", string(rawContent),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return llm.MarksheetFields{}, rawContent, fmt.Errorf("schema validation failed: %w", err)
		}
		// Try a lenient sanitize: repair/drop offenders and re-validate.
		cleaned, dropped, sErr := llm.SanitizeMarksheetJSON(rawContent)
		if sErr != nil {
			c.log.Error("extract.sanitize_failed",
				"req_id", rid, "error", sErr,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return llm.MarksheetFields{}, rawContent, fmt.Errorf("sanitize failed: %w", sErr)
		}
		if vErr := llm.ValidateMarksheetJSON(cleaned); vErr != nil {
			c.log.Error("extract.schema_validation_failed",
				"req_id", rid, "error", vErr, "content", string(cleaned),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return llm.MarksheetFields{}, rawContent, fmt.Errorf("schema validation failed: %w", vErr)
		}
		c.log.Warn("extract.lenient_sanitize_applied",
			"req_id", rid, "dropped", dropped,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		rawContent = cleaned
	}

	var out llm.MarksheetFields
	if err := json.Unmarshal(rawContent, &out); err != nil {
		c.log.Error("extract.unmarshal_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.MarksheetFields{}, rawContent, fmt.Errorf("unmarshal fields: %w", err)
	}

	c.log.Info("extract.ok",
		"req_id", rid,
		"batch_id", common.BatchIDFromContext(ctx),
		"student", out.StudentName,
		"subjects", len(out.Subjects),
		"percentage", out.Percentage,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, rawContent, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			c.log.Warn("openai response body close error", "error", err)
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(resp.Body)
		return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, buf.String())
	}

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	return buf.Bytes(), nil
}

func systemPrompt() string {
	parts := []string{
		"You are a marksheet reader. Return ONLY JSON that matches the JSON Schema provided.",
		"Read every subject row visible on the marksheet: subject name, marks obtained, and marks possible.",
		"Report marks exactly as printed; do not correct arithmetic on the sheet.",
		"If marks possible for a subject are not printed, omit 'full_marks' for that subject.",
		"If the image is not a recognizable marksheet, return an empty 'subjects' array and zeros for totals instead of refusing.",
		"Write 'summary' as two or three sentences on overall performance.",
		"Write 'feedback' as a short list of actionable study recommendations.",
		"Never output null. If a field is not present, omit it.",
	}
	return strings.Join(parts, " ")
}

func userPrompt() string {
	return "Extract the structured results from this marksheet image."
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
