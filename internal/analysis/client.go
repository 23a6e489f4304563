package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"flowmic/internal/domain"
)

const (
	DefaultBaseURL = "http://127.0.0.1:5000"

	maxResponseBytes = 4 << 20
)

// Config controls the analysis service endpoint.
type Config struct {
	BaseURL string
}

// Client implements ports.AnalysisClient over multipart HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient builds a client. A nil httpClient uses a client without a
// timeout; submissions run to completion.
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		http:    httpClient,
		logger:  logger,
	}
}

type endpoint struct {
	path  string
	field string
}

var endpoints = map[domain.SubmissionKind]endpoint{
	domain.SubmissionUpload:  {path: "/upload_audio", field: "file"},
	domain.SubmissionCapture: {path: "/analyze_audio", field: "audio"},
}

// Submit performs one round trip and returns the parsed result.
func (c *Client) Submit(ctx context.Context, payload domain.Payload, kind domain.SubmissionKind) (domain.AnalysisResult, error) {
	ep, ok := endpoints[kind]
	if !ok {
		return domain.AnalysisResult{}, fmt.Errorf("unsupported submission kind %q", kind)
	}
	if payload.Body == nil {
		return domain.AnalysisResult{}, domain.NewSubmissionError(domain.ErrorKindEmptyInput, errors.New("payload has no body"))
	}

	target, err := url.JoinPath(c.baseURL, ep.path)
	if err != nil {
		return domain.AnalysisResult{}, domain.NewSubmissionError(domain.ErrorKindNetworkFailure, fmt.Errorf("invalid analysis base URL: %w", err))
	}

	body, contentType, err := encodeMultipart(ep.field, payload)
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("failed to encode audio payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return domain.AnalysisResult{}, domain.NewSubmissionError(domain.ErrorKindNetworkFailure, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("submitting audio", "endpoint", ep.path, "name", payload.Name, "bytes", body.Len())

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.AnalysisResult{}, domain.NewSubmissionError(domain.ErrorKindNetworkFailure, fmt.Errorf("analysis request failed: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.AnalysisResult{}, domain.NewSubmissionError(domain.ErrorKindNetworkFailure, fmt.Errorf("failed to read analysis response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.AnalysisResult{}, &domain.SubmissionError{
			Kind:       domain.ErrorKindServerError,
			StatusCode: resp.StatusCode,
			Err:        errors.New(serviceMessage(raw, resp.Status)),
		}
	}

	result, err := decodeResult(raw)
	if err != nil {
		return domain.AnalysisResult{}, &domain.SubmissionError{
			Kind:       domain.ErrorKindServerError,
			StatusCode: resp.StatusCode,
			Err:        err,
		}
	}

	c.logger.Debug("analysis complete", "endpoint", ep.path, "matches", len(result.MatchedWords), "dominant", result.DominantState)
	return result, nil
}

func encodeMultipart(field string, payload domain.Payload) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	name := payload.Name
	if name == "" {
		name = "audio"
	}
	contentType := payload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(field), escapeQuotes(name)))
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, payload.Body); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &body, mw.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

type wireResult struct {
	Transcription    *string              `json:"transcription"`
	Emotion          *string              `json:"emotion"`
	DominantState    *string              `json:"dominant_state"`
	MatchedWords     []domain.MatchedWord `json:"matched_words"`
	StatePercentages *wirePercentages     `json:"state_percentages"`
	Error            string               `json:"error"`
}

type wirePercentages struct {
	Hypo  *float64 `json:"hypo"`
	Hyper *float64 `json:"hyper"`
	Flow  *float64 `json:"flow"`
}

// decodeResult accepts only complete results: matched_words must be an array
// and state_percentages must carry all three states.
func decodeResult(raw []byte) (domain.AnalysisResult, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return domain.AnalysisResult{}, errors.New("analysis response is not a JSON object")
	}

	var wire wireResult
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("invalid analysis response: %w", err)
	}

	if wire.MatchedWords == nil {
		return domain.AnalysisResult{}, incomplete("matched_words", wire.Error)
	}
	pct := wire.StatePercentages
	if pct == nil || pct.Hypo == nil || pct.Hyper == nil || pct.Flow == nil {
		return domain.AnalysisResult{}, incomplete("state_percentages", wire.Error)
	}

	return domain.AnalysisResult{
		Transcription: deref(wire.Transcription),
		Emotion:       deref(wire.Emotion),
		DominantState: deref(wire.DominantState),
		MatchedWords:  wire.MatchedWords,
		StatePercentages: domain.StatePercentages{
			Hypo:  *pct.Hypo,
			Hyper: *pct.Hyper,
			Flow:  *pct.Flow,
		},
	}, nil
}

func incomplete(field string, serviceErr string) error {
	if msg := strings.TrimSpace(serviceErr); msg != "" {
		return fmt.Errorf("analysis response missing %s: %s", field, msg)
	}
	return fmt.Errorf("analysis response missing %s", field)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func serviceMessage(raw []byte, status string) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && strings.TrimSpace(body.Error) != "" {
		return strings.TrimSpace(body.Error)
	}
	return "analysis service returned " + status
}
