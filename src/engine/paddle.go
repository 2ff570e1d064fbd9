package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"screenocr/src/geometry"
)

// paddleEngine talks to a PaddleOCR-style HTTP service. Servers in the
// wild answer in two generations of result shapes; decodePage accepts
// both and normalizes them to the same lines.
type paddleEngine struct {
	endpoint string
	language string
	client   *http.Client
}

func newPaddle(cfg Config) (Engine, error) {
	if cfg.Endpoint == "" {
		return nil, &UnavailableError{
			Engine: KindPaddle,
			Hint:   "set SCREENOCR_PADDLE_ENDPOINT to a running PaddleOCR server URL",
		}
	}
	return &paddleEngine{
		endpoint: cfg.Endpoint,
		language: cfg.Language,
		client:   &http.Client{Timeout: 45 * time.Second},
	}, nil
}

func (p *paddleEngine) Name() string { return KindPaddle }

type paddleRequest struct {
	Image    string `json:"image"`
	Language string `json:"language,omitempty"`
	Document bool   `json:"document,omitempty"`

	UseTableRecognition   bool `json:"use_table_recognition,omitempty"`
	UseFormulaRecognition bool `json:"use_formula_recognition,omitempty"`
	UseSealRecognition    bool `json:"use_seal_recognition,omitempty"`
	UseChartRecognition   bool `json:"use_chart_recognition,omitempty"`
	UseDocOrientation     bool `json:"use_doc_orientation,omitempty"`
	UseDocUnwarping       bool `json:"use_doc_unwarping,omitempty"`
}

type paddleResponse struct {
	Results []json.RawMessage `json:"results"`
	Error   string            `json:"error,omitempty"`
}

func (p *paddleEngine) Recognize(ctx context.Context, req Request) (*Result, error) {
	data, err := loadRequestImage(req)
	if err != nil {
		return nil, err
	}

	lang := req.Language
	if lang == "" {
		lang = p.language
	}
	payload := paddleRequest{
		Image:    base64.StdEncoding.EncodeToString(data),
		Language: lang,
		Document: req.Document,
	}
	if req.Document {
		payload.UseTableRecognition = req.Doc.TableRecognition
		payload.UseFormulaRecognition = req.Doc.FormulaRecognition
		payload.UseSealRecognition = req.Doc.SealRecognition
		payload.UseChartRecognition = req.Doc.ChartRecognition
		payload.UseDocOrientation = req.Doc.DocOrientation
		payload.UseDocUnwarping = req.Doc.DocUnwarping
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("paddle request failed: %w", err)
	}
	defer resp.Body.Close()

	var decoded paddleResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode paddle response: %v", err)
	}
	if decoded.Error != "" {
		return nil, fmt.Errorf("paddle error: %s", decoded.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("paddle returned status %d", resp.StatusCode)
	}

	var lines []Line
	var markdown []string
	for i, page := range decoded.Results {
		pageLines, pageMarkdown, err := decodePage(page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		lines = append(lines, pageLines...)
		if pageMarkdown != "" {
			markdown = append(markdown, pageMarkdown)
		}
	}

	res := finalize(lines)
	res.Markdown = strings.Join(markdown, "\n\n")
	return res, nil
}

func (p *paddleEngine) Close() error { return nil }

// paddleNewPage is the current server generation: parallel arrays of
// texts, scores and detection polygons, plus markdown in document mode.
type paddleNewPage struct {
	RecTexts  []string      `json:"rec_texts"`
	RecScores []float64     `json:"rec_scores"`
	DtPolys   [][][]float64 `json:"dt_polys"`
	Markdown  string        `json:"markdown"`
}

// decodePage normalizes one result page of either generation. The new
// generation is a JSON object with rec_texts/rec_scores/dt_polys; the
// legacy generation is a JSON array of [polygon, [text, score]] entries.
// Line order is preserved exactly as returned.
func decodePage(raw json.RawMessage) ([]Line, string, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, "", nil
	}

	if trimmed[0] == '{' {
		var page paddleNewPage
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, "", fmt.Errorf("bad result object: %v", err)
		}

		lines := make([]Line, 0, len(page.RecTexts))
		for i, text := range page.RecTexts {
			line := Line{Text: text}
			if i < len(page.RecScores) {
				line.Confidence = page.RecScores[i]
			}
			if i < len(page.DtPolys) {
				line.Polygon = pointsFromPoly(page.DtPolys[i])
			}
			lines = append(lines, line)
		}
		return lines, page.Markdown, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, "", fmt.Errorf("bad result list: %v", err)
	}

	var lines []Line
	for _, item := range items {
		var parts []json.RawMessage
		if err := json.Unmarshal(item, &parts); err != nil || len(parts) < 2 {
			continue
		}

		var poly [][]float64
		_ = json.Unmarshal(parts[0], &poly)

		var pair []json.RawMessage
		if err := json.Unmarshal(parts[1], &pair); err != nil || len(pair) < 1 {
			continue
		}
		var text string
		if err := json.Unmarshal(pair[0], &text); err != nil {
			continue
		}
		var score float64
		if len(pair) > 1 {
			_ = json.Unmarshal(pair[1], &score)
		}

		lines = append(lines, Line{
			Text:       text,
			Confidence: score,
			Polygon:    pointsFromPoly(poly),
		})
	}
	return lines, "", nil
}

func pointsFromPoly(poly [][]float64) []geometry.Point {
	if len(poly) == 0 {
		return nil
	}
	points := make([]geometry.Point, 0, len(poly))
	for _, p := range poly {
		if len(p) < 2 {
			continue
		}
		points = append(points, geometry.Point{
			X: int(math.Round(p[0])),
			Y: int(math.Round(p[1])),
		})
	}
	return points
}
