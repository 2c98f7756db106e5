package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Wire shapes mirror the server's JSON.
type prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type result struct {
	ID             string       `json:"id"`
	ImageURL       string       `json:"imageUrl"`
	FileName       string       `json:"fileName"`
	Predictions    []prediction `json:"predictions"`
	Status         string       `json:"status"`
	Timestamp      time.Time    `json:"timestamp"`
	ProcessingTime *int64       `json:"processingTime,omitempty"`
	Error          string       `json:"error,omitempty"`
}

func (r result) terminal() bool {
	return r.Status == "COMPLETED" || r.Status == "FAILED"
}

type modelMetrics struct {
	Accuracy    float64   `json:"accuracy"`
	DriftScore  float64   `json:"driftScore"`
	LastUpdated time.Time `json:"lastUpdated"`
	Version     string    `json:"version"`
	Status      string    `json:"status"`
}

type client struct {
	baseURL    string
	httpClient *http.Client
	// streamClient has no overall timeout; event streams are long-lived.
	streamClient *http.Client
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
	}
}

type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("error (%d): %s", e.Status, strings.TrimSpace(e.Body))
}

func (c *client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return &apiError{Status: resp.StatusCode, Body: string(body)}
	}
	return json.Unmarshal(body, out)
}

// submit uploads one file. With wait the call returns the terminal result
// (a 502 still carries the failed result); otherwise the first snapshot.
func (c *client) submit(ctx context.Context, path string, wait bool) (result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return result{}, err
	}
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
	h.Set("Content-Type", http.DetectContentType(data))
	fw, err := mw.CreatePart(h)
	if err != nil {
		return result{}, err
	}
	if _, err := fw.Write(data); err != nil {
		return result{}, err
	}
	if err := mw.Close(); err != nil {
		return result{}, err
	}

	u := c.baseURL + "/v1/classify/images"
	if wait {
		u += "?wait=true"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return result{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	hc := c.httpClient
	if wait {
		hc = c.streamClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return result{}, err
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted, http.StatusBadGateway:
		var r result
		if err := json.Unmarshal(out, &r); err != nil {
			return result{}, fmt.Errorf("decode result: %w", err)
		}
		return r, nil
	default:
		return result{}, &apiError{Status: resp.StatusCode, Body: string(out)}
	}
}

// follow streams status events for id, calling onUpdate for each, and
// returns the last result seen.
func (c *client) follow(ctx context.Context, id string, onUpdate func(result)) (result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/classify/results/"+url.PathEscape(id)+"/events", nil)
	if err != nil {
		return result{}, err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.streamClient.Do(req)
	if err != nil {
		return result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return result{}, &apiError{Status: resp.StatusCode, Body: string(b)}
	}

	var last result
	err = readEvents(resp.Body, func(event, data string) error {
		if event != "status" {
			return nil
		}
		var r result
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		last = r
		if onUpdate != nil {
			onUpdate(r)
		}
		return nil
	})
	if err != nil {
		return last, err
	}
	if last.ID == "" {
		return last, fmt.Errorf("no status events for %s", id)
	}
	return last, nil
}

// readEvents parses a text/event-stream body, calling fn per dispatched event.
func readEvents(r io.Reader, fn func(event, data string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	event := ""
	var data []string
	dispatch := func() error {
		if len(data) == 0 {
			event = ""
			return nil
		}
		if event == "" {
			event = "message"
		}
		err := fn(event, strings.Join(data, "\n"))
		event, data = "", nil
		return err
	}
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if err := dispatch(); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return dispatch()
}
