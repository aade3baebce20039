package function

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

// ParsedBody is a request body normalised to field name → value.
// Values are strings, decoded JSON values, or *File for uploaded files.
type ParsedBody map[string]any

// File is an uploaded multipart file held in memory.
type File struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

// InvalidPayloadError reports a body that could not be decoded.
type InvalidPayloadError struct {
	Err error
}

func (e *InvalidPayloadError) Error() string {
	if e.Err == nil {
		return "Invalid request payload"
	}
	return "Invalid request payload: " + e.Err.Error()
}

func (e *InvalidPayloadError) Unwrap() error { return e.Err }

// ParseBody decodes r's body according to its Content-Type.
//
// The body is restored on r, so it can be read again. Parsing either
// succeeds completely or returns an *InvalidPayloadError.
//
// Rules:
//   - JSON: null or empty is {}; an object is used as is; any other
//     value is wrapped as {"data": v}
//   - URL-encoded: pairs split on & and the first =, both sides
//     percent-decoded, later keys overwrite earlier ones
//   - multipart: one entry per part, files as *File
//   - anything else: JSON if it parses, URL-encoded if it contains =,
//     else {"data": text}; empty is {}
func ParseBody(r *http.Request) (ParsedBody, error) {
	raw, err := readBody(r)
	if err != nil {
		return nil, &InvalidPayloadError{Err: err}
	}

	contentType := r.Header.Get("Content-Type")
	var body ParsedBody
	switch {
	case strings.Contains(contentType, "application/json"):
		body, err = parseJSON(raw)
	case strings.Contains(contentType, "application/x-www-form-urlencoded"):
		body, err = parseURLEncoded(string(raw))
	case strings.Contains(contentType, "multipart/form-data"):
		body, err = parseMultipart(contentType, raw)
	default:
		body, err = parseUnknown(raw)
	}
	if err != nil {
		return nil, &InvalidPayloadError{Err: err}
	}
	return body, nil
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	raw, err := io.ReadAll(r.Body)
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return raw, nil
}

func parseJSON(raw []byte) (ParsedBody, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return ParsedBody{}, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return normaliseJSON(v), nil
}

func normaliseJSON(v any) ParsedBody {
	switch val := v.(type) {
	case nil:
		return ParsedBody{}
	case map[string]any:
		return ParsedBody(val)
	default:
		return ParsedBody{"data": val}
	}
}

func parseURLEncoded(text string) (ParsedBody, error) {
	body := ParsedBody{}
	for _, pair := range strings.Split(text, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.PathUnescape(rawKey)
		if err != nil {
			return nil, fmt.Errorf("decoding key %q: %w", rawKey, err)
		}
		value, err := url.PathUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("decoding value of %q: %w", key, err)
		}
		body[key] = value
	}
	return body, nil
}

func parseMultipart(contentType string, raw []byte) (ParsedBody, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("parsing content type: %w", err)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, errors.New("multipart body without boundary")
	}

	body := ParsedBody{}
	mr := multipart.NewReader(bytes.NewReader(raw), boundary)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return body, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading multipart: %w", err)
		}

		data, err := io.ReadAll(part)
		if err != nil {
			return nil, fmt.Errorf("reading part %q: %w", part.FormName(), err)
		}
		name := part.FormName()
		if filename := part.FileName(); filename != "" {
			body[name] = &File{
				Filename:    filename,
				ContentType: part.Header.Get("Content-Type"),
				Size:        int64(len(data)),
				Data:        data,
			}
		} else {
			body[name] = string(data)
		}
	}
}

func parseUnknown(raw []byte) (ParsedBody, error) {
	text := string(raw)
	if strings.TrimSpace(text) == "" {
		return ParsedBody{}, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		return normaliseJSON(v), nil
	}
	if strings.Contains(text, "=") {
		return parseURLEncoded(text)
	}
	return ParsedBody{"data": text}, nil
}
