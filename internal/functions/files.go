package functions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/shaiso/Sequencer/internal/domain"
	"github.com/shaiso/Sequencer/internal/objectstore"
)

func (l *library) fileFunctions() []domain.FunctionSpec {
	return []domain.FunctionSpec{
		{
			Name:        "save_to_file",
			Description: "Save data as JSON to a file in storage",
			Inputs: []domain.Param{
				in("data", domain.TypeAny, "Data to save"),
				in("filename", domain.TypeString, "Target file name"),
			},
			Outputs: []domain.Field{out("filepath", domain.TypeString, "Location of the saved file")},
			Impl:    l.saveToFile,
		},
		{
			Name:        "read_from_file",
			Description: "Read a file from storage, parsing JSON when possible",
			Inputs:      []domain.Param{in("filename", domain.TypeString, "File name")},
			Outputs:     []domain.Field{out("data", domain.TypeAny, "File contents")},
			Impl:        l.readFromFile,
		},
		{
			Name:        "download_file",
			Description: "Download a file from a URL into storage",
			Inputs: []domain.Param{
				in("url", domain.TypeString, "URL to download"),
				optional("filename", domain.TypeString, "Target file name, derived from the URL when empty", domain.String("")),
			},
			Outputs: []domain.Field{
				out("filepath", domain.TypeString, "Location of the downloaded file"),
				out("size", domain.TypeInteger, "Size in bytes"),
				out("content_type", domain.TypeString, "Content-Type reported by the server"),
			},
			Impl: l.downloadFile,
		},
	}
}

func (l *library) store() (objectstore.Store, error) {
	if l.deps.Store == nil {
		return nil, ErrNoStore
	}
	return l.deps.Store, nil
}

func (l *library) saveToFile(ctx context.Context, args domain.Args) (domain.Value, error) {
	data, ok := args["data"]
	if !ok {
		return domain.Value{}, argError("data", "any value", data, false)
	}
	filename, err := stringArg(args, "filename")
	if err != nil {
		return domain.Value{}, err
	}
	store, err := l.store()
	if err != nil {
		return domain.Value{}, err
	}

	body, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return domain.Value{}, fmt.Errorf("encode data: %w", err)
	}

	obj, err := store.Put(ctx, filename, bytes.NewReader(body), int64(len(body)), "application/json")
	if err != nil {
		return domain.Value{}, fmt.Errorf("save %s: %w", filename, err)
	}

	return record(map[string]any{"filepath": obj.Location})
}

func (l *library) readFromFile(ctx context.Context, args domain.Args) (domain.Value, error) {
	filename, err := stringArg(args, "filename")
	if err != nil {
		return domain.Value{}, err
	}
	store, err := l.store()
	if err != nil {
		return domain.Value{}, err
	}

	raw, err := store.Get(ctx, filename, l.deps.MaxDownloadBytes)
	if err != nil {
		return domain.Value{}, fmt.Errorf("read %s: %w", filename, err)
	}

	var data domain.Value
	if err := json.Unmarshal(raw, &data); err != nil {
		data = domain.String(string(raw))
	}

	return domain.Record(map[string]domain.Value{"data": data}), nil
}

func (l *library) downloadFile(ctx context.Context, args domain.Args) (domain.Value, error) {
	rawURL, err := stringArg(args, "url")
	if err != nil {
		return domain.Value{}, err
	}
	filename, err := stringArg(args, "filename")
	if err != nil {
		return domain.Value{}, err
	}
	store, err := l.store()
	if err != nil {
		return domain.Value{}, err
	}
	if strings.TrimSpace(filename) == "" {
		filename = filenameFromURL(rawURL)
	}

	resp, err := l.get(ctx, rawURL)
	if err != nil {
		return domain.Value{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.deps.MaxDownloadBytes+1))
	if err != nil {
		return domain.Value{}, fmt.Errorf("read response: %w", err)
	}
	if int64(len(body)) > l.deps.MaxDownloadBytes {
		return domain.Value{}, fmt.Errorf("%w: more than %d bytes", objectstore.ErrTooLarge, l.deps.MaxDownloadBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	obj, err := store.Put(ctx, filename, bytes.NewReader(body), int64(len(body)), contentType)
	if err != nil {
		return domain.Value{}, fmt.Errorf("save %s: %w", filename, err)
	}

	l.deps.Logger.DebugContext(ctx, "file downloaded",
		"url", rawURL,
		"location", obj.Location,
		"size", obj.Size,
	)

	return record(map[string]any{
		"filepath":     obj.Location,
		"size":         len(body),
		"content_type": contentType,
	})
}

// filenameFromURL берёт имя файла из последнего сегмента пути URL.
func filenameFromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err == nil {
		if base := path.Base(u.Path); base != "/" && base != "." && base != "" {
			return base
		}
	}
	return "download"
}

// get выполняет GET запрос и проверяет статус ответа.
func (l *library) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := l.deps.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s returned %d", ErrBadStatus, rawURL, resp.StatusCode)
	}
	return resp, nil
}
