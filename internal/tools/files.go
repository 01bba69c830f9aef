package tools

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"unicode/utf8"
)

const msgFileAccessDisabled = "File access is disabled"

func (ts *toolset) fileTools() []Tool {
	enabled := ts.policy.Features.FileAccess
	pathOnly := func(desc string) Schema {
		return Schema{Properties: map[string]Property{"path": stringProp(desc)}, Required: []string{"path"}}
	}
	writeSchema := func(pathDesc, contentDesc, binaryDesc string) Schema {
		return Schema{
			Properties: map[string]Property{
				"path":    stringProp(pathDesc),
				"content": stringProp(contentDesc),
				"binary":  boolProp(binaryDesc),
			},
			Required: []string{"path", "content"},
		}
	}
	return []Tool{
		{
			Name:        "read_file",
			Description: "Read file contents.",
			Schema:      pathOnly("File path to read"),
			Handler:     gate(enabled, msgFileAccessDisabled, ts.readFile),
		},
		{
			Name:        "write_file",
			Description: "Write content to file.",
			Schema:      writeSchema("File path", "Content to write", "Content is base64 binary"),
			Handler:     gate(enabled, msgFileAccessDisabled, ts.writeFile),
		},
		{
			Name:        "list_files",
			Description: "List directory contents.",
			Schema:      pathOnly("Directory path"),
			Handler:     gate(enabled, msgFileAccessDisabled, ts.listFiles),
		},
		{
			Name:        "upload_file",
			Description: "Upload file to the PC.",
			Schema:      writeSchema("Destination path", "File content", "Content is base64"),
			Handler:     gate(enabled, msgFileAccessDisabled, ts.writeFile),
		},
		{
			Name:        "download_file",
			Description: "Download file from PC (returns base64).",
			Schema:      pathOnly("File path to download"),
			Handler:     gate(enabled, msgFileAccessDisabled, ts.downloadFile),
		},
	}
}

// allowedPath reads the path argument and checks it against the policy.
func (ts *toolset) allowedPath(raw map[string]any) (string, map[string]any) {
	path, err := args(raw).str("path")
	if err != nil {
		return "", failed(err)
	}
	if path == "" {
		return "", failedf("path must not be empty")
	}
	if err := ts.policy.CheckPath(path); err != nil {
		return "", failed(err)
	}
	return path, nil
}

func (ts *toolset) readFile(_ context.Context, raw map[string]any) (any, error) {
	path, bad := ts.allowedPath(raw)
	if bad != nil {
		return bad, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return failedf("File not found: %s", path), nil
	}
	if err != nil {
		return failed(err), nil
	}
	if utf8.Valid(data) {
		return result(map[string]any{"content": string(data), "binary": false}), nil
	}
	return result(map[string]any{"content": base64.StdEncoding.EncodeToString(data), "binary": true}), nil
}

func (ts *toolset) writeFile(_ context.Context, raw map[string]any) (any, error) {
	path, bad := ts.allowedPath(raw)
	if bad != nil {
		return bad, nil
	}
	a := args(raw)
	content, err := a.str("content")
	if err != nil {
		return failed(err), nil
	}
	binary, err := a.boolean("binary", false)
	if err != nil {
		return failed(err), nil
	}
	data := []byte(content)
	if binary {
		if data, err = base64.StdEncoding.DecodeString(content); err != nil {
			return failed(fmt.Errorf("decode content: %w", err)), nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return failed(err), nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return failed(err), nil
	}
	return result(map[string]any{"path": path}), nil
}

func (ts *toolset) listFiles(_ context.Context, raw map[string]any) (any, error) {
	path, bad := ts.allowedPath(raw)
	if bad != nil {
		return bad, nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return failedf("Directory not found: %s", path), nil
	}
	if err != nil {
		return failed(err), nil
	}
	if !info.IsDir() {
		return failedf("Not a directory: %s", path), nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return failed(err), nil
	}
	items := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		var size int64
		if e.Type().IsRegular() {
			if fi, err := e.Info(); err == nil {
				size = fi.Size()
			}
		}
		items = append(items, map[string]any{"name": e.Name(), "is_dir": e.IsDir(), "size": size})
	}
	return result(map[string]any{"items": items}), nil
}

func (ts *toolset) downloadFile(_ context.Context, raw map[string]any) (any, error) {
	path, bad := ts.allowedPath(raw)
	if bad != nil {
		return bad, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return failedf("File not found: %s", path), nil
	}
	if err != nil {
		return failed(err), nil
	}
	return result(map[string]any{
		"content":  base64.StdEncoding.EncodeToString(data),
		"filename": filepath.Base(path),
		"size":     len(data),
	}), nil
}
