package strategy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

// ExportFormatVersion 导出文件格式版本
const ExportFormatVersion = "1.0"

var ErrInvalidImport = errors.New("strategy: import document must contain name and config")

// ExportDocument 导出文件内容
type ExportDocument struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Config      Config    `json:"config"`
	ExportedAt  time.Time `json:"exported_at"`
	Version     string    `json:"version"`
}

// NewExportDocument 创建导出文档
func NewExportDocument(name, description string, cfg Config, now time.Time) ExportDocument {
	return ExportDocument{
		Name:        name,
		Description: description,
		Config:      cfg,
		ExportedAt:  now.UTC(),
		Version:     ExportFormatVersion,
	}
}

var slugPattern = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// ExportFilename 生成 strategy_<name>_<YYYY-MM-DD>.json
func ExportFilename(name string, now time.Time) string {
	slug := strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		slug = "untitled"
	}
	return fmt.Sprintf("strategy_%s_%s.json", slug, now.Format("2006-01-02"))
}

// WriteExport 以缩进 JSON 写出导出文档
func WriteExport(w io.Writer, doc ExportDocument) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// ReadImport 解析导入文件，name 与 config 必须存在；config 经 Load 合并默认值
func ReadImport(r io.Reader) (ExportDocument, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return ExportDocument{}, err
	}
	return ParseImport(data)
}

// ParseImport 同 ReadImport，输入为字节
func ParseImport(data []byte) (ExportDocument, error) {
	var raw struct {
		Name        *string         `json:"name"`
		Description string          `json:"description"`
		Config      json.RawMessage `json:"config"`
		ExportedAt  time.Time       `json:"exported_at"`
		Version     string          `json:"version"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(data), &raw); err != nil {
		return ExportDocument{}, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	cfgData := bytes.TrimSpace(raw.Config)
	if raw.Name == nil || strings.TrimSpace(*raw.Name) == "" || len(cfgData) == 0 || string(cfgData) == "null" {
		return ExportDocument{}, ErrInvalidImport
	}
	if cfgData[0] != '{' {
		return ExportDocument{}, fmt.Errorf("%w: config must be an object", ErrInvalidImport)
	}
	cfg, err := Load(cfgData)
	if err != nil {
		return ExportDocument{}, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	return ExportDocument{
		Name:        *raw.Name,
		Description: raw.Description,
		Config:      cfg,
		ExportedAt:  raw.ExportedAt,
		Version:     raw.Version,
	}, nil
}
