package source

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// NotFoundError indicates a required input file is missing.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("file not found: %s", e.Path)
}

// ParseError indicates the tracking sheet could not be decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Adapter reads article records from the tracking CSV and writes
// status updates back. All writes are whole-file rewrites; a single
// writer at a time is assumed.
type Adapter struct {
	csvFile     string
	articlesDir string
}

func NewAdapter(csvFile, articlesDir string) *Adapter {
	return &Adapter{csvFile: csvFile, articlesDir: articlesDir}
}

// sheet is the raw decoded tracking file plus the encoding it arrived
// in, so a rewrite can preserve it.
type sheet struct {
	header []string
	rows   [][]string
	cols   map[string]int
	gbk    bool
}

func (s *sheet) cell(row []string, col string) string {
	idx, ok := s.cols[col]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func (s *sheet) setCell(row []string, col, value string) bool {
	idx, ok := s.cols[col]
	if !ok || idx >= len(row) {
		return false
	}
	row[idx] = value
	return true
}

func (a *Adapter) load() (*sheet, error) {
	data, err := os.ReadFile(a.csvFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Path: a.csvFile}
		}
		return nil, fmt.Errorf("failed to read tracking file: %w", err)
	}

	content, gbk := decodeText(data)

	r := csv.NewReader(strings.NewReader(content))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, &ParseError{Path: a.csvFile, Err: err}
	}
	if len(records) == 0 {
		return nil, &ParseError{Path: a.csvFile, Err: fmt.Errorf("empty file")}
	}

	header := records[0]
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	return &sheet{
		header: header,
		rows:   records[1:],
		cols:   cols,
		gbk:    gbk,
	}, nil
}

// decodeText decodes the raw bytes as UTF-8 and falls back to GBK when
// the result contains replacement characters. Returns the decoded text
// and whether the GBK fallback was taken.
func decodeText(data []byte) (string, bool) {
	content := string(data)
	if utf8.Valid(data) && !strings.ContainsRune(content, utf8.RuneError) {
		return content, false
	}

	decoded, _, err := transform.Bytes(simplifiedchinese.GBK.NewDecoder(), data)
	if err != nil {
		// Keep the UTF-8 interpretation; garbled cells are better
		// than losing the file.
		return content, false
	}
	return string(decoded), true
}

// ListArticles parses the tracking sheet into article records. Rows
// without a title or body are skipped with a warning.
func (a *Adapter) ListArticles() ([]Article, error) {
	s, err := a.load()
	if err != nil {
		return nil, err
	}

	articles := make([]Article, 0, len(s.rows))
	for i, row := range s.rows {
		article, ok := a.buildArticle(s, i, row)
		if !ok {
			continue
		}
		articles = append(articles, article)
	}

	slog.Debug("Parsed tracking sheet", "file", a.csvFile, "rows", len(s.rows), "articles", len(articles))
	return articles, nil
}

func (a *Adapter) buildArticle(s *sheet, idx int, row []string) (Article, bool) {
	title := s.cell(row, ColTitle)
	content := s.cell(row, ColContent)
	contentFile := s.cell(row, ColContentFile)

	article := Article{
		Title:       title,
		Content:     content,
		Author:      s.cell(row, ColAuthor),
		Tags:        ParseTags(s.cell(row, ColTags)),
		Status:      s.cell(row, ColStatus),
		Channels:    s.cell(row, ColChannels),
		Completed:   s.cell(row, ColCompleted),
		ContentFile: contentFile,
		Slug:        Slugify(title),
		Date:        time.Now(),
		row:         idx,
	}

	if contentFile != "" {
		body, err := a.readCompanion(contentFile)
		if err != nil {
			slog.Warn("Companion file unresolved", "title", title, "file", contentFile, "error", err)
		} else {
			article.Content = body
			article.FileResolved = true
		}
	}

	if article.Title == "" || article.Content == "" {
		slog.Warn("Skipping row without title or body", "row", idx+1)
		return Article{}, false
	}
	return article, true
}

// readCompanion loads a companion markdown file and strips any leading
// metadata block before the body is used as publish content.
func (a *Adapter) readCompanion(name string) (string, error) {
	path := filepath.Join(a.articlesDir, filepath.Base(name))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &NotFoundError{Path: path}
		}
		return "", err
	}

	body, _ := StripFrontMatter(decodeOnly(data))
	return strings.TrimSpace(body), nil
}

func decodeOnly(data []byte) string {
	content, _ := decodeText(data)
	return content
}

// StripFrontMatter removes a leading ----delimited metadata block.
// Returns the remaining body and the raw block (without delimiters).
func StripFrontMatter(content string) (body, meta string) {
	content = strings.TrimPrefix(content, "\uFEFF")
	if !strings.HasPrefix(content, "---") {
		return content, ""
	}
	rest := strings.TrimPrefix(content, "---")
	rest = strings.TrimPrefix(rest, "\r\n")
	rest = strings.TrimPrefix(rest, "\n")
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return content, ""
	}
	meta = rest[:end]
	body = rest[end+len("\n---"):]
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = ""
	}
	return body, meta
}

// ParseTags splits the comma-separated tags column, capping at five
// tags and applying defaults when the column is empty.
func ParseTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return append([]string(nil), DefaultTags...)
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
		if len(tags) == 5 {
			break
		}
	}
	if len(tags) == 0 {
		return append([]string(nil), DefaultTags...)
	}
	return tags
}

// UpdateStatus sets the completion column for the record matching the
// given id or title and rewrites the sheet. Returns false when no row
// matched; that is reported, not fatal.
func (a *Adapter) UpdateStatus(idOrTitle, status string) (bool, error) {
	s, err := a.load()
	if err != nil {
		return false, err
	}

	row := a.findRow(s, idOrTitle)
	if row < 0 {
		slog.Warn("No tracking row matched for status update", "key", idOrTitle)
		return false, nil
	}

	if !s.setCell(s.rows[row], ColCompleted, status) {
		return false, fmt.Errorf("tracking sheet has no %q column", ColCompleted)
	}

	if err := a.write(s); err != nil {
		return false, err
	}

	slog.Info("Updated article status", "key", idOrTitle, "status", status)
	return true, nil
}

// DeleteArticle removes the tracking row and its companion file. A
// missing companion file is a warning, not an abort.
func (a *Adapter) DeleteArticle(idOrTitle string) (bool, error) {
	s, err := a.load()
	if err != nil {
		return false, err
	}

	row := a.findRow(s, idOrTitle)
	if row < 0 {
		return false, nil
	}

	contentFile := s.cell(s.rows[row], ColContentFile)
	s.rows = append(s.rows[:row], s.rows[row+1:]...)

	if err := a.write(s); err != nil {
		return false, err
	}

	if contentFile != "" {
		path := filepath.Join(a.articlesDir, filepath.Base(contentFile))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove companion file", "file", path, "error", err)
		}
	}

	slog.Info("Deleted article", "key", idOrTitle)
	return true, nil
}

func (a *Adapter) findRow(s *sheet, idOrTitle string) int {
	for i, row := range s.rows {
		title := s.cell(row, ColTitle)
		if title == idOrTitle || Slugify(title) == idOrTitle {
			return i
		}
	}
	return -1
}

// write serializes the whole sheet back to disk in the encoding it was
// read in.
func (a *Adapter) write(s *sheet) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(s.header); err != nil {
		return fmt.Errorf("failed to serialize header: %w", err)
	}
	for _, row := range s.rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to serialize row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to serialize sheet: %w", err)
	}

	out := buf.Bytes()
	if s.gbk {
		encoded, _, err := transform.Bytes(simplifiedchinese.GBK.NewEncoder(), out)
		if err != nil {
			return fmt.Errorf("failed to encode sheet as GBK: %w", err)
		}
		out = encoded
	}

	if err := os.WriteFile(a.csvFile, out, 0o644); err != nil {
		return fmt.Errorf("failed to rewrite tracking file: %w", err)
	}
	return nil
}
