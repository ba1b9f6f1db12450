// Package sources loads reference documents (tariff schedules, trade
// notices) that are appended to prompts as grounding context.
package sources

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	pdf "github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

const DefaultMaxChars = 20000

var spaceRe = regexp.MustCompile(`[ \t\r\f\v]+`)
var blankLinesRe = regexp.MustCompile(`\n{3,}`)

type extractor func(path string) (string, error)

var extractors = map[string]extractor{
	".pdf": pdfText,
	".txt": plainText,
	".md":  plainText,
}

type cached struct {
	modTime time.Time
	text    string
}

// Library reads reference documents from a directory. Files belong to an
// industry when their name starts with the industry key, e.g.
// "semiconductors-hts-chapter-85.pdf".
type Library struct {
	dir      string
	maxChars int
	log      *zap.Logger

	mu    sync.Mutex
	cache map[string]cached
}

func NewLibrary(dir string, maxChars int, log *zap.Logger) *Library {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Library{dir: dir, maxChars: maxChars, log: log.Named("sources"), cache: map[string]cached{}}
}

// Files lists the reference files of an industry in name order.
func (l *Library) Files(industry string) ([]string, error) {
	if l == nil || l.dir == "" || industry == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(l.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(strings.ToLower(name), strings.ToLower(industry)) {
			continue
		}
		if _, ok := extractors[strings.ToLower(filepath.Ext(name))]; ok {
			out = append(out, filepath.Join(l.dir, name))
		}
	}
	sort.Strings(out)
	return out, nil
}

// Context returns the concatenated text of an industry's reference files,
// cut to the library's character budget. Unreadable files are skipped.
func (l *Library) Context(industry string) (string, error) {
	if l == nil {
		return "", nil
	}
	files, err := l.Files(industry)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, path := range files {
		text, err := l.text(path)
		if err != nil {
			l.log.Warn("skipping unreadable reference document", zap.String("path", path), zap.Error(err))
			continue
		}
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", filepath.Base(path), text)
		if b.Len() >= l.maxChars {
			break
		}
	}
	return truncate(strings.TrimSpace(b.String()), l.maxChars), nil
}

func (l *Library) text(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	l.mu.Lock()
	c, ok := l.cache[path]
	l.mu.Unlock()
	if ok && c.modTime.Equal(info.ModTime()) {
		return c.text, nil
	}

	raw, err := extractors[strings.ToLower(filepath.Ext(path))](path)
	if err != nil {
		return "", err
	}
	text := normalize(raw)

	l.mu.Lock()
	l.cache[path] = cached{modTime: info.ModTime(), text: text}
	l.mu.Unlock()
	return text, nil
}

func pdfText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	rc, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

func plainText(path string) (string, error) {
	b, err := os.ReadFile(path)
	return string(b), err
}

func normalize(s string) string {
	s = spaceRe.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimSpace(ln)
	}
	return strings.TrimSpace(blankLinesRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}

// truncate cuts s to at most max runes.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
