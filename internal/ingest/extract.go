package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/kalambet/nanny/internal/storage"
)

// MaxFetchBytes caps how much of a remote page is read.
const MaxFetchBytes = 10 << 20

// ErrNoText is returned when a document yields no text.
var ErrNoText = errors.New("no text extracted")

// Extractor turns uploaded documents into plain text.
type Extractor struct {
	client *http.Client
}

// NewExtractor returns an Extractor fetching URLs with client. A nil client
// gets a 30s timeout.
func NewExtractor(client *http.Client) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Extractor{client: client}
}

// Extract returns the text content of doc according to its kind.
func (e *Extractor) Extract(ctx context.Context, doc storage.Document) (string, error) {
	var (
		text string
		err  error
	)
	switch doc.Kind {
	case storage.KindText:
		text = string(doc.Raw)
	case storage.KindURL:
		text, err = e.fetchURL(ctx, doc.Source)
	case storage.KindPDF:
		text, err = pdfText(doc.Raw)
	default:
		return "", fmt.Errorf("unsupported document kind %q", doc.Kind)
	}
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

func (e *Extractor) fetchURL(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/html, text/plain;q=0.9")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, MaxFetchBytes)
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "text/plain" {
		data, err := io.ReadAll(body)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", url, err)
		}
		return string(data), nil
	}
	return htmlText(body)
}

var skippedElements = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Nav:      true,
	atom.Footer:   true,
}

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Tr: true, atom.Blockquote: true,
}

const paragraphBreak = "\n\n"

// htmlText returns the visible text of an HTML page with one blank line
// between block elements.
func htmlText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
				b.WriteString(t)
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.DataAtom] {
			b.WriteString(paragraphBreak)
		}
	}
	walk(doc)

	var paras []string
	for _, p := range strings.Split(b.String(), paragraphBreak) {
		if p = strings.Join(strings.Fields(p), " "); p != "" {
			paras = append(paras, p)
		}
	}
	return strings.Join(paras, paragraphBreak), nil
}

// pdfText returns the plain text of every page, one paragraph per page.
// The pdf package panics on some malformed files; that is reported as an error.
func pdfText(raw []byte) (_ string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("reading pdf: %v", p)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("reading pdf page %d: %w", i, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, paragraphBreak), nil
}
