// Package console is a line-oriented terminal front end for one session.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"rag-doc-assistant/internal/backend"
	"rag-doc-assistant/internal/chat"
	apperrors "rag-doc-assistant/internal/errors"
	"rag-doc-assistant/internal/models"
	"rag-doc-assistant/internal/session"

	"go.uber.org/zap"
)

// AcceptedExtension is the only document type the backend ingests.
const AcceptedExtension = ".docx"

const helpText = `Type a question and press enter. Commands:
  /upload <path>     upload a .docx document
  /docs              list uploaded documents
  /forget            remove all documents (also clears the chat)
  /clear             clear the chat
  /settings          show current settings
  /set <key>=<value> change provider, model, temperature, top_k, chunk_size or chunk_overlap
  /provider <name>   switch provider (openai or ollama)
  /health            backend status
  /models            models offered for the current provider
  /help              this text
  /quit              exit`

// Catalog is the read-only part of the backend the console queries directly.
type Catalog interface {
	Health(ctx context.Context) (*models.HealthStatus, error)
	ListModels(ctx context.Context) (models.ModelCatalog, error)
}

type Console struct {
	sess     *session.Session
	catalog  Catalog
	in       io.Reader
	out      io.Writer
	outMu    sync.Mutex
	log      *zap.Logger
	readFile func(string) ([]byte, error)
}

func New(sess *session.Session, catalog Catalog, in io.Reader, out io.Writer, logger *zap.Logger) *Console {
	return &Console{
		sess:     sess,
		catalog:  catalog,
		in:       in,
		out:      out,
		log:      logger.Named("console"),
		readFile: os.ReadFile,
	}
}

// Run reads commands until /quit, end of input or ctx is done.
func (c *Console) Run(ctx context.Context) error {
	unsubscribe := c.sess.Chat.Subscribe(func(s chat.Snapshot) {
		if s.State == chat.AwaitingResponse {
			c.println("Thinking...")
		}
	})
	defer unsubscribe()

	c.println("Document assistant ready. Type /help for commands.")

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	for {
		c.print("> ")
		select {
		case <-ctx.Done():
			c.println("")
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			if quit := c.Execute(ctx, line); quit {
				return nil
			}
		}
	}
}

// Execute handles one input line and reports whether the user asked to quit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		c.ask(ctx, line)
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		c.println(helpText)
	case "/upload":
		c.UploadFile(ctx, arg)
	case "/docs":
		c.showDocuments()
	case "/forget":
		c.forget(ctx)
	case "/clear":
		c.sess.Chat.Clear()
		c.println("Chat cleared.")
	case "/settings":
		c.showSettings()
	case "/set":
		c.set(arg)
	case "/provider":
		c.selectProvider(arg)
	case "/health":
		c.health(ctx)
	case "/models":
		c.showModels(ctx)
	default:
		c.printf("Unknown command %s. Type /help for commands.\n", cmd)
	}
	return false
}

func (c *Console) ask(ctx context.Context, question string) {
	switch err := c.sess.Chat.Send(ctx, question); {
	case errors.Is(err, chat.ErrRequestInFlight):
		c.println("Still waiting for the previous answer.")
		return
	case err != nil:
		c.printf("Error: %s\n", err)
		return
	}

	snap := c.sess.Chat.Snapshot()
	if snap.Error != "" {
		c.printf("Error: %s\n", snap.Error)
		return
	}
	if last, ok := snap.LastMessage(); ok && last.Role == models.RoleAssistant {
		c.println(formatAnswer(last))
	}
}

// UploadFile uploads the document at path into the session. It is also used
// for files dropped into the watched inbox.
func (c *Console) UploadFile(ctx context.Context, path string) {
	if path == "" {
		c.println("Usage: /upload <path>")
		return
	}
	if !strings.EqualFold(filepath.Ext(path), AcceptedExtension) {
		c.println("Only .docx files are supported.")
		return
	}

	data, err := c.readFile(path)
	if err != nil {
		c.log.Warn("read document failed", zap.String("path", path), zap.Error(err))
		c.printf("Could not read %s: %v\n", path, err)
		return
	}

	summary, err := c.sess.Upload(ctx, backend.File{Name: filepath.Base(path), Data: data})
	c.ReportUpload(path, summary, err)
}

// ReportUpload prints the outcome of an upload.
func (c *Console) ReportUpload(path string, summary *models.DocumentSummary, err error) {
	switch {
	case errors.Is(err, session.ErrUploadInProgress):
		c.printf("Upload of %s skipped: another upload is in progress.\n", filepath.Base(path))
	case err != nil:
		c.printf("Upload of %s failed: %s\n", filepath.Base(path), apperrors.UserMessage(err))
	default:
		c.println(formatSummary(*summary))
	}
}

func (c *Console) showDocuments() {
	docs := c.sess.Documents.List()
	if len(docs) == 0 {
		c.println("No documents uploaded.")
		return
	}
	for i, d := range docs {
		c.printf("%d. %s\n", i+1, formatSummary(d))
	}
}

func (c *Console) forget(ctx context.Context) {
	if err := c.sess.ClearDocuments(ctx); err != nil {
		c.printf("Error: %s\n", apperrors.UserMessage(err))
		return
	}
	c.println("All documents removed. Chat cleared.")
}

func (c *Console) showSettings() {
	s := c.sess.Settings.Current()
	model := s.Model
	if model == "" {
		model = "(provider default)"
	}
	c.printf("provider=%s model=%s temperature=%.2f top_k=%d chunk_size=%d chunk_overlap=%d\n",
		s.Provider, model, s.Temperature, s.TopK, s.ChunkSize, s.ChunkOverlap)
}

func (c *Console) set(arg string) {
	key, value, ok := strings.Cut(arg, "=")
	if !ok {
		c.println("Usage: /set <key>=<value>")
		return
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	next, err := applySetting(c.sess.Settings.Current(), key, value)
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	if _, err := c.sess.Settings.Replace(next); err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	c.showSettings()
}

func applySetting(s models.Settings, key, value string) (models.Settings, error) {
	var err error
	switch key {
	case "provider":
		s = s.WithProvider(value)
	case "model":
		s.Model = value
	case "temperature":
		s.Temperature, err = strconv.ParseFloat(value, 64)
	case "top_k":
		s.TopK, err = strconv.Atoi(value)
	case "chunk_size":
		s.ChunkSize, err = strconv.Atoi(value)
	case "chunk_overlap":
		s.ChunkOverlap, err = strconv.Atoi(value)
	default:
		return s, fmt.Errorf("unknown setting %q", key)
	}
	if err != nil {
		return s, fmt.Errorf("invalid value for %s: %q", key, value)
	}
	return s, nil
}

func (c *Console) selectProvider(name string) {
	if _, err := c.sess.Settings.SelectProvider(name); err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	c.showSettings()
}

func (c *Console) health(ctx context.Context) {
	h, err := c.catalog.Health(ctx)
	if err != nil {
		c.printf("Error: %s\n", apperrors.UserMessage(err))
		return
	}
	c.printf("status=%s documents=%d chunks=%d embedding_model=%s\n",
		h.Status, h.DocumentsLoaded, h.TotalChunks, h.EmbeddingModel)
}

func (c *Console) showModels(ctx context.Context) {
	catalog, err := c.catalog.ListModels(ctx)
	if err != nil {
		c.printf("Error: %s\n", apperrors.UserMessage(err))
		return
	}

	provider := c.sess.Settings.Current().Provider
	options := catalog.For(provider)
	if len(options) == 0 {
		c.printf("No models listed for %s; the provider default is used.\n", provider)
		return
	}
	options = append([]models.ModelOption(nil), options...)
	sort.SliceStable(options, func(i, j int) bool { return options[i].ID < options[j].ID })
	for _, m := range options {
		c.printf("  %s (%s)\n", m.ID, m.Name)
	}
}

func formatAnswer(m models.Message) string {
	var b strings.Builder
	if m.ModelUsed != "" {
		fmt.Fprintf(&b, "[%s]\n", m.ModelUsed)
	}
	b.WriteString(m.Content)
	if len(m.Sources) > 0 {
		b.WriteString("\nSources:")
		for i, s := range m.Sources {
			fmt.Fprintf(&b, "\n  [%d] %s", i+1, s.Source)
			if s.Section != nil && *s.Section != "" {
				fmt.Fprintf(&b, ", %s", *s.Section)
			}
			fmt.Fprintf(&b, " (score %.2f)", s.Score)
		}
	}
	return b.String()
}

func formatSummary(d models.DocumentSummary) string {
	line := fmt.Sprintf("%s: %d chunks, %d tables, %d paragraphs", d.Filename, d.NumChunks, d.NumTables, d.NumParagraphs)
	if len(d.SampleSections) > 0 {
		line += " (sections: " + strings.Join(d.SampleSections, ", ") + ")"
	}
	return line
}

func (c *Console) print(s string) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	_, _ = io.WriteString(c.out, s)
}

func (c *Console) println(s string) {
	c.print(s + "\n")
}

func (c *Console) printf(format string, args ...any) {
	c.print(fmt.Sprintf(format, args...))
}
