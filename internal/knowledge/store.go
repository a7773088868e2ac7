// File path: internal/knowledge/store.go
package knowledge

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Document kinds carried in a project's ledger.
const (
	KindKnowledge  = "knowledge"
	KindPlan       = "plan"
	KindCapability = "capability"
)

// Doc is one knowledge/plan/capability record for a project.
type Doc struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Validate checks the document's shape. There are no invariants beyond it.
func (d Doc) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return errors.New("doc id required")
	}
	switch d.Kind {
	case KindKnowledge, KindPlan, KindCapability:
		return nil
	default:
		return fmt.Errorf("unknown doc kind %q", d.Kind)
	}
}

// Store persists per-project ledgers as JSONL files under a root
// directory. Plain get/set CRUD; access control lives with the caller.
type Store struct {
	path string
	mu   sync.RWMutex
}

// NewStore creates the root directory if needed.
func NewStore(path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, errors.New("knowledge root required")
	}
	if err := os.MkdirAll(trimmed, 0o755); err != nil {
		return nil, fmt.Errorf("create knowledge root: %w", err)
	}
	return &Store{path: trimmed}, nil
}

// AppendDocs adds documents to a project's ledger.
func (s *Store) AppendDocs(ctx context.Context, projectID string, docs []Doc) error {
	if len(docs) == 0 {
		return nil
	}
	if err := validateDocs(docs); err != nil {
		return err
	}
	filePath, err := s.projectFile(projectID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeDocs(ctx, filePath, docs, os.O_APPEND|os.O_WRONLY|os.O_CREATE)
}

// ReplaceDocs overwrites a project's ledger with the provided documents.
func (s *Store) ReplaceDocs(ctx context.Context, projectID string, docs []Doc) error {
	if err := validateDocs(docs); err != nil {
		return err
	}
	filePath, err := s.projectFile(projectID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeDocs(ctx, filePath, docs, os.O_TRUNC|os.O_WRONLY|os.O_CREATE)
}

// Docs returns all documents stored for a project, in insertion order.
func (s *Store) Docs(ctx context.Context, projectID string) ([]Doc, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readProject(ctx, projectID)
}

// ProjectInfo summarises one stored ledger.
type ProjectInfo struct {
	ID        string `json:"id"`
	Documents int    `json:"documents"`
}

// Projects lists stored ledgers with their document counts.
func (s *Store) Projects(ctx context.Context) ([]ProjectInfo, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, err := os.ReadDir(s.path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge root: %w", err)
	}
	infos := make([]ProjectInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		projectID, ok := decodeProjectFile(entry.Name())
		if !ok {
			continue
		}
		docs, err := s.readProject(ctx, projectID)
		if err != nil {
			return nil, err
		}
		infos = append(infos, ProjectInfo{ID: projectID, Documents: len(docs)})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ID < infos[j].ID
	})
	return infos, nil
}

func validateDocs(docs []Doc) error {
	for i, doc := range docs {
		if err := doc.Validate(); err != nil {
			return fmt.Errorf("doc %d: %w", i, err)
		}
	}
	return nil
}

func writeDocs(ctx context.Context, filePath string, docs []Doc, flags int) error {
	file, err := os.OpenFile(filePath, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer file.Close()
	enc := json.NewEncoder(file)
	for _, doc := range docs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode doc: %w", err)
		}
	}
	return nil
}

func (s *Store) readProject(ctx context.Context, projectID string) ([]Doc, error) {
	filePath, err := s.projectFile(projectID)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64<<10), 8<<20)
	var docs []Doc
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var doc Doc
		if err := json.Unmarshal(line, &doc); err != nil {
			return nil, fmt.Errorf("decode doc: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan docs: %w", err)
	}
	return docs, nil
}

func (s *Store) projectFile(projectID string) (string, error) {
	trimmed := strings.TrimSpace(projectID)
	if trimmed == "" {
		return "", fmt.Errorf("project id required")
	}
	encoded := base64.RawURLEncoding.EncodeToString([]byte(trimmed))
	return filepath.Join(s.path, fmt.Sprintf("project_%s.jsonl", encoded)), nil
}

func decodeProjectFile(name string) (string, bool) {
	if !strings.HasPrefix(name, "project_") || !strings.HasSuffix(name, ".jsonl") {
		return "", false
	}
	encoded := strings.TrimSuffix(strings.TrimPrefix(name, "project_"), ".jsonl")
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	return string(data), true
}
