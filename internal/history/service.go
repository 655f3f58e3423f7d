// Package history keeps a git-backed trail of local saves. Every saved
// document becomes a commit of <key>.json in a single repository.
package history

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/GoldLion123RP/resume-builder-sub001/internal/persistence"
)

// Revision is one commit touching a document.
type Revision struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type Service struct {
	dir    string
	author string

	mu   sync.Mutex
	repo *git.Repository
}

var _ persistence.Journal = (*Service)(nil)

func New(dir, author string) *Service {
	if author == "" {
		author = "Folio"
	}
	return &Service{dir: dir, author: author}
}

// Record commits data as the new content of key. Saving identical content
// twice produces one commit.
func (s *Service) Record(ctx context.Context, key string, data []byte, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		return fmt.Errorf("format revision: %w", err)
	}
	pretty.WriteByte('\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.open(true)
	if err != nil {
		return err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}

	name := fileName(key)
	if err := os.WriteFile(filepath.Join(s.dir, name), pretty.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if _, err := worktree.Add(name); err != nil {
		return fmt.Errorf("git add %s: %w", name, err)
	}

	_, err = worktree.Commit(fmt.Sprintf("Save %s", key), &git.CommitOptions{
		Author: &object.Signature{
			Name:  s.author,
			Email: fmt.Sprintf("%s@local.folio.dev", sanitizeEmail(s.author)),
			When:  at,
		},
	})
	if errors.Is(err, git.ErrEmptyCommit) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("commit revision: %w", err)
	}
	return nil
}

// Log lists the newest revisions of key first. limit <= 0 means all.
func (s *Service) Log(ctx context.Context, key string, limit int) ([]Revision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.open(false)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return []Revision{}, nil
	}
	if err != nil {
		return nil, err
	}
	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []Revision{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}

	name := fileName(key)
	iter, err := repo.Log(&git.LogOptions{From: head.Hash(), FileName: &name})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Revision, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toRevision(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// Read returns the content of key as of the given revision.
func (s *Service) Read(ctx context.Context, key, hash string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.open(false)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	resolved, err := resolveHash(repo, hash)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	commitObj, err := repo.CommitObject(resolved)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", hash, err)
	}
	file, err := commitObj.File(fileName(key))
	if errors.Is(err, object.ErrFileNotFound) {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s from commit: %w", key, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("open content reader: %w", err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read content bytes: %w", err)
	}
	return content, nil
}

func (s *Service) open(create bool) (*git.Repository, error) {
	if s.repo != nil {
		return s.repo, nil
	}
	repo, err := git.PlainOpen(s.dir)
	if errors.Is(err, git.ErrRepositoryNotExists) && create {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
		repo, err = git.PlainInit(s.dir, false)
		if err != nil {
			return nil, fmt.Errorf("init history repo: %w", err)
		}
		if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
			return nil, fmt.Errorf("set HEAD to main: %w", err)
		}
	}
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, err
		}
		return nil, fmt.Errorf("open history repo: %w", err)
	}
	s.repo = repo
	return repo, nil
}

func fileName(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key)) + ".json"
}

func toRevision(commitObj *object.Commit) Revision {
	return Revision{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
