// Package archive keeps a git history of each work's finished manuscript:
// one repository per work, one markdown file per chapter.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	branchName  = "main"
	chaptersDir = "chapters"
	manifest    = "work.json"
)

// ErrNotArchived is returned for works that were never published.
var ErrNotArchived = errors.New("archive: work has no repository")

type ChapterFile struct {
	Number int    `json:"number"`
	Title  string `json:"title,omitempty"`
	Status string `json:"status"`
	Text   string `json:"-"`
}

type Manuscript struct {
	WorkID   string        `json:"workId"`
	Title    string        `json:"title"`
	Chapters []ChapterFile `json:"chapters"`
}

type CommitInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Publish writes the manuscript into the work's repository and commits it.
// Chapters no longer present are removed. When nothing changed the current
// head is returned and no commit is made.
func (s *Service) Publish(m Manuscript, author, message string) (CommitInfo, error) {
	if strings.TrimSpace(m.WorkID) == "" {
		return CommitInfo{}, errors.New("archive: work id required")
	}
	lock := s.workLock(m.WorkID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openOrInit(m.WorkID)
	if err != nil {
		return CommitInfo{}, err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}
	root := worktree.Filesystem.Root()

	if err := os.MkdirAll(filepath.Join(root, chaptersDir), 0o755); err != nil {
		return CommitInfo{}, fmt.Errorf("create chapters dir: %w", err)
	}

	keep := make(map[string]bool, len(m.Chapters))
	for _, ch := range m.Chapters {
		rel := ChapterPath(ch.Number)
		keep[rel] = true
		if err := os.WriteFile(filepath.Join(root, rel), []byte(renderChapter(ch)), 0o644); err != nil {
			return CommitInfo{}, fmt.Errorf("write %s: %w", rel, err)
		}
		if _, err := worktree.Add(rel); err != nil {
			return CommitInfo{}, fmt.Errorf("git add %s: %w", rel, err)
		}
	}

	existing, err := filepath.Glob(filepath.Join(root, chaptersDir, "*.md"))
	if err != nil {
		return CommitInfo{}, fmt.Errorf("list chapter files: %w", err)
	}
	for _, path := range existing {
		rel := filepath.ToSlash(filepath.Join(chaptersDir, filepath.Base(path)))
		if keep[rel] {
			continue
		}
		if _, err := worktree.Remove(rel); err != nil {
			return CommitInfo{}, fmt.Errorf("git rm %s: %w", rel, err)
		}
	}

	payload, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return CommitInfo{}, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(root, manifest), append(payload, '\n'), 0o644); err != nil {
		return CommitInfo{}, fmt.Errorf("write manifest: %w", err)
	}
	if _, err := worktree.Add(manifest); err != nil {
		return CommitInfo{}, fmt.Errorf("git add manifest: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("worktree status: %w", err)
	}
	if status.IsClean() {
		return headInfo(repo)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: signature(author),
	})
	if err != nil {
		return CommitInfo{}, fmt.Errorf("commit manuscript: %w", err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

func (s *Service) History(workID string, limit int) ([]CommitInfo, error) {
	lock := s.workLock(workID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(workID)
	if err != nil {
		return nil, err
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branchName), true)
	if err != nil {
		return nil, fmt.Errorf("resolve branch %s: %w", branchName, err)
	}

	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]CommitInfo, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
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

// Tag marks the current head. Existing tags are left alone.
func (s *Service) Tag(workID, name string) error {
	lock := s.workLock(workID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(workID)
	if err != nil {
		return err
	}
	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("resolve head: %w", err)
	}
	_, err = repo.CreateTag(name, head.Hash(), &git.CreateTagOptions{
		Tagger:  signature("yunmun"),
		Message: name,
	})
	if err != nil && !errors.Is(err, git.ErrTagExists) {
		return fmt.Errorf("create tag: %w", err)
	}
	return nil
}

// ChapterAt returns a chapter's archived markdown at a revision ("" = head).
func (s *Service) ChapterAt(workID, revision string, number int) (string, error) {
	lock := s.workLock(workID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(workID)
	if err != nil {
		return "", err
	}
	if revision == "" {
		revision = "HEAD"
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		return "", fmt.Errorf("resolve revision %s: %w", revision, err)
	}
	commitObj, err := repo.CommitObject(*hash)
	if err != nil {
		return "", fmt.Errorf("read commit %s: %w", revision, err)
	}
	file, err := commitObj.File(ChapterPath(number))
	if err != nil {
		return "", fmt.Errorf("load chapter %d: %w", number, err)
	}
	return file.Contents()
}

// ChapterPath is the repository path of a chapter file.
func ChapterPath(number int) string {
	return fmt.Sprintf("%s/%04d.md", chaptersDir, number)
}

func renderChapter(ch ChapterFile) string {
	var b strings.Builder
	heading := fmt.Sprintf("%d화", ch.Number)
	if ch.Title != "" {
		heading += " " + ch.Title
	}
	b.WriteString("# " + heading + "\n\n")
	b.WriteString(strings.TrimRight(ch.Text, "\n"))
	b.WriteString("\n")
	return b.String()
}

func (s *Service) repoPath(workID string) string {
	return filepath.Join(s.baseDir, workID)
}

func (s *Service) open(workID string) (*git.Repository, error) {
	repo, err := git.PlainOpen(s.repoPath(workID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, ErrNotArchived
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	return repo, nil
}

func (s *Service) openOrInit(workID string) (*git.Repository, error) {
	path := s.repoPath(workID)
	if _, err := os.Stat(path); err == nil {
		return s.open(workID)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat repo path: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err := git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branchName))); err != nil {
		return nil, fmt.Errorf("set HEAD to %s: %w", branchName, err)
	}
	return repo, nil
}

func (s *Service) workLock(workID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[workID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[workID] = lock
	return lock
}

func headInfo(repo *git.Repository) (CommitInfo, error) {
	head, err := repo.Head()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("resolve head: %w", err)
	}
	commitObj, err := repo.CommitObject(head.Hash())
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read head commit: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

func signature(name string) *object.Signature {
	return &object.Signature{
		Name:  name,
		Email: fmt.Sprintf("%s@archive.yunmun.local", sanitizeEmail(name)),
		When:  time.Now(),
	}
}

func toCommitInfo(commitObj *object.Commit) CommitInfo {
	return CommitInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   strings.TrimSpace(commitObj.Message),
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

// SortChapters orders chapter files by number.
func SortChapters(chapters []ChapterFile) {
	sort.SliceStable(chapters, func(i, j int) bool { return chapters[i].Number < chapters[j].Number })
}
