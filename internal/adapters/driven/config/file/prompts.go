package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driven"
	"github.com/editnori/psych-intake-brief-sub001/internal/logger"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore loads generation prompts from user-editable files on disk.
// Prompts are loaded from a configurable directory with fallback to embedded defaults.
//
// The store uses lazy initialisation - files are only created when first accessed,
// not in the constructor. This makes testing easier and avoids unexpected I/O.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// defaultPrompts contains embedded default prompts.
// These are used when user files don't exist and as the initial content for new files.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var defaultPrompts = map[string]string{
	driven.PromptSectionDraft: `You are drafting the "%s" section of a clinical intake brief.

%s

Formatting rules:
%s

Ground every sentence in the evidence excerpts provided. Cite the chunk id of each supporting excerpt. Respond with a JSON object of the form {"text": "...", "citations": [{"chunk_id": "...", "excerpt": "..."}]}. Do not include any other keys or commentary.`,

	driven.PromptCitationRecovery: `The following section text has already been written and must not be changed:

%s

Attach citations to it from these evidence excerpts:

%s

Respond with a JSON object {"citations": [{"chunk_id": "...", "excerpt": "..."}]} listing every excerpt that supports a statement in the text. Do not rewrite the text.`,

	driven.PromptStrictCitations: `Every sentence MUST be supported by a cited evidence excerpt. Omit any statement you cannot cite. An empty citations array is not acceptable.`,

	driven.PromptRevision: `The section below was drafted from an earlier set of documents. New documents have since been added; their excerpts appear first in the evidence block.

Previous section text:
%s

%s

Rework the section to reflect the new evidence. Keep prior statements that still hold, and cite every statement as before.`,
}

// NewPromptStore creates a new file-based prompt store.
// If promptDir is empty, defaults to ~/.intakebrief/prompts/.
//
// The constructor does not perform any I/O - directory creation, file
// writes and the edit watcher all start lazily on first Load() call.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		promptDir = filepath.Join(home, ".intakebrief", "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]string),
		done:      make(chan struct{}),
	}, nil
}

// Load returns the prompt template for the given name.
// On first call, initialises the prompt directory and creates default files.
// Returns cached value if available, otherwise loads from file.
// Falls back to embedded default if file doesn't exist.
func (s *PromptStore) Load(name string) (string, error) {
	// Ensure directory, defaults and watcher exist (lazy init)
	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		// Fall back to embedded defaults if init failed
		if prompt, ok := defaultPrompts[name]; ok {
			return prompt, nil
		}
		return "", fmt.Errorf("prompt store init failed: %w", s.initErr)
	}

	// Check cache first (read lock)
	s.mu.RLock()
	if prompt, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return prompt, nil
	}
	s.mu.RUnlock()

	// Load from file (no lock held during I/O)
	prompt, err := s.loadFromFile(name)
	if err != nil {
		// Fall back to embedded default
		if defaultPrompt, ok := defaultPrompts[name]; ok {
			return defaultPrompt, nil
		}
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}

	// Cache the result (write lock)
	// Use double-check pattern to avoid overwriting concurrent loads
	s.mu.Lock()
	if _, ok := s.cache[name]; !ok {
		s.cache[name] = prompt
	} else {
		// Another goroutine loaded it first, use their value
		prompt = s.cache[name]
	}
	s.mu.Unlock()

	return prompt, nil
}

// Reload clears the prompt cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

// Close stops the edit watcher.
func (s *PromptStore) Close() error {
	s.mu.Lock()
	watcher := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if watcher == nil {
		return nil
	}
	close(s.done)
	return watcher.Close()
}

// initialise creates the prompt directory, default files and the edit
// watcher. Called once via sync.Once on first Load().
func (s *PromptStore) initialise() {
	// Create directory
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	// Create default prompt files (only if they don't exist)
	for name, content := range defaultPrompts {
		path := filepath.Join(s.promptDir, name+".txt")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
				return
			}
		}
	}

	// Create README
	if err := s.createReadme(); err != nil {
		s.initErr = err
		return
	}

	// Watch for edits so customised prompts apply without a restart.
	// A watcher failure is not fatal; Reload() still works manually.
	if err := s.watch(); err != nil {
		logger.Warn("prompt watcher unavailable: %v", err)
	}
}

// watch starts an fsnotify watcher that drops the cache whenever a
// prompt file changes.
func (s *PromptStore) watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(s.promptDir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", s.promptDir, err)
	}

	s.mu.Lock()
	s.watcher = watcher
	s.mu.Unlock()

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !strings.HasSuffix(event.Name, ".txt") {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					logger.Debug("prompt file changed: %s", filepath.Base(event.Name))
					s.Reload()
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			case <-s.done:
				return
			}
		}
	}()

	return nil
}

// loadFromFile reads a prompt from disk.
func (s *PromptStore) loadFromFile(name string) (string, error) {
	path := filepath.Join(s.promptDir, name+".txt")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// createReadme writes a README file explaining the prompts directory.
func (s *PromptStore) createReadme() error {
	path := filepath.Join(s.promptDir, "README.md")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil // Already exists or stat error (ignore)
	}

	content := `# Intake Brief Prompts

This directory contains customisable prompts used during note generation.

## Files

- ` + "`section_draft.txt`" + ` - Frames one section generation request
- ` + "`citation_recovery.txt`" + ` - Attaches citations to already-written text
- ` + "`strict_citations.txt`" + ` - Appended on the strict retry
- ` + "`revision.txt`" + ` - Frames an update re-generation

## Customisation

Edit any file to customise generation behaviour. Changes are picked up
automatically on the next generation.

## Format Placeholders

Some prompts use Go fmt placeholders:
- ` + "`%s`" + ` - String (e.g., the section title or evidence)

Ensure customised prompts maintain placeholders in the correct positions.
`
	return os.WriteFile(path, []byte(content), 0600)
}
