// Package snapshot archives acquisition artifacts into timestamped
// directories and prunes old snapshots per server.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// TimestampLayout names snapshot directories. Lexicographic order equals
// chronological order, which Prune relies on.
const TimestampLayout = "2006-01-02--15-04-05"

// Masked placeholder values for credential fields in archived payloads.
const (
	MaskedUsername = "XXXXX"
	MaskedPassword = "YYYYY"
	MaskedHost     = "UUUUU"
)

// ErrSealed is returned when writing to a snapshot that has been sealed.
var ErrSealed = errors.New("snapshot already sealed")

// Snapshot is one open timestamped archive directory.
type Snapshot struct {
	dir    string
	sealed bool
	count  int
}

// Dir returns the snapshot directory path.
func (s *Snapshot) Dir() string {
	return s.dir
}

// ArtifactCount returns the number of artifacts written so far.
func (s *Snapshot) ArtifactCount() int {
	return s.count
}

// WriteArtifact writes one named artifact into the snapshot.
func (s *Snapshot) WriteArtifact(name string, payload []byte) error {
	if s.sealed {
		return ErrSealed
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("writing artifact %s: %w", name, err)
	}
	s.count++
	return nil
}

// Seal closes the snapshot; later writes are rejected.
func (s *Snapshot) Seal() {
	s.sealed = true
}

// Archiver creates and prunes snapshots under a root directory, one
// subdirectory per server key.
type Archiver struct {
	root   string
	logger *slog.Logger
	now    func() time.Time
}

// ArchiverOption configures an Archiver.
type ArchiverOption func(*Archiver)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ArchiverOption {
	return func(a *Archiver) {
		a.logger = logger
	}
}

// WithClock sets the clock used for snapshot timestamps.
func WithClock(now func() time.Time) ArchiverOption {
	return func(a *Archiver) {
		a.now = now
	}
}

// NewArchiver creates an archiver rooted at root.
func NewArchiver(root string, opts ...ArchiverOption) *Archiver {
	a := &Archiver{
		root:   root,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Begin creates a new timestamped snapshot directory for serverKey. When a
// directory for the current second already exists, a numeric suffix is
// appended until creation succeeds.
func (a *Archiver) Begin(serverKey string) (*Snapshot, error) {
	base := filepath.Join(a.root, serverKey)
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("creating server dir: %w", err)
	}

	stamp := a.now().Format(TimestampLayout)
	name := stamp
	for suffix := 2; ; suffix++ {
		dir := filepath.Join(base, name)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return &Snapshot{dir: dir}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("creating snapshot dir: %w", err)
		}
		name = fmt.Sprintf("%s-%d", stamp, suffix)
	}
}

// Prune removes the oldest snapshot directories for serverKey until at most
// keepN remain. keepN <= 0 disables pruning. Each removal is independent; a
// failed removal is logged and does not stop the rest.
func (a *Archiver) Prune(serverKey string, keepN int) error {
	if keepN <= 0 {
		return nil
	}

	base := filepath.Join(a.root, serverKey)
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading snapshot dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	if len(names) <= keepN {
		return nil
	}

	// Timestamped names sort chronologically.
	sort.Strings(names)

	var failed int
	for _, name := range names[:len(names)-keepN] {
		dir := filepath.Join(base, name)
		if err := os.RemoveAll(dir); err != nil {
			failed++
			a.logger.Warn("snapshot removal failed",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
			continue
		}
		a.logger.Debug("pruned snapshot", slog.String("dir", dir))
	}

	if failed > 0 {
		return fmt.Errorf("failed to remove %d snapshot(s)", failed)
	}
	return nil
}

// MaskUserInfo replaces credentials in an authentication payload before it
// is archived: the username and password fields, and the host portion of
// the reported server URL. Unknown fields pass through untouched.
func MaskUserInfo(payload []byte) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decoding user info: %w", err)
	}

	if raw, ok := doc["user_info"]; ok {
		var userInfo map[string]any
		if err := json.Unmarshal(raw, &userInfo); err == nil {
			if _, ok := userInfo["username"]; ok {
				userInfo["username"] = MaskedUsername
			}
			if _, ok := userInfo["password"]; ok {
				userInfo["password"] = MaskedPassword
			}
			if masked, err := json.Marshal(userInfo); err == nil {
				doc["user_info"] = masked
			}
		}
	}

	if raw, ok := doc["server_info"]; ok {
		var serverInfo map[string]any
		if err := json.Unmarshal(raw, &serverInfo); err == nil {
			if url, ok := serverInfo["url"].(string); ok {
				serverInfo["url"] = maskHost(url)
			}
			if masked, err := json.Marshal(serverInfo); err == nil {
				doc["server_info"] = masked
			}
		}
	}

	return json.MarshalIndent(doc, "", "  ")
}

// maskHost replaces the first label of a hostname, keeping the domain
// visible enough to recognize the provider.
func maskHost(host string) string {
	if host == "" {
		return host
	}
	parts := strings.SplitN(host, ".", 2)
	if len(parts) == 1 {
		return MaskedHost
	}
	return MaskedHost + "." + parts[1]
}
