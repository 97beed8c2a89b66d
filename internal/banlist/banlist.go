// Package banlist tracks destinations that have rejected an agent's
// writes. The set is held in memory and mirrored to a line-delimited
// file so bans survive restarts; a banned destination is never
// written to again until the ban is lifted by an operator.
package banlist

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// List is a persistent set of banned destination names. The zero
// value is not usable; construct with Load.
type List struct {
	mu     sync.Mutex
	path   string
	banned map[string]bool
}

// Load reads the ban file at path, creating an empty list when the
// file does not exist yet. Names compare case-insensitively.
func Load(path string) (*List, error) {
	l := &List{path: path, banned: map[string]bool{}}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ban list: %w", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		name := strings.ToLower(strings.TrimSpace(sc.Text()))
		if name != "" {
			l.banned[name] = true
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read ban list: %w", err)
	}
	return l, nil
}

// Contains reports whether the destination is banned.
func (l *List) Contains(destination string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.banned[strings.ToLower(destination)]
}

// Add bans a destination and rewrites the file. Adding an already
// banned destination is a no-op.
func (l *List) Add(destination string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	name := strings.ToLower(strings.TrimSpace(destination))
	if name == "" || l.banned[name] {
		return nil
	}
	l.banned[name] = true
	return l.flush()
}

// Remove lifts a ban and rewrites the file.
func (l *List) Remove(destination string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	name := strings.ToLower(strings.TrimSpace(destination))
	if !l.banned[name] {
		return nil
	}
	delete(l.banned, name)
	return l.flush()
}

// All returns the banned destinations in sorted order.
func (l *List) All() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.banned))
	for name := range l.banned {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (l *List) flush() error {
	names := make([]string, 0, len(l.banned))
	for name := range l.banned {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(l.path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write ban list: %w", err)
	}
	return nil
}
