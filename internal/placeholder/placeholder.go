// Package placeholder keeps opaque fragments out of the structural passes.
// A fragment is swapped for an alphanumeric token early in a run and put
// back, in a single replacement pass, as the very last step.
package placeholder

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// tokenPrefix keeps tokens from starting with a digit, which some text
// filters treat specially.
const tokenPrefix = "ia"

// Table maps generated tokens to the payloads they stand for. A Table
// belongs to one transformation run.
type Table struct {
	mu      sync.Mutex
	order   []string
	entries map[string]string
}

// New returns an empty table.
func New() *Table {
	return &Table{entries: make(map[string]string)}
}

// Reserve stores payload and returns the token that stands for it. The
// token is alphanumeric, so it needs no escaping in markup or text.
func (t *Table) Reserve(payload string) string {
	token := tokenPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	t.mu.Lock()
	defer t.mu.Unlock()
	t.order = append(t.order, token)
	t.entries[token] = payload
	return token
}

// Payload returns the payload reserved under token.
func (t *Table) Payload(token string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.entries[token]
	return p, ok
}

// Len reports how many tokens have been reserved.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}

// RestoreAll substitutes every reserved token in content with its payload
// in a single pass. Payloads are never rescanned, so a payload that happens
// to contain another token is left as is. Tokens absent from content are
// simply unused.
func (t *Table) RestoreAll(content string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.order) == 0 {
		return content
	}
	pairs := make([]string, 0, 2*len(t.order))
	for _, token := range t.order {
		pairs = append(pairs, token, t.entries[token])
	}
	return strings.NewReplacer(pairs...).Replace(content)
}

// Leftovers returns the reserved tokens that still occur in content. After
// RestoreAll this must be empty; anything else is a pipeline ordering bug.
func (t *Table) Leftovers(content string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for _, token := range t.order {
		if strings.Contains(content, token) {
			out = append(out, token)
		}
	}
	return out
}

// IsToken reports whether s has the shape of a generated token.
func IsToken(s string) bool {
	if len(s) != len(tokenPrefix)+32 || !strings.HasPrefix(s, tokenPrefix) {
		return false
	}
	for _, r := range s[len(tokenPrefix):] {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}
