// Package vault is a content-addressed store for oversized or structured
// runtime values. Values are classified, serialized, and replaced in model-
// visible text by reference tokens; the payload stays here until something
// resolves the token back.
package vault

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/statecraft/internal/logging"
	"github.com/openclaw/statecraft/internal/store"
)

// Config bounds previews and the inlining heuristics.
type Config struct {
	// PreviewChars caps the stored preview length in runes.
	PreviewChars int
	// PreviewItems caps container members shown in a preview.
	PreviewItems int
	// StringLimit is the length past which a single-line string must be
	// vaulted rather than inlined.
	StringLimit int
	// InlineLimit is the length past which memory content is vaulted.
	InlineLimit int
}

// DefaultConfig returns the stock limits.
func DefaultConfig() Config {
	return Config{
		PreviewChars: 200,
		PreviewItems: 10,
		StringLimit:  120,
		InlineLimit:  500,
	}
}

// Options control a single Store call.
type Options struct {
	// Force vaults the value regardless of the heuristics.
	Force bool
	// Label is a short human handle; derived from the value when empty.
	Label  string
	Source string
	Notes  string
	Tags   []string
}

// Vault holds the live entries for one turn. Not safe for concurrent use;
// turns run one at a time.
type Vault struct {
	cfg     Config
	logger  *logging.Logger
	entries map[string]*store.VaultEntry
	order   []string
}

// New creates an empty vault.
func New(cfg Config, logger *logging.Logger) *Vault {
	if cfg.PreviewChars <= 0 {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.New().WithComponent("vault")
	}
	return &Vault{
		cfg:     cfg,
		logger:  logger,
		entries: make(map[string]*store.VaultEntry),
	}
}

// LoadEntries seeds the vault from a persisted snapshot.
func (v *Vault) LoadEntries(entries []store.VaultEntry) {
	for i := range entries {
		e := entries[i]
		if _, ok := v.entries[e.ID]; !ok {
			v.order = append(v.order, e.ID)
		}
		v.entries[e.ID] = &e
	}
}

// InlineLimit exposes the memory-inlining threshold.
func (v *Vault) InlineLimit() int { return v.cfg.InlineLimit }

// ShouldVault reports whether val must be stored rather than inlined: forced,
// a long or multi-line string, or any composite/structured/binary value.
func (v *Vault) ShouldVault(val any, opts Options) bool {
	if opts.Force {
		return true
	}
	switch t := val.(type) {
	case nil:
		return false
	case string:
		return len(t) > v.cfg.StringLimit || strings.ContainsRune(t, '\n')
	case error:
		return true
	}
	return composite(Classify(val))
}

// Store classifies, serializes and files val, returning the new entry. It
// never fails: serialization degrades internally rather than erroring.
func (v *Vault) Store(val any, opts Options) *store.VaultEntry {
	kind := Classify(val)
	payload := Serialize(val)
	preview, truncated := renderPreview(val, v.cfg.PreviewChars, v.cfg.PreviewItems)

	label := opts.Label
	if label == "" {
		label = deriveLabel(kind, val)
	}

	id := newID()
	entry := &store.VaultEntry{
		ID:        id,
		Kind:      string(kind),
		Label:     label,
		Preview:   preview,
		Truncated: truncated,
		Size:      len(payload),
		Payload:   payload,
		Source:    opts.Source,
		Notes:     opts.Notes,
		Tags:      opts.Tags,
		CreatedAt: time.Now().UTC(),
	}

	v.entries[id] = entry
	v.order = append(v.order, id)
	v.logger.VaultStored(id, entry.Kind, entry.Size, entry.Truncated)
	return entry
}

// Preview returns the entry's preview, further clipped to limit runes with a
// truncation marker when it does not fit. limit <= 0 keeps the stored bound.
func (v *Vault) Preview(ref string, limit int) (string, error) {
	entry, err := v.lookup(ref)
	if err != nil {
		return "", err
	}
	p := entry.Preview
	if clipped, cut := clipRunes(p, limit); cut {
		return clipped + "… [truncated]", nil
	}
	if entry.Truncated {
		return p + " [truncated]", nil
	}
	return p, nil
}

// Full returns the complete stored content: the raw string for string
// entries, the serialized payload for everything else.
func (v *Vault) Full(ref string) (string, error) {
	entry, err := v.lookup(ref)
	if err != nil {
		return "", err
	}
	if entry.Kind == string(KindString) {
		val, derr := Deserialize(entry.Payload)
		if derr == nil {
			if s, ok := val.(string); ok {
				return s, nil
			}
		}
	}
	return entry.Payload, nil
}

// Value deserializes the stored payload back into a runtime value.
func (v *Vault) Value(ref string) (any, error) {
	entry, err := v.lookup(ref)
	if err != nil {
		return nil, err
	}
	return Deserialize(entry.Payload)
}

// Info returns entry metadata with the payload stripped.
func (v *Vault) Info(ref string) (*store.VaultEntry, error) {
	entry, err := v.lookup(ref)
	if err != nil {
		return nil, err
	}
	meta := *entry
	meta.Payload = ""
	return &meta, nil
}

// Delete removes an entry, reporting whether it existed.
func (v *Vault) Delete(ref string) bool {
	id := normalizeRef(ref)
	if _, ok := v.entries[id]; !ok {
		return false
	}
	delete(v.entries, id)
	for i, oid := range v.order {
		if oid == id {
			v.order = append(v.order[:i], v.order[i+1:]...)
			break
		}
	}
	return true
}

// Has reports whether an entry exists for ref.
func (v *Vault) Has(ref string) bool {
	_, ok := v.entries[normalizeRef(ref)]
	return ok
}

// List returns metadata for every entry in insertion order, payloads stripped.
func (v *Vault) List() []store.VaultEntry {
	out := make([]store.VaultEntry, 0, len(v.order))
	for _, id := range v.order {
		meta := *v.entries[id]
		meta.Payload = ""
		out = append(out, meta)
	}
	return out
}

// Entries returns full copies of every entry in insertion order, for commit.
func (v *Vault) Entries() []store.VaultEntry {
	out := make([]store.VaultEntry, 0, len(v.order))
	for _, id := range v.order {
		out = append(out, *v.entries[id])
	}
	return out
}

// Len returns the number of live entries.
func (v *Vault) Len() int { return len(v.entries) }

// ResolveText substitutes every reference token in text with the referenced
// full content. It returns the resolved text, the identifiers resolved, and
// the identifiers that had no live entry.
func (v *Vault) ResolveText(text string) (string, []string, []string) {
	var resolved, missing []string
	out := tokenPattern.ReplaceAllStringFunc(text, func(token string) string {
		m := tokenPattern.FindStringSubmatch(token)
		id := strings.ToLower(m[1])
		full, err := v.Full(id)
		if err != nil {
			missing = append(missing, id)
			return token
		}
		resolved = append(resolved, id)
		return full
	})
	return out, resolved, missing
}

func (v *Vault) lookup(ref string) (*store.VaultEntry, error) {
	id := normalizeRef(ref)
	entry, ok := v.entries[id]
	if !ok {
		return nil, fmt.Errorf("vault entry %q does not exist: %w", id, store.ErrNotFound)
	}
	return entry, nil
}

// normalizeRef accepts a token, a legacy bare identifier, or a plain id.
func normalizeRef(ref string) string {
	if id, ok := ExtractID(ref); ok {
		return id
	}
	return strings.TrimSpace(ref)
}

func newID() string {
	return "v-" + uuid.NewString()[:8]
}

func deriveLabel(kind Kind, val any) string {
	switch t := val.(type) {
	case string:
		first := t
		if i := strings.IndexRune(first, '\n'); i >= 0 {
			first = first[:i]
		}
		if clipped, cut := clipRunes(first, 32); cut {
			first = clipped + "…"
		}
		if first != "" {
			return first
		}
		return "string"
	case []any:
		return fmt.Sprintf("array of %d", len(t))
	case map[string]any:
		return fmt.Sprintf("object with %d keys", len(t))
	case map[any]any:
		return fmt.Sprintf("map of %d entries", len(t))
	case Set:
		return fmt.Sprintf("set of %d", len(t))
	case []byte:
		return fmt.Sprintf("binary, %d bytes", len(t))
	}
	return string(kind)
}
