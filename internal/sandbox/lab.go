package sandbox

import (
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/openclaw/statecraft/internal/store"
	"github.com/openclaw/statecraft/internal/vault"
)

// labState accumulates the side channel of one execution: entries the code
// created and identifiers it asked for that had no live entry.
type labState struct {
	vault      *vault.Vault
	vaultIDs   []string
	missingIDs []string
}

func (s *labState) recordMissing(ref string) {
	for _, id := range s.missingIDs {
		if id == ref {
			return
		}
	}
	s.missingIDs = append(s.missingIDs, ref)
}

// labModule builds the `lab` capability object bound into the sandbox. It is
// the only bridge between executed code and the rest of the system.
func labModule(state *labState) *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "lab",
		Members: starlark.StringDict{
			"store": starlark.NewBuiltin("lab.store", state.storeFn),
			"read":  starlark.NewBuiltin("lab.read", state.readFn),
			"value": starlark.NewBuiltin("lab.value", state.valueFn),
			"info":  starlark.NewBuiltin("lab.info", state.infoFn),
			"list":  starlark.NewBuiltin("lab.list", state.listFn),
			"drop":  starlark.NewBuiltin("lab.drop", state.dropFn),
		},
	}
}

// lab.store(value, label="", notes="") -> reference token
func (s *labState) storeFn(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var value starlark.Value
	var label, notes string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"value", &value, "label?", &label, "notes?", &notes); err != nil {
		return nil, err
	}
	entry := s.vault.Store(fromStarlark(value), vault.Options{
		Force:  true,
		Label:  label,
		Notes:  notes,
		Source: "sandbox",
	})
	s.vaultIDs = append(s.vaultIDs, entry.ID)
	return starlark.String(vault.Token(entry.ID)), nil
}

// lab.read(ref, limit=0) -> preview string
func (s *labState) readFn(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var ref string
	var limit int
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "ref", &ref, "limit?", &limit); err != nil {
		return nil, err
	}
	preview, err := s.vault.Preview(ref, limit)
	if err != nil {
		s.recordMissing(normalizedID(ref))
		return nil, err
	}
	return starlark.String(preview), nil
}

// lab.value(ref) -> the stored value, revived
func (s *labState) valueFn(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var ref string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "ref", &ref); err != nil {
		return nil, err
	}
	val, err := s.vault.Value(ref)
	if err != nil {
		s.recordMissing(normalizedID(ref))
		return nil, err
	}
	return toStarlark(val), nil
}

// lab.info(ref) -> metadata dict, payload excluded
func (s *labState) infoFn(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var ref string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "ref", &ref); err != nil {
		return nil, err
	}
	info, err := s.vault.Info(ref)
	if err != nil {
		s.recordMissing(normalizedID(ref))
		return nil, err
	}
	return entryDict(*info), nil
}

// lab.list() -> list of metadata dicts in insertion order
func (s *labState) listFn(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	entries := s.vault.List()
	elems := make([]starlark.Value, len(entries))
	for i, e := range entries {
		elems[i] = entryDict(e)
	}
	return starlark.NewList(elems), nil
}

// lab.drop(ref) -> bool
func (s *labState) dropFn(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var ref string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "ref", &ref); err != nil {
		return nil, err
	}
	return starlark.Bool(s.vault.Delete(ref)), nil
}

func entryDict(e store.VaultEntry) *starlark.Dict {
	d := starlark.NewDict(6)
	d.SetKey(starlark.String("id"), starlark.String(e.ID))
	d.SetKey(starlark.String("kind"), starlark.String(e.Kind))
	d.SetKey(starlark.String("label"), starlark.String(e.Label))
	d.SetKey(starlark.String("preview"), starlark.String(e.Preview))
	d.SetKey(starlark.String("size"), starlark.MakeInt(e.Size))
	d.SetKey(starlark.String("truncated"), starlark.Bool(e.Truncated))
	return d
}

func normalizedID(ref string) string {
	if id, ok := vault.ExtractID(ref); ok {
		return id
	}
	return ref
}
