package turn

import (
	"context"

	"github.com/openclaw/statecraft/internal/tags"
	"github.com/openclaw/statecraft/internal/vault"
)

// ProcessVault applies vault read and delete operations in order.
func (c *Context) ProcessVault(ctx context.Context, ops []tags.Operation) {
	for _, op := range ops {
		var res OpResult
		switch o := op.(type) {
		case tags.VaultRead:
			res = c.vaultRead(ctx, o)
		case tags.VaultDelete:
			res = c.vaultDelete(ctx, o)
		default:
			continue
		}
		c.summary.Vault = append(c.summary.Vault, res)
		c.logger.OpResult("vault", res.Action, res.ID, res.Status)
	}
}

func (c *Context) vaultRead(ctx context.Context, op tags.VaultRead) OpResult {
	id := normalizeVaultRef(op.Ref)
	content, err := c.vault.Full(op.Ref)
	if err != nil {
		return OpResult{
			Entity: "vault", Action: "read", ID: id, Status: "error",
			Error: refError("vault", id, c.vaultIDs()),
		}
	}
	if op.Limit > 0 {
		if runes := []rune(content); len(runes) > op.Limit {
			content = string(runes[:op.Limit]) + "…"
		}
	}
	c.LogActivity(ctx, "vault_read", content, id)
	return OpResult{Entity: "vault", Action: "read", ID: id, Status: "ok", Detail: content}
}

func (c *Context) vaultDelete(ctx context.Context, op tags.VaultDelete) OpResult {
	id := normalizeVaultRef(op.Ref)
	if !c.vault.Delete(op.Ref) {
		return OpResult{
			Entity: "vault", Action: "delete", ID: id, Status: "error",
			Error: refError("vault", id, c.vaultIDs()),
		}
	}
	c.MarkDirty(storeVault)
	c.LogActivity(ctx, "vault_deleted", "", id)
	return OpResult{Entity: "vault", Action: "delete", ID: id, Status: "ok"}
}

func normalizeVaultRef(ref string) string {
	if id, ok := vault.ExtractID(ref); ok {
		return id
	}
	return ref
}
