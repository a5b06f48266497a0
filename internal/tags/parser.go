package tags

import (
	"regexp"
	"strconv"
	"strings"
)

// openTagPattern matches an opening or self-closing tag of any plausible
// name. Group 1 is the name, group 2 the raw attribute text, group 3 the
// self-closing slash.
var openTagPattern = regexp.MustCompile(`<([a-z][a-z0-9-]*)((?:\s+[a-zA-Z_][\w-]*\s*=\s*"[^"]*")*)\s*(/?)>`)

// attrPattern is a flat key="value" scan; there is no nested-quote escaping.
var attrPattern = regexp.MustCompile(`([a-zA-Z_][\w-]*)\s*=\s*"([^"]*)"`)

var recognized = map[string]TagKind{
	string(TagCreateMemory): TagCreateMemory,
	string(TagFetchMemory):  TagFetchMemory,
	string(TagUpdateMemory): TagUpdateMemory,
	string(TagDeleteMemory): TagDeleteMemory,
	string(TagCreateTask):   TagCreateTask,
	string(TagUpdateTask):   TagUpdateTask,
	string(TagCreateGoal):   TagCreateGoal,
	string(TagVaultRead):    TagVaultRead,
	string(TagVaultDelete):  TagVaultDelete,
	string(TagExecuteCode):  TagExecuteCode,
	string(TagSpawnAgent):   TagSpawnAgent,
	string(TagCanvasOutput): TagCanvasOutput,
}

// rawTag is a matched tag before it becomes a typed operation.
type rawTag struct {
	kind  TagKind
	attrs map[string]string
	body  string
}

// Parse extracts every recognized, well-formed tag from text. Unrecognized
// tag names and opening tags with no matching close are skipped.
func Parse(text string) *OperationSet {
	set := &OperationSet{}
	pos := 0
	for pos < len(text) {
		loc := openTagPattern.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}

		matchEnd := pos + loc[1]
		name := text[pos+loc[2] : pos+loc[3]]
		attrText := text[pos+loc[4] : pos+loc[5]]
		selfClosing := loc[6] != loc[7]

		kind, ok := recognized[name]
		if !ok {
			pos = matchEnd
			continue
		}

		raw := rawTag{kind: kind, attrs: parseAttrs(attrText)}

		if selfClosing {
			pos = matchEnd
		} else {
			closing := "</" + name + ">"
			rel := strings.Index(text[matchEnd:], closing)
			if rel < 0 {
				// Unmatched opening tag: ignore it, keep scanning after it.
				pos = matchEnd
				continue
			}
			raw.body = strings.TrimSpace(text[matchEnd : matchEnd+rel])
			pos = matchEnd + rel + len(closing)
		}

		appendOp(set, raw)
	}
	return set
}

func parseAttrs(attrText string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrPattern.FindAllStringSubmatch(attrText, -1) {
		attrs[m[1]] = m[2]
	}
	return attrs
}

func appendOp(set *OperationSet, raw rawTag) {
	a := raw.attrs
	switch raw.kind {
	case TagCreateMemory:
		set.Memory = append(set.Memory, CreateMemory{
			Heading: a["heading"],
			Content: raw.body,
			Notes:   a["notes"],
		})
	case TagFetchMemory:
		set.Memory = append(set.Memory, FetchMemory{ID: a["id"]})
	case TagUpdateMemory:
		op := UpdateMemory{ID: a["id"]}
		op.Heading, op.HasHeading = attr(a, "heading")
		op.Notes, op.HasNotes = attr(a, "notes")
		if raw.body != "" {
			op.Content, op.HasContent = raw.body, true
		} else {
			op.Content, op.HasContent = attr(a, "content")
		}
		set.Memory = append(set.Memory, op)
	case TagDeleteMemory:
		set.Memory = append(set.Memory, DeleteMemory{ID: a["id"]})
	case TagCreateTask:
		set.Tasks = append(set.Tasks, CreateTask{
			Heading: a["heading"],
			Content: raw.body,
			Status:  a["status"],
			Notes:   a["notes"],
		})
	case TagUpdateTask:
		op := UpdateTask{ID: a["id"]}
		op.Heading, op.HasHeading = attr(a, "heading")
		op.Status, op.HasStatus = attr(a, "status")
		op.Notes, op.HasNotes = attr(a, "notes")
		if raw.body != "" {
			op.Content, op.HasContent = raw.body, true
		} else {
			op.Content, op.HasContent = attr(a, "content")
		}
		set.Tasks = append(set.Tasks, op)
	case TagCreateGoal:
		set.Goals = append(set.Goals, CreateGoal{
			Heading: a["heading"],
			Content: raw.body,
			Notes:   a["notes"],
		})
	case TagVaultRead:
		limit, _ := strconv.Atoi(a["limit"])
		set.Vault = append(set.Vault, VaultRead{Ref: a["ref"], Limit: limit})
	case TagVaultDelete:
		set.Vault = append(set.Vault, VaultDelete{Ref: a["ref"]})
	case TagExecuteCode:
		if raw.body != "" {
			set.Code = append(set.Code, ExecuteCode{Code: stripFence(raw.body)})
		}
	case TagSpawnAgent:
		timeout, _ := strconv.Atoi(a["timeout"])
		cache, _ := strconv.Atoi(a["cache"])
		set.Agents = append(set.Agents, SpawnAgent{
			Name:       a["name"],
			Input:      raw.body,
			TimeoutSec: timeout,
			CacheSec:   cache,
		})
	case TagCanvasOutput:
		set.Canvas = append(set.Canvas, CanvasOutput{
			Title:   a["title"],
			Content: raw.body,
		})
	}
}

func attr(attrs map[string]string, key string) (string, bool) {
	v, ok := attrs[key]
	return v, ok
}

// stripFence removes a surrounding markdown code fence, which models add
// around code bodies more often than not.
func stripFence(body string) string {
	trimmed := strings.TrimSpace(body)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return trimmed
	}
	last := len(lines) - 1
	if strings.TrimSpace(lines[last]) != "```" {
		return trimmed
	}
	return strings.TrimSpace(strings.Join(lines[1:last], "\n"))
}
