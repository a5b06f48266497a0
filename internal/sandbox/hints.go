package sandbox

import "regexp"

// typePattern identifies interpreter messages that are type mistakes rather
// than genuine runtime failures. Type mistakes are not retried.
var typePattern = regexp.MustCompile(`(?i)(got .+, want|unknown binary op|unsupported binary op|invalid index|not iterable|unhashable|not callable|invalid call of non-function|has no \.)`)

// hintPatterns map known failure shapes to a one-line remediation.
var hintPatterns = []struct {
	pattern *regexp.Regexp
	hint    string
}{
	{regexp.MustCompile(`does not exist`), "call lab.list() to see live entries and their identifiers"},
	{regexp.MustCompile(`undefined: Lab\b`), "the capability object is bound as lowercase lab"},
	{regexp.MustCompile(`string index|string has no`), "lab.read returns a preview string; use lab.value(ref) for the structured value"},
	{regexp.MustCompile(`lab\.\w+.*has no \.|module has no \.`), "the capability surface is lab.store, lab.read, lab.value, lab.info, lab.list and lab.drop"},
	{regexp.MustCompile(`execution timeout|too many steps`), "reduce the work per snippet; store intermediate results with lab.store and continue next turn"},
}

func hintFor(msg string) string {
	for _, h := range hintPatterns {
		if h.pattern.MatchString(msg) {
			return h.hint
		}
	}
	return ""
}

// misusePatterns are pre-execution code smells worth surfacing. They never
// block the run.
var misusePatterns = []struct {
	pattern *regexp.Regexp
	warning string
}{
	{regexp.MustCompile(`lab\.read\([^)]*\)\s*\[`), "indexing into lab.read output: it returns a preview string, use lab.value for structured access"},
	{regexp.MustCompile(`\bLab\.`), "capability object referenced as Lab; it is bound as lowercase lab"},
	{regexp.MustCompile(`lab\.info\([^)]*\)\s*\[\s*["']payload`), "lab.info strips payloads; use lab.value to retrieve content"},
	{regexp.MustCompile(`(?m)^\s*load\(`), "load() is not available in the sandbox"},
	{regexp.MustCompile(`(?m)^\s*import\b`), "imports are not available; the only capability is the lab object"},
}

// misuseScan returns a warning per matched smell, in pattern order.
func misuseScan(code string) []string {
	var warnings []string
	for _, m := range misusePatterns {
		if m.pattern.MatchString(code) {
			warnings = append(warnings, m.warning)
		}
	}
	return warnings
}
