package template

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aios/organizer/internal/analysis"
	"github.com/aios/organizer/internal/orgerrors"
)

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// reservedTransformers map a `{_xxx_}` token to the Case it re-cases the
// *previous* resolved segment into.
var reservedTransformers = map[string]Case{
	"_camel_":  CaseCamel,
	"_snake_":  CaseSnake,
	"_kebab_":  CaseKebab,
	"_pascal_": CasePascal,
}

// Resolve maps an AnalysisResult onto a concrete destination path under the
// given template end to end: placeholder substitution, elision of missing
// values, per-segment case conversion, and
// (when enforceTemplateStructure is set) restoring a matched declared
// folder's own spelling and verifying that the outcome lives under one of
// the template's declared folders.
func Resolve(t *Template, result *analysis.Result, ext string) (string, error) {
	rendered, locked, err := renderNamingStructure(t.NamingStructure, result)
	if err != nil {
		return "", err
	}

	var clean []string
	var lockedSeg []bool
	offset := 0
	for _, s := range strings.Split(rendered, "/") {
		start, end := offset, offset+len(s)
		offset = end + 1 // account for the "/" separator consumed by Split
		if s == "" {
			continue
		}
		clean = append(clean, s)
		lockedSeg = append(lockedSeg, overlapsAny(start, end, locked))
	}
	if len(clean) == 0 {
		return "", orgerrors.TemplateResolve(fmt.Errorf("resolved naming structure %q produced no usable path segments", t.NamingStructure))
	}

	// Every segment, including the last (the bare filename, extension
	// appended separately below), is slugified and re-cased per
	// fileNameCase — unless a reserved transformer already chose that
	// segment's case, in which case re-casing it again would clobber the
	// transformer's choice, so only slugify.
	for i, s := range clean {
		if lockedSeg[i] {
			clean[i] = slugify(s)
			continue
		}
		clean[i] = ChangeCase(slugify(s), t.FileNameCase)
	}
	relative := filepath.Join(clean...)
	filename := clean[len(clean)-1] + ext

	base, err := resolveBasePath(t.BasePath)
	if err != nil {
		return "", orgerrors.TemplateResolve(err)
	}

	dir := filepath.Dir(filepath.Join(base, relative))
	full := filepath.Join(dir, filename)

	if t.EnforceTemplateStructure {
		// Re-casing may have changed a declared folder's spelling (e.g.
		// "Contracts" -> "contracts"); a leading run of segments that
		// matches a declared folder case-insensitively is put back in the
		// folder's declared spelling.
		rel := filepath.ToSlash(relative)
		for _, p := range t.FolderStructure {
			p = strings.Trim(filepath.ToSlash(p), "/")
			if p != "" && len(rel) > len(p) && rel[len(p)] == '/' && strings.EqualFold(rel[:len(p)], p) {
				full = filepath.Join(base, filepath.FromSlash(p), filepath.Dir(rel[len(p)+1:]), filename)
				break
			}
		}
		if !underDeclaredFolder(base, full, t.FolderStructure) {
			return "", orgerrors.TemplateResolve(fmt.Errorf(
				"resolved path %q does not fall under any of template %q's declared folders %v", full, t.ID, t.FolderStructure))
		}
	}

	return full, nil
}

// byteRange is a half-open [start, end) byte offset range within a rendered
// naming structure.
type byteRange struct{ start, end int }

func overlapsAny(start, end int, ranges []byteRange) bool {
	for _, r := range ranges {
		if r.start < end && r.end > start {
			return true
		}
	}
	return false
}

// renderNamingStructure substitutes every {placeholder} token in structure
// with a value from the AnalysisResult, a derived value, or applies a
// reserved-word transformer to the immediately preceding resolved value.
// Missing/null values are removed along with any adjacent separator. It
// also returns the byte ranges of the rendered output that a reserved
// transformer re-cased, so the caller can leave that case choice alone
// during its own per-segment case pass.
func renderNamingStructure(structure string, result *analysis.Result) (string, []byteRange, error) {
	acc := ""
	lastValueStart := 0 // offset in acc where the most recently substituted value begins
	var locked []byteRange

	matches := placeholderRe.FindAllStringSubmatchIndex(structure, -1)
	cursor := 0
	for _, m := range matches {
		litStart, litEnd := m[0], m[1]
		tokStart, tokEnd := m[2], m[3]
		token := structure[tokStart:tokEnd]

		acc += structure[cursor:litStart]

		if cc, ok := reservedTransformers[token]; ok {
			// A reserved transformer re-cases the value it immediately
			// follows in place, rather than appending new text.
			prevValue := acc[lastValueStart:]
			recased := ChangeCase(prevValue, cc)
			acc = acc[:lastValueStart] + recased
			locked = append(locked, byteRange{start: lastValueStart, end: lastValueStart + len(recased)})
			cursor = litEnd
			continue
		}

		value, ok := fieldValue(token, result)
		if !ok {
			// Elide the placeholder and the separator immediately before
			// or after it, so a missing value never leaves a bare "//" or
			// a dangling "_"/"-" behind in the rendered path.
			acc = trimTrailingSeparator(acc)
			cursor = skipLeadingSeparator(structure, litEnd)
			continue
		}

		lastValueStart = len(acc)
		acc += value
		cursor = litEnd
	}
	acc += structure[cursor:]

	return acc, locked, nil
}

func trimTrailingSeparator(s string) string {
	return strings.TrimRight(s, "/_- ")
}

func skipLeadingSeparator(s string, from int) int {
	i := from
	for i < len(s) && strings.ContainsRune("/_- ", rune(s[i])) {
		i++
	}
	return i
}

// fieldValue resolves a placeholder token to its string value, checking (in
// order): AnalysisResult core/optional fields, then derived values.
func fieldValue(token string, result *analysis.Result) (string, bool) {
	switch token {
	case "file_title":
		return nonEmpty(result.Title)
	case "file_category_1":
		return nonEmpty(result.Category)
	case "file_date_created":
		return time.Now().Format("2006-01-02"), true
	}
	if result == nil {
		return "", false
	}
	return result.StringField(token)
}

func nonEmpty(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	return s, true
}

// resolveBasePath expands a leading ~ to the user's home directory.
func resolveBasePath(base string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("template base path is empty")
	}
	if base == "~" || strings.HasPrefix(base, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving ~: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(base, "~")), nil
	}
	return base, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// slugify converts whitespace to underscores and strips characters outside
// [A-Za-z0-9._-].
func slugify(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "_")
	s = unsafeChars.ReplaceAllString(s, "")
	return s
}

// underDeclaredFolder reports whether full (an absolute path under base)
// begins with base/p for some p in folderStructure.
func underDeclaredFolder(base, full string, folderStructure []string) bool {
	rel, err := filepath.Rel(base, full)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, p := range folderStructure {
		p = strings.Trim(filepath.ToSlash(p), "/")
		if rel == p || strings.HasPrefix(rel, p+"/") {
			return true
		}
	}
	return false
}
