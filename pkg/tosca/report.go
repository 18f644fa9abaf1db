package tosca

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nfvpack/nfvpack/pkg/util"
)

// Severity is the weight of an issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue codes.
const (
	CodeParseError              = "parse-error"
	CodeMissingVersion          = "missing-definitions-version"
	CodeUnknownVersion          = "unknown-definitions-version"
	CodeUnresolvedImport        = "unresolved-import"
	CodeImportCycle             = "import-cycle"
	CodeRemoteImport            = "remote-import"
	CodeUnknownType             = "unknown-type"
	CodeUnknownParentType       = "unknown-parent-type"
	CodeTypeCycle               = "type-cycle"
	CodeDuplicateType           = "duplicate-type"
	CodeUnresolvedRequirement   = "unresolved-requirement"
	CodeUnknownRequirement      = "unknown-requirement"
	CodeUnknownCapabilityType   = "unknown-capability-type"
	CodeUnknownRelationshipType = "unknown-relationship-type"
	CodeSelfRequirement         = "self-requirement"
	CodeUnresolvedCopy          = "unresolved-copy"
	CodeInvalidScalarUnit       = "invalid-scalar-unit"
	CodeUnresolvedInput         = "unresolved-input"
	CodeUnresolvedFunction      = "unresolved-function-target"
	CodeUnresolvedGroupMember   = "unresolved-group-member"
	CodeEndpointCountMismatch   = "endpoint-count-mismatch"
	CodeInvalidSignature        = "invalid-signature-block"
	CodeUnknownDigestAlgorithm  = "unknown-digest-algorithm"
	CodeMissingContentType      = "missing-content-type"
	CodeMissingTopology         = "missing-topology-template"
)

// unresolvedCodes are the codes reported for references that point nowhere.
var unresolvedCodes = map[string]bool{
	CodeUnresolvedImport:      true,
	CodeUnknownType:           true,
	CodeUnknownParentType:     true,
	CodeUnresolvedRequirement: true,
	CodeUnresolvedCopy:        true,
	CodeUnresolvedInput:       true,
	CodeUnresolvedFunction:    true,
	CodeUnresolvedGroupMember: true,
}

// Issue is one finding against a document.
type Issue struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	File     string   `json:"file,omitempty"`
	Path     string   `json:"path,omitempty"`
	Line     int      `json:"line,omitempty"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	var b strings.Builder
	if i.File != "" {
		b.WriteString(i.File)
		if i.Line > 0 {
			fmt.Fprintf(&b, ":%d", i.Line)
		}
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "%s [%s]", i.Severity, i.Code)
	if i.Path != "" {
		fmt.Fprintf(&b, " %s:", i.Path)
	}
	b.WriteString(" ")
	b.WriteString(i.Message)
	return b.String()
}

// Report collects the issues found for one source.
type Report struct {
	Source string  `json:"source"`
	Issues []Issue `json:"issues"`
}

// NewReport creates an empty report.
func NewReport(source string) *Report {
	return &Report{Source: source, Issues: []Issue{}}
}

// Add appends an issue.
func (r *Report) Add(issue Issue) {
	r.Issues = append(r.Issues, issue)
}

// Errorf appends an error-severity issue.
func (r *Report) Errorf(code, file, path string, line int, format string, args ...any) {
	r.Add(Issue{Severity: SeverityError, Code: code, File: file, Path: path, Line: line, Message: fmt.Sprintf(format, args...)})
}

// Warnf appends a warning-severity issue.
func (r *Report) Warnf(code, file, path string, line int, format string, args ...any) {
	r.Add(Issue{Severity: SeverityWarning, Code: code, File: file, Path: path, Line: line, Message: fmt.Sprintf(format, args...)})
}

// Merge appends all issues of other.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Issues = append(r.Issues, other.Issues...)
}

// Errors returns the error-severity issues.
func (r *Report) Errors() []Issue {
	return r.filter(func(i Issue) bool { return i.Severity == SeverityError })
}

// Warnings returns the warning-severity issues.
func (r *Report) Warnings() []Issue {
	return r.filter(func(i Issue) bool { return i.Severity == SeverityWarning })
}

// Unresolved returns the issues reporting references that do not resolve.
func (r *Report) Unresolved() []Issue {
	return r.filter(func(i Issue) bool { return unresolvedCodes[i.Code] })
}

// HasErrors reports whether any error-severity issue is present.
func (r *Report) HasErrors() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// OK reports whether the report is free of errors.
func (r *Report) OK() bool {
	return !r.HasErrors()
}

// Err folds the error-severity issues into a util.ValidationError.
func (r *Report) Err() error {
	vb := &util.ValidationBuilder{}
	for _, i := range r.Errors() {
		vb.AddError(i.String())
	}
	return vb.Build()
}

// Sort orders issues by file, line, path and code.
func (r *Report) Sort() {
	sort.SliceStable(r.Issues, func(a, b int) bool {
		x, y := r.Issues[a], r.Issues[b]
		if x.File != y.File {
			return x.File < y.File
		}
		if x.Line != y.Line {
			return x.Line < y.Line
		}
		if x.Path != y.Path {
			return x.Path < y.Path
		}
		return x.Code < y.Code
	})
}

// Finalize applies the options to the collected issues and sorts them.
// Callers that append issues after Check call it again.
func (r *Report) Finalize(opts CheckOptions) {
	r.drop(opts.Ignore)
	if opts.Strict {
		r.escalate()
	}
	r.Sort()
}

// escalate turns warnings into errors.
func (r *Report) escalate() {
	for i := range r.Issues {
		r.Issues[i].Severity = SeverityError
	}
}

func (r *Report) drop(codes []string) {
	if len(codes) == 0 {
		return
	}
	skip := make(map[string]bool, len(codes))
	for _, c := range codes {
		skip[c] = true
	}
	r.Issues = r.filter(func(i Issue) bool { return !skip[i.Code] })
}

func (r *Report) filter(keep func(Issue) bool) []Issue {
	out := []Issue{}
	for _, i := range r.Issues {
		if keep(i) {
			out = append(out, i)
		}
	}
	return out
}
