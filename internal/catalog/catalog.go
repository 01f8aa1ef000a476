// Package catalog holds the immutable table of error definitions. A Catalog
// is built once at startup and injected into every component that needs it;
// it is safe for concurrent readers without locking.
package catalog

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/vietddude/faultline/internal/core/domain"
)

var idPattern = regexp.MustCompile(`^([A-Z][A-Z_]*)-([0-9]{3})$`)

// Catalog is a validated, read-only set of error definitions.
type Catalog struct {
	defs     map[string]domain.ErrorDefinition
	ids      []string
	messages *Messages
}

// FromSource validates a decoded document. All problems are reported in a
// single LoadError.
func FromSource(src Source) (*Catalog, error) {
	var problems []string
	defs := make(map[string]domain.ErrorDefinition, len(src.Errors)+2)

	for _, def := range domain.ReservedDefinitions() {
		defs[def.ID] = def
	}
	reserved := make(map[string]bool, len(defs))
	for id := range defs {
		reserved[id] = true
	}

	for i, e := range src.Errors {
		def, errs := entryToDefinition(e)
		for _, err := range errs {
			problems = append(problems, fmt.Sprintf("errors[%d] %s: %v", i, e.ID, err))
		}
		if len(errs) > 0 {
			continue
		}
		if reserved[def.ID] {
			problems = append(problems, fmt.Sprintf("errors[%d] %s: id is reserved", i, def.ID))
			continue
		}
		if _, dup := defs[def.ID]; dup {
			problems = append(problems, fmt.Sprintf("errors[%d] %s: duplicate id", i, def.ID))
			continue
		}
		defs[def.ID] = def
	}

	messages, err := NewMessages(src.Messages)
	if err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return nil, &LoadError{Problems: problems}
	}

	ids := make([]string, 0, len(defs))
	for id := range defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return &Catalog{defs: defs, ids: ids, messages: messages}, nil
}

// New builds a catalog from already-typed definitions.
func New(defs []domain.ErrorDefinition, messages map[string]map[string]string) (*Catalog, error) {
	src := Source{Messages: messages}
	for _, d := range defs {
		src.Errors = append(src.Errors, Entry{
			ID:             d.ID,
			Group:          string(d.Group),
			Severity:       string(d.Severity),
			Retry:          string(d.RetryStrategy),
			HTTPStatus:     d.HTTPStatus,
			UserVisible:    d.UserVisible,
			UserMessageKey: d.UserMessageKey,
			Runbook:        d.RunbookRef,
			Description:    d.Description,
		})
	}
	return FromSource(src)
}

func entryToDefinition(e Entry) (domain.ErrorDefinition, []error) {
	var errs []error

	m := idPattern.FindStringSubmatch(e.ID)
	if m == nil {
		return domain.ErrorDefinition{}, []error{fmt.Errorf("id must match GROUP-NNN")}
	}

	group := domain.Group(m[1])
	if e.Group != "" && domain.Group(e.Group) != group {
		errs = append(errs, fmt.Errorf("group %q does not match id prefix %q", e.Group, m[1]))
	}
	if !group.Valid() {
		errs = append(errs, fmt.Errorf("unknown group %q", group))
	}

	sev, err := domain.ParseSeverity(e.Severity)
	if err != nil {
		errs = append(errs, err)
	}
	retry, err := domain.ParseRetryStrategy(e.Retry)
	if err != nil {
		errs = append(errs, err)
	}

	status := e.HTTPStatus
	if status == 0 {
		status = 500
	}
	if status < 400 || status > 599 {
		errs = append(errs, fmt.Errorf("http_status %d outside 400..599", status))
	}

	if e.UserVisible && e.UserMessageKey == "" {
		errs = append(errs, fmt.Errorf("user_visible requires user_message_key"))
	}

	return domain.ErrorDefinition{
		ID:             e.ID,
		Group:          group,
		Severity:       sev,
		RetryStrategy:  retry,
		HTTPStatus:     status,
		UserVisible:    e.UserVisible,
		UserMessageKey: e.UserMessageKey,
		RunbookRef:     e.Runbook,
		Description:    e.Description,
	}, errs
}

// Lookup returns the definition for id. It never fails.
func (c *Catalog) Lookup(id string) (domain.ErrorDefinition, bool) {
	def, ok := c.defs[id]
	return def, ok
}

// Resolve returns the definition for id, substituting GENERAL-000 on a miss.
// The returned error is an *UnknownIDError for misses and is never fatal.
func (c *Catalog) Resolve(id string) (domain.ErrorDefinition, error) {
	if def, ok := c.defs[id]; ok {
		return def, nil
	}
	return c.defs[domain.UnknownErrorID], &UnknownIDError{ID: id}
}

// All returns every definition sorted by id.
func (c *Catalog) All() []domain.ErrorDefinition {
	out := make([]domain.ErrorDefinition, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.defs[id])
	}
	return out
}

// Len returns the number of definitions, reserved ones included.
func (c *Catalog) Len() int {
	return len(c.ids)
}

// Messages returns the user message bundle.
func (c *Catalog) Messages() *Messages {
	return c.messages
}
