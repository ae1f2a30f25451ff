package llm

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Filters narrows retrieval before generation. Zero-value Filters means
// unfiltered search.
type Filters struct {
	EntityTypes []string `json:"entityTypes,omitempty"`
	DateFrom    string   `json:"dateFrom,omitempty"`
	DateTo      string   `json:"dateTo,omitempty"`
	EntityIDs   []string `json:"entityIds,omitempty"`
	Limit       int      `json:"limit,omitempty"`
}

// Empty reports whether no filter was extracted.
func (f Filters) Empty() bool {
	return len(f.EntityTypes) == 0 && f.DateFrom == "" && f.DateTo == "" && len(f.EntityIDs) == 0
}

// entityKeywords maps query keywords to entity types. The store's users work
// in English and Arabic, so both vocabularies are matched. Vendors live in
// the clients table, hence the shared mapping.
var entityKeywords = []struct {
	entityType string
	keywords   []string
}{
	{"invoices", []string{"invoice", "invoices", "bill", "فاتورة", "فواتير"}},
	{"clients", []string{"client", "clients", "customer", "customers", "vendor", "supplier", "عميل", "عملاء", "زبون", "مورد", "موردين"}},
	{"products", []string{"product", "products", "item", "stock", "inventory", "منتج", "منتجات", "صنف", "بضاعة", "مخزون"}},
	{"users", []string{"user", "users", "employee", "cashier", "مستخدم", "مستخدمين", "موظف"}},
	{"accounts", []string{"account", "accounts", "balance", "ledger", "حساب", "حسابات", "رصيد"}},
}

var (
	isoDatePattern   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	slashDatePattern = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	entityIDPattern  = regexp.MustCompile(`#(\d+)\b`)
)

// ExtractFilters derives coarse retrieval filters from the raw query text by
// keyword and pattern matching. This is a best-effort heuristic, not a
// parser: extracting nothing is fine and falls back to unfiltered search.
func ExtractFilters(query string) Filters {
	var f Filters
	lower := strings.ToLower(query)

	for _, group := range entityKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				f.EntityTypes = append(f.EntityTypes, group.entityType)
				break
			}
		}
	}

	dates := isoDatePattern.FindAllString(query, 2)
	for _, m := range slashDatePattern.FindAllStringSubmatch(query, 2) {
		dates = append(dates, fmt.Sprintf("%s-%s-%s", m[3], pad2(m[2]), pad2(m[1])))
	}
	// ISO dates match regardless of their position in the query, so a mixed
	// format range can collect out of order. ISO sorts chronologically.
	sort.Strings(dates)
	if len(dates) == 1 {
		f.DateFrom = dates[0]
		f.DateTo = dates[0]
	} else if len(dates) >= 2 {
		f.DateFrom = dates[0]
		f.DateTo = dates[1]
	}

	for _, m := range entityIDPattern.FindAllStringSubmatch(query, -1) {
		f.EntityIDs = append(f.EntityIDs, m[1])
	}

	return f
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
