// internal/core/services/keys.go
package services

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/stockops/stock-api/internal/core/ports"
)

// Cache key namespaces. The service owns key construction; the cache
// adapter only stores bytes under whatever keys it is given.
const (
	recordKeyPrefix = "stock:record"
	queryKeyPrefix  = "stock:query"
)

// recordKey returns the cache key for a single record.
func recordKey(productID string) string {
	return recordKeyPrefix + ":" + productID
}

// queryKeyPattern matches every cached list result, for bulk invalidation.
func queryKeyPattern() string {
	return queryKeyPrefix + ":*"
}

// queryKey derives a deterministic cache key from the full normalized query
// signature. Every parameter that changes the result set participates, so
// distinct queries never collide and identical queries always hit the same
// key.
func queryKey(params ports.ListParams) string {
	var sig strings.Builder
	sig.WriteString("category=")
	sig.WriteString(params.Category)
	sig.WriteString("|search=")
	sig.WriteString(params.Search)
	sig.WriteString("|supplier=")
	sig.WriteString(params.Supplier)
	sig.WriteString("|low_stock=")
	if params.LowStock == nil {
		sig.WriteString("any")
	} else {
		fmt.Fprintf(&sig, "%t", *params.LowStock)
	}
	fmt.Fprintf(&sig, "|sort=%s|order=%s|page=%d|page_size=%d",
		params.SortBy, params.SortOrder, params.Page, params.PageSize)

	return fmt.Sprintf("%s:%016x", queryKeyPrefix, xxhash.Sum64String(sig.String()))
}
