package httpx

import (
	"github.com/ariefcatur/go-catalog-orders/internal/store"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

// parseQuery reads page, perPage, projection, sort, fieldKey/fieldValue and
// regexKey/regexValue. A regexValue that does not compile is a validation
// error.
func parseQuery(r *http.Request) (store.Query, error) {
	v := r.URL.Query()
	q := store.Query{
		Page:      1,
		PerPage:   store.DefaultPerPage,
		Sort:      v.Get("sort"),
		Cacheable: true,
		Filter:    store.Filter{},
	}
	if p, err := strconv.Atoi(v.Get("page")); err == nil && p > 0 {
		q.Page = p
	}
	if pp, err := strconv.Atoi(v.Get("perPage")); err == nil && pp > 0 {
		q.PerPage = pp
	}
	if proj := v.Get("projection"); proj != "" {
		for _, f := range strings.Split(proj, ",") {
			if f = strings.TrimSpace(f); f != "" {
				q.Projection = append(q.Projection, f)
			}
		}
	}
	if k, val := v.Get("fieldKey"), v.Get("fieldValue"); k != "" && val != "" {
		q.Filter[k] = val
	}
	if k, val := v.Get("regexKey"), v.Get("regexValue"); k != "" && val != "" {
		if _, err := regexp.Compile("(?i)" + val); err != nil {
			return q, store.Invalid("regexValue", "regexValue is not a valid pattern")
		}
		q.Filter[k] = store.Regex(val)
	}
	return q, nil
}
