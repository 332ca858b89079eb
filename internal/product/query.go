// File: internal/product/query.go
package product

import (
	"strings"

	"gorm.io/gorm"
)

// predicate is one named, parameterized condition of a catalog query.
// User supplied text only ever travels in args.
type predicate struct {
	name string
	join bool
	sql  string
	args []interface{}
}

// buildPredicates turns a Query into the conjunctive condition list shared by
// Find and Count. Keeping a single builder is what keeps page totals honest.
func buildPredicates(q Query) []predicate {
	var preds []predicate

	if q.OnlyFavorites {
		preds = append(preds, predicate{
			name: "only_favorites",
			join: true,
			sql:  "JOIN favorites fav ON fav.product_id = p.id AND fav.user_email = ?",
			args: []interface{}{q.ViewerEmail},
		})
	}
	if q.ProductID != 0 {
		preds = append(preds, predicate{name: "product_id", sql: "p.id = ?", args: []interface{}{q.ProductID}})
	}
	if c := strings.TrimSpace(q.Category); c != "" {
		preds = append(preds, predicate{name: "category", sql: "LOWER(p.category) = LOWER(?)", args: []interface{}{c}})
	}
	if q.SellerEmail != "" {
		preds = append(preds, predicate{name: "seller_email", sql: "p.seller_email = ?", args: []interface{}{q.SellerEmail}})
	}
	if q.Filters.FreeShipping {
		preds = append(preds, predicate{name: "free_shipping", sql: "p.free_shipping = ?", args: []interface{}{true}})
	}
	if q.Filters.SearchQuery != "" {
		// LIKE follows the engine collation: case-insensitive for ASCII on
		// SQLite, case-sensitive on PostgreSQL. The query text matches literally.
		preds = append(preds, predicate{
			name: "search",
			sql:  `p.name LIKE ? ESCAPE '\'`,
			args: []interface{}{"%" + escapeLike(q.Filters.SearchQuery) + "%"},
		})
	}
	return preds
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike neutralizes LIKE wildcards in user text.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// scopePredicates applies preds to a query rooted at "products AS p".
func scopePredicates(preds []predicate) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		for _, p := range preds {
			if p.join {
				db = db.Joins(p.sql, p.args...)
			} else {
				db = db.Where(p.sql, p.args...)
			}
		}
		return db
	}
}

// Enrichment joins: seller, and per-product and per-seller rating aggregates.
const (
	sellerJoin        = "JOIN users u ON u.email = p.seller_email"
	productRatingJoin = "LEFT JOIN (SELECT product_id, CAST(AVG(rating) AS DOUBLE PRECISION) AS avg_rating FROM ratings GROUP BY product_id) pr ON pr.product_id = p.id"
	sellerRatingJoin  = "LEFT JOIN (SELECT seller_email, CAST(AVG(rating) AS DOUBLE PRECISION) AS avg_rating FROM ratings GROUP BY seller_email) sr ON sr.seller_email = p.seller_email"

	viewColumns = `p.*,
	u.first_name || ' ' || u.last_name AS seller_name,
	COALESCE(sr.avg_rating, 0) AS seller_rating,
	COALESCE(pr.avg_rating, 0) AS product_rating`
)

// selectView returns the column list plus is_favorite for the viewer.
func selectView(q Query) (string, []interface{}) {
	switch {
	case q.OnlyFavorites:
		return viewColumns + ",\n\t1 AS is_favorite", nil
	case q.ViewerEmail == "":
		return viewColumns + ",\n\t0 AS is_favorite", nil
	default:
		return viewColumns + `,
	CASE WHEN EXISTS (SELECT 1 FROM favorites f WHERE f.product_id = p.id AND f.user_email = ?) THEN 1 ELSE 0 END AS is_favorite`,
			[]interface{}{q.ViewerEmail}
	}
}

var sortClauses = map[SortOrder]string{
	SortNewest:   "p.publish_date DESC, p.id DESC",
	SortRating:   "COALESCE(pr.avg_rating, 0) DESC, p.id ASC",
	SortPriceAsc: "p.discount_price ASC, p.id ASC",
}

// orderBy resolves a SortOrder against the whitelist, defaulting to newest first.
func orderBy(s SortOrder) string {
	if clause, ok := sortClauses[s]; ok {
		return clause
	}
	return sortClauses[SortNewest]
}
