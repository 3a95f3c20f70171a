// Package httputil holds the JSON response writers, path and query parsing
// helpers and middleware shared by the ops API handlers.
//
//	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
//	if !ok {
//		return // 400 already written
//	}
//	httputil.WriteSuccess(w, invoice)
//
// Error bodies always have the form {"error": "..."}.
package httputil
