package swagger

import (
	_ "embed"
	"net/http"
)

//go:embed openapi.yaml
var openAPISpec []byte

// Spec returns the embedded OpenAPI document.
func Spec() []byte { return openAPISpec }

// Handler serves the OpenAPI document and a Swagger UI page loaded from a CDN.
// It expects to be mounted under /docs.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		_, _ = w.Write(openAPISpec)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" && r.URL.Path != "" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(swaggerUIHTML))
	})
	return mux
}

const swaggerUIVersion = "5.17.14"

const swaggerUIHTML = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Tariff Manager API</title>
<link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@` + swaggerUIVersion + `/swagger-ui.css">
</head>
<body>
<div id="docs"></div>
<script src="https://unpkg.com/swagger-ui-dist@` + swaggerUIVersion + `/swagger-ui-bundle.js"></script>
<script>
SwaggerUIBundle({url: "/docs/openapi.yaml", dom_id: "#docs", docExpansion: "list"});
</script>
</body>
</html>
`
